// Package main provides the CLI entry point for nexusd, the multi-agent
// orchestration runtime: DAG-scheduled task execution over a fleet of
// auto-discovered tool servers, exposed through an authenticated HTTP
// control surface.
//
// # Basic Usage
//
// Start the control surface and fleet:
//
//	nexusd serve --config nexusd.yaml
//
// Submit an objective and poll its status:
//
//	nexusd plan submit <sessionId> "fix the failing build"
//	nexusd plan status <sessionId>
//
// # Environment Variables
//
//   - NEXUSD_HOST, NEXUSD_GRPC_PORT, NEXUSD_HTTP_PORT, NEXUSD_METRICS_PORT
//   - NEXUSD_STORAGE_ROOT, NEXUSD_JWT_SECRET, NEXUSD_JWT_ISSUER
//   - ANTHROPIC_API_KEY, OPENAI_API_KEY, GOOGLE_API_KEY
//   - DO_NOT_TRACK
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "nexusd",
		Short:   "nexusd - multi-agent orchestration runtime",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Long: `nexusd decomposes a natural-language objective into a task graph,
schedules it across specialized agents, and dispatches tool calls to a
fleet of auto-discovered tool servers.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildPlanCmd(),
		buildSessionCmd(),
		buildToolCmd(),
		buildFleetCmd(),
	)
	return rootCmd
}
