package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/nexus/internal/runtimeconfig"
	"github.com/haasonsaas/nexus/pkg/models"
)

func resolveConfig(configPath, host string, grpcPort, httpPort, metricsPort int) (*models.Config, error) {
	return runtimeconfig.Load(configPath, runtimeconfig.Overrides{
		Host:        host,
		GRPCPort:    grpcPort,
		HTTPPort:    httpPort,
		MetricsPort: metricsPort,
	})
}

func toURLValues(query map[string][]string) url.Values {
	return url.Values(query)
}

func buildServeCmd() *cobra.Command {
	var (
		configPath string
		host       string
		grpcPort   int
		httpPort   int
		metricsPort int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the control surface, fleet, and maintenance scheduler",
		Long: `Start nexusd: connect the configured tool-server fleet, boot the
orchestrator and session store, and serve the authenticated control
surface (tool/prompt listing and invocation, objective submission and
status, session tree, /metrics, /healthz).

Graceful shutdown is handled on SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, host, grpcPort, httpPort, metricsPort)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	cmd.Flags().StringVar(&host, "host", "", "Listen host override")
	cmd.Flags().IntVar(&grpcPort, "grpc-port", 0, "gRPC listen port override (reserved; current surface is HTTP/JSON)")
	cmd.Flags().IntVar(&httpPort, "http-port", 0, "HTTP listen port override")
	cmd.Flags().IntVar(&metricsPort, "metrics-port", 0, "Metrics listen port override")

	return cmd
}

func runServe(ctx context.Context, configPath, host string, grpcPort, httpPort, metricsPort int) error {
	cfg, err := resolveConfig(configPath, host, grpcPort, httpPort, metricsPort)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	rt, err := buildRuntime(cfg, slog.Default())
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- rt.Start(ctx) }()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	slog.Info("shutdown signal received, stopping nexusd")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	rt.Stop(shutdownCtx)
	slog.Info("nexusd stopped")
	return nil
}

func buildPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Submit and inspect orchestrator objectives",
	}
	cmd.AddCommand(buildPlanSubmitCmd(), buildPlanStatusCmd())
	return cmd
}

func buildPlanSubmitCmd() *cobra.Command {
	var server, token string

	cmd := &cobra.Command{
		Use:   "submit <sessionId> <objective>",
		Short: "Submit a natural-language objective for a session",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newAPIClient(server, token)
			var out map[string]any
			payload := map[string]string{"session_id": args[0], "objective": args[1]}
			if err := client.postJSON(cmd.Context(), "/v1/objectives/submit", payload, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	addClientFlags(cmd, &server, &token)
	return cmd
}

func buildPlanStatusCmd() *cobra.Command {
	var server, token string

	cmd := &cobra.Command{
		Use:   "status <sessionId>",
		Short: "Poll an objective's execution status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newAPIClient(server, token)
			var out map[string]any
			query := map[string][]string{"session_id": {args[0]}}
			if err := client.getJSON(cmd.Context(), "/v1/objectives/status", toURLValues(query), &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	addClientFlags(cmd, &server, &token)
	return cmd
}

func buildSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect session fork trees",
	}
	cmd.AddCommand(buildSessionTreeCmd())
	return cmd
}

func buildSessionTreeCmd() *cobra.Command {
	var server, token string

	cmd := &cobra.Command{
		Use:   "tree <projectId>",
		Short: "Render a project's session fork tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newAPIClient(server, token)
			var out map[string]any
			query := map[string][]string{"project_id": {args[0]}}
			if err := client.getJSON(cmd.Context(), "/v1/sessions/tree", toURLValues(query), &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	addClientFlags(cmd, &server, &token)
	return cmd
}

func buildToolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tool",
		Short: "List and invoke tools through the unified tool host",
	}
	cmd.AddCommand(buildToolListCmd(), buildToolCallCmd())
	return cmd
}

func buildToolListCmd() *cobra.Command {
	var server, token string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tools visible to the caller's role",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newAPIClient(server, token)
			var out map[string]any
			if err := client.getJSON(cmd.Context(), "/v1/tools/list", nil, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	addClientFlags(cmd, &server, &token)
	return cmd
}

func buildToolCallCmd() *cobra.Command {
	var server, token, toolServer string

	cmd := &cobra.Command{
		Use:   "call <tool> <argumentsJSON>",
		Short: "Invoke a tool with JSON-encoded arguments",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newAPIClient(server, token)
			body := map[string]any{"tool": args[0]}
			if toolServer != "" {
				body["server"] = toolServer
			}
			if len(args) == 2 {
				body["arguments"] = json.RawMessage(args[1])
			}
			var out any
			if err := client.postJSON(cmd.Context(), "/v1/tools/call", body, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	addClientFlags(cmd, &server, &token)
	cmd.Flags().StringVar(&toolServer, "server-name", "", "Qualify the tool name with this fleet server; the call still runs through the host's permission gate")
	return cmd
}

func buildFleetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fleet",
		Short: "Inspect tool-server fleet connection state",
	}
	cmd.AddCommand(buildFleetStatusCmd(), buildFleetRestartCmd())
	return cmd
}

func buildFleetRestartCmd() *cobra.Command {
	var server, token string

	cmd := &cobra.Command{
		Use:   "restart <server>",
		Short: "Restart one managed tool server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newAPIClient(server, token)
			var out map[string]any
			if err := client.postJSON(cmd.Context(), "/v1/fleet/restart", map[string]string{"server": args[0]}, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	addClientFlags(cmd, &server, &token)
	return cmd
}

func buildFleetStatusCmd() *cobra.Command {
	var server, token string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show every managed tool server's connection state",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newAPIClient(server, token)
			var out map[string]any
			if err := client.getJSON(cmd.Context(), "/healthz", nil, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	addClientFlags(cmd, &server, &token)
	return cmd
}

func addClientFlags(cmd *cobra.Command, server, token *string) {
	cmd.Flags().StringVar(server, "server", "http://127.0.0.1:7080", "nexusd control surface base URL")
	cmd.Flags().StringVar(token, "token", os.Getenv("NEXUSD_TOKEN"), "JWT bearer token (default from NEXUSD_TOKEN)")
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
