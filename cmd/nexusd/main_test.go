package main

import "testing"

func TestBuildRootCmdIncludesSubcommands(t *testing.T) {
	cmd := buildRootCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	required := []string{"serve", "plan", "session", "tool", "fleet"}
	for _, name := range required {
		if !names[name] {
			t.Fatalf("expected subcommand %q to be registered", name)
		}
	}
}

func TestBuildPlanCmdIncludesSubmitAndStatus(t *testing.T) {
	cmd := buildPlanCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, name := range []string{"submit", "status"} {
		if !names[name] {
			t.Fatalf("expected plan subcommand %q to be registered", name)
		}
	}
}

func TestBuildFleetCmdIncludesStatusAndRestart(t *testing.T) {
	cmd := buildFleetCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, name := range []string{"status", "restart"} {
		if !names[name] {
			t.Fatalf("expected fleet subcommand %q to be registered", name)
		}
	}
}
