package main

import (
	"strings"
	"testing"
)

func TestAgentsList(t *testing.T) {
	cfgPath := writeTestConfig(t, "")

	out, err := runCommand(t, "agents", "list", "-c", cfgPath)
	if err != nil {
		t.Fatalf("agents list: %v", err)
	}
	for _, want := range []string{"general", "General", "claude", "local", "qwen3:8b"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestAgentsList_MissingConfig(t *testing.T) {
	if _, err := runCommand(t, "agents", "list", "-c", "/nonexistent/ccd.yaml"); err == nil {
		t.Fatal("expected error for missing config")
	}
}

func TestAgentsCosts_EmptyHistory(t *testing.T) {
	cfgPath := writeTestConfig(t, "")

	// Initialize the schema first.
	if _, err := runCommand(t, "db", "init", "-c", cfgPath); err != nil {
		t.Fatalf("db init: %v", err)
	}

	out, err := runCommand(t, "agents", "costs", "-c", cfgPath)
	if err != nil {
		t.Fatalf("agents costs: %v", err)
	}
	if !strings.Contains(out, "AGENT") {
		t.Errorf("header missing:\n%s", out)
	}
}
