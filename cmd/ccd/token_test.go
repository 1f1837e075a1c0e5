package main

import (
	"os"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestToken_WritesDiscordToken(t *testing.T) {
	cfgPath := writeTestConfig(t, "")

	orig := readToken
	readToken = func() (string, error) { return "new-secret-token", nil }
	defer func() { readToken = orig }()

	out, err := runCommand(t, "token", "-c", cfgPath)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if !strings.Contains(out, "Token saved") {
		t.Errorf("confirmation missing:\n%s", out)
	}

	data, err := os.ReadFile(cfgPath)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	discord, _ := doc["discord"].(map[string]interface{})
	if discord["bot_token"] != "new-secret-token" {
		t.Errorf("token not written: %v", discord)
	}
	// Unrelated sections survive the rewrite.
	if _, ok := doc["agents"]; !ok {
		t.Error("agents section lost")
	}
}

func TestToken_SlackPlatform(t *testing.T) {
	cfgPath := writeTestConfig(t, "")

	orig := readToken
	readToken = func() (string, error) { return "xoxb-123", nil }
	defer func() { readToken = orig }()

	if _, err := runCommand(t, "token", "-c", cfgPath, "-p", "slack"); err != nil {
		t.Fatalf("token slack: %v", err)
	}

	data, _ := os.ReadFile(cfgPath)
	var doc map[string]interface{}
	yaml.Unmarshal(data, &doc)
	slack, _ := doc["slack"].(map[string]interface{})
	if slack["bot_token"] != "xoxb-123" {
		t.Errorf("slack token not written: %v", slack)
	}
}

func TestToken_RejectsUnknownPlatform(t *testing.T) {
	cfgPath := writeTestConfig(t, "")
	if _, err := runCommand(t, "token", "-c", cfgPath, "-p", "irc"); err == nil {
		t.Fatal("expected error for unknown platform")
	}
}

func TestToken_RejectsEmpty(t *testing.T) {
	cfgPath := writeTestConfig(t, "")

	orig := readToken
	readToken = func() (string, error) { return "", nil }
	defer func() { readToken = orig }()

	if _, err := runCommand(t, "token", "-c", cfgPath); err == nil {
		t.Fatal("expected error for empty token")
	}
}
