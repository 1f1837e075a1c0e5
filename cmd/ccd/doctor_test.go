package main

import (
	"bytes"
	"testing"

	"github.com/jessesep/claude-code-discord-sub002/internal/config"
)

func TestProviderBinaries(t *testing.T) {
	cfg := &config.Config{
		Agents: []config.AgentConfig{
			{ID: "a", Provider: "claude"},
			{ID: "b", Provider: "claude"}, // duplicate provider, one binary
			{ID: "c", Provider: "cursor"},
		},
	}
	bins := providerBinaries(cfg)
	if len(bins) != 2 || bins[0] != "claude" || bins[1] != "cursor-agent" {
		t.Errorf("got %v, want [claude cursor-agent]", bins)
	}
	if providerBinaries(nil) != nil {
		t.Error("nil config should yield no binaries")
	}
}

func TestCheckConfig_Missing(t *testing.T) {
	cfg, result := checkConfig("/nonexistent/ccd.yaml")
	if cfg != nil || result.status != "FAIL" {
		t.Errorf("got (%v, %s), want failure", cfg, result.status)
	}
}

func TestCheckConfig_Valid(t *testing.T) {
	path := writeTestConfig(t, "")
	cfg, result := checkConfig(path)
	if cfg == nil || result.status != "PASS" {
		t.Errorf("got (%v, %s), want pass", cfg, result.status)
	}
}

func TestCheckTokens(t *testing.T) {
	cfg := &config.Config{}
	results := checkTokens(cfg)
	if len(results) != 1 || results[0].status != "FAIL" {
		t.Errorf("missing discord token should fail: %+v", results)
	}

	cfg.Discord.BotToken = "x"
	cfg.Slack.BotToken = "y" // app token missing
	results = checkTokens(cfg)
	if len(results) != 2 || results[0].status != "PASS" || results[1].status != "WARN" {
		t.Errorf("got %+v, want discord pass + slack warn", results)
	}
}

func TestCheckBinary_NotFound(t *testing.T) {
	r := checkBinary("definitely-not-a-real-binary-xyz")
	if r.status != "FAIL" {
		t.Errorf("got %s, want FAIL", r.status)
	}
}

func TestCheckDatabase_Sqlite(t *testing.T) {
	path := writeTestConfig(t, "")
	cfg, _ := config.Load(path)

	r := checkDatabase(cfg)
	if r.status != "PASS" {
		t.Errorf("got %s (%s), want PASS", r.status, r.detail)
	}
}

func TestPrintCheckResult(t *testing.T) {
	var buf bytes.Buffer
	printCheckResult(&buf, checkResult{"Thing", "PASS", "ok"})
	if buf.String() != "[PASS] Thing: ok\n" {
		t.Errorf("got %q", buf.String())
	}
}
