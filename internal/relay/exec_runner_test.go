package relay

import (
	"testing"

	"github.com/jessesep/claude-code-discord-sub002/internal/config"
)

func TestCLIRunner_Command(t *testing.T) {
	r := &CLIRunner{}

	tests := []struct {
		provider   string
		model      string
		wantBinary string
		wantArg    string // must appear in args
	}{
		{"claude", "claude-sonnet-4-5", "claude", "--dangerously-skip-permissions"},
		{"ollama", "qwen3:8b", "ollama", "run"},
		{"cursor", "composer-1", "cursor-agent", "--model"},
	}
	for _, tt := range tests {
		binary, args := r.command(TurnRequest{
			Agent:  config.AgentConfig{Provider: tt.provider},
			Model:  tt.model,
			Prompt: "hi",
		})
		if binary != tt.wantBinary {
			t.Errorf("%s: binary = %q, want %q", tt.provider, binary, tt.wantBinary)
		}
		found := false
		for _, a := range args {
			if a == tt.wantArg {
				found = true
			}
		}
		if !found {
			t.Errorf("%s: args %v missing %q", tt.provider, args, tt.wantArg)
		}
	}
}

func TestCLIRunner_CommandIncludesSystemPrompt(t *testing.T) {
	r := &CLIRunner{}
	_, args := r.command(TurnRequest{
		Agent:  config.AgentConfig{Provider: "claude", SystemPrompt: "be terse"},
		Model:  "m",
		Prompt: "hi",
	})
	found := false
	for i, a := range args {
		if a == "--append-system-prompt" && i+1 < len(args) && args[i+1] == "be terse" {
			found = true
		}
	}
	if !found {
		t.Errorf("system prompt not wired: %v", args)
	}
}

func TestCLIRunner_BinaryOverride(t *testing.T) {
	r := &CLIRunner{Binaries: map[string]string{"claude": "/opt/bin/claude"}}
	binary, _ := r.command(TurnRequest{Agent: config.AgentConfig{Provider: "claude"}})
	if binary != "/opt/bin/claude" {
		t.Errorf("got %q, want override path", binary)
	}
}

func TestCLIRunner_ParseClaudeJSON(t *testing.T) {
	r := &CLIRunner{}
	out := []byte(`{"type":"result","result":"hello world","is_error":false,"total_cost_usd":0.0042}`)

	reply, cost, err := r.parseOutput("claude", out)
	if err != nil {
		t.Fatalf("parseOutput: %v", err)
	}
	if reply != "hello world" || cost != 0.0042 {
		t.Errorf("got (%q, %v)", reply, cost)
	}
}

func TestCLIRunner_ParseClaudeError(t *testing.T) {
	r := &CLIRunner{}
	out := []byte(`{"result":"usage limit reached","is_error":true,"total_cost_usd":0}`)

	if _, _, err := r.parseOutput("claude", out); err == nil {
		t.Fatal("is_error result must surface as an error")
	}
}

func TestCLIRunner_ParsePlainTextFallback(t *testing.T) {
	r := &CLIRunner{}

	reply, cost, err := r.parseOutput("claude", []byte("plain text reply\n"))
	if err != nil || reply != "plain text reply" || cost != 0 {
		t.Errorf("fallback wrong: (%q, %v, %v)", reply, cost, err)
	}

	reply, cost, err = r.parseOutput("ollama", []byte("local reply\n"))
	if err != nil || reply != "local reply" || cost != 0 {
		t.Errorf("local parse wrong: (%q, %v, %v)", reply, cost, err)
	}
}
