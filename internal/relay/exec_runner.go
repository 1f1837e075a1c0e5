package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// CLIRunner implements AgentRunner by launching a provider CLI subprocess
// per turn. Each process is one-shot: the prompt goes in as an argument, the
// reply comes back on stdout, then the process exits.
type CLIRunner struct {
	// Binaries overrides the per-provider binary path; keys are provider
	// names, defaults are the provider names themselves ("claude", "ollama",
	// "cursor-agent").
	Binaries map[string]string

	// TurnTimeout bounds one subprocess run. Zero means DefaultTurnTimeout.
	TurnTimeout time.Duration
}

// DefaultTurnTimeout is the per-turn subprocess deadline.
const DefaultTurnTimeout = 10 * time.Minute

// claudeResult is the JSON envelope emitted by the claude CLI with
// --output-format json.
type claudeResult struct {
	Result       string  `json:"result"`
	IsError      bool    `json:"is_error"`
	TotalCostUSD float64 `json:"total_cost_usd"`
}

// Run executes one chat turn. The subprocess runs in the request's workspace
// and is killed (whole process group) when ctx is cancelled.
func (r *CLIRunner) Run(ctx context.Context, req TurnRequest) (string, float64, error) {
	binary, args := r.command(req)

	timeout := r.TurnTimeout
	if timeout <= 0 {
		timeout = DefaultTurnTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, binary, args...)
	if req.Workspace != "" {
		cmd.Dir = req.Workspace
	}

	// Use a process group so SIGTERM kills the entire tree (shell + children).
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	}
	cmd.WaitDelay = 10 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", 0, ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", 0, fmt.Errorf("relay: %s turn: %s", req.Agent.Provider, msg)
	}

	return r.parseOutput(req.Agent.Provider, stdout.Bytes())
}

// command builds the provider-specific argv for one turn.
func (r *CLIRunner) command(req TurnRequest) (string, []string) {
	switch req.Agent.Provider {
	case "claude":
		args := []string{
			"--dangerously-skip-permissions",
			"--output-format", "json",
			"--model", req.Model,
		}
		if req.Agent.SystemPrompt != "" {
			args = append(args, "--append-system-prompt", req.Agent.SystemPrompt)
		}
		args = append(args, "-p", req.Prompt)
		return r.binary("claude"), args

	case "ollama":
		return r.binary("ollama"), []string{"run", req.Model, req.Prompt}

	case "cursor":
		return r.binary("cursor-agent"), []string{
			"--output-format", "text",
			"--model", req.Model,
			"-p", req.Prompt,
		}
	}
	// Unknown providers fail at exec with a clear "not found" error.
	return r.binary(req.Agent.Provider), []string{req.Prompt}
}

// parseOutput extracts the reply text and cost from subprocess stdout.
// Claude emits a JSON result envelope carrying the turn cost; the local
// providers emit plain text and cost nothing.
func (r *CLIRunner) parseOutput(provider string, out []byte) (string, float64, error) {
	if provider != "claude" {
		return strings.TrimSpace(string(out)), 0, nil
	}

	var res claudeResult
	if err := json.Unmarshal(bytes.TrimSpace(out), &res); err != nil {
		// Older CLI versions can emit plain text despite the flag.
		return strings.TrimSpace(string(out)), 0, nil
	}
	if res.IsError {
		return "", res.TotalCostUSD, fmt.Errorf("relay: claude turn: %s", res.Result)
	}
	return res.Result, res.TotalCostUSD, nil
}

func (r *CLIRunner) binary(name string) string {
	if b, ok := r.Binaries[name]; ok && b != "" {
		return b
	}
	return name
}
