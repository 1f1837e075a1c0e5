package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/google/go-github/v68/github"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/jessesep/claude-code-discord-sub002/internal/config"
	"github.com/jessesep/claude-code-discord-sub002/internal/db"
)

// Release feed checked by the update check.
const (
	releaseOwner = "jessesep"
	releaseRepo  = "claude-code-discord-sub002"
)

func newDoctorCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check system prerequisites and configuration",
		Long:  "Runs diagnostic checks on ccd prerequisites: config, provider binaries, database, tokens, and available updates.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "ccd.yaml", "path to ccd config file")
	return cmd
}

type checkResult struct {
	name   string
	status string // "PASS", "FAIL", "WARN"
	detail string
}

func runDoctor(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "ccd Doctor")
	fmt.Fprintln(out, "==========")

	var results []checkResult

	// 1. Config
	cfg, cfgResult := checkConfig(configPath)
	results = append(results, cfgResult)

	// 2. Provider binaries for the configured agents.
	for _, bin := range providerBinaries(cfg) {
		results = append(results, checkBinary(bin))
	}

	// 3. Tokens
	results = append(results, checkTokens(cfg)...)

	// 4. Database
	if cfg != nil {
		results = append(results, checkDatabase(cfg))
	} else {
		results = append(results, checkResult{"Database", "FAIL", "skipped (no config)"})
	}

	// 5. Catalog endpoints
	if cfg != nil {
		results = append(results, checkEndpoints(cfg)...)
	}

	// 6. Update check
	results = append(results, checkLatestRelease())

	passed, failed, warned := 0, 0, 0
	for _, r := range results {
		printCheckResult(out, r)
		switch r.status {
		case "PASS":
			passed++
		case "FAIL":
			failed++
		case "WARN":
			warned++
		}
	}

	fmt.Fprintf(out, "\n%d passed, %d failed, %d warning\n", passed, failed, warned)

	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	return nil
}

func printCheckResult(out io.Writer, r checkResult) {
	fmt.Fprintf(out, "[%s] %s: %s\n", r.status, r.name, r.detail)
}

func checkConfig(path string) (*config.Config, checkResult) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, checkResult{"Config file", "FAIL", fmt.Sprintf("%s: %v", path, err)}
	}
	return cfg, checkResult{"Config file", "PASS", fmt.Sprintf("%s (%d agents)", path, len(cfg.Agents))}
}

// providerBinaries maps configured providers to the CLI binaries they need.
func providerBinaries(cfg *config.Config) []string {
	if cfg == nil {
		return nil
	}
	byProvider := map[string]string{
		"claude": "claude",
		"ollama": "ollama",
		"cursor": "cursor-agent",
	}
	seen := make(map[string]bool)
	var bins []string
	for _, a := range cfg.Agents {
		bin, ok := byProvider[a.Provider]
		if !ok || seen[bin] {
			continue
		}
		seen[bin] = true
		bins = append(bins, bin)
	}
	return bins
}

func checkBinary(name string) checkResult {
	path, err := exec.LookPath(name)
	if err != nil {
		return checkResult{name, "FAIL", "not found in PATH"}
	}
	return checkResult{name, "PASS", path}
}

func checkTokens(cfg *config.Config) []checkResult {
	if cfg == nil {
		return []checkResult{{"Discord token", "FAIL", "skipped (no config)"}}
	}
	var results []checkResult
	if cfg.Discord.BotToken != "" {
		results = append(results, checkResult{"Discord token", "PASS", "configured"})
	} else {
		results = append(results, checkResult{"Discord token", "FAIL", "missing (run: ccd token)"})
	}
	if cfg.Slack.BotToken != "" || cfg.Slack.AppToken != "" {
		if cfg.Slack.BotToken != "" && cfg.Slack.AppToken != "" {
			results = append(results, checkResult{"Slack tokens", "PASS", "configured"})
		} else {
			results = append(results, checkResult{"Slack tokens", "WARN", "socket mode needs both bot_token and app_token"})
		}
	}
	return results
}

func checkDatabase(cfg *config.Config) checkResult {
	gormDB, err := db.Connect(cfg.DB)
	if err != nil {
		return checkResult{"Database", "FAIL", err.Error()}
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return checkResult{"Database", "FAIL", err.Error()}
	}
	defer sqlDB.Close()
	if err := sqlDB.Ping(); err != nil {
		return checkResult{"Database", "FAIL", err.Error()}
	}
	if cfg.DB.Host != "" {
		return checkResult{"Database", "PASS", fmt.Sprintf("mysql %s:%d/%s", cfg.DB.Host, cfg.DB.Port, cfg.DB.Database)}
	}
	return checkResult{"Database", "PASS", "sqlite " + cfg.DB.Path}
}

func checkEndpoints(cfg *config.Config) []checkResult {
	var results []checkResult
	client := &http.Client{Timeout: 3 * time.Second}
	for provider, base := range cfg.Catalog.Endpoints {
		if base == "" {
			continue
		}
		name := fmt.Sprintf("Catalog endpoint (%s)", provider)
		resp, err := client.Get(base + "/api/tags")
		if err != nil {
			results = append(results, checkResult{name, "WARN", fmt.Sprintf("unreachable, fallback list will be used: %v", err)})
			continue
		}
		resp.Body.Close()
		results = append(results, checkResult{name, "PASS", base})
	}
	return results
}

// checkLatestRelease compares the running version against the newest GitHub
// release. GITHUB_TOKEN is used when present to avoid anonymous rate limits.
func checkLatestRelease() checkResult {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	httpClient := http.DefaultClient
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	}
	client := github.NewClient(httpClient)

	release, _, err := client.Repositories.GetLatestRelease(ctx, releaseOwner, releaseRepo)
	if err != nil {
		return checkResult{"Update check", "WARN", fmt.Sprintf("could not reach GitHub: %v", err)}
	}

	latest := strings.TrimPrefix(release.GetTagName(), "v")
	current := strings.TrimPrefix(Version, "v")
	if current == "dev" {
		return checkResult{"Update check", "WARN", fmt.Sprintf("running a dev build, latest release is %s", latest)}
	}
	if latest != current {
		return checkResult{"Update check", "WARN", fmt.Sprintf("%s available (running %s)", latest, current)}
	}
	return checkResult{"Update check", "PASS", "up to date (" + current + ")"}
}
