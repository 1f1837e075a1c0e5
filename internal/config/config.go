// Package config provides YAML-based configuration loading for ccd.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnknownAgent is returned when an agent ID is not in the static table.
var ErrUnknownAgent = errors.New("config: unknown agent")

// knownProviders are the providers an agent may be bound to.
var knownProviders = map[string]bool{
	"claude": true,
	"ollama": true,
	"cursor": true,
}

// knownRiskLevels gate which tools an agent may be granted.
var knownRiskLevels = map[string]bool{
	"low":    true,
	"medium": true,
	"high":   true,
}

// Config is the top-level ccd configuration, loaded from config.yaml.
type Config struct {
	Discord    DiscordConfig     `yaml:"discord"`
	Slack      SlackConfig       `yaml:"slack"`
	HTTP       HTTPConfig        `yaml:"http"`
	DB         DBConfig          `yaml:"db"`
	Catalog    CatalogConfig     `yaml:"catalog"`
	Session    SessionConfig     `yaml:"session"`
	Workspaces []WorkspaceConfig `yaml:"workspaces"`
	Agents     []AgentConfig     `yaml:"agents"`
	Webhooks   []WebhookConfig   `yaml:"webhooks"`
}

// DiscordConfig holds the Discord bot connection settings.
type DiscordConfig struct {
	BotToken  string `yaml:"bot_token"`
	GuildID   string `yaml:"guild_id"`
	ChannelID string `yaml:"channel_id"` // default channel for webhook-triggered sessions
}

// SlackConfig holds the optional Slack bridge settings (text commands and
// chat relay only; the selection wizard is Discord-specific).
type SlackConfig struct {
	AppToken  string `yaml:"app_token"`
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// HTTPConfig holds the trigger/API server settings.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// DBConfig selects the session-history database: a local sqlite file by
// default, MySQL when a host is set.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Path     string `yaml:"path"` // sqlite file, used when host is empty
}

// CatalogConfig controls model-catalog discovery and caching.
type CatalogConfig struct {
	TTLMinutes  int               `yaml:"ttl_minutes"`
	Endpoints   map[string]string `yaml:"endpoints"`    // provider -> discovery base URL
	RefreshCron string            `yaml:"refresh_cron"` // 5-field cron expression
}

// SessionConfig controls session lifecycle housekeeping.
type SessionConfig struct {
	IdleTimeoutMinutes int    `yaml:"idle_timeout_minutes"`
	SweepCron          string `yaml:"sweep_cron"` // 5-field cron expression
}

// WorkspaceConfig names a directory agents may be pointed at.
type WorkspaceConfig struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

// AgentConfig is a static agent template. Templates are immutable after
// load: live sessions carry their own overrides and never write back here.
type AgentConfig struct {
	ID              string   `yaml:"id"`
	DisplayName     string   `yaml:"display_name"`
	Description     string   `yaml:"description"`
	DefaultModel    string   `yaml:"default_model"`
	SystemPrompt    string   `yaml:"system_prompt"`
	Temperature     float64  `yaml:"temperature"`
	MaxOutputTokens int      `yaml:"max_output_tokens"`
	Capabilities    []string `yaml:"capabilities"`
	RiskLevel       string   `yaml:"risk_level"` // low, medium, high
	Provider        string   `yaml:"provider"`
}

// WebhookConfig binds a trigger endpoint ID to an agent.
type WebhookConfig struct {
	ID        string `yaml:"id"`
	AgentID   string `yaml:"agent_id"`
	ChannelID string `yaml:"channel_id"` // defaults to discord.channel_id
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Agent looks up an agent template by ID. The returned value is a copy.
func (c *Config) Agent(id string) (AgentConfig, error) {
	for _, a := range c.Agents {
		if a.ID == id {
			return a, nil
		}
	}
	return AgentConfig{}, fmt.Errorf("%w: %s", ErrUnknownAgent, id)
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.DB.Host != "" {
		if c.DB.Port == 0 {
			c.DB.Port = 3306
		}
		if c.DB.User == "" {
			c.DB.User = "root"
		}
		if c.DB.Database == "" {
			c.DB.Database = "ccd"
		}
	} else if c.DB.Path == "" {
		c.DB.Path = "ccd.db"
	}
	if c.Catalog.TTLMinutes == 0 {
		c.Catalog.TTLMinutes = 5
	}
	if c.Catalog.RefreshCron == "" {
		c.Catalog.RefreshCron = "*/15 * * * *"
	}
	if c.Session.IdleTimeoutMinutes == 0 {
		c.Session.IdleTimeoutMinutes = 120
	}
	if c.Session.SweepCron == "" {
		c.Session.SweepCron = "*/10 * * * *"
	}
	for i := range c.Agents {
		if c.Agents[i].RiskLevel == "" {
			c.Agents[i].RiskLevel = "medium"
		}
		if c.Agents[i].MaxOutputTokens == 0 {
			c.Agents[i].MaxOutputTokens = 4096
		}
	}
	for i := range c.Webhooks {
		if c.Webhooks[i].ChannelID == "" {
			c.Webhooks[i].ChannelID = c.Discord.ChannelID
		}
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Discord.BotToken == "" {
		errs = append(errs, "discord.bot_token is required")
	}
	if len(c.Agents) == 0 {
		errs = append(errs, "at least one agent is required")
	}
	seen := make(map[string]bool)
	for i, a := range c.Agents {
		if a.ID == "" {
			errs = append(errs, fmt.Sprintf("agents[%d].id is required", i))
			continue
		}
		if seen[a.ID] {
			errs = append(errs, fmt.Sprintf("agents[%d].id %q is duplicated", i, a.ID))
		}
		seen[a.ID] = true
		if !knownProviders[a.Provider] {
			errs = append(errs, fmt.Sprintf("agents[%d].provider %q is not one of claude, ollama, cursor", i, a.Provider))
		}
		if !knownRiskLevels[a.RiskLevel] {
			errs = append(errs, fmt.Sprintf("agents[%d].risk_level %q is not one of low, medium, high", i, a.RiskLevel))
		}
		if a.Temperature < 0 || a.Temperature > 2 {
			errs = append(errs, fmt.Sprintf("agents[%d].temperature %v is out of range [0, 2]", i, a.Temperature))
		}
	}
	for i, w := range c.Webhooks {
		if w.ID == "" {
			errs = append(errs, fmt.Sprintf("webhooks[%d].id is required", i))
		}
		if w.AgentID == "" || !seen[w.AgentID] {
			errs = append(errs, fmt.Sprintf("webhooks[%d].agent_id %q does not name a configured agent", i, w.AgentID))
		}
	}
	for i, w := range c.Workspaces {
		if w.Path == "" {
			errs = append(errs, fmt.Sprintf("workspaces[%d].path is required", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
