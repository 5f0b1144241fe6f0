// Package config loads and represents the runtime configuration: agent
// defaults, provider credentials, channel credentials/allowlists, tool
// limits, and the gateway bind address.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config is the root configuration for the robun runtime. It is built once
// at startup by Load and treated as immutable afterward — readers do not
// need to synchronize on it.
type Config struct {
	Agents    AgentsConfig    `json:"agents" envPrefix:"AGENTS__"`
	Providers ProvidersConfig `json:"providers"`
	Channels  ChannelsConfig  `json:"channels"`
	Tools     ToolsConfig     `json:"tools" envPrefix:"TOOLS__"`
	Gateway   GatewayConfig   `json:"gateway" envPrefix:"GATEWAY__"`
	Cron      CronConfig      `json:"cron,omitempty" envPrefix:"CRON__"`
	Database  DatabaseConfig  `json:"database,omitempty" envPrefix:"DATABASE__"`
	LogLevel  string          `json:"log_level" env:"LOG_LEVEL"`
	LogFormat string          `json:"log_format" env:"LOG_FORMAT"`
}

// AgentsConfig holds defaults applied to every session.
type AgentsConfig struct {
	Workspace         string  `json:"workspace" env:"WORKSPACE"`
	Model             string  `json:"model" env:"MODEL"`
	MaxTokens         int     `json:"max_tokens" env:"MAX_TOKENS"`
	Temperature       float64 `json:"temperature" env:"TEMPERATURE"`
	MaxToolIterations int     `json:"max_tool_iterations" env:"MAX_TOOL_ITERATIONS"`
	MemoryWindow      int     `json:"memory_window" env:"MEMORY_WINDOW"`

	// MaxHistoryTokens additionally caps the history window by estimated
	// token count on top of the message-count MemoryWindow; 0 disables it.
	MaxHistoryTokens int `json:"max_history_tokens" env:"MAX_HISTORY_TOKENS"`

	HeartbeatIntervalS int `json:"heartbeat_interval_s" env:"HEARTBEAT_INTERVAL_S"`
}

// ProviderCreds holds one LLM provider's credentials.
type ProviderCreds struct {
	APIKey       string            `json:"api_key"`
	APIBase      string            `json:"api_base,omitempty"`
	ExtraHeaders map[string]string `json:"extra_headers,omitempty"`
}

// ProvidersConfig maps provider name ("anthropic", "openai", ...) to creds.
type ProvidersConfig struct {
	Default   string                   `json:"default"`
	Providers map[string]ProviderCreds `json:"providers"`
}

// ChannelConfig is the per-channel block: enabled flag, credentials, allowlist.
type ChannelConfig struct {
	Enabled     bool              `json:"enabled"`
	Credentials map[string]string `json:"credentials,omitempty"`
	Allowlist   []string          `json:"allowlist,omitempty"`
}

// ChannelsConfig maps channel name to its config block.
type ChannelsConfig map[string]ChannelConfig

// ToolsConfig holds tool-level limits and credentials.
type ToolsConfig struct {
	ExecTimeoutSeconds int               `json:"exec_timeout_seconds" env:"EXEC_TIMEOUT_SECONDS"`
	RestrictWorkspace  bool              `json:"restrict_workspace" env:"RESTRICT_WORKSPACE"`
	WebSearchAPIKey    string            `json:"web_search_api_key,omitempty" env:"WEB_SEARCH_API_KEY"`
	MCPServers         map[string]string `json:"mcp_servers,omitempty"`
}

// GatewayConfig holds the HTTP surface bind address.
type GatewayConfig struct {
	Host string `json:"host" env:"HOST"`
	Port int    `json:"port" env:"PORT"`
}

// CronConfig points at the on-disk job store.
type CronConfig struct {
	StorePath string `json:"store_path" env:"STORE_PATH"`
}

// DatabaseConfig configures the optional Postgres mirror: sessions and
// cron jobs always live on disk first; when PostgresDSN is set the gateway
// additionally runs migrations and shadows both stores into Postgres for
// operators who want queryable durability. The DSN is treated as a secret
// and never written back via Snapshot.
type DatabaseConfig struct {
	PostgresDSN   string `json:"-" env:"POSTGRES_DSN"`
	MigrationsDir string `json:"migrations_dir,omitempty" env:"MIGRATIONS_DIR"`
}

// Default returns a Config with the documented default-valued fields.
func Default() *Config {
	return &Config{
		Agents: AgentsConfig{
			Workspace:         "./workspace",
			Model:             "claude-sonnet-4-5",
			MaxTokens:         4096,
			Temperature:       0.7,
			MaxToolIterations: 20,
			MemoryWindow:      40,

			MaxHistoryTokens: 8192,

			HeartbeatIntervalS: 1800,
		},
		Providers: ProvidersConfig{
			Default:   "anthropic",
			Providers: map[string]ProviderCreds{},
		},
		Channels: ChannelsConfig{},
		Tools: ToolsConfig{
			ExecTimeoutSeconds: 60,
			RestrictWorkspace:  true,
		},
		Gateway:   GatewayConfig{Host: "127.0.0.1", Port: 8765},
		Cron:      CronConfig{StorePath: "./workspace/cron.json"},
		Database:  DatabaseConfig{MigrationsDir: "./migrations"},
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load reads JSON configuration from path (if it exists), falling back to
// Default(), then applies ROBUN_-prefixed environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}
	if err := ApplyEnvOverrides(cfg, "ROBUN", os.Environ()); err != nil {
		return nil, fmt.Errorf("config: env overrides: %w", err)
	}
	return cfg, nil
}

// Snapshot returns a sanitized copy safe to expose over the HTTP surface
// (GET /config): credentials are redacted.
func (c *Config) Snapshot() *Config {
	clone := *c
	clone.Providers.Providers = make(map[string]ProviderCreds, len(c.Providers.Providers))
	for name := range c.Providers.Providers {
		clone.Providers.Providers[name] = ProviderCreds{APIBase: c.Providers.Providers[name].APIBase}
	}
	clone.Channels = make(ChannelsConfig, len(c.Channels))
	for name, ch := range c.Channels {
		clone.Channels[name] = ChannelConfig{Enabled: ch.Enabled, Allowlist: ch.Allowlist}
	}
	clone.Tools.WebSearchAPIKey = ""
	clone.Database.PostgresDSN = ""
	return &clone
}
