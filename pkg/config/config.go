// Package config loads engine configuration from config.yaml with
// environment variable overrides. Secrets come from the environment only.
package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for threadline-engine.
// Environment variables always override YAML values; secrets (UPSTREAM_API_KEY,
// PGPASSWORD) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8090"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Upstream model provider configuration
	Upstream UpstreamConfig `yaml:"upstream"`

	// Turn pipeline configuration
	Chat ChatConfig `yaml:"chat"`
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"threadline"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"threadline_engine"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
}

// URL renders the connection string for pgx and migrate.
func (c *DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

// UpstreamConfig holds the model provider settings used by the relay.
type UpstreamConfig struct {
	// Provider selects the upstream vendor: "openai" or "anthropic".
	Provider string `yaml:"provider" env:"UPSTREAM_PROVIDER" env-default:"openai"`

	// APIKey authenticates against the upstream. Absence is a fatal
	// configuration error reported at startup.
	APIKey string `yaml:"-" env:"UPSTREAM_API_KEY"` // Secret - not in YAML

	// BaseURL overrides the provider endpoint (OpenAI-compatible gateways).
	BaseURL string `yaml:"base_url" env:"UPSTREAM_BASE_URL" env-default:""`

	// MaxTokens caps response length for providers that require a limit.
	MaxTokens int `yaml:"max_tokens" env:"UPSTREAM_MAX_TOKENS" env-default:"4096"`
}

// ChatConfig holds turn pipeline and enrichment settings.
type ChatConfig struct {
	// DefaultModel is used when a conversation has no model set.
	DefaultModel string `yaml:"default_model" env:"CHAT_DEFAULT_MODEL" env-default:"gpt-4o-mini"`

	// RelayURL is the relay base URL the turn pipeline talks to. Empty
	// means the in-process relay over loopback.
	RelayURL string `yaml:"relay_url" env:"CHAT_RELAY_URL" env-default:""`

	// MaxHistoryMessages bounds how many history entries are even
	// considered for the context window.
	MaxHistoryMessages int `yaml:"max_history_messages" env:"CHAT_MAX_HISTORY_MESSAGES" env-default:"30"`

	// MaxContextTokens is the estimated token budget for one window.
	MaxContextTokens int `yaml:"max_context_tokens" env:"CHAT_MAX_CONTEXT_TOKENS" env-default:"8000"`

	// ReasoningEffort is forwarded to the upstream with every turn when
	// set. Empty leaves the provider default in place.
	ReasoningEffort string `yaml:"reasoning_effort" env:"CHAT_REASONING_EFFORT" env-default:""`

	// EnrichmentModel is used for memory extraction and summarization.
	EnrichmentModel string `yaml:"enrichment_model" env:"CHAT_ENRICHMENT_MODEL" env-default:"gpt-4o-mini"`

	// SummaryMaxChars caps the summarization transcript length.
	SummaryMaxChars int `yaml:"summary_max_chars" env:"CHAT_SUMMARY_MAX_CHARS" env-default:"12000"`

	// EnrichmentTimeoutSeconds bounds each detached enrichment job.
	EnrichmentTimeoutSeconds int `yaml:"enrichment_timeout_seconds" env:"CHAT_ENRICHMENT_TIMEOUT_SECONDS" env-default:"60"`
}

// Load reads configuration from config.yaml with environment variable
// overrides. When no config.yaml exists, configuration comes from the
// environment alone. The version parameter is injected at build time.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks settings whose absence should fail startup rather than
// the first request.
func (c *Config) Validate() error {
	if c.Upstream.APIKey == "" {
		return fmt.Errorf("UPSTREAM_API_KEY is not set; the relay cannot reach the model provider without it")
	}
	if c.Chat.MaxContextTokens <= 0 {
		return fmt.Errorf("chat.max_context_tokens must be positive")
	}
	if c.Chat.MaxHistoryMessages <= 0 {
		return fmt.Errorf("chat.max_history_messages must be positive")
	}
	return nil
}
