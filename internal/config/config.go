// Package config provides the gateway configuration: types, loading from
// file and environment, and validation.
package config

import (
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the top-level gateway configuration.
type Config struct {
	// Server configures the HTTP listener and logging.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Upstream configures the error-tracking service the gateway federates to.
	Upstream UpstreamConfig `yaml:"upstream" mapstructure:"upstream"`

	// CookieSecret signs the approval cookie and the OAuth form state.
	// Minimum 32 characters.
	CookieSecret string `yaml:"cookie_secret" mapstructure:"cookie_secret" validate:"required,min=32"`

	// OpenAI configures the embedded agent LLM backend. Optional: when the
	// API key is empty the agent-backed tools report a configuration error.
	OpenAI OpenAIConfig `yaml:"openai" mapstructure:"openai"`

	// Redis configures the optional shared cache and rate-limit backend.
	// When Addr is empty the in-memory implementations are used.
	Redis RedisConfig `yaml:"redis" mapstructure:"redis"`

	// Storage configures OAuth state persistence.
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// HTTPAddr is the address to listen on. Defaults to "127.0.0.1:8080".
	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr" validate:"omitempty,hostname_port"`

	// PublicURL is the externally visible origin of the gateway
	// (e.g. "https://mcp.example.dev"). When empty the origin is derived
	// from each request's Host header.
	PublicURL string `yaml:"public_url" mapstructure:"public_url" validate:"omitempty,url"`

	// LogLevel sets the minimum log level: debug, info, warn, error.
	// Defaults to "info".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
}

// UpstreamConfig configures the upstream error-tracking service.
type UpstreamConfig struct {
	// Host is the upstream API hostname. A hostname only, never a URL.
	// Defaults to "sentry.io".
	Host string `yaml:"host" mapstructure:"host" validate:"omitempty,hostname_only"`

	// ClientID is the gateway's OAuth client ID registered with the upstream.
	ClientID string `yaml:"client_id" mapstructure:"client_id" validate:"required"`

	// ClientSecret is the matching OAuth client secret.
	ClientSecret string `yaml:"client_secret" mapstructure:"client_secret" validate:"required"`
}

// OpenAIConfig configures the embedded agent runtime.
type OpenAIConfig struct {
	// APIKey enables the embedded agents when set.
	APIKey string `yaml:"api_key" mapstructure:"api_key"`

	// Model is the chat model handle. Defaults to "gpt-5".
	Model string `yaml:"model" mapstructure:"model"`

	// ReasoningEffort is low, medium, high, or empty to omit the parameter.
	// Defaults to "low" for o1-/o3- models; an explicitly empty value
	// disables it.
	ReasoningEffort string `yaml:"reasoning_effort" mapstructure:"reasoning_effort" validate:"omitempty,oneof=low medium high"`

	// BaseURL overrides the API endpoint. Accepted only via explicit
	// programmatic configuration, never from the environment or file.
	BaseURL string `yaml:"-" mapstructure:"-"`
}

// RedisConfig configures the Redis backend for the constraints cache and
// the rate-limit counter.
type RedisConfig struct {
	// Addr is the host:port of the Redis server. Empty disables Redis.
	Addr string `yaml:"addr" mapstructure:"addr" validate:"omitempty,hostname_port"`

	// Password authenticates to Redis. Optional.
	Password string `yaml:"password" mapstructure:"password"`

	// DB selects the Redis logical database.
	DB int `yaml:"db" mapstructure:"db" validate:"omitempty,min=0"`
}

// StorageConfig configures OAuth state persistence.
type StorageConfig struct {
	// SQLitePath is the path of the SQLite database holding registered
	// clients, grants and issued tokens. Empty selects the in-memory store
	// (single-node development only: tokens do not survive restarts).
	SQLitePath string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// SetDefaults applies default values for optional fields.
func (c *Config) SetDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = "127.0.0.1:8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Upstream.Host == "" {
		c.Upstream.Host = "sentry.io"
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-5"
	}
	// Reasoning effort defaults to low for the o1/o3 model families. An
	// explicitly set empty value (OPENAI_REASONING_EFFORT="") disables the
	// parameter, so the default only applies when the key is absent.
	if c.OpenAI.ReasoningEffort == "" && !viper.IsSet("openai.reasoning_effort") {
		if strings.HasPrefix(c.OpenAI.Model, "o1-") || strings.HasPrefix(c.OpenAI.Model, "o3-") {
			c.OpenAI.ReasoningEffort = "low"
		}
	}
}

// redactedPlaceholder replaces secret values in dumps.
const redactedPlaceholder = "[redacted]"

// Redacted returns a copy of the config with every secret replaced, safe
// for logging and the "config show" command.
func (c Config) Redacted() Config {
	out := c
	if out.Upstream.ClientSecret != "" {
		out.Upstream.ClientSecret = redactedPlaceholder
	}
	if out.CookieSecret != "" {
		out.CookieSecret = redactedPlaceholder
	}
	if out.OpenAI.APIKey != "" {
		out.OpenAI.APIKey = redactedPlaceholder
	}
	if out.Redis.Password != "" {
		out.Redis.Password = redactedPlaceholder
	}
	return out
}

// DumpYAML renders the redacted effective configuration as YAML.
func (c Config) DumpYAML() (string, error) {
	encoded, err := yaml.Marshal(c.Redacted())
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}
