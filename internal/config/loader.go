package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and environment
// variables. When configFile is empty, sentry-mcp-gateway.yaml/.yml is
// searched in the working directory and /etc/sentry-mcp-gateway.
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		// Nothing found; leave a name/type so ReadInConfig returns
		// ConfigFileNotFoundError, which callers treat as env-only mode.
		viper.SetConfigName("sentry-mcp-gateway")
		viper.SetConfigType("yaml")
	}

	bindEnvKeys()
}

// findConfigFile searches the standard locations for a config file with an
// explicit YAML extension.
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".sentry-mcp-gateway"),
		"/etc/sentry-mcp-gateway",
	}
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "sentry-mcp-gateway"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindEnvKeys binds each config key to its environment variable. The
// deployment surface uses the exact documented names (UPSTREAM_HOST, not a
// prefixed variant), so every key is bound explicitly instead of relying
// on AutomaticEnv.
func bindEnvKeys() {
	_ = viper.BindEnv("server.http_addr", "HTTP_ADDR")
	_ = viper.BindEnv("server.public_url", "PUBLIC_URL")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")

	_ = viper.BindEnv("upstream.host", "UPSTREAM_HOST")
	_ = viper.BindEnv("upstream.client_id", "UPSTREAM_CLIENT_ID")
	_ = viper.BindEnv("upstream.client_secret", "UPSTREAM_CLIENT_SECRET")

	_ = viper.BindEnv("cookie_secret", "COOKIE_SECRET")

	_ = viper.BindEnv("openai.api_key", "OPENAI_API_KEY")
	_ = viper.BindEnv("openai.model", "OPENAI_MODEL")
	_ = viper.BindEnv("openai.reasoning_effort", "OPENAI_REASONING_EFFORT")
	// openai.base_url is intentionally unbound: it is accepted only via
	// explicit programmatic configuration.

	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")

	_ = viper.BindEnv("storage.sqlite_path", "SQLITE_PATH")
}

// Load reads the configuration file, applies environment overrides and
// defaults, and validates the result.
func Load() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// No config file: environment-only mode.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// ConfigFileUsed returns the loaded config file path, or "" in
// environment-only mode.
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
