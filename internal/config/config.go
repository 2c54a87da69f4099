// Package config loads the coordinator's startup configuration: an
// optional YAML file, overridden by environment variables, overridden in
// turn by explicit CLI flags. None of this configures run state (that is
// fixed entirely by the first /register call) — it only governs how the
// HTTP listener and logger come up.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const configVersion = "1"

// Config is the coordinator process's startup configuration.
type Config struct {
	Version           string `yaml:"version"`
	Port              int    `yaml:"port"`
	LogLevel          string `yaml:"log_level"`
	ReadHeaderTimeout int    `yaml:"read_header_timeout_seconds"`
}

// Default returns the built-in defaults, applying environment variable
// overrides the way the teacher's DefaultConfig composes getEnv calls.
func Default() *Config {
	return &Config{
		Version:           configVersion,
		Port:              getEnvInt("ATROPOS_PORT", 8000),
		LogLevel:          getEnv("ATROPOS_LOG_LEVEL", "info"),
		ReadHeaderTimeout: 10,
	}
}

// Load reads configPath (if non-empty) as YAML on top of Default(), then
// re-applies environment variables so they always win over a stale file.
// An empty configPath is not an error — it just means "use defaults and
// environment".
func Load(configPath string) (*Config, error) {
	cfg := Default()
	if configPath == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath) //nolint:gosec // path is an operator-supplied flag, not request input
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", configPath, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", configPath, err)
	}
	if cfg.Version == "" {
		cfg.Version = configVersion
	}

	if v, ok := os.LookupEnv("ATROPOS_PORT"); ok {
		if n, err := parseInt(v); err == nil {
			cfg.Port = n
		}
	}
	if v, ok := os.LookupEnv("ATROPOS_LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := parseInt(v)
	if err != nil {
		return fallback
	}
	return n
}

func parseInt(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)
	return n, err
}
