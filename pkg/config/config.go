// Package config provides configuration loading and validation for oracle-monitor.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults for the oracle section.
const (
	DefaultTimeout                   = 5 * time.Second
	DefaultPollInterval              = 60 * time.Second
	DefaultHistoryCapacity           = 100
	DefaultDeviationThresholdPercent = 10.0
	DefaultMinHistoryForValidation   = 5
	DefaultWindowSize                = 10
	DefaultMinSources                = 2
	DefaultPublishTimeout            = 5 * time.Second
)

// LoadEnv loads variables from a .env file without overriding the process
// environment. A missing file is not an error.
func LoadEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load loads configuration from YAML file and environment variables.
func Load(path string) (*Config, error) {
	// Validate and sanitize path
	cleanPath := filepath.Clean(path)
	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	data, err := os.ReadFile(absPath) // #nosec G304 -- Path sanitized with filepath.Clean and filepath.Abs
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse expands ${VAR} references in data, decodes it and applies defaults.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

// applyDefaults sets default values for optional fields.
func applyDefaults(cfg *Config) {
	o := &cfg.Oracle
	if o.Timeout == 0 {
		o.Timeout = Duration(DefaultTimeout)
	}
	if o.PollInterval == 0 {
		o.PollInterval = Duration(DefaultPollInterval)
	}
	if o.HistoryCapacity == 0 {
		o.HistoryCapacity = DefaultHistoryCapacity
	}
	if o.DeviationThresholdPercent == 0 {
		o.DeviationThresholdPercent = DefaultDeviationThresholdPercent
	}
	if o.MinHistoryForValidation == 0 {
		o.MinHistoryForValidation = DefaultMinHistoryForValidation
	}
	if o.WindowSize == 0 {
		o.WindowSize = DefaultWindowSize
	}
	if o.MinSources == 0 {
		o.MinSources = DefaultMinSources
	}
	if o.PublishTimeout == 0 {
		o.PublishTimeout = Duration(DefaultPublishTimeout)
	}

	// Server defaults
	if cfg.Server.HTTP.Addr == "" {
		cfg.Server.HTTP.Addr = ":8080"
	}
	if cfg.Server.WebSocket.Addr == "" {
		cfg.Server.WebSocket.Addr = ":8081"
	}

	if cfg.Telegram.Cooldown == 0 {
		cfg.Telegram.Cooldown = Duration(15 * time.Minute)
	}
	if cfg.Telegram.Timeout == 0 {
		cfg.Telegram.Timeout = Duration(10 * time.Second)
	}
	if cfg.Telegram.MinConfidence == 0 {
		cfg.Telegram.MinConfidence = 50
	}

	// Metrics defaults
	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9091"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// IsEnabled reports whether the source is enabled. Sources are enabled unless
// explicitly disabled.
func (sc *SourceConfig) IsEnabled() bool {
	return sc.Enabled == nil || *sc.Enabled
}

// Key returns the registry key "type.name".
func (sc *SourceConfig) Key() string {
	return sc.Type + "." + sc.Name
}

// EnabledSources returns the asset's enabled sources in configuration order.
func (a *AssetConfig) EnabledSources() []SourceConfig {
	out := make([]SourceConfig, 0, len(a.Sources))
	for _, s := range a.Sources {
		if s.IsEnabled() {
			out = append(out, s)
		}
	}
	return out
}
