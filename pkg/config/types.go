package config

import (
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure
type Config struct {
	Oracle   OracleConfig   `yaml:"oracle"`
	Assets   []AssetConfig  `yaml:"assets"`
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Redis    RedisConfig    `yaml:"redis"`
	Telegram TelegramConfig `yaml:"telegram"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// OracleConfig holds the round, validation and publishing parameters shared by every asset.
type OracleConfig struct {
	Timeout                   Duration `yaml:"timeout"`       // Per-source fetch timeout
	PollInterval              Duration `yaml:"poll_interval"` // Time between monitor ticks
	HistoryCapacity           int      `yaml:"history_capacity"`
	DeviationThresholdPercent float64  `yaml:"deviation_threshold_percent"`
	MinHistoryForValidation   int      `yaml:"min_history_for_validation"`
	WindowSize                int      `yaml:"window_size"` // Entries averaged for deviation
	MinSources                int      `yaml:"min_sources"` // Below this a round is low trust
	MinChangePercent          float64  `yaml:"min_change_percent"`
	PublishTimeout            Duration `yaml:"publish_timeout"`
}

// AssetConfig configures one monitored asset and its sources.
type AssetConfig struct {
	Symbol  string         `yaml:"symbol"` // e.g. "BTC/USD"
	Sources []SourceConfig `yaml:"sources"`
}

// SourceConfig configures a price source
type SourceConfig struct {
	Type    string                 `yaml:"type"`
	Name    string                 `yaml:"name"`
	Enabled *bool                  `yaml:"enabled"` // Defaults to true when omitted
	Config  map[string]interface{} `yaml:"config"`
}

// ServerConfig configures the HTTP API and WebSocket stream
type ServerConfig struct {
	HTTP      HTTPConfig `yaml:"http"`
	WebSocket WSConfig   `yaml:"websocket"`
}

// HTTPConfig configures the HTTP server
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// WSConfig configures the WebSocket server
type WSConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// StorageConfig configures event persistence. An empty driver disables it.
type StorageConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "postgres"
	DSN    string `yaml:"dsn"`
}

// RedisConfig configures the Redis latest-price cache
type RedisConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Addr     string   `yaml:"addr"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
	TTL      Duration `yaml:"ttl"`
	Prefix   string   `yaml:"prefix"`
	Channel  string   `yaml:"channel"`
}

// TelegramConfig configures operator alerts
type TelegramConfig struct {
	Enabled       bool     `yaml:"enabled"`
	BotToken      string   `yaml:"bot_token"`
	ChatID        int64    `yaml:"chat_id"`
	MinConfidence int      `yaml:"min_confidence"`
	Cooldown      Duration `yaml:"cooldown"`
	Timeout       Duration `yaml:"timeout"` // Per Bot API request
}

// MetricsConfig configures Prometheus metrics
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

// LoggingConfig configures logging
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Duration is a wrapper around time.Duration for YAML parsing
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler. Accepts "30s" style strings and
// plain integers as seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	td, err := time.ParseDuration(s)
	if err != nil {
		secs, convErr := strconv.ParseInt(s, 10, 64)
		if convErr != nil {
			return fmt.Errorf("%w: %q", ErrInvalidDuration, s)
		}
		td = time.Duration(secs) * time.Second
	}
	*d = Duration(td)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// ToDuration converts Duration to time.Duration
func (d Duration) ToDuration() time.Duration {
	return time.Duration(d)
}
