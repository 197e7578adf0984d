package config

import (
	"fmt"
	"strings"
)

var validSourceTypes = []string{"cex", "evm", "fiat", "oracle"}

// Validate checks configuration for errors
func Validate(cfg *Config) error {
	if err := validateOracleConfig(&cfg.Oracle); err != nil {
		return fmt.Errorf("oracle config: %w", err)
	}

	if len(cfg.Assets) == 0 {
		return ErrNoAssetsConfigured
	}
	seen := make(map[string]bool, len(cfg.Assets))
	for i := range cfg.Assets {
		asset := &cfg.Assets[i]
		if err := validateAssetConfig(asset); err != nil {
			return fmt.Errorf("asset %d (%s): %w", i, asset.Symbol, err)
		}
		symbol := strings.ToUpper(asset.Symbol)
		if seen[symbol] {
			return fmt.Errorf("%w: %s", ErrDuplicateAsset, asset.Symbol)
		}
		seen[symbol] = true
	}

	if err := validateStorageConfig(&cfg.Storage); err != nil {
		return fmt.Errorf("storage config: %w", err)
	}

	if cfg.Redis.Enabled && cfg.Redis.Addr == "" {
		return fmt.Errorf("redis config: %w", ErrRedisAddrRequired)
	}

	if cfg.Telegram.Enabled {
		if cfg.Telegram.BotToken == "" {
			return fmt.Errorf("telegram config: %w", ErrTelegramTokenRequired)
		}
		if cfg.Telegram.ChatID == 0 {
			return fmt.Errorf("telegram config: %w", ErrTelegramChatRequired)
		}
	}

	if err := validateLoggingConfig(&cfg.Logging); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

func validateOracleConfig(cfg *OracleConfig) error {
	if cfg.Timeout.ToDuration() <= 0 {
		return ErrInvalidTimeout
	}
	if cfg.PollInterval.ToDuration() <= 0 {
		return ErrInvalidPollInterval
	}
	if cfg.HistoryCapacity <= 0 || cfg.WindowSize <= 0 || cfg.MinHistoryForValidation <= 0 {
		return fmt.Errorf("%w: capacity, window_size and min_history_for_validation must be positive", ErrInvalidHistory)
	}
	if cfg.WindowSize > cfg.HistoryCapacity {
		return fmt.Errorf("%w: window_size %d exceeds history_capacity %d", ErrInvalidHistory, cfg.WindowSize, cfg.HistoryCapacity)
	}
	if cfg.MinHistoryForValidation > cfg.HistoryCapacity {
		return fmt.Errorf("%w: min_history_for_validation %d exceeds history_capacity %d",
			ErrInvalidHistory, cfg.MinHistoryForValidation, cfg.HistoryCapacity)
	}
	if cfg.DeviationThresholdPercent <= 0 {
		return ErrInvalidThreshold
	}
	if cfg.MinSources < 0 {
		return ErrInvalidMinSources
	}
	return nil
}

func validateAssetConfig(cfg *AssetConfig) error {
	if strings.TrimSpace(cfg.Symbol) == "" {
		return ErrAssetSymbolRequired
	}
	if len(cfg.EnabledSources()) == 0 {
		return ErrNoSourcesEnabled
	}
	for i := range cfg.Sources {
		source := &cfg.Sources[i]
		if err := validateSourceConfig(source); err != nil {
			return fmt.Errorf("source %d (%s): %w", i, source.Key(), err)
		}
	}
	return nil
}

func validateSourceConfig(cfg *SourceConfig) error {
	if cfg.Type == "" {
		return ErrSourceTypeRequired
	}
	typeValid := false
	for _, t := range validSourceTypes {
		if strings.ToLower(cfg.Type) == t {
			typeValid = true
			break
		}
	}
	if !typeValid {
		return fmt.Errorf("%w: %s (must be one of: %s)", ErrInvalidSourceType, cfg.Type, strings.Join(validSourceTypes, ", "))
	}

	if cfg.Name == "" {
		return ErrSourceNameRequired
	}

	return nil
}

func validateStorageConfig(cfg *StorageConfig) error {
	switch strings.ToLower(cfg.Driver) {
	case "":
		return nil
	case "sqlite", "sqlite3", "postgres", "postgresql", "pgx":
	default:
		return fmt.Errorf("%w: %s", ErrInvalidStorageDriver, cfg.Driver)
	}
	if cfg.DSN == "" {
		return ErrStorageDSNRequired
	}
	return nil
}

func validateLoggingConfig(cfg *LoggingConfig) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	levelValid := false
	for _, l := range validLevels {
		if strings.ToLower(cfg.Level) == l {
			levelValid = true
			break
		}
	}
	if !levelValid {
		return fmt.Errorf("%w: %s (must be one of: %s)", ErrInvalidLogLevel, cfg.Level, strings.Join(validLevels, ", "))
	}

	formatValid := strings.ToLower(cfg.Format) == "json" || strings.ToLower(cfg.Format) == "text"
	if !formatValid {
		return fmt.Errorf("%w: %s (must be 'json' or 'text')", ErrInvalidLogFormat, cfg.Format)
	}

	return nil
}
