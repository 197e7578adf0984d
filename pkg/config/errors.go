package config

import "errors"

var (
	// ErrNoAssetsConfigured indicates that no assets are configured.
	ErrNoAssetsConfigured = errors.New("at least one asset must be configured")
	// ErrAssetSymbolRequired indicates an asset without a symbol.
	ErrAssetSymbolRequired = errors.New("asset symbol is required")
	// ErrDuplicateAsset indicates the same symbol configured twice.
	ErrDuplicateAsset = errors.New("duplicate asset")
	// ErrNoSourcesEnabled indicates that an asset has no enabled sources.
	ErrNoSourcesEnabled = errors.New("no sources enabled")
	// ErrSourceTypeRequired indicates that source type is required.
	ErrSourceTypeRequired = errors.New("source type is required")
	// ErrSourceNameRequired indicates that source name is required.
	ErrSourceNameRequired = errors.New("source name is required")
	// ErrInvalidSourceType indicates that the source type is invalid.
	ErrInvalidSourceType = errors.New("invalid source type")
	// ErrInvalidTimeout indicates a non-positive fetch timeout.
	ErrInvalidTimeout = errors.New("timeout must be positive")
	// ErrInvalidPollInterval indicates a non-positive poll interval.
	ErrInvalidPollInterval = errors.New("poll_interval must be positive")
	// ErrInvalidHistory indicates inconsistent history validator settings.
	ErrInvalidHistory = errors.New("invalid history settings")
	// ErrInvalidThreshold indicates a non-positive deviation threshold.
	ErrInvalidThreshold = errors.New("deviation_threshold_percent must be positive")
	// ErrInvalidMinSources indicates a negative min_sources.
	ErrInvalidMinSources = errors.New("min_sources must be >= 0")
	// ErrInvalidStorageDriver indicates an unsupported storage driver.
	ErrInvalidStorageDriver = errors.New("invalid storage driver")
	// ErrStorageDSNRequired indicates a storage driver without DSN.
	ErrStorageDSNRequired = errors.New("storage dsn is required")
	// ErrRedisAddrRequired indicates redis enabled without an address.
	ErrRedisAddrRequired = errors.New("redis addr is required")
	// ErrTelegramTokenRequired indicates telegram enabled without a token.
	ErrTelegramTokenRequired = errors.New("telegram bot_token is required")
	// ErrTelegramChatRequired indicates telegram enabled without a chat id.
	ErrTelegramChatRequired = errors.New("telegram chat_id is required")
	// ErrInvalidDuration indicates an unparsable duration value.
	ErrInvalidDuration = errors.New("invalid duration")
	// ErrInvalidLogLevel indicates that the log level is invalid.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidLogFormat indicates that the log format is invalid.
	ErrInvalidLogFormat = errors.New("invalid log format")
)
