package sources

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/StrathCole/oracle-monitor/pkg/logging"
)

// GetLoggerFromConfig extracts logger from config map or returns a default noop logger.
// main.go injects the process logger under the "logger" key.
func GetLoggerFromConfig(config map[string]interface{}) *logging.Logger {
	if loggerInterface, ok := config["logger"]; ok {
		if logger, ok := loggerInterface.(*logging.Logger); ok {
			return logger
		}
	}

	return logging.NewNoopLogger()
}

// ParsePair extracts the provider-specific symbol from config["pair"].
func ParsePair(config map[string]interface{}) (string, error) {
	raw, ok := config["pair"]
	if !ok {
		return "", fmt.Errorf("%w", ErrPairRequired)
	}
	pair, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: pair must be a string, got %T", ErrInvalidConfig, raw)
	}
	pair = strings.TrimSpace(pair)
	if pair == "" {
		return "", fmt.Errorf("%w", ErrPairRequired)
	}
	return pair, nil
}

// GetString returns config[key] as a string or defaultValue.
func GetString(config map[string]interface{}, key, defaultValue string) string {
	if v, ok := config[key].(string); ok && v != "" {
		return v
	}
	return defaultValue
}

// GetBool returns config[key] as a bool or defaultValue.
func GetBool(config map[string]interface{}, key string, defaultValue bool) bool {
	if v, ok := config[key].(bool); ok {
		return v
	}
	return defaultValue
}

// GetInt returns config[key] as an int or defaultValue. YAML and JSON decoders
// produce int and float64 respectively, both are accepted.
func GetInt(config map[string]interface{}, key string, defaultValue int) int {
	switch v := config[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return defaultValue
	}
}

// ParseDecimalPrice parses a provider price string.
func ParseDecimalPrice(raw string) (float64, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, fmt.Errorf("%w: empty price", ErrInvalidResponse)
	}
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: price %q: %v", ErrInvalidResponse, raw, err)
	}
	f, _ := d.Float64()
	return f, nil
}

// ValidateSymbolFormat checks if a symbol is in valid BASE/QUOTE format
// Valid formats:
//   - "BTC/USD", "ETH/USDT" (crypto pairs)
//   - "EUR/USD" (fiat pairs)
//
// Invalid formats:
//   - "BTC" (no quote currency)
//   - "BTCUSDT" (no separator)
//   - "" (empty).
func ValidateSymbolFormat(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("%w", ErrInvalidSymbolFormat)
	}

	parts := strings.Split(symbol, "/")
	if len(parts) != 2 {
		return fmt.Errorf("%w: %s", ErrInvalidSymbolFormat, symbol)
	}

	if strings.TrimSpace(parts[0]) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyBaseCurrency, symbol)
	}
	if strings.TrimSpace(parts[1]) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyQuoteCurrency, symbol)
	}

	return nil
}
