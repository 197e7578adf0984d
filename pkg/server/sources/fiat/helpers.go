package fiat

import (
	"fmt"
	"strings"

	"github.com/StrathCole/oracle-monitor/pkg/server/sources"
)

// newFiatBase parses the BASE/QUOTE pair of a fiat source and builds its BaseSource.
func newFiatBase(config map[string]interface{}, name, defaultURL string) (*sources.BaseSource, string, string, error) {
	pair, err := sources.ParsePair(config)
	if err != nil {
		return nil, "", "", err
	}
	pair = strings.ToUpper(pair)
	if err := sources.ValidateSymbolFormat(pair); err != nil {
		return nil, "", "", fmt.Errorf("%s: %w", name, err)
	}
	base, quote := sources.SplitSymbol(pair)

	apiURL := strings.TrimRight(sources.GetString(config, "api_url", defaultURL), "/")
	logger := sources.GetLoggerFromConfig(config)
	bs := sources.NewBaseSource(sources.GetString(config, "id", name), sources.SourceTypeFiat, pair, apiURL, logger)

	return bs, base, quote, nil
}

// rateFor returns rates[quote], rejecting missing and zero entries.
func rateFor(rates map[string]float64, quote string) (float64, error) {
	rate, ok := rates[quote]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNoRateForQuote, quote)
	}
	if rate == 0 {
		return 0, fmt.Errorf("%w: %s", ErrZeroRate, quote)
	}
	return rate, nil
}
