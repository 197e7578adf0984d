// Package cex provides REST price adapters for centralized exchanges and aggregators.
package cex

import (
	"strings"

	"github.com/StrathCole/oracle-monitor/pkg/server/sources"
)

// newBase builds the shared BaseSource from an adapter config.
// Recognised keys: pair (required), api_url, id (overrides the source name).
func newBase(config map[string]interface{}, name, defaultURL string) (*sources.BaseSource, error) {
	pair, err := sources.ParsePair(config)
	if err != nil {
		return nil, err
	}

	apiURL := strings.TrimRight(sources.GetString(config, "api_url", defaultURL), "/")
	logger := sources.GetLoggerFromConfig(config)

	return sources.NewBaseSource(sources.GetString(config, "id", name), sources.SourceTypeCEX, pair, apiURL, logger), nil
}
