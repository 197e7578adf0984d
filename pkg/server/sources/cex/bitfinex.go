package cex

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/StrathCole/oracle-monitor/pkg/server/sources"
)

const (
	bitfinexBaseURL = "https://api-pub.bitfinex.com"

	// Ticker array layout:
	// [BID, BID_SIZE, ASK, ASK_SIZE, DAILY_CHANGE, DAILY_CHANGE_RELATIVE, LAST_PRICE, VOLUME, HIGH, LOW]
	bitfinexLastPriceIndex = 6
)

// BitfinexSource fetches prices from Bitfinex public API
type BitfinexSource struct {
	*sources.BaseSource
}

// NewBitfinexSource creates a new Bitfinex source. The pair uses Bitfinex notation ("tBTCUSD");
// the "t" prefix is added when missing.
func NewBitfinexSource(config map[string]interface{}) (sources.Source, error) {
	if pair, ok := config["pair"].(string); ok && pair != "" && !strings.HasPrefix(pair, "t") {
		cfg := make(map[string]interface{}, len(config))
		for k, v := range config {
			cfg[k] = v
		}
		cfg["pair"] = "t" + strings.ToUpper(pair)
		config = cfg
	}

	base, err := newBase(config, "bitfinex", bitfinexBaseURL)
	if err != nil {
		return nil, err
	}
	return &BitfinexSource{BaseSource: base}, nil
}

// Fetch returns the last price for the configured pair
func (s *BitfinexSource) Fetch(ctx context.Context) (float64, error) {
	return s.Observe(s.fetchPrice(ctx))
}

func (s *BitfinexSource) fetchPrice(ctx context.Context) (float64, error) {
	endpoint := s.APIURL() + "/v2/ticker/" + url.PathEscape(s.Pair())

	var ticker []float64
	if err := sources.GetJSON(ctx, s.Client(), endpoint, nil, &ticker); err != nil {
		return 0, err
	}
	if len(ticker) <= bitfinexLastPriceIndex {
		return 0, fmt.Errorf("%w: ticker has %d fields", sources.ErrInvalidResponse, len(ticker))
	}

	return ticker[bitfinexLastPriceIndex], nil
}
