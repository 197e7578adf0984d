package cex

import (
	"context"
	"fmt"
	"net/url"

	"github.com/StrathCole/oracle-monitor/pkg/server/sources"
)

const gateioBaseURL = "https://api.gateio.ws"

// GateioSource fetches prices from Gate.io REST API
type GateioSource struct {
	*sources.BaseSource
}

// GateioTicker represents ticker data from Gate.io
type GateioTicker struct {
	CurrencyPair string `json:"currency_pair"` // e.g., "BTC_USDT"
	Last         string `json:"last"`
}

// NewGateioSource creates a new Gate.io source
func NewGateioSource(config map[string]interface{}) (sources.Source, error) {
	base, err := newBase(config, "gateio", gateioBaseURL)
	if err != nil {
		return nil, err
	}
	return &GateioSource{BaseSource: base}, nil
}

// Fetch returns the last traded price for the configured currency pair
func (s *GateioSource) Fetch(ctx context.Context) (float64, error) {
	return s.Observe(s.fetchPrice(ctx))
}

func (s *GateioSource) fetchPrice(ctx context.Context) (float64, error) {
	endpoint := s.APIURL() + "/api/v4/spot/tickers?currency_pair=" + url.QueryEscape(s.Pair())

	var tickers []GateioTicker
	if err := sources.GetJSON(ctx, s.Client(), endpoint, nil, &tickers); err != nil {
		return 0, err
	}
	if len(tickers) == 0 {
		return 0, fmt.Errorf("%w: currency pair %s", sources.ErrNoPricesAvailable, s.Pair())
	}

	return sources.ParseDecimalPrice(tickers[0].Last)
}
