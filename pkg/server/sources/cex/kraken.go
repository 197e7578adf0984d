package cex

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/StrathCole/oracle-monitor/pkg/server/sources"
)

const krakenBaseURL = "https://api.kraken.com"

// KrakenSource fetches prices from Kraken REST API
type KrakenSource struct {
	*sources.BaseSource
}

// KrakenTickerData represents ticker data for a single pair
type KrakenTickerData struct {
	A []string `json:"a"` // Ask [price, whole lot volume, lot volume]
	B []string `json:"b"` // Bid [price, whole lot volume, lot volume]
	C []string `json:"c"` // Last trade [price, lot volume]
}

// KrakenResponse represents the API response
type KrakenResponse struct {
	Error  []string                    `json:"error"`
	Result map[string]KrakenTickerData `json:"result"`
}

// NewKrakenSource creates a new Kraken REST source.
// Kraken uses their own pair naming (e.g., XBTUSD for BTC/USD).
func NewKrakenSource(config map[string]interface{}) (sources.Source, error) {
	base, err := newBase(config, "kraken", krakenBaseURL)
	if err != nil {
		return nil, err
	}
	return &KrakenSource{BaseSource: base}, nil
}

// Fetch returns the last trade price for the configured pair
func (s *KrakenSource) Fetch(ctx context.Context) (float64, error) {
	return s.Observe(s.fetchPrice(ctx))
}

func (s *KrakenSource) fetchPrice(ctx context.Context) (float64, error) {
	endpoint := s.APIURL() + "/0/public/Ticker?pair=" + url.QueryEscape(s.Pair())

	var resp KrakenResponse
	if err := sources.GetJSON(ctx, s.Client(), endpoint, nil, &resp); err != nil {
		return 0, err
	}
	if len(resp.Error) > 0 {
		return 0, fmt.Errorf("%w: %s", sources.ErrAPIError, strings.Join(resp.Error, "; "))
	}

	ticker, ok := matchKrakenTicker(s.Pair(), resp.Result)
	if !ok || len(ticker.C) == 0 {
		return 0, fmt.Errorf("%w: pair %s not in response", sources.ErrNoPricesAvailable, s.Pair())
	}

	return sources.ParseDecimalPrice(ticker.C[0])
}

// matchKrakenTicker finds the ticker for pair in a Kraken result.
// Kraken may answer with its internal key (XXBTZUSD for XBTUSD), so a single
// entry result is accepted regardless of its key.
func matchKrakenTicker(pair string, result map[string]KrakenTickerData) (KrakenTickerData, bool) {
	if ticker, ok := result[pair]; ok {
		return ticker, true
	}
	for key, ticker := range result {
		if strings.EqualFold(key, pair) {
			return ticker, true
		}
	}
	if len(result) == 1 {
		for _, ticker := range result {
			return ticker, true
		}
	}
	return KrakenTickerData{}, false
}
