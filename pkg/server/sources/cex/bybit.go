package cex

import (
	"context"
	"fmt"
	"net/url"

	"github.com/StrathCole/oracle-monitor/pkg/server/sources"
)

const bybitBaseURL = "https://api.bybit.com"

// BybitSource fetches spot prices from Bybit REST API
type BybitSource struct {
	*sources.BaseSource
}

// BybitTicker represents ticker data from Bybit
type BybitTicker struct {
	Symbol    string `json:"symbol"`
	LastPrice string `json:"lastPrice"`
}

// BybitResponse represents the API response
type BybitResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		Category string        `json:"category"`
		List     []BybitTicker `json:"list"`
	} `json:"result"`
}

// NewBybitSource creates a new Bybit source
func NewBybitSource(config map[string]interface{}) (sources.Source, error) {
	base, err := newBase(config, "bybit", bybitBaseURL)
	if err != nil {
		return nil, err
	}
	return &BybitSource{BaseSource: base}, nil
}

// Fetch returns the last traded price for the configured symbol
func (s *BybitSource) Fetch(ctx context.Context) (float64, error) {
	return s.Observe(s.fetchPrice(ctx))
}

func (s *BybitSource) fetchPrice(ctx context.Context) (float64, error) {
	endpoint := s.APIURL() + "/v5/market/tickers?category=spot&symbol=" + url.QueryEscape(s.Pair())

	var resp BybitResponse
	if err := sources.GetJSON(ctx, s.Client(), endpoint, nil, &resp); err != nil {
		return 0, err
	}
	if resp.RetCode != 0 {
		return 0, fmt.Errorf("%w: retCode %d: %s", sources.ErrAPIError, resp.RetCode, resp.RetMsg)
	}
	if len(resp.Result.List) == 0 {
		return 0, fmt.Errorf("%w: symbol %s", sources.ErrNoPricesAvailable, s.Pair())
	}

	return sources.ParseDecimalPrice(resp.Result.List[0].LastPrice)
}
