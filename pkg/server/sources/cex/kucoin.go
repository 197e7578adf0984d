package cex

import (
	"context"
	"fmt"
	"net/url"

	"github.com/StrathCole/oracle-monitor/pkg/server/sources"
)

const (
	kucoinBaseURL     = "https://api.kucoin.com"
	kucoinSuccessCode = "200000"
)

// KucoinSource fetches prices from KuCoin REST API
type KucoinSource struct {
	*sources.BaseSource
}

// KucoinResponse represents the level1 orderbook response
type KucoinResponse struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data *struct {
		Price   string `json:"price"`
		BestBid string `json:"bestBid"`
		BestAsk string `json:"bestAsk"`
	} `json:"data"`
}

// NewKucoinSource creates a new KuCoin source. The pair looks like "BTC-USDT".
func NewKucoinSource(config map[string]interface{}) (sources.Source, error) {
	base, err := newBase(config, "kucoin", kucoinBaseURL)
	if err != nil {
		return nil, err
	}
	return &KucoinSource{BaseSource: base}, nil
}

// Fetch returns the last traded price for the configured symbol
func (s *KucoinSource) Fetch(ctx context.Context) (float64, error) {
	return s.Observe(s.fetchPrice(ctx))
}

func (s *KucoinSource) fetchPrice(ctx context.Context) (float64, error) {
	endpoint := s.APIURL() + "/api/v1/market/orderbook/level1?symbol=" + url.QueryEscape(s.Pair())

	var resp KucoinResponse
	if err := sources.GetJSON(ctx, s.Client(), endpoint, nil, &resp); err != nil {
		return 0, err
	}
	if resp.Code != kucoinSuccessCode {
		return 0, fmt.Errorf("%w: code %s: %s", sources.ErrAPIError, resp.Code, resp.Msg)
	}
	if resp.Data == nil {
		return 0, fmt.Errorf("%w: symbol %s", sources.ErrNoPricesAvailable, s.Pair())
	}

	return sources.ParseDecimalPrice(resp.Data.Price)
}
