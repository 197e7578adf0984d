package cex

import (
	"context"
	"net/url"
	"strings"

	"github.com/StrathCole/oracle-monitor/pkg/server/sources"
)

const binanceBaseURL = "https://api.binance.com"

// BinanceSource fetches the last trade price from Binance
type BinanceSource struct {
	*sources.BaseSource
}

// BinancePriceTicker represents lightweight price data from /ticker/price endpoint
type BinancePriceTicker struct {
	Symbol string `json:"symbol"` // e.g., "BTCUSDT"
	Price  string `json:"price"`  // Current price
}

// NewBinanceSource creates a new Binance source
func NewBinanceSource(config map[string]interface{}) (sources.Source, error) {
	base, err := newBase(config, "binance", binanceBaseURL)
	if err != nil {
		return nil, err
	}
	return &BinanceSource{BaseSource: base}, nil
}

// Fetch returns the current price for the configured symbol
func (s *BinanceSource) Fetch(ctx context.Context) (float64, error) {
	return s.Observe(s.fetchPrice(ctx))
}

func (s *BinanceSource) fetchPrice(ctx context.Context) (float64, error) {
	endpoint := s.APIURL() + "/api/v3/ticker/price?symbol=" + url.QueryEscape(strings.ToUpper(s.Pair()))

	var ticker BinancePriceTicker
	if err := sources.GetJSON(ctx, s.Client(), endpoint, nil, &ticker); err != nil {
		return 0, err
	}

	return sources.ParseDecimalPrice(ticker.Price)
}
