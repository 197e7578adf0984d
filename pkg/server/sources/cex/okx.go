package cex

import (
	"context"
	"fmt"
	"net/url"

	"github.com/StrathCole/oracle-monitor/pkg/server/sources"
)

const okxBaseURL = "https://www.okx.com"

// OKXSource fetches prices from OKX REST API
type OKXSource struct {
	*sources.BaseSource
}

// OKXTicker represents ticker data from OKX
type OKXTicker struct {
	InstID string `json:"instId"` // e.g., "BTC-USDT"
	Last   string `json:"last"`   // Last traded price
}

// OKXResponse represents the API response
type OKXResponse struct {
	Code string      `json:"code"`
	Msg  string      `json:"msg"`
	Data []OKXTicker `json:"data"`
}

// NewOKXSource creates a new OKX source. The pair is an instrument id such as "BTC-USDT".
func NewOKXSource(config map[string]interface{}) (sources.Source, error) {
	base, err := newBase(config, "okx", okxBaseURL)
	if err != nil {
		return nil, err
	}
	return &OKXSource{BaseSource: base}, nil
}

// Fetch returns the last traded price for the configured instrument
func (s *OKXSource) Fetch(ctx context.Context) (float64, error) {
	return s.Observe(s.fetchPrice(ctx))
}

func (s *OKXSource) fetchPrice(ctx context.Context) (float64, error) {
	endpoint := s.APIURL() + "/api/v5/market/ticker?instId=" + url.QueryEscape(s.Pair())

	var resp OKXResponse
	if err := sources.GetJSON(ctx, s.Client(), endpoint, nil, &resp); err != nil {
		return 0, err
	}
	if resp.Code != "0" {
		return 0, fmt.Errorf("%w: code %s: %s", sources.ErrAPIError, resp.Code, resp.Msg)
	}
	if len(resp.Data) == 0 {
		return 0, fmt.Errorf("%w: instrument %s", sources.ErrNoPricesAvailable, s.Pair())
	}

	return sources.ParseDecimalPrice(resp.Data[0].Last)
}
