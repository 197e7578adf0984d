package fiat

import (
	"context"
	"fmt"
	"net/url"

	"github.com/StrathCole/oracle-monitor/pkg/server/sources"
)

const exchangeRateFreeBaseURL = "https://open.er-api.com"

// ExchangeRateFreeSource fetches rates from the keyless ExchangeRate-API endpoint.
type ExchangeRateFreeSource struct {
	*sources.BaseSource

	base  string
	quote string
}

type exchangeRateFreeResponse struct {
	Result    string             `json:"result"`
	ErrorType string             `json:"error-type"`
	BaseCode  string             `json:"base_code"`
	Rates     map[string]float64 `json:"rates"`
}

// NewExchangeRateFreeSource creates a new ExchangeRate-API source for a BASE/QUOTE pair.
func NewExchangeRateFreeSource(config map[string]interface{}) (sources.Source, error) {
	bs, base, quote, err := newFiatBase(config, "exchangerate_free", exchangeRateFreeBaseURL)
	if err != nil {
		return nil, err
	}
	return &ExchangeRateFreeSource{BaseSource: bs, base: base, quote: quote}, nil
}

// Fetch returns the latest rate
func (s *ExchangeRateFreeSource) Fetch(ctx context.Context) (float64, error) {
	return s.Observe(s.fetchRate(ctx))
}

func (s *ExchangeRateFreeSource) fetchRate(ctx context.Context) (float64, error) {
	var resp exchangeRateFreeResponse
	if err := sources.GetJSON(ctx, s.Client(), s.APIURL()+"/v6/latest/"+url.PathEscape(s.base), nil, &resp); err != nil {
		return 0, err
	}
	if resp.Result != "success" {
		return 0, fmt.Errorf("%w: %s", sources.ErrAPIError, resp.ErrorType)
	}

	return rateFor(resp.Rates, s.quote)
}
