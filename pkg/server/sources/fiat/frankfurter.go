package fiat

import (
	"context"
	"net/url"

	"github.com/StrathCole/oracle-monitor/pkg/server/sources"
)

const frankfurterBaseURL = "https://api.frankfurter.app"

// FrankfurterSource fetches ECB reference rates from Frankfurter API (free, no API key)
// https://www.frankfurter.app/docs/
type FrankfurterSource struct {
	*sources.BaseSource

	base  string
	quote string
}

type frankfurterResponse struct {
	Amount float64            `json:"amount"`
	Base   string             `json:"base"`
	Date   string             `json:"date"`
	Rates  map[string]float64 `json:"rates"`
}

// NewFrankfurterSource creates a new FrankfurterSource. The pair is "EUR/USD" style;
// the price is how many QUOTE one BASE buys.
func NewFrankfurterSource(config map[string]interface{}) (sources.Source, error) {
	bs, base, quote, err := newFiatBase(config, "frankfurter", frankfurterBaseURL)
	if err != nil {
		return nil, err
	}
	return &FrankfurterSource{BaseSource: bs, base: base, quote: quote}, nil
}

// Fetch returns the latest reference rate
func (s *FrankfurterSource) Fetch(ctx context.Context) (float64, error) {
	return s.Observe(s.fetchRate(ctx))
}

func (s *FrankfurterSource) fetchRate(ctx context.Context) (float64, error) {
	params := url.Values{}
	params.Set("from", s.base)
	params.Set("to", s.quote)

	var resp frankfurterResponse
	if err := sources.GetJSON(ctx, s.Client(), s.APIURL()+"/latest?"+params.Encode(), nil, &resp); err != nil {
		return 0, err
	}

	return rateFor(resp.Rates, s.quote)
}
