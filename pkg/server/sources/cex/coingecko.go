package cex

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/StrathCole/oracle-monitor/pkg/server/sources"
)

const (
	coingeckoBaseURL    = "https://api.coingecko.com/api/v3"
	coingeckoProBaseURL = "https://pro-api.coingecko.com/api/v3"
)

// CoinGeckoSource fetches prices from the CoinGecko simple price endpoint.
// The pair is a CoinGecko coin id such as "bitcoin".
type CoinGeckoSource struct {
	*sources.BaseSource

	apiKey     string
	vsCurrency string
}

// NewCoinGeckoSource creates a new CoinGecko source
func NewCoinGeckoSource(config map[string]interface{}) (sources.Source, error) {
	apiKey := sources.GetString(config, "api_key", "")

	// Pro keys must hit the pro host
	defaultURL := coingeckoBaseURL
	if apiKey != "" {
		defaultURL = coingeckoProBaseURL
	}

	base, err := newBase(config, "coingecko", defaultURL)
	if err != nil {
		return nil, err
	}

	return &CoinGeckoSource{
		BaseSource: base,
		apiKey:     apiKey,
		vsCurrency: strings.ToLower(sources.GetString(config, "vs_currency", "usd")),
	}, nil
}

// Fetch returns the current price for the configured coin
func (s *CoinGeckoSource) Fetch(ctx context.Context) (float64, error) {
	return s.Observe(s.fetchPrice(ctx))
}

func (s *CoinGeckoSource) fetchPrice(ctx context.Context) (float64, error) {
	params := url.Values{}
	params.Set("ids", s.Pair())
	params.Set("vs_currencies", s.vsCurrency)
	endpoint := s.APIURL() + "/simple/price?" + params.Encode()

	var headers map[string]string
	if s.apiKey != "" {
		headers = map[string]string{"x-cg-pro-api-key": s.apiKey}
	}

	// {"bitcoin":{"usd":64000.12}}
	var result map[string]map[string]float64
	if err := sources.GetJSON(ctx, s.Client(), endpoint, headers, &result); err != nil {
		return 0, err
	}

	quotes, ok := result[s.Pair()]
	if !ok {
		return 0, fmt.Errorf("%w: coin %s not in response", sources.ErrNoPricesAvailable, s.Pair())
	}
	price, ok := quotes[s.vsCurrency]
	if !ok {
		return 0, fmt.Errorf("%w: no %s quote for %s", sources.ErrNoPricesAvailable, s.vsCurrency, s.Pair())
	}

	return price, nil
}
