package cex

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/StrathCole/oracle-monitor/pkg/server/sources"
)

const coinmarketcapBaseURL = "https://pro-api.coinmarketcap.com"

// CoinMarketCapSource fetches prices from the CoinMarketCap quotes API.
// The pair is a CoinMarketCap slug such as "bitcoin".
type CoinMarketCapSource struct {
	*sources.BaseSource

	apiKey  string
	convert string
}

type cmcQuote struct {
	Price float64 `json:"price"`
}

type cmcCoin struct {
	ID     int                 `json:"id"`
	Slug   string              `json:"slug"`
	Symbol string              `json:"symbol"`
	Quote  map[string]cmcQuote `json:"quote"`
}

// CoinMarketCapResponse represents the quotes/latest response
type CoinMarketCapResponse struct {
	Status struct {
		ErrorCode    int    `json:"error_code"`
		ErrorMessage string `json:"error_message"`
	} `json:"status"`
	Data map[string]cmcCoin `json:"data"`
}

// NewCoinMarketCapSource creates a new CoinMarketCap source
func NewCoinMarketCapSource(config map[string]interface{}) (sources.Source, error) {
	apiKey := sources.GetString(config, "api_key", "")
	if apiKey == "" {
		return nil, fmt.Errorf("coinmarketcap: %w", sources.ErrAPIKeyRequired)
	}

	base, err := newBase(config, "coinmarketcap", coinmarketcapBaseURL)
	if err != nil {
		return nil, err
	}

	return &CoinMarketCapSource{
		BaseSource: base,
		apiKey:     apiKey,
		convert:    strings.ToUpper(sources.GetString(config, "convert", "USD")),
	}, nil
}

// Fetch returns the quoted price for the configured slug
func (s *CoinMarketCapSource) Fetch(ctx context.Context) (float64, error) {
	return s.Observe(s.fetchPrice(ctx))
}

func (s *CoinMarketCapSource) fetchPrice(ctx context.Context) (float64, error) {
	params := url.Values{}
	params.Set("slug", s.Pair())
	params.Set("convert", s.convert)
	endpoint := s.APIURL() + "/v2/cryptocurrency/quotes/latest?" + params.Encode()

	var resp CoinMarketCapResponse
	headers := map[string]string{"X-CMC_PRO_API_KEY": s.apiKey}
	if err := sources.GetJSON(ctx, s.Client(), endpoint, headers, &resp); err != nil {
		return 0, err
	}
	if resp.Status.ErrorCode != 0 {
		return 0, fmt.Errorf("%w: %d: %s", sources.ErrAPIError, resp.Status.ErrorCode, resp.Status.ErrorMessage)
	}

	// Data is keyed by numeric id
	for _, coin := range resp.Data {
		if coin.Slug != s.Pair() {
			continue
		}
		if quote, ok := coin.Quote[s.convert]; ok {
			return quote.Price, nil
		}
	}

	return 0, fmt.Errorf("%w: slug %s", sources.ErrNoPricesAvailable, s.Pair())
}
