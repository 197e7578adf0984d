package oracle

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/StrathCole/oracle-monitor/pkg/server/sources"
)

const (
	bandProtocolAPIURL  = "https://laozi1.bandchain.org/api"
	bandDefaultAskCount = 4
	bandDefaultMinCount = 3
)

// BandProtocolSource fetches USD prices from the Band Protocol standard dataset.
// https://bandprotocol.com/
type BandProtocolSource struct {
	*sources.BaseSource
	symbol   string
	askCount int
	minCount int
}

type bandPriceResult struct {
	Symbol      string `json:"symbol"`
	Multiplier  string `json:"multiplier"`
	Px          string `json:"px"`
	RequestID   string `json:"request_id"`
	ResolveTime string `json:"resolve_time"`
}

type bandPriceResponse struct {
	PriceResults []bandPriceResult `json:"price_results"`
}

// NewBandProtocolSource creates a Band source. config["pair"] is either a bare
// symbol ("BTC") or a USD pair ("BTC/USD", "BTC/USDT").
func NewBandProtocolSource(config map[string]interface{}) (sources.Source, error) {
	pair, err := sources.ParsePair(config)
	if err != nil {
		return nil, err
	}

	symbol := strings.ToUpper(pair)
	if strings.Contains(pair, "/") {
		if err := sources.ValidateSymbolFormat(pair); err != nil {
			return nil, err
		}
		base, quote := sources.SplitSymbol(sources.NormalizeSymbol(pair))
		if quote != "USD" {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedQuote, pair)
		}
		symbol = base
	}

	askCount := sources.GetInt(config, "ask_count", bandDefaultAskCount)
	minCount := sources.GetInt(config, "min_count", bandDefaultMinCount)
	if minCount <= 0 || askCount < minCount {
		return nil, fmt.Errorf("%w: need 0 < min_count <= ask_count", sources.ErrInvalidConfig)
	}

	apiURL := strings.TrimRight(sources.GetString(config, "api_url", bandProtocolAPIURL), "/")
	base := sources.NewBaseSource(sources.GetString(config, "id", "band"), sources.SourceTypeOracle,
		pair, apiURL, sources.GetLoggerFromConfig(config))

	return &BandProtocolSource{
		BaseSource: base,
		symbol:     symbol,
		askCount:   askCount,
		minCount:   minCount,
	}, nil
}

// Fetch returns the current USD price of the configured symbol
func (s *BandProtocolSource) Fetch(ctx context.Context) (float64, error) {
	return s.Observe(s.fetchPrice(ctx))
}

func (s *BandProtocolSource) fetchPrice(ctx context.Context) (float64, error) {
	query := url.Values{}
	query.Set("symbols", s.symbol)
	query.Set("ask_count", strconv.Itoa(s.askCount))
	query.Set("min_count", strconv.Itoa(s.minCount))
	endpoint := s.APIURL() + "/oracle/v1/request_prices?" + query.Encode()

	var data bandPriceResponse
	if err := sources.GetJSON(ctx, s.Client(), endpoint, nil, &data); err != nil {
		return 0, err
	}

	for _, result := range data.PriceResults {
		if strings.EqualFold(result.Symbol, s.symbol) {
			return result.price()
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrSymbolNotReturned, s.symbol)
}

// price is px / multiplier; Band reports prices as scaled integers.
func (r *bandPriceResult) price() (float64, error) {
	px, err := decimal.NewFromString(r.Px)
	if err != nil {
		return 0, fmt.Errorf("%w: px %q", sources.ErrInvalidResponse, r.Px)
	}
	multiplier, err := decimal.NewFromString(r.Multiplier)
	if err != nil {
		return 0, fmt.Errorf("%w: multiplier %q", sources.ErrInvalidResponse, r.Multiplier)
	}
	if multiplier.IsZero() {
		return 0, ErrMultiplierIsZero
	}
	f, _ := px.Div(multiplier).Float64()
	return f, nil
}
