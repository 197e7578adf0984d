package cex

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StrathCole/oracle-monitor/pkg/server/sources"
)

// fixture serves body for the expected path and records the last request.
type fixture struct {
	path   string
	status int
	body   string
	last   *http.Request
}

func (f *fixture) start(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.last = r
		if r.URL.Path != f.path {
			http.NotFound(w, r)
			return
		}
		if f.status != 0 {
			w.WriteHeader(f.status)
		}
		_, _ = w.Write([]byte(f.body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestAdapters_Fetch(t *testing.T) {
	tests := []struct {
		name    string
		factory sources.SourceFactory
		config  map[string]interface{}
		fixture fixture
		want    float64
		query   map[string]string
	}{
		{
			name:    "binance",
			factory: NewBinanceSource,
			config:  map[string]interface{}{"pair": "btcusdt"},
			fixture: fixture{path: "/api/v3/ticker/price", body: `{"symbol":"BTCUSDT","price":"64000.50000000"}`},
			want:    64000.5,
			query:   map[string]string{"symbol": "BTCUSDT"},
		},
		{
			name:    "coingecko",
			factory: NewCoinGeckoSource,
			config:  map[string]interface{}{"pair": "bitcoin"},
			fixture: fixture{path: "/simple/price", body: `{"bitcoin":{"usd":64001.25}}`},
			want:    64001.25,
			query:   map[string]string{"ids": "bitcoin", "vs_currencies": "usd"},
		},
		{
			name:    "kraken",
			factory: NewKrakenSource,
			config:  map[string]interface{}{"pair": "XBTUSD"},
			fixture: fixture{path: "/0/public/Ticker", body: `{"error":[],"result":{"XXBTZUSD":{"a":["64010.0","1","1.0"],"b":["64000.0","1","1.0"],"c":["64005.1","0.01"]}}}`},
			want:    64005.1,
			query:   map[string]string{"pair": "XBTUSD"},
		},
		{
			name:    "okx",
			factory: NewOKXSource,
			config:  map[string]interface{}{"pair": "BTC-USDT"},
			fixture: fixture{path: "/api/v5/market/ticker", body: `{"code":"0","msg":"","data":[{"instId":"BTC-USDT","last":"63999.9"}]}`},
			want:    63999.9,
			query:   map[string]string{"instId": "BTC-USDT"},
		},
		{
			name:    "bybit",
			factory: NewBybitSource,
			config:  map[string]interface{}{"pair": "BTCUSDT"},
			fixture: fixture{path: "/v5/market/tickers", body: `{"retCode":0,"retMsg":"OK","result":{"category":"spot","list":[{"symbol":"BTCUSDT","lastPrice":"64002"}]}}`},
			want:    64002,
			query:   map[string]string{"category": "spot", "symbol": "BTCUSDT"},
		},
		{
			name:    "bitfinex",
			factory: NewBitfinexSource,
			config:  map[string]interface{}{"pair": "BTCUSD"},
			fixture: fixture{path: "/v2/ticker/tBTCUSD", body: `[63990,1.2,64010,0.8,120,0.002,64003,1500,64500,63000]`},
			want:    64003,
		},
		{
			name:    "gateio",
			factory: NewGateioSource,
			config:  map[string]interface{}{"pair": "BTC_USDT"},
			fixture: fixture{path: "/api/v4/spot/tickers", body: `[{"currency_pair":"BTC_USDT","last":"64004.2"}]`},
			want:    64004.2,
			query:   map[string]string{"currency_pair": "BTC_USDT"},
		},
		{
			name:    "kucoin",
			factory: NewKucoinSource,
			config:  map[string]interface{}{"pair": "BTC-USDT"},
			fixture: fixture{path: "/api/v1/market/orderbook/level1", body: `{"code":"200000","data":{"price":"64006","bestBid":"64005","bestAsk":"64007"}}`},
			want:    64006,
			query:   map[string]string{"symbol": "BTC-USDT"},
		},
		{
			name:    "coinmarketcap",
			factory: NewCoinMarketCapSource,
			config:  map[string]interface{}{"pair": "bitcoin", "api_key": "secret"},
			fixture: fixture{path: "/v2/cryptocurrency/quotes/latest", body: `{"status":{"error_code":0},"data":{"1":{"id":1,"slug":"bitcoin","symbol":"BTC","quote":{"USD":{"price":64007.7}}}}}`},
			want:    64007.7,
			query:   map[string]string{"slug": "bitcoin", "convert": "USD"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := tt.fixture
			server := fx.start(t)
			tt.config["api_url"] = server.URL

			src, err := tt.factory(tt.config)
			require.NoError(t, err)
			assert.Equal(t, tt.name, src.Name())
			assert.Equal(t, sources.SourceTypeCEX, src.Type())

			price, err := src.Fetch(context.Background())
			require.NoError(t, err)
			assert.InDelta(t, tt.want, price, 1e-9)

			for k, v := range tt.query {
				assert.Equal(t, v, fx.last.URL.Query().Get(k), k)
			}
		})
	}
}

func TestAdapters_APIErrors(t *testing.T) {
	tests := []struct {
		name    string
		factory sources.SourceFactory
		fixture fixture
		wantErr error
	}{
		{
			name:    "kraken error array",
			factory: NewKrakenSource,
			fixture: fixture{path: "/0/public/Ticker", body: `{"error":["EQuery:Unknown asset pair"],"result":{}}`},
			wantErr: sources.ErrAPIError,
		},
		{
			name:    "okx non-zero code",
			factory: NewOKXSource,
			fixture: fixture{path: "/api/v5/market/ticker", body: `{"code":"51001","msg":"Instrument ID does not exist","data":[]}`},
			wantErr: sources.ErrAPIError,
		},
		{
			name:    "bybit non-zero retCode",
			factory: NewBybitSource,
			fixture: fixture{path: "/v5/market/tickers", body: `{"retCode":10001,"retMsg":"Not supported symbols"}`},
			wantErr: sources.ErrAPIError,
		},
		{
			name:    "gateio empty list",
			factory: NewGateioSource,
			fixture: fixture{path: "/api/v4/spot/tickers", body: `[]`},
			wantErr: sources.ErrNoPricesAvailable,
		},
		{
			name:    "coingecko unknown coin",
			factory: NewCoinGeckoSource,
			fixture: fixture{path: "/simple/price", body: `{}`},
			wantErr: sources.ErrNoPricesAvailable,
		},
		{
			name:    "bitfinex short ticker",
			factory: NewBitfinexSource,
			fixture: fixture{path: "/v2/ticker/tBTCUSD", body: `[1,2,3]`},
			wantErr: sources.ErrInvalidResponse,
		},
		{
			name:    "binance rate limited",
			factory: NewBinanceSource,
			fixture: fixture{path: "/api/v3/ticker/price", status: http.StatusTooManyRequests},
			wantErr: sources.ErrRateLimitExceeded,
		},
		{
			name:    "kucoin server error",
			factory: NewKucoinSource,
			fixture: fixture{path: "/api/v1/market/orderbook/level1", status: http.StatusBadGateway},
			wantErr: sources.ErrUnexpectedStatus,
		},
		{
			name:    "binance malformed price",
			factory: NewBinanceSource,
			fixture: fixture{path: "/api/v3/ticker/price", body: `{"symbol":"BTCUSDT","price":"n/a"}`},
			wantErr: sources.ErrInvalidResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := tt.fixture
			server := fx.start(t)

			src, err := tt.factory(map[string]interface{}{"pair": "BTCUSD", "api_url": server.URL})
			require.NoError(t, err)

			price, err := src.Fetch(context.Background())
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, price)
		})
	}
}

func TestAdapters_InvalidConfig(t *testing.T) {
	_, err := NewBinanceSource(map[string]interface{}{})
	assert.ErrorIs(t, err, sources.ErrPairRequired)

	_, err = NewCoinMarketCapSource(map[string]interface{}{"pair": "bitcoin"})
	assert.ErrorIs(t, err, sources.ErrAPIKeyRequired)
}

func TestAdapters_NameOverride(t *testing.T) {
	src, err := NewBinanceSource(map[string]interface{}{"pair": "BTCUSDT", "id": "binance-us"})
	require.NoError(t, err)
	assert.Equal(t, "binance-us", src.Name())
}

func TestAdapters_Registered(t *testing.T) {
	for _, name := range []string{"binance", "coingecko", "kraken", "okx", "bybit", "bitfinex", "gateio", "kucoin", "coinmarketcap"} {
		assert.True(t, sources.IsRegistered("cex", name), name)
	}
}
