package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StrathCole/oracle-monitor/pkg/config"
	"github.com/StrathCole/oracle-monitor/pkg/logging"
	"github.com/StrathCole/oracle-monitor/pkg/server/sources"
)

func testOracleConfig() config.OracleConfig {
	return config.OracleConfig{
		Timeout:                   config.Duration(time.Second),
		PollInterval:              config.Duration(time.Second),
		HistoryCapacity:           100,
		DeviationThresholdPercent: 5,
		MinHistoryForValidation:   3,
		WindowSize:                10,
		MinSources:                2,
		PublishTimeout:            config.Duration(time.Second),
	}
}

func TestBuildPipeline_InvalidSourceFails(t *testing.T) {
	asset := config.AssetConfig{
		Symbol: "BTC/USD",
		Sources: []config.SourceConfig{
			{Type: "cex", Name: "binance", Config: map[string]interface{}{"pair": "BTCUSDT"}},
			{Type: "cex", Name: "coinmarketcap", Config: map[string]interface{}{"symbol": "BTC"}},
		},
	}

	p, err := buildPipeline(testOracleConfig(), asset, nil, logging.NewNoopLogger())
	require.Error(t, err)
	assert.Nil(t, p)
	assert.ErrorIs(t, err, sources.ErrAPIKeyRequired)
	assert.Contains(t, err.Error(), "cex.coinmarketcap")
}

func TestBuildPipeline_AllSourcesValid(t *testing.T) {
	asset := config.AssetConfig{
		Symbol: "BTC/USD",
		Sources: []config.SourceConfig{
			{Type: "cex", Name: "binance", Config: map[string]interface{}{"pair": "BTCUSDT"}},
			{Type: "cex", Name: "kraken", Config: map[string]interface{}{"pair": "XBTUSD"}},
		},
	}

	p, err := buildPipeline(testOracleConfig(), asset, nil, logging.NewNoopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { closeSources(p.sources) })

	assert.Equal(t, "BTC/USD", p.asset)
	assert.Len(t, p.sources, 2)
}
