package cex

import (
	"github.com/StrathCole/oracle-monitor/pkg/server/sources"
)

func init() {
	// Register all CEX sources
	sources.Register("cex.binance", NewBinanceSource)
	sources.Register("cex.coingecko", NewCoinGeckoSource)
	sources.Register("cex.kraken", NewKrakenSource)
	sources.Register("cex.okx", NewOKXSource)
	sources.Register("cex.bybit", NewBybitSource)
	sources.Register("cex.bitfinex", NewBitfinexSource)
	sources.Register("cex.gateio", NewGateioSource)
	sources.Register("cex.kucoin", NewKucoinSource)
	sources.Register("cex.coinmarketcap", NewCoinMarketCapSource)
}
