package sources

import (
	"strings"
)

// Stablecoin quotes are treated as USD when naming an asset.
var stablecoinAliases = map[string]string{
	"USDT": "USD",
	"USDC": "USD",
	"BUSD": "USD",
	"DAI":  "USD",
	"TUSD": "USD",
	"USDP": "USD",
}

var baseCurrencyAliases = map[string]string{
	"WBTC":  "BTC",
	"XBT":   "BTC",
	"WETH":  "ETH",
	"STETH": "ETH",
}

// NormalizeSymbol converts an asset symbol to its canonical form.
//   - btc/usdt -> BTC/USD
//   - WETH/USDC -> ETH/USD
//   - EUR/USD -> EUR/USD
func NormalizeSymbol(symbol string) string {
	parts := strings.Split(strings.TrimSpace(symbol), "/")
	if len(parts) != 2 {
		return symbol
	}

	base := strings.ToUpper(strings.TrimSpace(parts[0]))
	quote := strings.ToUpper(strings.TrimSpace(parts[1]))

	if normalized, ok := baseCurrencyAliases[base]; ok {
		base = normalized
	}
	if normalized, ok := stablecoinAliases[quote]; ok {
		quote = normalized
	}

	return base + "/" + quote
}

// SplitSymbol returns the base and quote of a BASE/QUOTE symbol.
func SplitSymbol(symbol string) (base, quote string) {
	parts := strings.SplitN(symbol, "/", 2)
	if len(parts) != 2 {
		return symbol, ""
	}
	return parts[0], parts[1]
}
