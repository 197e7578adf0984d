package fiat

import (
	"github.com/StrathCole/oracle-monitor/pkg/server/sources"
)

func init() {
	// Register all fiat sources
	sources.Register("fiat.frankfurter", NewFrankfurterSource)
	sources.Register("fiat.exchangerate_free", NewExchangeRateFreeSource)
}
