package evm

import (
	"github.com/StrathCole/oracle-monitor/pkg/server/sources"
)

func init() {
	// Register all EVM sources
	sources.Register("evm.uniswapv2", NewUniswapV2Source)
	sources.Register("evm.pancakeswap_bsc", NewPancakeSwapSource)
}
