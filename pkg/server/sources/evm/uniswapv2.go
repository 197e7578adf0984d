package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	"github.com/StrathCole/oracle-monitor/pkg/server/sources"
)

// uint256 max has 78 digits
const maxDecimals = 77

// Uniswap V2 Pair ABI (only getReserves function).
const pairABIJSON = `[{
	"constant": true,
	"inputs": [],
	"name": "getReserves",
	"outputs": [
		{"internalType": "uint112", "name": "reserve0", "type": "uint112"},
		{"internalType": "uint112", "name": "reserve1", "type": "uint112"},
		{"internalType": "uint32", "name": "blockTimestampLast", "type": "uint32"}
	],
	"payable": false,
	"stateMutability": "view",
	"type": "function"
}]`

var pairABI = mustParseABI(pairABIJSON)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("failed to parse pair ABI: %v", err))
	}
	return parsed
}

// ContractCaller is the subset of ethclient.Client used to read pool state.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Dialer opens a ContractCaller for an RPC URL.
type Dialer func(ctx context.Context, rpcURL string) (ContractCaller, error)

func dialEthclient(ctx context.Context, rpcURL string) (ContractCaller, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// UniswapV2Source prices a token pair from the reserves of a Uniswap V2 style pool
// (Uniswap, PancakeSwap, SushiSwap and their forks share the pair ABI).
type UniswapV2Source struct {
	*sources.BaseSource

	rpcURL      string
	pairAddress common.Address
	decimals0   int
	decimals1   int
	invert      bool

	dial   Dialer
	mu     sync.Mutex
	caller ContractCaller
}

// Reserves holds the pair reserves.
type Reserves struct {
	Reserve0           *big.Int
	Reserve1           *big.Int
	BlockTimestampLast uint32
}

// NewUniswapV2Source creates a pool source. Config keys: rpc_url, pair_address,
// decimals0, decimals1 (default 18), invert (price token0 in token1 when false).
func NewUniswapV2Source(config map[string]interface{}) (sources.Source, error) {
	src, err := newPoolSource(config, "uniswapv2")
	if err != nil {
		return nil, err
	}
	return src, nil
}

// NewPancakeSwapSource creates a pool source named after the BSC deployment.
func NewPancakeSwapSource(config map[string]interface{}) (sources.Source, error) {
	src, err := newPoolSource(config, "pancakeswap_bsc")
	if err != nil {
		return nil, err
	}
	return src, nil
}

func newPoolSource(config map[string]interface{}, name string) (*UniswapV2Source, error) {
	rpcURL := sources.GetString(config, "rpc_url", "")
	if rpcURL == "" {
		return nil, fmt.Errorf("%w", ErrRPCURLRequired)
	}

	pairAddr := sources.GetString(config, "pair_address", "")
	if pairAddr == "" {
		return nil, fmt.Errorf("%w", ErrPairAddressRequired)
	}
	if !common.IsHexAddress(pairAddr) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPairAddress, pairAddr)
	}

	decimals0 := sources.GetInt(config, "decimals0", 18)
	decimals1 := sources.GetInt(config, "decimals1", 18)
	if decimals0 < 0 || decimals0 > maxDecimals || decimals1 < 0 || decimals1 > maxDecimals {
		return nil, fmt.Errorf("%w: decimals0=%d decimals1=%d", ErrInvalidDecimals, decimals0, decimals1)
	}

	logger := sources.GetLoggerFromConfig(config)
	base := sources.NewBaseSource(sources.GetString(config, "id", name), sources.SourceTypeEVM, pairAddr, rpcURL, logger)

	return &UniswapV2Source{
		BaseSource:  base,
		rpcURL:      rpcURL,
		pairAddress: common.HexToAddress(pairAddr),
		decimals0:   decimals0,
		decimals1:   decimals1,
		invert:      sources.GetBool(config, "invert", false),
		dial:        dialEthclient,
	}, nil
}

// WithCaller replaces the RPC connection, used when the caller is shared or faked.
func (s *UniswapV2Source) WithCaller(caller ContractCaller) *UniswapV2Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.caller = caller
	return s
}

// Fetch reads the pool reserves and returns the spot price.
func (s *UniswapV2Source) Fetch(ctx context.Context) (float64, error) {
	return s.Observe(s.fetchPrice(ctx))
}

// Close releases the RPC connection if one was opened.
func (s *UniswapV2Source) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.caller.(*ethclient.Client); ok {
		c.Close()
	}
	s.caller = nil
}

func (s *UniswapV2Source) fetchPrice(ctx context.Context) (float64, error) {
	caller, err := s.connect(ctx)
	if err != nil {
		return 0, err
	}

	reserves, err := getReserves(ctx, caller, s.pairAddress)
	if err != nil {
		return 0, err
	}

	price, err := calculatePrice(reserves.Reserve0, reserves.Reserve1, s.decimals0, s.decimals1)
	if err != nil {
		return 0, err
	}
	if s.invert {
		price = decimal.NewFromInt(1).Div(price)
	}

	f, _ := price.Float64()
	return f, nil
}

// connect dials lazily so construction never touches the network.
func (s *UniswapV2Source) connect(ctx context.Context) (ContractCaller, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.caller != nil {
		return s.caller, nil
	}

	caller, err := s.dial(ctx, s.rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}
	s.caller = caller
	return caller, nil
}

// getReserves calls the getReserves() function on a Uniswap V2 pair contract.
func getReserves(ctx context.Context, caller ContractCaller, pairAddr common.Address) (*Reserves, error) {
	data, err := pairABI.Pack("getReserves")
	if err != nil {
		return nil, fmt.Errorf("failed to pack getReserves call: %w", err)
	}

	result, err := caller.CallContract(ctx, ethereum.CallMsg{
		To:   &pairAddr,
		Data: data,
	}, nil) // nil = latest block
	if err != nil {
		return nil, fmt.Errorf("failed to call getReserves: %w", err)
	}

	var reserves Reserves
	if err := pairABI.UnpackIntoInterface(&reserves, "getReserves", result); err != nil {
		return nil, fmt.Errorf("%w: unpack getReserves: %v", sources.ErrInvalidResponse, err)
	}

	return &reserves, nil
}

// calculatePrice calculates the spot price of token0 in token1 from reserves.
// Price = (reserve1 / 10^decimals1) / (reserve0 / 10^decimals0).
func calculatePrice(reserve0, reserve1 *big.Int, decimals0, decimals1 int) (decimal.Decimal, error) {
	if reserve0 == nil || reserve1 == nil || reserve0.Sign() == 0 || reserve1.Sign() == 0 {
		return decimal.Zero, fmt.Errorf("%w", ErrEmptyReserves)
	}

	// decimals are bounded by maxDecimals at construction
	amount0 := decimal.NewFromBigInt(reserve0, -int32(decimals0)) // #nosec G115
	amount1 := decimal.NewFromBigInt(reserve1, -int32(decimals1)) // #nosec G115

	return amount1.Div(amount0), nil
}
