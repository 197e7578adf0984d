// Package evm provides on-chain AMM pool price sources.
package evm

import "errors"

var (
	// ErrRPCURLRequired indicates that rpc_url configuration is required.
	ErrRPCURLRequired = errors.New("rpc_url is required")
	// ErrPairAddressRequired indicates that pair_address configuration is required.
	ErrPairAddressRequired = errors.New("pair_address is required")
	// ErrInvalidPairAddress indicates that pair_address is not a hex address.
	ErrInvalidPairAddress = errors.New("pair_address is not a valid address")
	// ErrInvalidDecimals indicates token decimals outside 0..77.
	ErrInvalidDecimals = errors.New("token decimals out of range")
	// ErrEmptyReserves indicates the pool has no liquidity on one side.
	ErrEmptyReserves = errors.New("pool reserves are empty")
)
