// Package oracle provides price sources backed by other oracle networks (e.g., Band Protocol).
package oracle

import "errors"

var (
	// ErrUnsupportedQuote indicates a pair whose quote the oracle does not price.
	ErrUnsupportedQuote = errors.New("oracle only quotes USD")
	// ErrSymbolNotReturned indicates the response did not contain the requested symbol.
	ErrSymbolNotReturned = errors.New("symbol missing from oracle response")
	// ErrMultiplierIsZero indicates that the multiplier is zero.
	ErrMultiplierIsZero = errors.New("multiplier is zero")
)
