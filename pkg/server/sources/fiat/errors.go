// Package fiat provides fiat currency reference price sources.
package fiat

import "errors"

var (
	// ErrNoRateForQuote indicates the response did not carry the quote currency.
	ErrNoRateForQuote = errors.New("no rate for quote currency")
	// ErrZeroRate indicates the provider answered with a zero rate.
	ErrZeroRate = errors.New("provider returned zero rate")
)
