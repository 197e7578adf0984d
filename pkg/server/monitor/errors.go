// Package monitor drives the aggregate, score and validate pipeline on a fixed cadence.
package monitor

import "errors"

var (
	// ErrInvalidInterval indicates a non-positive tick interval.
	ErrInvalidInterval = errors.New("tick interval must be positive")
	// ErrNilCallback indicates Start was called without a callback.
	ErrNilCallback = errors.New("callback is required")
	// ErrNilAggregator indicates New was called without an aggregator.
	ErrNilAggregator = errors.New("aggregator is required")
	// ErrNilValidator indicates New was called without a history validator.
	ErrNilValidator = errors.New("history validator is required")
	// ErrCallbackPanic wraps a panic raised by the tick callback.
	ErrCallbackPanic = errors.New("callback panicked")
	// ErrRoundDiscarded indicates a round finished after its schedule was stopped.
	ErrRoundDiscarded = errors.New("round discarded after stop")
)
