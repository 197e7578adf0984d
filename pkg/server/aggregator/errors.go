// Package aggregator fans out to price sources and merges their answers into one report.
package aggregator

import "errors"

var (
	// ErrNoSources indicates an aggregator was built without sources.
	ErrNoSources = errors.New("no price sources configured")
	// ErrInvalidTimeout indicates a non-positive per-source timeout.
	ErrInvalidTimeout = errors.New("per-source timeout must be positive")
	// ErrDuplicateSource indicates two sources share a name.
	ErrDuplicateSource = errors.New("duplicate source name")
	// ErrAllSourcesFailed indicates no source produced a valid price in a round.
	ErrAllSourcesFailed = errors.New("all sources failed")
	// ErrInvalidPrice indicates a source returned a zero, negative or non-finite price.
	ErrInvalidPrice = errors.New("invalid price")
	// ErrSourceTimeout indicates a source did not answer within its timeout.
	ErrSourceTimeout = errors.New("source timed out")
	// ErrSourcePanic indicates a source panicked during fetch.
	ErrSourcePanic = errors.New("source panicked")
)
