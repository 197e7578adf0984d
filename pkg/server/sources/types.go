// Package sources defines the price source adapter contract and shared adapter helpers.
package sources

import (
	"context"
)

// SourceType represents the type of price source
type SourceType string

const (
	SourceTypeCEX    SourceType = "cex"
	SourceTypeEVM    SourceType = "evm"
	SourceTypeFiat   SourceType = "fiat"
	SourceTypeOracle SourceType = "oracle"
)

// Source wraps one external price provider.
//
// Fetch issues a single request and returns one price for the configured pair.
// Provider errors (rate limits, malformed bodies, API errors) are returned, never
// panicked. Adapters do not reject zero or negative prices; the aggregator does.
type Source interface {
	// Name returns the unique name of this source
	Name() string

	// Type returns the type of this source
	Type() SourceType

	// Fetch returns the current price or an error. It must honour ctx.
	Fetch(ctx context.Context) (float64, error)
}

// SourceFactory is a function that creates a new Source instance
type SourceFactory func(config map[string]interface{}) (Source, error)

// FetchFunc adapts a plain function into a Source.
type FetchFunc struct {
	SourceName string
	Kind       SourceType
	Fn         func(ctx context.Context) (float64, error)
}

// Name returns the source name.
func (f FetchFunc) Name() string { return f.SourceName }

// Type returns the source type, defaulting to cex.
func (f FetchFunc) Type() SourceType {
	if f.Kind == "" {
		return SourceTypeCEX
	}
	return f.Kind
}

// Fetch calls Fn.
func (f FetchFunc) Fetch(ctx context.Context) (float64, error) {
	return f.Fn(ctx)
}
