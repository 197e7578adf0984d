package monitor

import (
	"github.com/StrathCole/oracle-monitor/pkg/server/aggregator"
	"github.com/StrathCole/oracle-monitor/pkg/server/history"
)

// Callback receives the outcome of every successful tick. Callbacks of one
// monitor never run concurrently, even across Stop and Start, and must not call RunOnce.
type Callback func(report *aggregator.Report, confidence aggregator.Confidence, validation history.Result)

// ErrorHandler receives tick failures. Monitors without one only log them.
type ErrorHandler func(err error)

// Option configures a Monitor.
type Option func(*Monitor)

// WithErrorHandler sets a handler for failed ticks.
func WithErrorHandler(h ErrorHandler) Option {
	return func(m *Monitor) {
		m.onError = h
	}
}

// WithAsset labels logs and metrics with the asset symbol.
func WithAsset(asset string) Option {
	return func(m *Monitor) {
		m.asset = asset
	}
}

// WithMinSources sets the source count below which a report is logged as low trust.
func WithMinSources(n int) Option {
	return func(m *Monitor) {
		if n > 0 {
			m.minSources = n
		}
	}
}
