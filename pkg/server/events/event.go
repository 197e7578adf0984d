// Package events turns monitor ticks into price events and fans them out to sinks.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/StrathCole/oracle-monitor/pkg/server/aggregator"
	"github.com/StrathCole/oracle-monitor/pkg/server/history"
)

// PriceEvent is the published view of one tick.
type PriceEvent struct {
	ID                string             `json:"id"`
	Asset             string             `json:"asset"`
	Price             float64            `json:"price"`
	Mean              float64            `json:"mean"`
	Min               float64            `json:"min"`
	Max               float64            `json:"max"`
	PerSource         map[string]float64 `json:"per_source"`
	Failures          map[string]string  `json:"failures,omitempty"`
	SuccessfulSources int                `json:"successful_sources"`
	TotalSources      int                `json:"total_sources"`
	Confidence        int                `json:"confidence"`
	SpreadPercent     float64            `json:"spread_percent"`
	IsValid           bool               `json:"is_valid"`
	DeviationPercent  float64            `json:"deviation_percent"`
	RecentAverage     float64            `json:"recent_average"`
	Reason            string             `json:"reason"`
	PreviousPrice     float64            `json:"previous_price,omitempty"`
	ChangePercent     float64            `json:"change_percent"`
	LowTrust          bool               `json:"low_trust"`
	Timestamp         time.Time          `json:"timestamp"`
}

// Anomalous reports whether the history validator rejected the price.
func (e PriceEvent) Anomalous() bool {
	return !e.IsValid
}

// NewPriceEvent builds an event from a tick. previous is the last published price,
// zero when there is none.
func NewPriceEvent(asset string, report *aggregator.Report, confidence aggregator.Confidence,
	validation history.Result, previous float64, minSources int,
) PriceEvent {
	event := PriceEvent{
		ID:                uuid.NewString(),
		Asset:             asset,
		Price:             report.Median,
		Mean:              report.Mean,
		Min:               report.Min,
		Max:               report.Max,
		PerSource:         report.PerSource,
		Failures:          report.Failures,
		SuccessfulSources: report.SuccessfulSources,
		TotalSources:      report.TotalSources,
		Confidence:        confidence.Confidence,
		SpreadPercent:     confidence.SpreadPercent,
		IsValid:           validation.IsValid,
		DeviationPercent:  validation.DeviationPercent,
		RecentAverage:     validation.RecentAverage,
		Reason:            validation.Reason,
		PreviousPrice:     previous,
		LowTrust:          report.LowTrust(minSources),
		Timestamp:         report.Timestamp,
	}
	if previous > 0 {
		event.ChangePercent = (report.Median - previous) / previous * 100
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return event
}

// Sink receives published events.
type Sink interface {
	Name() string
	Publish(ctx context.Context, event PriceEvent) error
}

// SinkFunc adapts a function into a Sink.
type SinkFunc struct {
	SinkName string
	Fn       func(ctx context.Context, event PriceEvent) error
}

// Name returns the sink name.
func (f SinkFunc) Name() string { return f.SinkName }

// Publish calls Fn.
func (f SinkFunc) Publish(ctx context.Context, event PriceEvent) error { return f.Fn(ctx, event) }
