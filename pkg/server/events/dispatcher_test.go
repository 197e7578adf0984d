package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StrathCole/oracle-monitor/pkg/server/aggregator"
	"github.com/StrathCole/oracle-monitor/pkg/server/history"
)

type captureSink struct {
	name   string
	err    error
	mu     sync.Mutex
	events []PriceEvent
}

func (c *captureSink) Name() string { return c.name }

func (c *captureSink) Publish(_ context.Context, e PriceEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return c.err
}

func (c *captureSink) all() []PriceEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]PriceEvent(nil), c.events...)
}

func tick(price float64, successful int, valid bool) (*aggregator.Report, aggregator.Confidence, history.Result) {
	report := &aggregator.Report{
		Median: price, Mean: price, Min: price, Max: price,
		PerSource:         map[string]float64{"a": price},
		SuccessfulSources: successful,
		TotalSources:      3,
		Timestamp:         time.Now(),
	}
	reason := history.ReasonWithinThreshold
	if !valid {
		reason = history.ReasonExceedsThreshold
	}
	return report, aggregator.Score(report, 3), history.Result{CurrentPrice: price, IsValid: valid, Reason: reason}
}

func TestDispatcher_EmitsFirstAndSignificantChanges(t *testing.T) {
	sink := &captureSink{name: "capture"}
	d := NewDispatcher(DispatcherConfig{Asset: "BTC/USD", MinChangePercent: 1}, nil, sink)

	d.Handle(tick(100, 3, true))
	d.Handle(tick(100.5, 3, true)) // +0.5%, suppressed
	d.Handle(tick(100.9, 3, true)) // +0.9% against last published, suppressed
	d.Handle(tick(101.2, 3, true)) // +1.2%, emitted

	events := sink.all()
	require.Len(t, events, 2)

	first := events[0]
	assert.Equal(t, "BTC/USD", first.Asset)
	assert.Equal(t, 100.0, first.Price)
	assert.Zero(t, first.PreviousPrice)
	assert.Zero(t, first.ChangePercent)
	_, err := uuid.Parse(first.ID)
	assert.NoError(t, err)

	second := events[1]
	assert.Equal(t, 100.0, second.PreviousPrice)
	assert.InDelta(t, 1.2, second.ChangePercent, 1e-9)
	assert.NotEqual(t, first.ID, second.ID)

	last, ok := d.Last()
	require.True(t, ok)
	assert.Equal(t, second.ID, last.ID)
}

func TestDispatcher_AlwaysEmitsAnomalies(t *testing.T) {
	sink := &captureSink{name: "capture"}
	d := NewDispatcher(DispatcherConfig{Asset: "ETH/USD", MinChangePercent: 50}, nil, sink)

	d.Handle(tick(100, 3, true))
	d.Handle(tick(101, 3, false))

	events := sink.all()
	require.Len(t, events, 2)
	assert.True(t, events[1].Anomalous())
	assert.Equal(t, history.ReasonExceedsThreshold, events[1].Reason)
}

func TestDispatcher_ZeroThresholdEmitsEveryTick(t *testing.T) {
	sink := &captureSink{name: "capture"}
	d := NewDispatcher(DispatcherConfig{Asset: "X/USD"}, nil, sink)

	for i := 0; i < 3; i++ {
		d.Handle(tick(100, 3, true))
	}
	assert.Len(t, sink.all(), 3)
}

func TestDispatcher_LowTrust(t *testing.T) {
	sink := &captureSink{name: "capture"}
	d := NewDispatcher(DispatcherConfig{Asset: "X/USD", MinSources: 2}, nil, sink)

	d.Handle(tick(100, 1, true))
	events := sink.all()
	require.Len(t, events, 1)
	assert.True(t, events[0].LowTrust)
	assert.Equal(t, 1, events[0].SuccessfulSources)
}

func TestDispatcher_SinkFailureDoesNotBlockOthers(t *testing.T) {
	bad := &captureSink{name: "bad", err: errors.New("connection refused")}
	good := &captureSink{name: "good"}
	panicky := SinkFunc{SinkName: "panicky", Fn: func(context.Context, PriceEvent) error { panic("boom") }}

	d := NewDispatcher(DispatcherConfig{Asset: "X/USD"}, nil, bad, panicky)
	d.AddSink(good)

	report, conf, res := tick(100, 3, true)
	err := d.Publish(context.Background(), NewPriceEvent("X/USD", report, conf, res, 0, 2))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: connection refused")
	assert.Contains(t, err.Error(), "panicky: sink panicked")

	assert.Len(t, good.all(), 1)
	assert.Len(t, bad.all(), 1)
}

func TestDispatcher_PublishTimeout(t *testing.T) {
	stuck := SinkFunc{SinkName: "stuck", Fn: func(ctx context.Context, _ PriceEvent) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	d := NewDispatcher(DispatcherConfig{Asset: "X/USD", PublishTimeout: 20 * time.Millisecond}, nil, stuck)

	start := time.Now()
	report, conf, res := tick(100, 3, true)
	err := d.Publish(context.Background(), NewPriceEvent("X/USD", report, conf, res, 0, 2))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestDispatcher_AbandonsSinkIgnoringContext(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	deaf := SinkFunc{SinkName: "deaf", Fn: func(context.Context, PriceEvent) error {
		<-release
		return nil
	}}
	capture := &captureSink{name: "capture"}
	d := NewDispatcher(DispatcherConfig{Asset: "X/USD", PublishTimeout: 20 * time.Millisecond}, nil, deaf, capture)

	start := time.Now()
	d.Handle(tick(100, 3, true))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Len(t, capture.all(), 1)

	report, conf, res := tick(101, 3, true)
	err := d.Publish(context.Background(), NewPriceEvent("X/USD", report, conf, res, 100, 2))
	assert.ErrorIs(t, err, ErrPublishTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewPriceEvent(t *testing.T) {
	report, conf, res := tick(110, 3, true)
	report.Failures = map[string]string{"d": "timeout"}
	event := NewPriceEvent("SOL/USD", report, conf, res, 100, 2)

	assert.Equal(t, 110.0, event.Price)
	assert.InDelta(t, 10, event.ChangePercent, 1e-9)
	assert.Equal(t, 100, event.Confidence)
	assert.Equal(t, map[string]string{"d": "timeout"}, event.Failures)
	assert.Equal(t, report.Timestamp, event.Timestamp)
	assert.False(t, event.LowTrust)
}
