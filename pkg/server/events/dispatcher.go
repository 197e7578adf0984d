package events

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/StrathCole/oracle-monitor/pkg/logging"
	"github.com/StrathCole/oracle-monitor/pkg/metrics"
	"github.com/StrathCole/oracle-monitor/pkg/server/aggregator"
	"github.com/StrathCole/oracle-monitor/pkg/server/history"
)

const defaultPublishTimeout = 5 * time.Second

// ErrPublishTimeout is returned for a sink that did not finish within PublishTimeout.
var ErrPublishTimeout = errors.New("sink publish timed out")

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	Asset string
	// MinChangePercent suppresses events whose price moved less than this since
	// the last published event. Anomalies are always published.
	MinChangePercent float64
	// MinSources marks events with fewer successful sources as low trust.
	MinSources int
	// PublishTimeout bounds each sink call.
	PublishTimeout time.Duration
}

// Dispatcher converts monitor ticks for one asset into events and publishes them.
type Dispatcher struct {
	cfg    DispatcherConfig
	sinks  []Sink
	logger *logging.Logger

	mu   sync.Mutex
	last *PriceEvent
}

// NewDispatcher creates a dispatcher publishing to sinks.
func NewDispatcher(cfg DispatcherConfig, logger *logging.Logger, sinks ...Sink) *Dispatcher {
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = defaultPublishTimeout
	}
	if cfg.MinSources <= 0 {
		cfg.MinSources = 2
	}
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &Dispatcher{
		cfg:    cfg,
		sinks:  sinks,
		logger: logger.With("component", "dispatcher", "asset", cfg.Asset),
	}
}

// AddSink registers another sink. It must be called before the monitor starts.
func (d *Dispatcher) AddSink(sink Sink) {
	d.sinks = append(d.sinks, sink)
}

// Handle is a monitor callback.
func (d *Dispatcher) Handle(report *aggregator.Report, confidence aggregator.Confidence, validation history.Result) {
	d.mu.Lock()
	var previous float64
	if d.last != nil {
		previous = d.last.Price
	}
	event := NewPriceEvent(d.cfg.Asset, report, confidence, validation, previous, d.cfg.MinSources)

	if !d.shouldEmit(event) {
		d.mu.Unlock()
		d.logger.Debug("Change below threshold, event suppressed",
			"price", event.Price,
			"change_percent", event.ChangePercent)
		return
	}
	d.last = &event
	d.mu.Unlock()

	if err := d.Publish(context.Background(), event); err != nil {
		d.logger.Warn("Event not delivered to every sink", "event_id", event.ID, "error", err)
	}
}

// Last returns the last published event, if any.
func (d *Dispatcher) Last() (PriceEvent, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.last == nil {
		return PriceEvent{}, false
	}
	return *d.last, true
}

func (d *Dispatcher) shouldEmit(event PriceEvent) bool {
	if d.last == nil || event.Anomalous() {
		return true
	}
	return math.Abs(event.ChangePercent) >= d.cfg.MinChangePercent
}

// Publish delivers event to every sink concurrently, each under PublishTimeout.
// A sink that ignores its context is abandoned at the deadline. Sink failures are
// logged and counted; the returned error joins them.
func (d *Dispatcher) Publish(ctx context.Context, event PriceEvent) error {
	errs := make([]error, len(d.sinks))

	var g errgroup.Group
	for i, sink := range d.sinks {
		i, sink := i, sink
		g.Go(func() error {
			err := d.publishWithTimeout(ctx, sink, event)
			metrics.RecordEventPublish(sink.Name(), err == nil)
			if err != nil {
				d.logger.Error("Sink publish failed", "sink", sink.Name(), "event_id", event.ID, "error", err)
				errs[i] = fmt.Errorf("%s: %w", sink.Name(), err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

// publishWithTimeout runs one sink call. The result channel is buffered so an
// abandoned call exits whenever the sink returns.
func (d *Dispatcher) publishWithTimeout(ctx context.Context, sink Sink, event PriceEvent) error {
	sinkCtx, cancel := context.WithTimeout(ctx, d.cfg.PublishTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- publishSafe(sinkCtx, sink, event)
	}()

	select {
	case err := <-done:
		return err
	case <-sinkCtx.Done():
		if errors.Is(sinkCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s: %w", ErrPublishTimeout, d.cfg.PublishTimeout, context.DeadlineExceeded)
		}
		return sinkCtx.Err()
	}
}

func publishSafe(ctx context.Context, sink Sink, event PriceEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panicked: %v", r)
		}
	}()
	return sink.Publish(ctx, event)
}
