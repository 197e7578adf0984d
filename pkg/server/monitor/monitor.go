package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/StrathCole/oracle-monitor/pkg/logging"
	"github.com/StrathCole/oracle-monitor/pkg/metrics"
	"github.com/StrathCole/oracle-monitor/pkg/server/aggregator"
	"github.com/StrathCole/oracle-monitor/pkg/server/history"
)

// State is the lifecycle state of a Monitor.
type State int

const (
	// StateStopped means no schedule is active.
	StateStopped State = iota
	// StateRunning means a schedule is active.
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "stopped"
}

// RoundAggregator runs one aggregation round.
type RoundAggregator interface {
	Aggregate(ctx context.Context) (*aggregator.Report, error)
}

const defaultMinSources = 2

// Monitor runs ticks on a fixed interval. Ticks never overlap: a schedule is one
// goroutine and the ticker drops ticks while a round is in flight.
type Monitor struct {
	agg        RoundAggregator
	validator  *history.Validator
	logger     *logging.Logger
	asset      string
	minSources int
	onError    ErrorHandler

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// tickMu serializes validator access between an old schedule's late round
	// and a new schedule after Stop/Start.
	tickMu     sync.Mutex
	lastReport atomic.Pointer[aggregator.Report]
}

// New creates a stopped Monitor.
func New(agg RoundAggregator, validator *history.Validator, logger *logging.Logger, opts ...Option) (*Monitor, error) {
	if agg == nil {
		return nil, fmt.Errorf("%w", ErrNilAggregator)
	}
	if validator == nil {
		return nil, fmt.Errorf("%w", ErrNilValidator)
	}
	if logger == nil {
		logger = logging.NewNoopLogger()
	}

	m := &Monitor{
		agg:        agg,
		validator:  validator,
		minSources: defaultMinSources,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logger.With("component", "monitor", "asset", m.asset)

	return m, nil
}

// Start moves the monitor to Running, runs a tick immediately and then one every
// interval. Starting a running monitor is a no-op.
func (m *Monitor) Start(interval time.Duration, cb Callback) error {
	if interval <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, interval)
	}
	if cb == nil {
		return fmt.Errorf("%w", ErrNilCallback)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateRunning {
		m.logger.Debug("Start ignored, monitor already running")
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.state = StateRunning

	m.wg.Add(1)
	go m.run(ctx, interval, cb)

	m.logger.Info("Monitor started", "interval", interval)
	return nil
}

// Stop moves the monitor to Stopped and cancels the schedule. A round already in
// flight is left to finish and its result is discarded. Stopping a stopped monitor
// is a no-op.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateStopped {
		return
	}

	m.cancel()
	m.cancel = nil
	m.state = StateStopped

	m.logger.Info("Monitor stopped")
}

// Wait blocks until every schedule goroutine has exited, including rounds that
// were in flight at Stop, or until ctx is done.
func (m *Monitor) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the current lifecycle state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastReport returns the report of the last successful tick, or nil.
func (m *Monitor) LastReport() *aggregator.Report {
	return m.lastReport.Load()
}

// Asset returns the asset label.
func (m *Monitor) Asset() string {
	return m.asset
}

func (m *Monitor) run(ctx context.Context, interval time.Duration, cb Callback) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.tick(ctx, cb)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx, cb)
		}
	}
}

// tick runs one pipeline pass for a schedule. ctx is the schedule context: it
// gates the result but is never passed to the sources. The callback runs under
// tickMu, so a schedule started after Stop cannot run callbacks alongside a
// callback of the old one.
func (m *Monitor) tick(ctx context.Context, cb Callback) {
	if ctx.Err() != nil {
		return
	}

	report, err := m.agg.Aggregate(context.WithoutCancel(ctx))

	m.tickMu.Lock()
	defer m.tickMu.Unlock()

	confidence, validation, err := m.finishRound(ctx, report, err)
	if err != nil {
		if errors.Is(err, ErrRoundDiscarded) {
			metrics.RecordTick(m.asset, "discarded")
			m.logger.Debug("Discarded round finished after stop", "error", err)
			return
		}
		metrics.RecordTick(m.asset, "failure")
		m.logger.Warn("Tick failed", "error", err)
		m.handleError(err)
		return
	}

	metrics.RecordTick(m.asset, "success")
	m.invoke(cb, report, confidence, validation)
}

// RunOnce runs aggregate, score and validate once. The round itself ignores ctx
// cancellation; if ctx is cancelled by the time the round returns, the result is
// discarded with ErrRoundDiscarded and history is left untouched. It must not be
// called from a Callback.
func (m *Monitor) RunOnce(ctx context.Context) (*aggregator.Report, aggregator.Confidence, history.Result, error) {
	report, err := m.agg.Aggregate(context.WithoutCancel(ctx))

	m.tickMu.Lock()
	defer m.tickMu.Unlock()

	confidence, validation, err := m.finishRound(ctx, report, err)
	if err != nil {
		return nil, aggregator.Confidence{}, history.Result{}, err
	}
	return report, confidence, validation, nil
}

// finishRound scores and validates a finished round. Callers hold tickMu.
func (m *Monitor) finishRound(ctx context.Context, report *aggregator.Report, err error) (aggregator.Confidence, history.Result, error) {
	if ctx.Err() != nil {
		return aggregator.Confidence{}, history.Result{}, fmt.Errorf("%w: %v", ErrRoundDiscarded, ctx.Err())
	}
	if err != nil {
		return aggregator.Confidence{}, history.Result{}, err
	}

	confidence := aggregator.Score(report, report.TotalSources)
	validation := m.validator.Validate(report.Median)
	m.lastReport.Store(report)

	metrics.RecordConsensus(m.asset, report.Median, confidence.Confidence, confidence.SpreadPercent,
		validation.DeviationPercent, validation.IsValid)

	if report.LowTrust(m.minSources) {
		m.logger.Warn("Low trust round",
			"successful", report.SuccessfulSources,
			"total", report.TotalSources,
			"min_sources", m.minSources)
	}
	if !validation.IsValid {
		m.logger.Warn("Price anomaly detected",
			"price", validation.CurrentPrice,
			"recent_average", validation.RecentAverage,
			"deviation_percent", validation.DeviationPercent,
			"reason", validation.Reason)
	}

	m.logger.Debug("Tick complete",
		"median", report.Median,
		"confidence", confidence.Confidence,
		"valid", validation.IsValid)

	return confidence, validation, nil
}

func (m *Monitor) invoke(cb Callback, report *aggregator.Report, confidence aggregator.Confidence, validation history.Result) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Callback panicked", "panic", r)
			m.handleError(fmt.Errorf("%w: %v", ErrCallbackPanic, r))
		}
	}()
	cb(report, confidence, validation)
}

func (m *Monitor) handleError(err error) {
	if m.onError == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Error handler panicked", "panic", r)
		}
	}()
	m.onError(err)
}
