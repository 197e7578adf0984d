package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StrathCole/oracle-monitor/pkg/server/aggregator"
	"github.com/StrathCole/oracle-monitor/pkg/server/history"
	"github.com/StrathCole/oracle-monitor/pkg/server/sources"
)

// fakeAggregator returns reports from fn and tracks overlap.
type fakeAggregator struct {
	delay    time.Duration
	fn       func(call int) (*aggregator.Report, error)
	calls    atomic.Int32
	inflight atomic.Int32
	overlap  atomic.Bool
}

func (f *fakeAggregator) Aggregate(ctx context.Context) (*aggregator.Report, error) {
	if f.inflight.Add(1) > 1 {
		f.overlap.Store(true)
	}
	defer f.inflight.Add(-1)

	call := int(f.calls.Add(1))
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.fn != nil {
		return f.fn(call)
	}
	return report(100), nil
}

func report(price float64) *aggregator.Report {
	return &aggregator.Report{
		Median: price, Mean: price, Min: price, Max: price,
		PerSource:         map[string]float64{"a": price, "b": price},
		SuccessfulSources: 2,
		TotalSources:      2,
		Timestamp:         time.Now(),
	}
}

type recorder struct {
	mu          sync.Mutex
	reports     []*aggregator.Report
	confidences []aggregator.Confidence
	results     []history.Result
}

func (r *recorder) callback(rep *aggregator.Report, c aggregator.Confidence, v history.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, rep)
	r.confidences = append(r.confidences, c)
	r.results = append(r.results, v)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reports)
}

func newMonitor(t *testing.T, agg RoundAggregator, opts ...Option) *Monitor {
	t.Helper()
	v, err := history.NewValidator(history.DefaultConfig())
	require.NoError(t, err)
	m, err := New(agg, v, nil, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		m.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = m.Wait(ctx)
	})
	return m
}

func TestMonitor_TicksImmediately(t *testing.T) {
	rec := &recorder{}
	m := newMonitor(t, &fakeAggregator{})

	require.NoError(t, m.Start(time.Hour, rec.callback))
	assert.Equal(t, StateRunning, m.State())

	assert.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, 100, rec.confidences[0].Confidence)
	assert.Equal(t, history.ReasonInsufficientHistory, rec.results[0].Reason)
	assert.Same(t, rec.reports[0], m.LastReport())
}

func TestMonitor_StopBeforeTickFires(t *testing.T) {
	rec := &recorder{}
	agg := &fakeAggregator{delay: 100 * time.Millisecond}
	m := newMonitor(t, agg)

	require.NoError(t, m.Start(20*time.Millisecond, rec.callback))
	m.Stop()
	assert.Equal(t, StateStopped, m.State())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Wait(ctx))

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, rec.count())
	assert.Nil(t, m.LastReport())
	assert.LessOrEqual(t, agg.calls.Load(), int32(1))
}

func TestMonitor_StopThenStartResumes(t *testing.T) {
	rec := &recorder{}
	m := newMonitor(t, &fakeAggregator{})

	require.NoError(t, m.Start(10*time.Millisecond, rec.callback))
	assert.Eventually(t, func() bool { return rec.count() >= 2 }, time.Second, 5*time.Millisecond)

	m.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Wait(ctx))

	stopped := rec.count()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, stopped, rec.count())

	require.NoError(t, m.Start(10*time.Millisecond, rec.callback))
	assert.Eventually(t, func() bool { return rec.count() >= stopped+2 }, time.Second, 5*time.Millisecond)
}

func TestMonitor_DoubleStartKeepsOneSchedule(t *testing.T) {
	rec := &recorder{}
	agg := &fakeAggregator{}
	m := newMonitor(t, agg)

	require.NoError(t, m.Start(50*time.Millisecond, rec.callback))
	require.NoError(t, m.Start(50*time.Millisecond, rec.callback))
	require.NoError(t, m.Start(time.Millisecond, rec.callback))

	time.Sleep(230 * time.Millisecond)
	m.Stop()

	// one immediate tick plus at most four interval ticks
	assert.LessOrEqual(t, agg.calls.Load(), int32(6))
	assert.GreaterOrEqual(t, agg.calls.Load(), int32(3))
	assert.False(t, agg.overlap.Load())
}

func TestMonitor_StopWhileStoppedIsNoop(t *testing.T) {
	m := newMonitor(t, &fakeAggregator{})
	assert.NotPanics(t, func() {
		m.Stop()
		m.Stop()
	})
	assert.Equal(t, StateStopped, m.State())
}

func TestMonitor_FailedTickDoesNotStopSchedule(t *testing.T) {
	rec := &recorder{}
	var errs []error
	var errMu sync.Mutex

	agg := &fakeAggregator{fn: func(call int) (*aggregator.Report, error) {
		if call <= 2 {
			return nil, fmt.Errorf("%w: 2/2 sources failed", aggregator.ErrAllSourcesFailed)
		}
		return report(100), nil
	}}
	m := newMonitor(t, agg, WithErrorHandler(func(err error) {
		errMu.Lock()
		defer errMu.Unlock()
		errs = append(errs, err)
	}))

	require.NoError(t, m.Start(10*time.Millisecond, rec.callback))
	assert.Eventually(t, func() bool { return rec.count() >= 1 }, time.Second, 5*time.Millisecond)

	errMu.Lock()
	defer errMu.Unlock()
	require.Len(t, errs, 2)
	assert.ErrorIs(t, errs[0], aggregator.ErrAllSourcesFailed)
	assert.Equal(t, StateRunning, m.State())
}

func TestMonitor_CallbackPanicRecovered(t *testing.T) {
	var calls atomic.Int32
	var panics atomic.Int32

	m := newMonitor(t, &fakeAggregator{}, WithErrorHandler(func(err error) {
		if errors.Is(err, ErrCallbackPanic) {
			panics.Add(1)
		}
	}))

	require.NoError(t, m.Start(10*time.Millisecond, func(*aggregator.Report, aggregator.Confidence, history.Result) {
		calls.Add(1)
		panic("sink exploded")
	}))

	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, panics.Load(), int32(2))
}

func TestMonitor_SlowRoundsDoNotOverlap(t *testing.T) {
	rec := &recorder{}
	agg := &fakeAggregator{delay: 30 * time.Millisecond}
	m := newMonitor(t, agg)

	require.NoError(t, m.Start(5*time.Millisecond, rec.callback))
	time.Sleep(200 * time.Millisecond)
	m.Stop()

	assert.False(t, agg.overlap.Load())
	assert.LessOrEqual(t, agg.calls.Load(), int32(10))
}

func TestMonitor_InFlightRoundNotCancelled(t *testing.T) {
	var sawCancel atomic.Bool
	src := sources.FetchFunc{SourceName: "slow", Fn: func(ctx context.Context) (float64, error) {
		select {
		case <-time.After(80 * time.Millisecond):
			return 10, nil
		case <-ctx.Done():
			sawCancel.Store(true)
			return 0, ctx.Err()
		}
	}}
	agg, err := aggregator.New("T/USD", []sources.Source{src}, time.Second, nil)
	require.NoError(t, err)

	rec := &recorder{}
	m := newMonitor(t, agg)
	require.NoError(t, m.Start(time.Hour, rec.callback))
	time.Sleep(10 * time.Millisecond)
	m.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Wait(ctx))

	assert.False(t, sawCancel.Load())
	assert.Zero(t, rec.count())
}

func TestMonitor_RestartDoesNotOverlapCallbacks(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	m := newMonitor(t, &fakeAggregator{})

	require.NoError(t, m.Start(time.Hour, func(*aggregator.Report, aggregator.Confidence, history.Result) {
		once.Do(func() { close(entered) })
		<-release
	}))
	<-entered

	m.Stop()
	var second atomic.Int32
	require.NoError(t, m.Start(time.Hour, func(*aggregator.Report, aggregator.Confidence, history.Result) {
		second.Add(1)
	}))

	assert.Never(t, func() bool { return second.Load() > 0 }, 60*time.Millisecond, 5*time.Millisecond)

	close(release)
	assert.Eventually(t, func() bool { return second.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestMonitor_ValidatesThroughHistory(t *testing.T) {
	prices := []float64{100, 100, 100, 100, 100, 200}
	agg := &fakeAggregator{fn: func(call int) (*aggregator.Report, error) {
		if call > len(prices) {
			return report(100), nil
		}
		return report(prices[call-1]), nil
	}}

	rec := &recorder{}
	m := newMonitor(t, agg)
	require.NoError(t, m.Start(5*time.Millisecond, rec.callback))
	assert.Eventually(t, func() bool { return rec.count() >= len(prices) }, 2*time.Second, 5*time.Millisecond)
	m.Stop()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	for i := 0; i < 4; i++ {
		assert.Equal(t, history.ReasonInsufficientHistory, rec.results[i].Reason)
	}
	assert.True(t, rec.results[4].IsValid)
	assert.False(t, rec.results[5].IsValid)
	assert.InDelta(t, 100, rec.results[5].DeviationPercent, 1e-9)
}

func TestMonitor_RunOnce(t *testing.T) {
	m := newMonitor(t, &fakeAggregator{}, WithAsset("BTC/USD"), WithMinSources(3))
	assert.Equal(t, "BTC/USD", m.Asset())

	rep, conf, res, err := m.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 100.0, rep.Median)
	assert.Equal(t, 100, conf.Confidence)
	assert.True(t, res.IsValid)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, _, err = m.RunOnce(ctx)
	assert.ErrorIs(t, err, ErrRoundDiscarded)
}

func TestMonitor_InvalidArguments(t *testing.T) {
	m := newMonitor(t, &fakeAggregator{})

	assert.ErrorIs(t, m.Start(0, func(*aggregator.Report, aggregator.Confidence, history.Result) {}), ErrInvalidInterval)
	assert.ErrorIs(t, m.Start(-time.Second, func(*aggregator.Report, aggregator.Confidence, history.Result) {}), ErrInvalidInterval)
	assert.ErrorIs(t, m.Start(time.Second, nil), ErrNilCallback)
	assert.Equal(t, StateStopped, m.State())

	v, err := history.NewValidator(history.DefaultConfig())
	require.NoError(t, err)
	_, err = New(nil, v, nil)
	assert.ErrorIs(t, err, ErrNilAggregator)
	_, err = New(&fakeAggregator{}, nil, nil)
	assert.ErrorIs(t, err, ErrNilValidator)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "stopped", StateStopped.String())
}
