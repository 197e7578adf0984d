package aggregator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/StrathCole/oracle-monitor/pkg/logging"
	"github.com/StrathCole/oracle-monitor/pkg/metrics"
	"github.com/StrathCole/oracle-monitor/pkg/server/sources"
)

// DefaultTimeout is the per-source fetch budget.
const DefaultTimeout = 5 * time.Second

// Aggregator queries a fixed set of sources for one asset.
type Aggregator struct {
	asset   string
	sources []sources.Source
	timeout time.Duration
	logger  *logging.Logger
}

// New creates an aggregator. The source list and timeout are checked here so a
// misconfiguration fails at startup rather than on the first round.
func New(asset string, srcs []sources.Source, timeout time.Duration, logger *logging.Logger) (*Aggregator, error) {
	if len(srcs) == 0 {
		return nil, fmt.Errorf("%w", ErrNoSources)
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTimeout, timeout)
	}

	seen := make(map[string]struct{}, len(srcs))
	for _, src := range srcs {
		if src == nil {
			return nil, fmt.Errorf("%w: nil source", ErrNoSources)
		}
		if _, dup := seen[src.Name()]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSource, src.Name())
		}
		seen[src.Name()] = struct{}{}
	}

	if logger == nil {
		logger = logging.NewNoopLogger()
	}

	return &Aggregator{
		asset:   asset,
		sources: append([]sources.Source(nil), srcs...),
		timeout: timeout,
		logger:  logger.With("component", "aggregator", "asset", asset),
	}, nil
}

// Aggregate runs a one-off round over srcs.
func Aggregate(ctx context.Context, srcs []sources.Source, timeout time.Duration) (*Report, error) {
	agg, err := New("", srcs, timeout, nil)
	if err != nil {
		return nil, err
	}
	return agg.Aggregate(ctx)
}

// Asset returns the asset symbol this aggregator prices.
func (a *Aggregator) Asset() string {
	return a.asset
}

// SourceNames returns the configured source names in order.
func (a *Aggregator) SourceNames() []string {
	names := make([]string, len(a.sources))
	for i, src := range a.sources {
		names[i] = src.Name()
	}
	return names
}

// Timeout returns the per-source fetch budget.
func (a *Aggregator) Timeout() time.Duration {
	return a.timeout
}

type outcome struct {
	price float64
	err   error
}

// Aggregate fetches every source concurrently, each under its own timeout, waits
// for all of them and merges the valid prices. Failing sources are recorded in
// Report.Failures; the round only fails when none succeeded.
func (a *Aggregator) Aggregate(ctx context.Context) (*Report, error) {
	start := time.Now()

	outcomes := make([]outcome, len(a.sources))
	var g errgroup.Group
	for i, src := range a.sources {
		i, src := i, src
		g.Go(func() error {
			fetchStart := time.Now()
			price, err := fetchWithTimeout(ctx, src, a.timeout)
			metrics.RecordSourceFetch(src.Name(), err == nil, time.Since(fetchStart))
			outcomes[i] = outcome{price: price, err: err}
			return nil
		})
	}
	_ = g.Wait()

	report := &Report{
		Asset:        a.asset,
		PerSource:    make(map[string]float64, len(a.sources)),
		TotalSources: len(a.sources),
	}
	prices := make([]float64, 0, len(a.sources))
	for i, src := range a.sources {
		o := outcomes[i]
		if o.err != nil {
			if report.Failures == nil {
				report.Failures = make(map[string]string)
			}
			report.Failures[src.Name()] = o.err.Error()
			a.logger.Debug("Source excluded from round", "source", src.Name(), "error", o.err)
			continue
		}
		report.PerSource[src.Name()] = o.price
		prices = append(prices, o.price)
	}

	report.SuccessfulSources = len(prices)
	if len(prices) == 0 {
		metrics.RecordQuorumFailure(a.asset)
		return nil, fmt.Errorf("%w: %d/%d sources failed: %s",
			ErrAllSourcesFailed, len(a.sources), len(a.sources), summarize(report.Failures))
	}

	report.Median = median(prices)
	report.Min, report.Max = minMax(prices)
	report.Mean = clamp(mean(prices), report.Min, report.Max)
	report.Timestamp = time.Now()

	metrics.RecordAggregation(a.asset, report.SuccessfulSources, time.Since(start))
	a.logger.Debug("Aggregation round complete",
		"median", report.Median,
		"successful", report.SuccessfulSources,
		"total", report.TotalSources,
		"duration", time.Since(start))

	return report, nil
}

// fetchWithTimeout calls src.Fetch under its own deadline. The result channel is
// buffered so a source that ignores ctx is abandoned at the deadline and its
// goroutine exits whenever it returns.
func fetchWithTimeout(ctx context.Context, src sources.Source, timeout time.Duration) (float64, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("%w: %v", ErrSourcePanic, r)}
			}
		}()
		price, err := src.Fetch(callCtx)
		done <- outcome{price: price, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			return 0, o.err
		}
		if !validPrice(o.price) {
			return 0, fmt.Errorf("%w: %v", ErrInvalidPrice, o.price)
		}
		return o.price, nil
	case <-callCtx.Done():
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return 0, fmt.Errorf("%w after %s", ErrSourceTimeout, timeout)
		}
		return 0, callCtx.Err()
	}
}

func summarize(failures map[string]string) string {
	parts := make([]string, 0, len(failures))
	for _, name := range sortedKeys(failures) {
		parts = append(parts, name+": "+failures[name])
	}
	return strings.Join(parts, "; ")
}
