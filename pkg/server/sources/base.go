package sources

import (
	"net/http"
	"sync"
	"time"

	"github.com/StrathCole/oracle-monitor/pkg/logging"
	"github.com/StrathCole/oracle-monitor/pkg/metrics"
)

const defaultClientTimeout = 30 * time.Second

// BaseSource provides common functionality for HTTP price sources
type BaseSource struct {
	name       string
	sourcetype SourceType
	pair       string // source-specific symbol, e.g. "BTCUSDT" or "bitcoin"
	apiURL     string
	client     *http.Client
	logger     *logging.Logger

	mu         sync.RWMutex
	healthy    bool
	lastUpdate time.Time
}

// NewBaseSource creates a new base source.
// The HTTP client timeout is only a backstop; the aggregator bounds each fetch through ctx.
func NewBaseSource(name string, sourcetype SourceType, pair, apiURL string, logger *logging.Logger) *BaseSource {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &BaseSource{
		name:       name,
		sourcetype: sourcetype,
		pair:       pair,
		apiURL:     apiURL,
		client:     &http.Client{Timeout: defaultClientTimeout},
		logger:     logger.With("source", name),
	}
}

// Name returns the source name
func (b *BaseSource) Name() string {
	return b.name
}

// Type returns the source type
func (b *BaseSource) Type() SourceType {
	return b.sourcetype
}

// Pair returns the provider-specific symbol
func (b *BaseSource) Pair() string {
	return b.pair
}

// APIURL returns the provider endpoint
func (b *BaseSource) APIURL() string {
	return b.apiURL
}

// Client returns the HTTP client
func (b *BaseSource) Client() *http.Client {
	return b.client
}

// Logger returns the logger
func (b *BaseSource) Logger() *logging.Logger {
	return b.logger
}

// IsHealthy returns whether the last fetch succeeded
func (b *BaseSource) IsHealthy() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.healthy
}

// LastUpdate returns the time of the last successful fetch
func (b *BaseSource) LastUpdate() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastUpdate
}

// Observe records the outcome of a fetch and passes price and err through.
func (b *BaseSource) Observe(price float64, err error) (float64, error) {
	b.mu.Lock()
	b.healthy = err == nil
	if err == nil {
		b.lastUpdate = time.Now()
	}
	b.mu.Unlock()

	metrics.RecordSourceHealth(b.name, string(b.sourcetype), err == nil)
	if err != nil {
		b.logger.Debug("Fetch failed", "pair", b.pair, "error", err)
		return 0, err
	}

	b.logger.Debug("Fetched price", "pair", b.pair, "price", price)
	return price, nil
}
