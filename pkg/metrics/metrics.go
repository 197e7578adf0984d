// Package metrics provides Prometheus metrics for the oracle monitor.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SourceFetchesTotal counts adapter fetches by outcome.
	SourceFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_fetches_total",
			Help: "Total number of price fetches per source and outcome",
		},
		[]string{"source", "status"},
	)

	// SourceFetchDuration is a histogram of adapter fetch latency.
	SourceFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "source_fetch_duration_seconds",
			Help:    "Duration of a single source fetch",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10},
		},
		[]string{"source"},
	)

	// SourceHealth is a gauge of the health status of price sources.
	SourceHealth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "source_health",
			Help: "Health status of price sources (1=healthy, 0=unhealthy)",
		},
		[]string{"source", "type"},
	)

	// SourceLastUpdate is a gauge of the last successful fetch timestamp.
	SourceLastUpdate = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "source_last_update_timestamp",
			Help: "Unix timestamp of last successful fetch from source",
		},
		[]string{"source"},
	)

	// AggregationDuration is a histogram of full aggregation round duration.
	AggregationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "price_aggregation_duration_seconds",
			Help:    "Duration of price aggregation rounds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"asset"},
	)

	// QuorumFailuresTotal counts rounds where no source produced a valid price.
	QuorumFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quorum_failures_total",
			Help: "Total number of aggregation rounds where all sources failed",
		},
		[]string{"asset"},
	)

	// SuccessfulSources is the number of sources that answered in the last round.
	SuccessfulSources = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aggregation_successful_sources",
			Help: "Number of sources with a valid price in the last round",
		},
		[]string{"asset"},
	)

	// ConsensusPrice is the last aggregated median.
	ConsensusPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "consensus_price",
			Help: "Last aggregated median price",
		},
		[]string{"asset"},
	)

	// Confidence is the last confidence score (0-100).
	Confidence = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "consensus_confidence",
			Help: "Last confidence score (0-100)",
		},
		[]string{"asset"},
	)

	// SpreadPercent is the last min/max spread relative to the median.
	SpreadPercent = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "consensus_spread_percent",
			Help: "Last spread between min and max source price, percent of median",
		},
		[]string{"asset"},
	)

	// DeviationPercent is the last deviation from the rolling average.
	DeviationPercent = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "history_deviation_percent",
			Help: "Deviation of the last median from the rolling average, percent",
		},
		[]string{"asset"},
	)

	// AnomaliesTotal counts samples flagged by the history validator.
	AnomaliesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "price_anomalies_total",
			Help: "Total number of aggregated prices flagged as anomalous",
		},
		[]string{"asset"},
	)

	// MonitorTicksTotal counts monitor ticks by outcome.
	MonitorTicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monitor_ticks_total",
			Help: "Total number of monitor ticks",
		},
		[]string{"asset", "status"},
	)

	// EventsPublishedTotal counts price events delivered to sinks.
	EventsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Total number of price events published per sink",
		},
		[]string{"sink", "status"},
	)

	// HTTPRequestsTotal is a counter of total HTTP requests.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"endpoint", "status"},
	)

	// HTTPRequestDuration is a histogram of HTTP request latencies.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"endpoint"},
	)
)

// Init registers all collectors with the default Prometheus registry.
func Init() {
	prometheus.MustRegister(
		SourceFetchesTotal,
		SourceFetchDuration,
		SourceHealth,
		SourceLastUpdate,
		AggregationDuration,
		QuorumFailuresTotal,
		SuccessfulSources,
		ConsensusPrice,
		Confidence,
		SpreadPercent,
		DeviationPercent,
		AnomaliesTotal,
		MonitorTicksTotal,
		EventsPublishedTotal,
		HTTPRequestsTotal,
		HTTPRequestDuration,
	)
}

// ServeHTTP serves Prometheus metrics on the specified address and path.
func ServeHTTP(addr, path string) error {
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return server.ListenAndServe()
}

// RecordSourceFetch records the outcome and latency of one adapter fetch.
func RecordSourceFetch(source string, ok bool, duration time.Duration) {
	status := "success"
	if !ok {
		status = "failure"
	} else {
		SourceLastUpdate.WithLabelValues(source).SetToCurrentTime()
	}
	SourceFetchesTotal.WithLabelValues(source, status).Inc()
	SourceFetchDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordSourceHealth records the health status of a source.
func RecordSourceHealth(source, sourceType string, healthy bool) {
	val := 0.0
	if healthy {
		val = 1.0
	}
	SourceHealth.WithLabelValues(source, sourceType).Set(val)
}

// RecordAggregation records a finished aggregation round.
func RecordAggregation(asset string, successful int, duration time.Duration) {
	AggregationDuration.WithLabelValues(asset).Observe(duration.Seconds())
	SuccessfulSources.WithLabelValues(asset).Set(float64(successful))
}

// RecordQuorumFailure records a round in which every source failed.
func RecordQuorumFailure(asset string) {
	QuorumFailuresTotal.WithLabelValues(asset).Inc()
	SuccessfulSources.WithLabelValues(asset).Set(0)
}

// RecordConsensus records the scored and validated result of a tick.
func RecordConsensus(asset string, price float64, confidence int, spread, deviation float64, valid bool) {
	ConsensusPrice.WithLabelValues(asset).Set(price)
	Confidence.WithLabelValues(asset).Set(float64(confidence))
	SpreadPercent.WithLabelValues(asset).Set(spread)
	DeviationPercent.WithLabelValues(asset).Set(deviation)
	if !valid {
		AnomaliesTotal.WithLabelValues(asset).Inc()
	}
}

// RecordTick records a monitor tick outcome ("success", "failure", "discarded").
func RecordTick(asset, status string) {
	MonitorTicksTotal.WithLabelValues(asset, status).Inc()
}

// RecordEventPublish records delivery of a price event to a sink.
func RecordEventPublish(sink string, ok bool) {
	status := "success"
	if !ok {
		status = "failure"
	}
	EventsPublishedTotal.WithLabelValues(sink, status).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}
