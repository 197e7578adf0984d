package aggregator

import (
	"time"
)

// PriceSample is one valid price observed in a round.
type PriceSample struct {
	Source    string    `json:"source"`
	Price     float64   `json:"price"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Report is the outcome of one aggregation round.
// It is only produced when at least one source succeeded, so Min <= Median <= Max
// and Min <= Mean <= Max always hold.
type Report struct {
	Asset             string             `json:"asset,omitempty"`
	Median            float64            `json:"median"`
	Mean              float64            `json:"mean"`
	Min               float64            `json:"min"`
	Max               float64            `json:"max"`
	PerSource         map[string]float64 `json:"per_source"`
	Failures          map[string]string  `json:"failures,omitempty"`
	SuccessfulSources int                `json:"successful_sources"`
	TotalSources      int                `json:"total_sources"`
	Timestamp         time.Time          `json:"timestamp"`
}

// LowTrust reports whether fewer than minSources sources answered. A single source is a
// manipulation risk, so callers usually pass 2.
func (r *Report) LowTrust(minSources int) bool {
	return r.SuccessfulSources < minSources
}

// Samples returns the per-source prices as a slice ordered by source name.
func (r *Report) Samples() []PriceSample {
	names := sortedKeys(r.PerSource)
	samples := make([]PriceSample, 0, len(names))
	for _, name := range names {
		samples = append(samples, PriceSample{Source: name, Price: r.PerSource[name], FetchedAt: r.Timestamp})
	}
	return samples
}
