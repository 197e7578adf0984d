package history

import (
	"fmt"
	"math"
)

// Validation reasons.
const (
	ReasonInsufficientHistory = "insufficient history"
	ReasonWithinThreshold     = "within threshold"
	ReasonExceedsThreshold    = "deviation exceeds threshold"
	ReasonInvalidPrice        = "invalid price"
)

// Config configures a Validator.
type Config struct {
	Capacity         int     // values kept, FIFO
	WindowSize       int     // previous values averaged for comparison
	MinHistory       int     // values required before deviation is checked
	ThresholdPercent float64 // deviation at or above which a sample is anomalous
}

// DefaultConfig returns the stock validator configuration.
func DefaultConfig() Config {
	return Config{
		Capacity:         100,
		WindowSize:       10,
		MinHistory:       5,
		ThresholdPercent: 10,
	}
}

// Result is the outcome of validating one price.
type Result struct {
	CurrentPrice     float64 `json:"current_price"`
	IsValid          bool    `json:"is_valid"`
	DeviationPercent float64 `json:"deviation_percent"`
	RecentAverage    float64 `json:"recent_average"`
	Reason           string  `json:"reason"`
}

// Validator compares each new aggregated price with the average of the ones before it.
//
// The comparison window excludes the price being validated, so a jump is measured
// against history only. A run of 100s followed by 200 yields a deviation of 100%.
//
// A Validator owns its buffer and is not safe for concurrent use; one Monitor drives it.
type Validator struct {
	cfg     Config
	history *Buffer
}

// NewValidator creates a validator with an empty history.
func NewValidator(cfg Config) (*Validator, error) {
	switch {
	case cfg.Capacity <= 0:
		return nil, fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalidConfig, cfg.Capacity)
	case cfg.WindowSize <= 0:
		return nil, fmt.Errorf("%w: window size must be positive, got %d", ErrInvalidConfig, cfg.WindowSize)
	case cfg.MinHistory <= 0:
		return nil, fmt.Errorf("%w: min history must be positive, got %d", ErrInvalidConfig, cfg.MinHistory)
	case cfg.MinHistory > cfg.Capacity:
		return nil, fmt.Errorf("%w: min history %d exceeds capacity %d", ErrInvalidConfig, cfg.MinHistory, cfg.Capacity)
	case !(cfg.ThresholdPercent > 0) || math.IsInf(cfg.ThresholdPercent, 0):
		return nil, fmt.Errorf("%w: threshold must be positive, got %v", ErrInvalidConfig, cfg.ThresholdPercent)
	}

	return &Validator{cfg: cfg, history: NewBuffer(cfg.Capacity)}, nil
}

// Config returns the validator configuration.
func (v *Validator) Config() Config {
	return v.cfg
}

// Len returns the number of prices in history.
func (v *Validator) Len() int {
	return v.history.Len()
}

// History returns a copy of the stored prices, oldest first.
func (v *Validator) History() []float64 {
	return v.history.Values()
}

// Validate records price in history and reports whether it deviates from the
// recent average by less than the threshold. Until MinHistory prices are held
// every price is accepted. Non-positive or non-finite prices are rejected and
// not recorded.
func (v *Validator) Validate(price float64) Result {
	if !(price > 0) || math.IsInf(price, 0) {
		return Result{CurrentPrice: price, IsValid: false, Reason: ReasonInvalidPrice}
	}

	v.history.Push(price)

	n := v.history.Len()
	if n < v.cfg.MinHistory || n < 2 {
		return Result{CurrentPrice: price, IsValid: true, Reason: ReasonInsufficientHistory}
	}

	// newest value is the one just pushed
	window := v.history.Last(min(v.cfg.WindowSize, n-1) + 1)
	window = window[:len(window)-1]

	var sum float64
	for _, p := range window {
		sum += p
	}
	avg := sum / float64(len(window))
	deviation := math.Abs(price-avg) / avg * 100

	result := Result{
		CurrentPrice:     price,
		IsValid:          deviation < v.cfg.ThresholdPercent,
		DeviationPercent: deviation,
		RecentAverage:    avg,
		Reason:           ReasonWithinThreshold,
	}
	if !result.IsValid {
		result.Reason = ReasonExceedsThreshold
	}
	return result
}
