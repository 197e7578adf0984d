// Package history keeps a rolling window of aggregated prices and flags anomalous samples.
package history

import "errors"

// ErrInvalidConfig indicates a validator configuration with non-positive or inconsistent values.
var ErrInvalidConfig = errors.New("invalid history configuration")
