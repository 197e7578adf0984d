package store

import "errors"

var (
	// ErrUnknownDriver is returned by Open for an unsupported storage driver.
	ErrUnknownDriver = errors.New("unknown storage driver")
	// ErrDSNRequired is returned when the driver needs a DSN and none was given.
	ErrDSNRequired = errors.New("storage dsn is required")
	// ErrInvalidLimit is returned by Recent for a non-positive limit.
	ErrInvalidLimit = errors.New("limit must be positive")
)
