// Package store persists published price events.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/StrathCole/oracle-monitor/pkg/server/events"
)

// Recorder is a sink that also serves the event history.
type Recorder interface {
	events.Sink
	Recent(ctx context.Context, asset string, limit int) ([]events.PriceEvent, error)
	Close() error
}

// Open returns a recorder for the given driver ("sqlite" or "postgres").
func Open(ctx context.Context, driver, dsn string) (Recorder, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, ErrDSNRequired
	}
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		s, err := OpenSQLite(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres", "postgresql", "pgx":
		s, err := OpenPostgres(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}
}

// row is the denormalized form shared by both backends. The full event is kept
// as JSON so per-source prices survive a round trip.
type row struct {
	ID         string
	Asset      string
	Price      float64
	Confidence int
	IsValid    bool
	Deviation  float64
	Reason     string
	Payload    []byte
	UnixMillis int64
}

func toRow(event events.PriceEvent) (row, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return row{}, fmt.Errorf("encode event: %w", err)
	}
	return row{
		ID:         event.ID,
		Asset:      event.Asset,
		Price:      event.Price,
		Confidence: event.Confidence,
		IsValid:    event.IsValid,
		Deviation:  event.DeviationPercent,
		Reason:     event.Reason,
		Payload:    payload,
		UnixMillis: event.Timestamp.UnixMilli(),
	}, nil
}

func fromPayload(payload []byte) (events.PriceEvent, error) {
	var event events.PriceEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return events.PriceEvent{}, fmt.Errorf("decode event: %w", err)
	}
	return event, nil
}
