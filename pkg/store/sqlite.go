package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/StrathCole/oracle-monitor/pkg/server/events"
)

// SQLite stores events in an embedded SQLite database.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database file at path and applies migrations.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, err
		}
	}
	dsn := path
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	dsn += "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLite{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS price_events (
			id TEXT PRIMARY KEY,
			asset TEXT NOT NULL,
			price REAL NOT NULL,
			confidence INTEGER NOT NULL,
			is_valid INTEGER NOT NULL,
			deviation_percent REAL NOT NULL DEFAULT 0,
			reason TEXT NOT NULL DEFAULT '',
			payload TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_price_events_asset_time ON price_events(asset, created_at DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Name implements events.Sink.
func (s *SQLite) Name() string {
	return "sqlite"
}

// Publish implements events.Sink.
func (s *SQLite) Publish(ctx context.Context, event events.PriceEvent) error {
	r, err := toRow(event)
	if err != nil {
		return err
	}
	valid := 0
	if r.IsValid {
		valid = 1
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO price_events
		(id, asset, price, confidence, is_valid, deviation_percent, reason, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		r.ID, r.Asset, r.Price, r.Confidence, valid, r.Deviation, r.Reason, string(r.Payload), r.UnixMillis)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Recent returns up to limit events for asset, newest first.
func (s *SQLite) Recent(ctx context.Context, asset string, limit int) ([]events.PriceEvent, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM price_events WHERE asset = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		asset, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	out := make([]events.PriceEvent, 0, limit)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		event, err := fromPayload([]byte(payload))
		if err != nil {
			return nil, err
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
