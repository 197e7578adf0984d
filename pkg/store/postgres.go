package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/StrathCole/oracle-monitor/pkg/server/events"
)

// Postgres stores events in PostgreSQL through a pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects, pings and migrates.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	p := &Postgres{pool: pool}
	if err := p.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS price_events (
			id TEXT PRIMARY KEY,
			asset TEXT NOT NULL,
			price DOUBLE PRECISION NOT NULL,
			confidence INTEGER NOT NULL,
			is_valid BOOLEAN NOT NULL,
			deviation_percent DOUBLE PRECISION NOT NULL DEFAULT 0,
			reason TEXT NOT NULL DEFAULT '',
			payload JSONB NOT NULL,
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_price_events_asset_time ON price_events(asset, created_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Name implements events.Sink.
func (p *Postgres) Name() string {
	return "postgres"
}

// Publish implements events.Sink.
func (p *Postgres) Publish(ctx context.Context, event events.PriceEvent) error {
	r, err := toRow(event)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `INSERT INTO price_events
		(id, asset, price, confidence, is_valid, deviation_percent, reason, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`,
		r.ID, r.Asset, r.Price, r.Confidence, r.IsValid, r.Deviation, r.Reason, string(r.Payload), r.UnixMillis)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Recent returns up to limit events for asset, newest first.
func (p *Postgres) Recent(ctx context.Context, asset string, limit int) ([]events.PriceEvent, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	rows, err := p.pool.Query(ctx,
		`SELECT payload::text FROM price_events WHERE asset = $1 ORDER BY created_at DESC, id DESC LIMIT $2`,
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

// Close closes the pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
