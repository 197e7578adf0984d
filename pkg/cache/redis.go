// Package cache mirrors the latest price event per asset into Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/StrathCole/oracle-monitor/pkg/server/events"
)

const (
	// DefaultKeyPrefix prefixes every key written by the cache.
	DefaultKeyPrefix = "oracle"
	// DefaultChannel is the pub/sub channel price events are published on.
	DefaultChannel = "oracle:prices"
	// DefaultTTL bounds how long a latest price survives without refresh.
	DefaultTTL = 5 * time.Minute
)

// ErrNotFound is returned by Latest when no price is cached for the asset.
var ErrNotFound = errors.New("no cached price")

// Config configures the Redis cache.
type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
	Prefix   string
	Channel  string
}

// Redis is an events.Sink backed by Redis.
type Redis struct {
	client  redis.UniversalClient
	ttl     time.Duration
	prefix  string
	channel string
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, cfg Config) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return NewRedisWithClient(client, cfg), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client redis.UniversalClient, cfg Config) *Redis {
	r := &Redis{
		client:  client,
		ttl:     cfg.TTL,
		prefix:  cfg.Prefix,
		channel: cfg.Channel,
	}
	if r.ttl <= 0 {
		r.ttl = DefaultTTL
	}
	if r.prefix == "" {
		r.prefix = DefaultKeyPrefix
	}
	if r.channel == "" {
		r.channel = DefaultChannel
	}
	return r
}

// Name implements events.Sink.
func (r *Redis) Name() string {
	return "redis"
}

// Channel returns the pub/sub channel events are published on.
func (r *Redis) Channel() string {
	return r.channel
}

func (r *Redis) latestKey(asset string) string {
	return fmt.Sprintf("%s:latest:%s", r.prefix, asset)
}

// Publish stores the event as the latest for its asset and publishes it on the channel.
func (r *Redis) Publish(ctx context.Context, event events.PriceEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.latestKey(event.Asset), data, r.ttl)
	pipe.Publish(ctx, r.channel, data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Latest returns the cached event for asset.
func (r *Redis) Latest(ctx context.Context, asset string) (events.PriceEvent, error) {
	data, err := r.client.Get(ctx, r.latestKey(asset)).Bytes()
	if errors.Is(err, redis.Nil) {
		return events.PriceEvent{}, fmt.Errorf("%w: %s", ErrNotFound, asset)
	}
	if err != nil {
		return events.PriceEvent{}, err
	}

	var event events.PriceEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return events.PriceEvent{}, fmt.Errorf("decode event: %w", err)
	}
	return event, nil
}

// Subscribe returns a subscription to the price channel. Callers close it.
func (r *Redis) Subscribe(ctx context.Context) *redis.PubSub {
	return r.client.Subscribe(ctx, r.channel)
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.client.Close()
}
