// Package redis mirrors order book snapshots into Redis using go-redis/v9.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"trade_sim/internal/domain"

	"github.com/redis/go-redis/v9"
)

// DefaultTimeout bounds a single Redis round trip when ClientConfig.Timeout is unset.
const DefaultTimeout = 500 * time.Millisecond

// ClientConfig holds connection parameters for the Redis client.
type ClientConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	Timeout  time.Duration // per operation; DefaultTimeout when zero
}

// Publisher implements domain.SnapshotPublisher.
//
// Key schema:
//
//	{prefix}:orderbook:{symbol}:latest - JSON of the newest snapshot
//	{prefix}:orderbook                 - pub/sub channel, one message per snapshot
type Publisher struct {
	rdb     *redis.Client
	prefix  string
	timeout time.Duration
}

var _ domain.SnapshotPublisher = (*Publisher)(nil)

// NewPublisher creates a Publisher, pings Redis to verify connectivity, and
// returns an error if the connection cannot be established.
func NewPublisher(ctx context.Context, cfg ClientConfig) (*Publisher, error) {
	p := newPublisher(newClient(cfg), cfg)
	if err := p.Ping(ctx); err != nil {
		_ = p.Close()
		return nil, err
	}
	return p, nil
}

func newClient(cfg ClientConfig) *redis.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return redis.NewClient(&redis.Options{
		Addr:                  cfg.Addr,
		Password:              cfg.Password,
		DB:                    cfg.DB,
		DialTimeout:           timeout,
		ReadTimeout:           timeout,
		WriteTimeout:          timeout,
		ContextTimeoutEnabled: true,
	})
}

func newPublisher(rdb *redis.Client, cfg ClientConfig) *Publisher {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "tradesim"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Publisher{rdb: rdb, prefix: prefix, timeout: timeout}
}

func (p *Publisher) latestKey(symbol string) string { return p.prefix + ":orderbook:" + symbol + ":latest" }
func (p *Publisher) channel() string                { return p.prefix + ":orderbook" }

// Publish stores the snapshot under the latest key and announces it on the
// channel in a single transaction. It gives up after the configured timeout
// so a stalled server cannot hold up the caller.
func (p *Publisher) Publish(ctx context.Context, snap *domain.Snapshot) error {
	if snap == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: encode snapshot: %w", err)
	}

	pipe := p.rdb.TxPipeline()
	pipe.Set(ctx, p.latestKey(snap.Symbol), payload, 0)
	pipe.Publish(ctx, p.channel(), payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: publish snapshot: %w", err)
	}
	return nil
}

// Latest reads back the newest stored snapshot for symbol. It returns
// domain.ErrNoOrderBook when nothing has been published yet.
func (p *Publisher) Latest(ctx context.Context, symbol string) (*domain.Snapshot, error) {
	raw, err := p.rdb.Get(ctx, p.latestKey(symbol)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNoOrderBook
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get snapshot: %w", err)
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("redis: decode snapshot: %w", err)
	}
	return &snap, nil
}

// Ping checks the Redis connection.
func (p *Publisher) Ping(ctx context.Context) error {
	if err := p.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (p *Publisher) Close() error {
	return p.rdb.Close()
}
