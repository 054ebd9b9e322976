// File: internal/infra/redis/dedup.go
package redis

import (
	"context"
	"fmt"
	"time"
)

// Deduper marks provider webhook event ids as seen so replayed deliveries
// are dropped. First call for an id returns true; repeats within the TTL
// return false.
type Deduper interface {
	FirstSeen(ctx context.Context, provider, eventID string) (bool, error)
}

type EventDeduper struct {
	cli RedisClient
	ttl time.Duration
}

var _ Deduper = (*EventDeduper)(nil)

func NewEventDeduper(cli RedisClient, ttl time.Duration) *EventDeduper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &EventDeduper{cli: cli, ttl: ttl}
}

func (d *EventDeduper) FirstSeen(ctx context.Context, provider, eventID string) (bool, error) {
	key := fmt.Sprintf("webhook:seen:%s:%s", provider, eventID)
	ok, err := d.cli.SetNX(ctx, key, 1, d.ttl)
	if err != nil {
		return false, fmt.Errorf("dedup setnx: %w", err)
	}
	return ok, nil
}

// NoopDeduper is used when Redis is not configured: every event counts as
// first-seen, relying on the ledger's conditional writes for idempotency.
type NoopDeduper struct{}

var _ Deduper = (*NoopDeduper)(nil)

func (NoopDeduper) FirstSeen(context.Context, string, string) (bool, error) { return true, nil }
