// Package idempotency remembers which outbox events already reached Pub/Sub.
// The publisher commits published_at after the broker acks; if that commit
// is lost the row is claimed again, and the marker stops a second publish.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/packdrop-backend/pkg/redis"
)

// Guard stores one marker per (scope, event id) under
// `pd:idempotency:sent:<scope>:<event_id>`.
type Guard struct {
	store redis.IdempotencyStore
	scope string
	ttl   time.Duration
}

func NewGuard(store redis.IdempotencyStore, scope string, ttl time.Duration) (*Guard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Guard{store: store, scope: scope, ttl: ttl}, nil
}

// AlreadySent reports whether a marker exists for eventID.
func (g *Guard) AlreadySent(ctx context.Context, eventID uuid.UUID) (bool, error) {
	key, err := g.key(eventID)
	if err != nil {
		return false, err
	}
	if _, err := g.store.Get(ctx, key); err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// MarkSent records eventID. It returns false when a marker already existed.
func (g *Guard) MarkSent(ctx context.Context, eventID uuid.UUID) (bool, error) {
	key, err := g.key(eventID)
	if err != nil {
		return false, err
	}
	return g.store.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), g.ttl)
}

// Forget drops the marker so the event can be published again.
func (g *Guard) Forget(ctx context.Context, eventID uuid.UUID) error {
	key, err := g.key(eventID)
	if err != nil {
		return err
	}
	return g.store.Del(ctx, key)
}

func (g *Guard) key(eventID uuid.UUID) (string, error) {
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return g.store.IdempotencyKey(fmt.Sprintf("sent:%s", g.scope), eventID.String()), nil
}
