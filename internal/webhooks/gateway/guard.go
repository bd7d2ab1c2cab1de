package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type replayStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	WebhookEventKey(eventKey string) string
}

// ReplayGuard remembers processed callbacks in redis so a gateway retry of
// the same outcome is acknowledged without being applied twice.
type ReplayGuard struct {
	store replayStore
	ttl   time.Duration
}

func NewReplayGuard(store replayStore, ttl time.Duration) (*ReplayGuard, error) {
	if store == nil {
		return nil, errors.New("replay store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &ReplayGuard{store: store, ttl: ttl}, nil
}

// CheckAndMark reports true when key was already seen, and marks it otherwise.
func (g *ReplayGuard) CheckAndMark(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, errors.New("event key is required")
	}
	set, err := g.store.SetNX(ctx, g.store.WebhookEventKey(key), "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set webhook replay key: %w", err)
	}
	return !set, nil
}

// Delete forgets key so a later retry is processed again.
func (g *ReplayGuard) Delete(ctx context.Context, key string) error {
	if key == "" {
		return errors.New("event key is required")
	}
	return g.store.Del(ctx, g.store.WebhookEventKey(key))
}
