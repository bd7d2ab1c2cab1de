package session

import (
	"context"
	"fmt"
	"strings"

	redisclient "github.com/angelmondragon/packdrop-backend/pkg/redis"
)

// Sessions are written by the identity service at login and deleted on logout.
// This package only reads them so revoked access tokens stop working before expiry.

type sessionStore interface {
	Exists(ctx context.Context, key string) (bool, error)
}

type sessionKeyer interface {
	AccessSessionKey(accessID string) string
}

// AccessSessionChecker exposes the read-only surface needed by middleware.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

// Checker looks up access sessions in Redis.
type Checker struct {
	store sessionStore
	keyer sessionKeyer
}

// NewChecker constructs a session checker backed by Redis.
func NewChecker(client *redisclient.Client) (*Checker, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &Checker{store: client, keyer: client}, nil
}

// HasSession reports whether the provided access ID still has an active session.
func (c *Checker) HasSession(ctx context.Context, accessID string) (bool, error) {
	if strings.TrimSpace(accessID) == "" {
		return false, fmt.Errorf("access id is required")
	}
	return c.store.Exists(ctx, c.keyer.AccessSessionKey(accessID))
}
