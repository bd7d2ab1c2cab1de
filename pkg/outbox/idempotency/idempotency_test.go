package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/packdrop-backend/pkg/redis"
)

var _ redis.IdempotencyStore = (*memoryStore)(nil)

type memoryStore struct {
	values  map[string]string
	ttls    map[string]time.Duration
	getErr  error
	deleted []string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	if m.getErr != nil {
		return "", m.getErr
	}
	value, ok := m.values[key]
	if !ok {
		return "", goredis.Nil
	}
	return value, nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	m.ttls[key] = ttl
	return true, nil
}

func (m *memoryStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	m.values[key] = value.(string)
	m.ttls[key] = ttl
	return nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "pd:idempotency:" + scope + ":" + id
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.values, key)
		m.deleted = append(m.deleted, key)
	}
	return nil
}

func TestGuardMarksAndDetectsSentEvents(t *testing.T) {
	store := newMemoryStore()
	guard, err := NewGuard(store, "outbox-publisher", 720*time.Hour)
	require.NoError(t, err)
	ctx := context.Background()
	eventID := uuid.New()

	sent, err := guard.AlreadySent(ctx, eventID)
	require.NoError(t, err)
	assert.False(t, sent)

	fresh, err := guard.MarkSent(ctx, eventID)
	require.NoError(t, err)
	assert.True(t, fresh)

	key := "pd:idempotency:sent:outbox-publisher:" + eventID.String()
	assert.Equal(t, 720*time.Hour, store.ttls[key])

	sent, err = guard.AlreadySent(ctx, eventID)
	require.NoError(t, err)
	assert.True(t, sent)

	fresh, err = guard.MarkSent(ctx, eventID)
	require.NoError(t, err)
	assert.False(t, fresh)

	require.NoError(t, guard.Forget(ctx, eventID))
	assert.Equal(t, []string{key}, store.deleted)
}

func TestGuardSurfacesStoreErrors(t *testing.T) {
	store := newMemoryStore()
	store.getErr = errors.New("redis down")
	guard, err := NewGuard(store, "outbox-publisher", time.Hour)
	require.NoError(t, err)

	_, err = guard.AlreadySent(context.Background(), uuid.New())
	assert.EqualError(t, err, "redis down")
}

func TestGuardValidation(t *testing.T) {
	_, err := NewGuard(nil, "x", time.Hour)
	assert.Error(t, err)
	_, err = NewGuard(newMemoryStore(), "", time.Hour)
	assert.Error(t, err)
	_, err = NewGuard(newMemoryStore(), "x", -time.Second)
	assert.Error(t, err)

	guard, err := NewGuard(newMemoryStore(), "x", 0)
	require.NoError(t, err)
	_, err = guard.MarkSent(context.Background(), uuid.Nil)
	assert.Error(t, err)
}
