package redis

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestSetNXOnlyFirstWriterWins(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}

	ok, err := client.SetNX(ctx, "pd:webhook:transfer:PAY-1:successful", "1", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = client.SetNX(ctx, "pd:webhook:transfer:PAY-1:successful", "1", time.Hour)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, client.Del(ctx, "pd:webhook:transfer:PAY-1:successful"))
	exists, err := client.Exists(ctx, "pd:webhook:transfer:PAY-1:successful")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestGetMissingKeyReturnsNil(t *testing.T) {
	client := &Client{store: newMockCmdable()}
	_, err := client.Get(context.Background(), "missing")
	require.ErrorIs(t, err, redis.Nil)
}

func TestGeoLifecycle(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}
	key := client.GeoKey("drivers")

	require.NoError(t, client.GeoAdd(ctx, key, "driver-a", 6.45, 3.39))
	require.NoError(t, client.GeoAdd(ctx, key, "driver-b", 6.46, 3.40))

	points, err := client.GeoSearch(ctx, key, 6.45, 3.39, 5, 10)
	require.NoError(t, err)
	require.Len(t, points, 2)
	require.Equal(t, "driver-a", points[0].Member)

	require.NoError(t, client.GeoRemove(ctx, key, "driver-a"))
	points, err = client.GeoSearch(ctx, key, 6.45, 3.39, 5, 10)
	require.NoError(t, err)
	require.Len(t, points, 1)
	require.Equal(t, "driver-b", points[0].Member)

	query := mock.lastQuery
	require.Equal(t, "km", query.RadiusUnit)
	require.Equal(t, "ASC", query.Sort)
	require.True(t, query.WithDist)
}

func TestUninitializedClientErrors(t *testing.T) {
	client := &Client{}
	require.Error(t, client.Ping(context.Background()))
	require.Error(t, client.GeoAdd(context.Background(), "k", "m", 0, 0))
	_, err := client.SetNX(context.Background(), "k", "v", 0)
	require.Error(t, err)
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	require.Equal(t, "pd:idempotency:scope:id", client.IdempotencyKey("scope", "id"))
	require.Equal(t, "pd:webhook:transfer:PAY-1:failed", client.WebhookEventKey("transfer:PAY-1:failed"))
	require.Equal(t, "pd:lock:ledger-reconcile", client.LockKey("ledger-reconcile"))
	require.Equal(t, "pd:geo:drivers", client.GeoKey("drivers"))
	require.Equal(t, "pd:session:access:abc", client.AccessSessionKey("abc"))
	require.Equal(t, "pd:idempotency:scope", client.IdempotencyKey("scope", ""), "empty parts are skipped")
}

type mockCmdable struct {
	data      map[string]string
	geo       map[string]map[string]redis.GeoLocation
	lastQuery *redis.GeoSearchLocationQuery
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{
		data: make(map[string]string),
		geo:  make(map[string]map[string]redis.GeoLocation),
	}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Exists(ctx context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, key := range keys {
		if _, ok := m.data[key]; ok {
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (m *mockCmdable) GeoAdd(ctx context.Context, key string, locs ...*redis.GeoLocation) *redis.IntCmd {
	set, ok := m.geo[key]
	if !ok {
		set = make(map[string]redis.GeoLocation)
		m.geo[key] = set
	}
	for _, loc := range locs {
		set[loc.Name] = *loc
	}
	return redis.NewIntResult(int64(len(locs)), nil)
}

func (m *mockCmdable) GeoSearchLocation(ctx context.Context, key string, q *redis.GeoSearchLocationQuery) *redis.GeoSearchLocationCmd {
	m.lastQuery = q
	out := make([]redis.GeoLocation, 0)
	for _, loc := range m.geo[key] {
		loc.Dist = (loc.Latitude-q.Latitude)*(loc.Latitude-q.Latitude) + (loc.Longitude-q.Longitude)*(loc.Longitude-q.Longitude)
		out = append(out, loc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Dist < out[j].Dist })
	cmd := redis.NewGeoSearchLocationCmd(ctx, q)
	cmd.SetVal(out)
	return cmd
}

func (m *mockCmdable) ZRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd {
	for _, member := range members {
		delete(m.geo[key], fmt.Sprint(member))
	}
	return redis.NewIntResult(int64(len(members)), nil)
}
