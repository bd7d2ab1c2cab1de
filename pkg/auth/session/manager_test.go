package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type mockStore struct {
	data map[string]bool
	err  error
}

func (m *mockStore) Exists(ctx context.Context, key string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	return m.data[key], nil
}

type prefixKeyer struct{}

func (prefixKeyer) AccessSessionKey(accessID string) string {
	return "pd:session:access:" + accessID
}

func TestHasSession(t *testing.T) {
	store := &mockStore{data: map[string]bool{"pd:session:access:live": true}}
	checker := &Checker{store: store, keyer: prefixKeyer{}}

	ok, err := checker.HasSession(context.Background(), "live")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = checker.HasSession(context.Background(), "revoked")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHasSessionRequiresAccessID(t *testing.T) {
	checker := &Checker{store: &mockStore{}, keyer: prefixKeyer{}}
	_, err := checker.HasSession(context.Background(), "  ")
	require.Error(t, err)
}

func TestHasSessionPropagatesStoreErrors(t *testing.T) {
	checker := &Checker{store: &mockStore{err: errors.New("redis down")}, keyer: prefixKeyer{}}
	_, err := checker.HasSession(context.Background(), "live")
	require.EqualError(t, err, "redis down")
}

func TestNewCheckerRequiresClient(t *testing.T) {
	_, err := NewChecker(nil)
	require.Error(t, err)
}
