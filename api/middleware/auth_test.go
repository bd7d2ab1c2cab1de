package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/packdrop-backend/pkg/auth"
	"github.com/angelmondragon/packdrop-backend/pkg/config"
	"github.com/angelmondragon/packdrop-backend/pkg/enums"
)

func testTokens(t *testing.T) *auth.Tokens {
	t.Helper()
	tokens, err := auth.NewTokens(config.JWTConfig{Secret: "secret", Issuer: "packdrop", ExpirationMinutes: 60})
	require.NoError(t, err)
	return tokens
}

type sessionStub struct {
	live    bool
	err     error
	checked string
}

func (s *sessionStub) HasSession(_ context.Context, accessID string) (bool, error) {
	s.checked = accessID
	return s.live, s.err
}

func okHandler(seen *Actor) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			*seen, _ = ActorFromContext(r.Context())
		}
		w.WriteHeader(http.StatusOK)
	})
}

func authRequest(header string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/deliveries", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	return req
}

func TestAuthRejectsMissingOrMalformedCredentials(t *testing.T) {
	handler := Auth(testTokens(t), nil, nil)(okHandler(nil))
	for _, header := range []string{"", "Bearer", "Bearer   ", "Basic abc", "Bearer not-a-jwt"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, authRequest(header))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
	}
}

func TestAuthSeedsActor(t *testing.T) {
	tokens := testTokens(t)
	userID := uuid.New()
	raw, jti, err := tokens.Mint(time.Now(), userID, enums.UserRoleDriver)
	require.NoError(t, err)

	sessions := &sessionStub{live: true}
	var actor Actor
	rec := httptest.NewRecorder()
	Auth(tokens, sessions, nil)(okHandler(&actor)).ServeHTTP(rec, authRequest("bearer "+raw))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, Actor{UserID: userID, Role: enums.UserRoleDriver, SessionID: jti}, actor)
	assert.Equal(t, jti, sessions.checked)
}

func TestAuthHonoursSessionStore(t *testing.T) {
	tokens := testTokens(t)
	raw, _, err := tokens.Mint(time.Now(), uuid.New(), enums.UserRoleVendor)
	require.NoError(t, err)

	cases := map[string]struct {
		sessions *sessionStub
		want     int
	}{
		"revoked":     {&sessionStub{live: false}, http.StatusUnauthorized},
		"redis error": {&sessionStub{err: errors.New("redis down")}, http.StatusServiceUnavailable},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Auth(tokens, tc.sessions, nil)(okHandler(nil)).ServeHTTP(rec, authRequest("Bearer "+raw))
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestRequireRoles(t *testing.T) {
	handler := RequireRoles(nil, enums.UserRoleAdmin, enums.UserRoleVendor)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := map[enums.UserRole]int{
		enums.UserRoleAdmin:    http.StatusNoContent,
		enums.UserRoleVendor:   http.StatusNoContent,
		enums.UserRoleDriver:   http.StatusForbidden,
		enums.UserRoleCustomer: http.StatusForbidden,
	}
	for role, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithActor(req.Context(), Actor{UserID: uuid.New(), Role: role}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, role)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestActorFromContextRequiresValidIdentity(t *testing.T) {
	_, ok := ActorFromContext(WithActor(context.Background(), Actor{Role: enums.UserRoleAdmin}))
	assert.False(t, ok)

	_, ok = ActorFromContext(WithActor(context.Background(), Actor{UserID: uuid.New(), Role: "owner"}))
	assert.False(t, ok)

	assert.Empty(t, UserIDFromContext(context.Background()))
}
