package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omnigest/internal/domain"
	"omnigest/internal/platform/config"
	"omnigest/pkg/platform/sentinel"
)

type fakeLookup struct {
	id    string
	err   error
	calls atomic.Int32
}

func (f *fakeLookup) Lookup(ctx context.Context, hint string) (string, error) {
	f.calls.Add(1)
	return f.id, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestResolvePresentIDPassesThrough(t *testing.T) {
	lookup := &fakeLookup{id: "12-3456-7890-1234"}
	r := New(NewMemoryCache(), lookup, time.Second, discardLogger(), nil)

	rec := &domain.CanonicalRecord{IdentityID: "91-2345-6789-0123", PatientName: "Asha Rao"}
	id, status := r.Resolve(context.Background(), rec)

	assert.Equal(t, "91-2345-6789-0123", id)
	assert.Equal(t, domain.DiscoveryNone, status)
	assert.Zero(t, lookup.calls.Load(), "no lookup when the id is already present")
}

func TestResolveFromCache(t *testing.T) {
	cache := NewMemoryCache()
	require.NoError(t, cache.Put(context.Background(), "Asha Rao", "12-3456-7890-1234"))
	lookup := &fakeLookup{id: "99-9999-9999-9999"}
	r := New(cache, lookup, time.Second, discardLogger(), nil)

	rec := &domain.CanonicalRecord{PatientName: "Asha Rao"}
	id, status := r.Resolve(context.Background(), rec)

	assert.Equal(t, "12-3456-7890-1234", id)
	assert.Equal(t, domain.DiscoveryFromCache, status)
	assert.Zero(t, lookup.calls.Load(), "cache hit must not reach the gateway")
}

func TestResolveFromGatewayWarmsCache(t *testing.T) {
	cache := NewMemoryCache()
	lookup := &fakeLookup{id: "12-3456-7890-1234"}
	r := New(cache, lookup, time.Second, discardLogger(), nil)

	rec := &domain.CanonicalRecord{PatientName: "Vikram Malhotra"}
	id, status := r.Resolve(context.Background(), rec)

	assert.Equal(t, "12-3456-7890-1234", id)
	assert.Equal(t, domain.DiscoveryFromGateway, status)

	cached, err := cache.Get(context.Background(), "Vikram Malhotra")
	require.NoError(t, err)
	assert.Equal(t, "12-3456-7890-1234", cached)
}

func TestResolveLookupFailureDegrades(t *testing.T) {
	lookup := &fakeLookup{err: errors.New("gateway down")}
	r := New(NewMemoryCache(), lookup, time.Second, discardLogger(), nil)

	rec := &domain.CanonicalRecord{PatientName: "Asha Rao"}
	id, status := r.Resolve(context.Background(), rec)

	assert.Empty(t, id)
	assert.Equal(t, domain.DiscoveryUnresolved, status)
}

func TestResolveNoHint(t *testing.T) {
	lookup := &fakeLookup{id: "12-3456-7890-1234"}
	r := New(NewMemoryCache(), lookup, time.Second, discardLogger(), nil)

	id, status := r.Resolve(context.Background(), &domain.CanonicalRecord{})
	assert.Empty(t, id)
	assert.Equal(t, domain.DiscoveryUnresolved, status)
	assert.Zero(t, lookup.calls.Load())
}

func TestResolveNilCollaborators(t *testing.T) {
	r := New(nil, nil, time.Second, discardLogger(), nil)

	id, status := r.Resolve(context.Background(), &domain.CanonicalRecord{PatientName: "Asha Rao"})
	assert.Empty(t, id)
	assert.Equal(t, domain.DiscoveryUnresolved, status)
}

func TestMemoryCacheMiss(t *testing.T) {
	cache := NewMemoryCache()
	_, err := cache.Get(context.Background(), "nobody")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestGatewayClientLookup(t *testing.T) {
	var sessionCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v0.5/sessions":
			sessionCalls.Add(1)
			json.NewEncoder(w).Encode(map[string]any{"accessToken": "opaque-token", "expiresIn": 3600})
		case "/v1/identity/resolve":
			assert.Equal(t, "Bearer opaque-token", r.Header.Get("Authorization"))
			var req map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "Asha Rao", req["identityHint"])
			json.NewEncoder(w).Encode(map[string]string{"identityId": "12-3456-7890-1234", "discoveryStatus": "LINKED"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewGatewayClient(config.GatewayConfig{
		URL:          srv.URL,
		ClientID:     "hip-01",
		ClientSecret: "secret",
		Timeout:      2 * time.Second,
	}, discardLogger())

	id, err := client.Lookup(context.Background(), "Asha Rao")
	require.NoError(t, err)
	assert.Equal(t, "12-3456-7890-1234", id)

	// Second lookup reuses the cached session token.
	_, err = client.Lookup(context.Background(), "Asha Rao")
	require.NoError(t, err)
	assert.Equal(t, int32(1), sessionCalls.Load())
}

func TestGatewayClientNotFoundIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v0.5/sessions" {
			json.NewEncoder(w).Encode(map[string]any{"accessToken": "opaque-token"})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewGatewayClient(config.GatewayConfig{URL: srv.URL, Timeout: time.Second}, discardLogger())

	id, err := client.Lookup(context.Background(), "Unknown Person")
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestGatewayClientCircuitOpensAfterRepeatedFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewGatewayClient(config.GatewayConfig{URL: srv.URL, Timeout: time.Second}, discardLogger())

	for range 6 {
		_, err := client.Lookup(context.Background(), "Asha Rao")
		require.Error(t, err)
	}
	assert.True(t, client.breaker.IsOpen())
}

func TestTokenExpiryPrefersJWTClaim(t *testing.T) {
	// Unsigned token with exp claim; the client never validates signatures.
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	exp := now.Add(30 * time.Minute)

	token := makeUnsignedJWT(t, exp)
	got := tokenExpiry(sessionResponse{AccessToken: token, ExpiresIn: 3600}, now)
	assert.WithinDuration(t, exp, got, time.Second)

	// Opaque token falls back to expiresIn.
	got = tokenExpiry(sessionResponse{AccessToken: "opaque", ExpiresIn: 120}, now)
	assert.WithinDuration(t, now.Add(2*time.Minute), got, time.Second)

	// No hints at all falls back to the default TTL.
	got = tokenExpiry(sessionResponse{AccessToken: "opaque"}, now)
	assert.WithinDuration(t, now.Add(defaultTokenTTL), got, time.Second)
}

func makeUnsignedJWT(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return tok
}
