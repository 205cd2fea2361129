package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sanarberkebayram/monetizeit/internal/apikey/domain"
	"github.com/sanarberkebayram/monetizeit/internal/management"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCache struct {
	values map[string]string
	ttls   map[string]time.Duration
	getErr error
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		values: map[string]string{},
		ttls:   map[string]time.Duration{},
	}
}

func (c *fakeCache) Get(_ context.Context, key string) (string, error) {
	if c.getErr != nil {
		return "", c.getErr
	}
	return c.values[key], nil
}

func (c *fakeCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.values[key] = value
	c.ttls[key] = ttl
	return nil
}

type fakeValidator struct {
	cred  *management.Credential
	err   error
	calls int
}

func (v *fakeValidator) ValidateKey(_ context.Context, _ string) (*management.Credential, error) {
	v.calls++
	if v.err != nil {
		return nil, v.err
	}
	return v.cred, nil
}

func activeCredential() *management.Credential {
	return &management.Credential{
		APIID:    "api-1",
		ClientID: "client-1",
		Status:   "active",
		Plan: &management.PlanSnapshot{
			Name:       "pro",
			UnitType:   "request",
			QuotaLimit: 1000,
			RateLimit:  50,
		},
	}
}

func TestResolveCachesActiveCredential(t *testing.T) {
	cache := newFakeCache()
	validator := &fakeValidator{cred: activeCredential()}
	resolver := NewResolver(cache, validator, zap.NewNop())

	cred, err := resolver.Resolve(context.Background(), "sk_test_abc")
	require.NoError(t, err)
	assert.Equal(t, "api-1", cred.APIID)
	assert.Equal(t, "client-1", cred.ClientID)
	require.NotNil(t, cred.Plan)
	assert.Equal(t, int64(50), cred.Plan.RateLimit)

	cacheKey := "api_key:" + domain.HashAPIKey("sk_test_abc")
	require.Contains(t, cache.values, cacheKey)
	assert.Equal(t, 300*time.Second, cache.ttls[cacheKey])

	var cached domain.Credential
	require.NoError(t, json.Unmarshal([]byte(cache.values[cacheKey]), &cached))
	assert.Equal(t, "active", cached.Status)
}

func TestResolveCacheHitSkipsValidator(t *testing.T) {
	cache := newFakeCache()
	validator := &fakeValidator{cred: activeCredential()}
	resolver := NewResolver(cache, validator, zap.NewNop())

	_, err := resolver.Resolve(context.Background(), "sk_test_abc")
	require.NoError(t, err)
	require.Equal(t, 1, validator.calls)

	_, err = resolver.Resolve(context.Background(), "sk_test_abc")
	require.NoError(t, err)
	assert.Equal(t, 1, validator.calls)
}

func TestResolveUnknownKey(t *testing.T) {
	cache := newFakeCache()
	validator := &fakeValidator{err: management.ErrKeyNotFound}
	resolver := NewResolver(cache, validator, zap.NewNop())

	_, err := resolver.Resolve(context.Background(), "sk_unknown")
	assert.ErrorIs(t, err, domain.ErrInvalidKey)
	assert.Empty(t, cache.values)
}

func TestResolveInactiveKeyNotCached(t *testing.T) {
	cred := activeCredential()
	cred.Status = "suspended"
	cache := newFakeCache()
	validator := &fakeValidator{cred: cred}
	resolver := NewResolver(cache, validator, zap.NewNop())

	_, err := resolver.Resolve(context.Background(), "sk_suspended")
	assert.ErrorIs(t, err, domain.ErrInactiveKey)
	assert.Empty(t, cache.values)

	// Every attempt with a suspended key goes back to the validator.
	_, err = resolver.Resolve(context.Background(), "sk_suspended")
	assert.ErrorIs(t, err, domain.ErrInactiveKey)
	assert.Equal(t, 2, validator.calls)
}

func TestResolveEmptyKey(t *testing.T) {
	resolver := NewResolver(newFakeCache(), &fakeValidator{}, zap.NewNop())

	_, err := resolver.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidKey)
}

func TestResolveRejectedByManagementAPI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"Invalid or inactive API key"}`))
	}))
	defer server.Close()

	cache := newFakeCache()
	resolver := NewResolver(cache, management.NewClient(server.URL), zap.NewNop())

	_, err := resolver.Resolve(context.Background(), "sk_bad")
	assert.ErrorIs(t, err, domain.ErrInvalidKey)
	assert.Empty(t, cache.values)
}

func TestResolveValidatorUnavailable(t *testing.T) {
	cache := newFakeCache()
	validator := &fakeValidator{err: management.ErrUnavailable}
	resolver := NewResolver(cache, validator, zap.NewNop())

	_, err := resolver.Resolve(context.Background(), "sk_test_abc")
	assert.ErrorIs(t, err, management.ErrUnavailable)
}
