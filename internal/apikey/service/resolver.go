package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sanarberkebayram/monetizeit/internal/apikey/domain"
	"github.com/sanarberkebayram/monetizeit/internal/management"
	"go.uber.org/zap"
)

const credentialTTL = 300 * time.Second

// keyCache is the subset of the Redis client the resolver needs.
type keyCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// validator resolves a raw key against the management API.
type validator interface {
	ValidateKey(ctx context.Context, rawKey string) (*management.Credential, error)
}

// Resolver validates API keys with a cache-aside layer in front of the
// management API. Only active credentials are cached.
type Resolver struct {
	cache     keyCache
	validator validator
	logger    *zap.Logger
}

func NewResolver(cache keyCache, validator validator, logger *zap.Logger) *Resolver {
	return &Resolver{
		cache:     cache,
		validator: validator,
		logger:    logger,
	}
}

// Resolve maps a raw API key to its credential. Unknown keys return
// ErrInvalidKey, known-but-suspended keys return ErrInactiveKey.
func (r *Resolver) Resolve(ctx context.Context, rawKey string) (*domain.Credential, error) {
	if rawKey == "" {
		return nil, domain.ErrInvalidKey
	}

	cacheKey := "api_key:" + domain.HashAPIKey(rawKey)

	if cached, err := r.cache.Get(ctx, cacheKey); err == nil && cached != "" {
		var cred domain.Credential
		if err := json.Unmarshal([]byte(cached), &cred); err == nil {
			return &cred, nil
		}
		r.logger.Warn("dropping undecodable cached credential", zap.String("cache_key", cacheKey))
	}

	remote, err := r.validator.ValidateKey(ctx, rawKey)
	if err != nil {
		if errors.Is(err, management.ErrKeyNotFound) {
			return nil, domain.ErrInvalidKey
		}
		return nil, err
	}

	cred := &domain.Credential{
		APIID:    remote.APIID,
		ClientID: remote.ClientID,
		Status:   remote.Status,
	}
	if remote.Plan != nil {
		cred.Plan = &domain.PlanSnapshot{
			Name:           remote.Plan.Name,
			UnitType:       remote.Plan.UnitType,
			UnitPriceCents: remote.Plan.UnitPriceCents,
			PriceCents:     remote.Plan.PriceCents,
			QuotaLimit:     remote.Plan.QuotaLimit,
			RateLimit:      remote.Plan.RateLimit,
		}
	}

	if !cred.Active() {
		return nil, domain.ErrInactiveKey
	}

	if encoded, err := json.Marshal(cred); err == nil {
		if err := r.cache.Set(ctx, cacheKey, string(encoded), credentialTTL); err != nil {
			r.logger.Warn("failed to cache credential", zap.Error(err))
		}
	}

	return cred, nil
}
