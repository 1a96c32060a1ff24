// Package service holds the glue services that sit between the transport
// layers and the domain interfaces.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sportfeed/oddsgate/internal/domain"
)

// EntitlementService resolves consumer API keys to entitlements through a
// short-TTL cache in front of the backing store. When no store is configured
// (ConfigurationMissing) it degrades to a fixed default entitlement so the
// gateway keeps serving.
type EntitlementService struct {
	store    domain.EntitlementStore
	cache    domain.EntitlementCache
	cacheTTL time.Duration
	fallback domain.Entitlement
	logger   *slog.Logger
}

// NewEntitlementService creates an EntitlementService. store and cache may
// each be nil; fallback is used for every key when store is nil.
func NewEntitlementService(store domain.EntitlementStore, cache domain.EntitlementCache, cacheTTL time.Duration, fallback domain.Entitlement, logger *slog.Logger) *EntitlementService {
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &EntitlementService{
		store:    store,
		cache:    cache,
		cacheTTL: cacheTTL,
		fallback: fallback,
		logger:   logger.With(slog.String("component", "entitlements")),
	}
}

// Resolve returns the entitlement for an API key. Unknown or revoked keys
// yield domain.ErrUnauthorized when a store is configured.
func (s *EntitlementService) Resolve(ctx context.Context, apiKey string) (domain.Entitlement, error) {
	if s.store == nil {
		// No entitlement backend configured: every consumer gets the
		// default tier.
		return s.fallback, nil
	}
	if apiKey == "" {
		return domain.Entitlement{}, domain.ErrUnauthorized
	}

	if s.cache != nil {
		if ent, err := s.cache.Get(ctx, apiKey); err == nil {
			return ent, nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("entitlement cache read failed", slog.String("error", err.Error()))
		}
	}

	ent, err := s.store.GetByAPIKey(ctx, apiKey)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Entitlement{}, domain.ErrUnauthorized
		}
		return domain.Entitlement{}, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, apiKey, ent, s.cacheTTL); err != nil {
			s.logger.Warn("entitlement cache write failed", slog.String("error", err.Error()))
		}
	}
	return ent, nil
}

// Compile-time interface check.
var _ domain.EntitlementResolver = (*EntitlementService)(nil)
