package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sportfeed/oddsgate/internal/domain"
)

// EntitlementCache implements domain.EntitlementCache with JSON-serialized
// entitlement records under a short TTL, so consumer connects and on-demand
// requests do not hit the backing store on every lookup.
//
// Key schema:
//
//	entitlement:{apiKey} - string value containing JSON
type EntitlementCache struct {
	rdb *redis.Client
}

// NewEntitlementCache creates an EntitlementCache backed by the given Client.
func NewEntitlementCache(c *Client) *EntitlementCache {
	return &EntitlementCache{rdb: c.Underlying()}
}

func entitlementKey(apiKey string) string {
	return "entitlement:" + apiKey
}

// Get returns the cached entitlement for an API key, or domain.ErrNotFound
// on a cache miss.
func (ec *EntitlementCache) Get(ctx context.Context, apiKey string) (domain.Entitlement, error) {
	raw, err := ec.rdb.Get(ctx, entitlementKey(apiKey)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Entitlement{}, domain.ErrNotFound
		}
		return domain.Entitlement{}, fmt.Errorf("redis: get entitlement: %w", err)
	}

	var ent domain.Entitlement
	if err := json.Unmarshal(raw, &ent); err != nil {
		return domain.Entitlement{}, fmt.Errorf("redis: decode entitlement: %w", err)
	}
	return ent, nil
}

// Set caches an entitlement for the given TTL.
func (ec *EntitlementCache) Set(ctx context.Context, apiKey string, ent domain.Entitlement, ttl time.Duration) error {
	raw, err := json.Marshal(ent)
	if err != nil {
		return fmt.Errorf("redis: marshal entitlement: %w", err)
	}
	if err := ec.rdb.Set(ctx, entitlementKey(apiKey), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set entitlement: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.EntitlementCache = (*EntitlementCache)(nil)
