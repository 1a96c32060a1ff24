package domain

import (
	"context"
	"time"
)

// Tier is a consumer's subscription level.
type Tier string

const (
	TierFree    Tier = "free"
	TierBasic   Tier = "basic"
	TierPremium Tier = "premium"
)

// Entitlement is the opaque result of resolving a consumer's API key: the
// tier plus the capability flags the broadcast and correlator layers enforce.
type Entitlement struct {
	Tier Tier `json:"tier"`

	// CanProps gates delivery of per-bookmaker props channels.
	CanProps bool `json:"can_props"`

	// CanOnDemand gates one-shot and recurring on-demand queries forwarded
	// upstream through the request correlator.
	CanOnDemand bool `json:"can_on_demand"`

	// RequestQuota overrides the correlator's per-window request quota when
	// greater than zero.
	RequestQuota int `json:"request_quota,omitempty"`
}

// EntitlementStore resolves an API key to its entitlement record.
type EntitlementStore interface {
	GetByAPIKey(ctx context.Context, apiKey string) (Entitlement, error)
}

// EntitlementCache caches resolved entitlements for a short TTL so the hub
// and correlator do not hit the backing store on every lookup.
type EntitlementCache interface {
	Get(ctx context.Context, apiKey string) (Entitlement, error)
	Set(ctx context.Context, apiKey string, ent Entitlement, ttl time.Duration) error
}

// EntitlementResolver is the opaque lookup consulted by the broadcast engine
// and the request correlator.
type EntitlementResolver interface {
	Resolve(ctx context.Context, apiKey string) (Entitlement, error)
}
