package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sportfeed/oddsgate/internal/domain"
)

// EntitlementStore implements domain.EntitlementStore using PostgreSQL.
type EntitlementStore struct {
	pool *pgxpool.Pool
}

// NewEntitlementStore creates an EntitlementStore backed by the given pool.
func NewEntitlementStore(pool *pgxpool.Pool) *EntitlementStore {
	return &EntitlementStore{pool: pool}
}

// GetByAPIKey resolves an API key to its entitlement record. A revoked or
// unknown key returns domain.ErrNotFound.
func (s *EntitlementStore) GetByAPIKey(ctx context.Context, apiKey string) (domain.Entitlement, error) {
	const query = `
		SELECT tier, can_props, can_on_demand, request_quota
		FROM api_clients
		WHERE api_key = $1 AND NOT revoked`

	var (
		tier domain.Tier
		ent  domain.Entitlement
	)
	err := s.pool.QueryRow(ctx, query, apiKey).Scan(
		&tier, &ent.CanProps, &ent.CanOnDemand, &ent.RequestQuota,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Entitlement{}, domain.ErrNotFound
		}
		return domain.Entitlement{}, fmt.Errorf("postgres: get api client: %w", err)
	}
	ent.Tier = tier
	return ent, nil
}

// Compile-time interface check.
var _ domain.EntitlementStore = (*EntitlementStore)(nil)
