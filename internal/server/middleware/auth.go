package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sportfeed/oddsgate/internal/domain"
)

// ctxKey is the private type for request-context values set by middleware.
type ctxKey int

const entitlementKey ctxKey = iota

// Auth returns middleware that resolves the caller's API key to an
// entitlement and stores it in the request context. Requests with unknown or
// revoked keys are rejected. If resolver is nil, authentication is disabled
// and downstream handlers see a zero entitlement.
func Auth(resolver domain.EntitlementResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if resolver == nil {
				next.ServeHTTP(w, r)
				return
			}

			ent, err := resolver.Resolve(r.Context(), extractToken(r))
			if err != nil {
				if errors.Is(err, domain.ErrUnauthorized) {
					writeUnauthorized(w, "invalid or missing api key")
					return
				}
				http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
				return
			}

			ctx := context.WithValue(r.Context(), entitlementKey, ent)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// EntitlementFrom returns the entitlement resolved for the request, or a
// zero entitlement when auth is disabled.
func EntitlementFrom(ctx context.Context) domain.Entitlement {
	ent, _ := ctx.Value(entitlementKey).(domain.Entitlement)
	return ent
}

// extractToken looks for a token in the Authorization header (Bearer scheme),
// the X-API-Key header, or the apiKey query parameter.
func extractToken(r *http.Request) string {
	// Check Authorization: Bearer <token>
	if auth := r.Header.Get("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}

	// Check X-API-Key header.
	if key := r.Header.Get("X-API-Key"); key != "" {
		return strings.TrimSpace(key)
	}

	// Fall back to the apiKey query parameter, which WebSocket consumers use.
	return strings.TrimSpace(r.URL.Query().Get("apiKey"))
}

// writeUnauthorized sends a 401 response with a JSON error body.
func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
