// Package correlate maps outbound on-demand queries to the downstream
// consumer that asked for them. Each accepted request gets a unique id, a
// pending-table entry with a TTL, and is relayed upstream; the matching
// response is routed back to exactly the originating consumer. Per-consumer
// rate quotas and a global pending cap bound memory.
package correlate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sportfeed/oddsgate/internal/domain"
)

// Sender relays a request message upstream. Satisfied by the linefeed client.
type Sender interface {
	Send(event string, data any) error
}

// Config holds the correlator's bounds.
type Config struct {
	// TTL is how long a pending request may wait for its response.
	TTL time.Duration

	// MaxPending caps the global pending-request table.
	MaxPending int

	// RateLimit / RateWindow define the default per-consumer quota: at most
	// RateLimit accepted requests per fixed window. An entitlement's
	// RequestQuota overrides RateLimit when set.
	RateLimit  int
	RateWindow time.Duration
}

func (c Config) ttl() time.Duration {
	if c.TTL > 0 {
		return c.TTL
	}
	return 30 * time.Second
}

func (c Config) maxPending() int {
	if c.MaxPending > 0 {
		return c.MaxPending
	}
	return 1000
}

func (c Config) rateLimit() int {
	if c.RateLimit > 0 {
		return c.RateLimit
	}
	return 10
}

func (c Config) rateWindow() time.Duration {
	if c.RateWindow > 0 {
		return c.RateWindow
	}
	return time.Minute
}

type pendingRequest struct {
	consumerID string
	createdAt  time.Time
}

// Correlator is the asynchronous request/response bridge. All mutations of
// the pending table happen under one mutex.
type Correlator struct {
	cfg     Config
	sender  Sender
	limiter domain.RateLimiter
	logger  *slog.Logger

	mu         sync.Mutex
	pending    map[string]pendingRequest
	byConsumer map[string]map[string]struct{}

	now func() time.Time
}

// New creates a Correlator relaying through sender and metering consumers
// with limiter.
func New(cfg Config, sender Sender, limiter domain.RateLimiter, logger *slog.Logger) *Correlator {
	return &Correlator{
		cfg:        cfg,
		sender:     sender,
		limiter:    limiter,
		logger:     logger.With(slog.String("component", "correlator")),
		pending:    make(map[string]pendingRequest),
		byConsumer: make(map[string]map[string]struct{}),
		now:        time.Now,
	}
}

func rateKey(consumerID string) string {
	return "ondemand:" + consumerID
}

// Submit validates, records, and relays one on-demand query for a consumer.
// The returned request id correlates the eventual response. Rejections are
// explicit errors: domain.ErrForbidden (capability), domain.ErrMissingFields,
// domain.ErrRateLimited, domain.ErrCapacity, domain.ErrNotConnected (relay
// failed; the pending entry is removed immediately).
func (c *Correlator) Submit(ctx context.Context, consumerID string, ent domain.Entitlement, query string, params map[string]any) (string, error) {
	if !ent.CanOnDemand {
		return "", domain.ErrForbidden
	}
	if consumerID == "" || query == "" {
		return "", domain.ErrMissingFields
	}

	quota := ent.RequestQuota
	if quota <= 0 {
		quota = c.cfg.rateLimit()
	}
	allowed, err := c.limiter.Allow(ctx, rateKey(consumerID), quota, c.cfg.rateWindow())
	if err != nil {
		return "", fmt.Errorf("correlate: rate limit check: %w", err)
	}
	if !allowed {
		return "", domain.ErrRateLimited
	}

	requestID := uuid.NewString()

	c.mu.Lock()
	if len(c.pending) >= c.cfg.maxPending() {
		c.mu.Unlock()
		return "", domain.ErrCapacity
	}
	c.pending[requestID] = pendingRequest{consumerID: consumerID, createdAt: c.now()}
	set, ok := c.byConsumer[consumerID]
	if !ok {
		set = make(map[string]struct{})
		c.byConsumer[consumerID] = set
	}
	set[requestID] = struct{}{}
	c.mu.Unlock()

	data := make(map[string]any, len(params)+1)
	for k, v := range params {
		data[k] = v
	}
	data["requestId"] = requestID

	if err := c.sender.Send("request-"+query, data); err != nil {
		// Relay failed: the consumer gets an explicit failure, not silence,
		// and the entry must not linger.
		c.remove(requestID)
		return "", fmt.Errorf("correlate: relay %s: %w", query, err)
	}

	c.logger.Debug("request forwarded",
		slog.String("query", query),
		slog.String("request_id", requestID),
	)
	return requestID, nil
}

// Resolve consumes the pending entry for a response's request id and returns
// the originating consumer. ok is false for unknown or already-expired ids;
// such late responses are ignored by the caller.
func (c *Correlator) Resolve(requestID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	req, ok := c.pending[requestID]
	if !ok {
		return "", false
	}
	c.removeLocked(requestID, req.consumerID)
	return req.consumerID, true
}

// DropConsumer discards all of a consumer's pending entries and its
// rate-limit counters. Called on consumer disconnect.
func (c *Correlator) DropConsumer(ctx context.Context, consumerID string) {
	c.mu.Lock()
	for requestID := range c.byConsumer[consumerID] {
		delete(c.pending, requestID)
	}
	delete(c.byConsumer, consumerID)
	c.mu.Unlock()

	if err := c.limiter.Reset(ctx, rateKey(consumerID)); err != nil {
		c.logger.Warn("failed to reset rate counter",
			slog.String("consumer_id", consumerID),
			slog.String("error", err.Error()),
		)
	}
}

// PendingCount returns the size of the pending table.
func (c *Correlator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Run sweeps expired entries periodically until ctx is cancelled.
func (c *Correlator) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.ttl() / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n := c.Sweep(); n > 0 {
				c.logger.Debug("expired pending requests", slog.Int("count", n))
			}
		}
	}
}

// Sweep removes entries older than the TTL and returns how many were removed.
func (c *Correlator) Sweep() int {
	cutoff := c.now().Add(-c.cfg.ttl())

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for requestID, req := range c.pending {
		if req.createdAt.Before(cutoff) {
			c.removeLocked(requestID, req.consumerID)
			removed++
		}
	}
	return removed
}

func (c *Correlator) remove(requestID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if req, ok := c.pending[requestID]; ok {
		c.removeLocked(requestID, req.consumerID)
	}
}

func (c *Correlator) removeLocked(requestID, consumerID string) {
	delete(c.pending, requestID)
	if set, ok := c.byConsumer[consumerID]; ok {
		delete(set, requestID)
		if len(set) == 0 {
			delete(c.byConsumer, consumerID)
		}
	}
}
