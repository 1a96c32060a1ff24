// Package feed wires the upstream connection supervisor into the gateway:
// inbound odds are normalized and merged into the snapshot store, scores are
// resolved against cached odds events, props are stored per book, and every
// mutation is published on the signal bus for the broadcast hub. Correlated
// query responses are routed back to their originating consumer.
package feed

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/sportfeed/oddsgate/internal/domain"
	"github.com/sportfeed/oddsgate/internal/normalize"
	"github.com/sportfeed/oddsgate/internal/resolve"
	"github.com/sportfeed/oddsgate/internal/snapshot"
)

// DirectSender delivers a payload to exactly one connected consumer.
// Implemented by the WebSocket hub.
type DirectSender interface {
	SendTo(consumerID, event string, payload json.RawMessage) bool
}

// ResponseRouter consumes the pending entry for a response's request id.
// Implemented by the request correlator.
type ResponseRouter interface {
	Resolve(requestID string) (consumerID string, ok bool)
}

// Pipeline implements linefeed.Handler. One malformed message is logged and
// dropped; it never aborts the batch or crashes the process.
type Pipeline struct {
	store    *snapshot.Store
	resolver *resolve.Resolver
	bus      domain.SignalBus
	router   ResponseRouter
	direct   DirectSender
	logger   *slog.Logger
}

// New creates a Pipeline. router and direct may be nil when on-demand queries
// are disabled.
func New(store *snapshot.Store, resolver *resolve.Resolver, bus domain.SignalBus, router ResponseRouter, direct DirectSender, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		store:    store,
		resolver: resolver,
		bus:      bus,
		router:   router,
		direct:   direct,
		logger:   logger.With(slog.String("component", "pipeline")),
	}
}

// HandleOdds normalizes one odds payload, merges it into the store, and
// publishes the merged view of every changed sport.
func (p *Pipeline) HandleOdds(ctx context.Context, event string, payload json.RawMessage) {
	batch, err := normalize.Normalize(payload)
	if err != nil {
		p.logger.Warn("dropping malformed odds payload",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
		return
	}

	if batch.Passthrough() {
		// Unrecognised shape: forwarded untouched, nothing to merge.
		p.publish(ctx, domain.ChannelOdds, batch.Raw)
		return
	}

	changed := p.store.MergeOdds(batch.Sports)
	if len(changed) == 0 {
		return
	}
	p.publishOddsView(ctx, changed)
}

// scoresPayload accepts both a bare array of score updates and an object
// wrapping them.
type scoresPayload struct {
	Scores []domain.ScoreUpdate `json:"scores"`
}

// HandleScores resolves each score update against the cached odds events and
// overlays the matched ones. Unmatched scores are not an error; the odds
// event simply goes out unscored.
func (p *Pipeline) HandleScores(ctx context.Context, payload json.RawMessage) {
	var updates []domain.ScoreUpdate
	if err := json.Unmarshal(payload, &updates); err != nil {
		var wrapped scoresPayload
		if err := json.Unmarshal(payload, &wrapped); err != nil || wrapped.Scores == nil {
			p.logger.Warn("dropping malformed scores payload", slog.Int("bytes", len(payload)))
			return
		}
		updates = wrapped.Scores
	}

	changedSports := make(map[string]struct{})
	for _, u := range updates {
		if u.SportKey == "" {
			continue
		}
		events := p.store.OddsView(u.SportKey)
		match, ok := p.resolver.Resolve(u, events)
		if !ok {
			p.logger.Debug("score did not resolve to an event",
				slog.String("sport", u.SportKey),
				slog.String("home", u.HomeTeam),
				slog.String("away", u.AwayTeam),
			)
			continue
		}
		if match.Flipped {
			u = u.Flipped()
		}
		eventKey := p.store.EventKey(events[match.Index])
		p.store.ApplyScore(u.SportKey, eventKey, u.Score)
		changedSports[u.SportKey] = struct{}{}
	}

	if len(changedSports) == 0 {
		return
	}
	sports := make([]string, 0, len(changedSports))
	for sportKey := range changedSports {
		sports = append(sports, sportKey)
	}

	p.publishScoresView(ctx, sports)
	// The merged odds+scores view changed too.
	p.publishOddsView(ctx, sports)
}

// propsPayload is one bookmaker's props message.
type propsPayload struct {
	SportKey string             `json:"sport_key"`
	Events   []domain.PropEvent `json:"events"`
}

// HandleProps stores a bookmaker's props verbatim under that book's slot and
// republishes the payload on the book's channel. Entitlement filtering
// happens at the broadcast boundary, not here.
func (p *Pipeline) HandleProps(ctx context.Context, bookKey string, payload json.RawMessage) {
	var msg propsPayload
	if err := json.Unmarshal(payload, &msg); err != nil || msg.SportKey == "" {
		p.logger.Warn("dropping malformed props payload", slog.String("book", bookKey))
		return
	}

	p.store.SetProps(bookKey, msg.SportKey, msg.Events)
	p.publish(ctx, domain.PropsChannel(bookKey), payload)
}

// responseEnvelope extracts the request id from a correlated response.
type responseEnvelope struct {
	RequestID string `json:"requestId"`
}

// HandleResponse routes a <query>-response to exactly the consumer whose
// pending request id it carries. Responses for unknown (expired) ids are
// ignored.
func (p *Pipeline) HandleResponse(ctx context.Context, event string, payload json.RawMessage) {
	if p.router == nil || p.direct == nil {
		return
	}

	var env responseEnvelope
	if err := json.Unmarshal(payload, &env); err != nil || env.RequestID == "" {
		p.logger.Warn("dropping response without request id", slog.String("event", event))
		return
	}

	consumerID, ok := p.router.Resolve(env.RequestID)
	if !ok {
		p.logger.Debug("ignoring late or unknown response",
			slog.String("event", event),
			slog.String("request_id", env.RequestID),
		)
		return
	}

	if !p.direct.SendTo(consumerID, event, payload) {
		p.logger.Debug("response consumer already disconnected",
			slog.String("consumer_id", consumerID),
		)
	}
}

// publishOddsView publishes the merged odds+scores view of the given sports.
func (p *Pipeline) publishOddsView(ctx context.Context, sports []string) {
	view := make(map[string][]domain.Event, len(sports))
	for _, sportKey := range sports {
		view[sportKey] = p.store.OddsView(sportKey)
	}
	data, err := json.Marshal(view)
	if err != nil {
		p.logger.Error("marshal odds view failed", slog.String("error", err.Error()))
		return
	}
	p.publish(ctx, domain.ChannelOdds, data)
}

// publishScoresView publishes the scores domain of the given sports.
func (p *Pipeline) publishScoresView(ctx context.Context, sports []string) {
	view := make(map[string]map[string]domain.ScoreSnapshot, len(sports))
	for _, sportKey := range sports {
		view[sportKey] = p.store.ScoresView(sportKey)
	}
	data, err := json.Marshal(view)
	if err != nil {
		p.logger.Error("marshal scores view failed", slog.String("error", err.Error()))
		return
	}
	p.publish(ctx, domain.ChannelScores, data)
}

func (p *Pipeline) publish(ctx context.Context, channel string, payload []byte) {
	if err := p.bus.Publish(ctx, channel, payload); err != nil {
		p.logger.Error("bus publish failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}
