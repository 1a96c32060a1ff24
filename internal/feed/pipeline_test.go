package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/sportfeed/oddsgate/internal/domain"
	"github.com/sportfeed/oddsgate/internal/resolve"
	"github.com/sportfeed/oddsgate/internal/snapshot"
)

type publishedMsg struct {
	channel string
	payload []byte
}

// memoryBus records publishes; Subscribe is unused by the pipeline.
type memoryBus struct {
	published []publishedMsg
}

func (b *memoryBus) Publish(ctx context.Context, channel string, payload []byte) error {
	b.published = append(b.published, publishedMsg{channel: channel, payload: payload})
	return nil
}

func (b *memoryBus) Subscribe(ctx context.Context, channel string) (<-chan domain.BusMessage, error) {
	ch := make(chan domain.BusMessage)
	close(ch)
	return ch, nil
}

var _ domain.SignalBus = (*memoryBus)(nil)

func (b *memoryBus) onChannel(channel string) [][]byte {
	var out [][]byte
	for _, m := range b.published {
		if m.channel == channel {
			out = append(out, m.payload)
		}
	}
	return out
}

type fakeRouter struct {
	consumers map[string]string
}

func (f *fakeRouter) Resolve(requestID string) (string, bool) {
	id, ok := f.consumers[requestID]
	return id, ok
}

type fakeDirect struct {
	sent []struct {
		consumerID string
		event      string
	}
	connected bool
}

func (f *fakeDirect) SendTo(consumerID, event string, payload json.RawMessage) bool {
	f.sent = append(f.sent, struct {
		consumerID string
		event      string
	}{consumerID, event})
	return f.connected
}

func newTestPipeline(bus *memoryBus, router ResponseRouter, direct DirectSender) (*Pipeline, *snapshot.Store) {
	resolver := resolve.New(resolve.DefaultAliases)
	store := snapshot.New(resolver)
	return New(store, resolver, bus, router, direct, slog.New(slog.DiscardHandler)), store
}

func TestHandleOdds_MergesAndPublishesMergedView(t *testing.T) {
	bus := &memoryBus{}
	p, store := newTestPipeline(bus, nil, nil)
	ctx := context.Background()

	// Two batches from different books for the same fixture. The published
	// view after the second must carry both books.
	p.HandleOdds(ctx, "odds-update", json.RawMessage(`{
		"basketball_nba": [
			{"id": "ev1", "home_team": "Lakers", "away_team": "Celtics",
			 "bookmakers": [{"key": "pinnacle", "markets": []}]}
		]
	}`))
	p.HandleOdds(ctx, "odds-update", json.RawMessage(`{
		"basketball_nba": [
			{"id": "ev1", "home_team": "Lakers", "away_team": "Celtics",
			 "bookmakers": [{"key": "fanduel", "markets": []}]}
		]
	}`))

	published := bus.onChannel(domain.ChannelOdds)
	if len(published) != 2 {
		t.Fatalf("got %d odds publishes, want 2", len(published))
	}

	var view map[string][]domain.Event
	if err := json.Unmarshal(published[1], &view); err != nil {
		t.Fatalf("published view is not a sport map: %v", err)
	}
	events := view["basketball_nba"]
	if len(events) != 1 || len(events[0].Quotes) != 2 {
		t.Errorf("published view = %+v, want one event with both books", events)
	}

	if got := store.OddsView("basketball_nba"); len(got[0].Quotes) != 2 {
		t.Errorf("store quotes = %d, want 2", len(got[0].Quotes))
	}
}

func TestHandleOdds_MalformedPayloadDropped(t *testing.T) {
	bus := &memoryBus{}
	p, _ := newTestPipeline(bus, nil, nil)

	p.HandleOdds(context.Background(), "odds-update", json.RawMessage(`"not odds"`))

	if len(bus.published) != 0 {
		t.Errorf("published %d messages for a malformed payload, want 0", len(bus.published))
	}
}

func TestHandleOdds_UnrecognisedObjectForwardedUntouched(t *testing.T) {
	bus := &memoryBus{}
	p, store := newTestPipeline(bus, nil, nil)

	raw := json.RawMessage(`{"notice": "maintenance window"}`)
	p.HandleOdds(context.Background(), "odds-update", raw)

	published := bus.onChannel(domain.ChannelOdds)
	if len(published) != 1 || string(published[0]) != string(raw) {
		t.Errorf("published = %v, want the raw payload forwarded once", published)
	}
	if got := store.AllOdds(); len(got) != 0 {
		t.Errorf("store = %+v, want untouched by a passthrough payload", got)
	}
}

func TestHandleScores_ResolvesAndPublishesBothViews(t *testing.T) {
	bus := &memoryBus{}
	p, store := newTestPipeline(bus, nil, nil)
	ctx := context.Background()

	p.HandleOdds(ctx, "odds-update", json.RawMessage(`{
		"basketball_nba": [
			{"id": "ev1", "home_team": "Milwaukee Bucks", "away_team": "Denver Nuggets",
			 "bookmakers": [{"key": "pinnacle", "markets": []}]}
		]
	}`))
	before := len(bus.published)

	// Score feed uses short names; the resolver's fuzzy pass matches both sides.
	p.HandleScores(ctx, json.RawMessage(`[
		{"sport_key": "basketball_nba", "home_team": "Milwaukee", "away_team": "Denver",
		 "score": {"home_score": 101, "away_score": 98, "period": "Q4"}}
	]`))

	ev := store.OddsView("basketball_nba")[0]
	if ev.LiveScore == nil || ev.LiveScore.HomeScore != 101 {
		t.Fatalf("LiveScore = %+v, want overlay applied", ev.LiveScore)
	}

	after := bus.published[before:]
	if len(after) != 2 {
		t.Fatalf("got %d publishes for a score mutation, want scores and odds views", len(after))
	}
	if after[0].channel != domain.ChannelScores || after[1].channel != domain.ChannelOdds {
		t.Errorf("channels = %s,%s, want %s,%s",
			after[0].channel, after[1].channel, domain.ChannelScores, domain.ChannelOdds)
	}
}

func TestHandleScores_SwappedOrientationFlipsScore(t *testing.T) {
	bus := &memoryBus{}
	p, store := newTestPipeline(bus, nil, nil)
	ctx := context.Background()

	p.HandleOdds(ctx, "odds-update", json.RawMessage(`{
		"basketball_nba": [
			{"id": "ev1", "home_team": "Milwaukee Bucks", "away_team": "Denver Nuggets",
			 "bookmakers": [{"key": "pinnacle", "markets": []}]}
		]
	}`))

	// The score feed has the sides reversed relative to the odds event.
	p.HandleScores(ctx, json.RawMessage(`[
		{"sport_key": "basketball_nba", "home_team": "Denver", "away_team": "Milwaukee",
		 "score": {"home_score": 98, "away_score": 101}}
	]`))

	ev := store.OddsView("basketball_nba")[0]
	if ev.LiveScore == nil {
		t.Fatal("LiveScore = nil, want flipped overlay")
	}
	if ev.LiveScore.HomeScore != 101 || ev.LiveScore.AwayScore != 98 {
		t.Errorf("LiveScore = %d-%d, want 101-98 after flip", ev.LiveScore.HomeScore, ev.LiveScore.AwayScore)
	}
}

func TestHandleScores_UnmatchedScoreIsNotAnError(t *testing.T) {
	bus := &memoryBus{}
	p, _ := newTestPipeline(bus, nil, nil)

	p.HandleScores(context.Background(), json.RawMessage(`[
		{"sport_key": "basketball_nba", "home_team": "Nobody", "away_team": "Played", "score": {"home_score": 1}}
	]`))

	if len(bus.published) != 0 {
		t.Errorf("published %d messages for an unmatched score, want 0", len(bus.published))
	}
}

func TestHandleScores_WrappedPayloadAccepted(t *testing.T) {
	bus := &memoryBus{}
	p, store := newTestPipeline(bus, nil, nil)
	ctx := context.Background()

	p.HandleOdds(ctx, "odds-update", json.RawMessage(`{
		"basketball_nba": [
			{"id": "ev1", "home_team": "Milwaukee Bucks", "away_team": "Denver Nuggets",
			 "bookmakers": [{"key": "pinnacle", "markets": []}]}
		]
	}`))

	p.HandleScores(ctx, json.RawMessage(`{"scores": [
		{"sport_key": "basketball_nba", "home_team": "Milwaukee", "away_team": "Denver", "score": {"home_score": 55}}
	]}`))

	if ev := store.OddsView("basketball_nba")[0]; ev.LiveScore == nil || ev.LiveScore.HomeScore != 55 {
		t.Errorf("LiveScore = %+v, want wrapped payload applied", ev.LiveScore)
	}
}

func TestHandleProps_StoresAndRepublishesOnBookChannel(t *testing.T) {
	bus := &memoryBus{}
	p, store := newTestPipeline(bus, nil, nil)

	payload := json.RawMessage(`{"sport_key": "basketball_nba", "events": [
		{"id": "ev1", "home_team": "Lakers", "away_team": "Celtics", "props": []}
	]}`)
	p.HandleProps(context.Background(), "fanduel", payload)

	published := bus.onChannel(domain.PropsChannel("fanduel"))
	if len(published) != 1 || string(published[0]) != string(payload) {
		t.Errorf("props publish = %v, want payload republished verbatim", published)
	}
	if got := store.PropsView("fanduel"); len(got["basketball_nba"]) != 1 {
		t.Errorf("props view = %+v, want stored events", got)
	}
}

func TestHandleResponse_RoutesToOriginatingConsumer(t *testing.T) {
	bus := &memoryBus{}
	router := &fakeRouter{consumers: map[string]string{"req-1": "consumer-a"}}
	direct := &fakeDirect{connected: true}
	p, _ := newTestPipeline(bus, router, direct)

	p.HandleResponse(context.Background(), "player-stats-response",
		json.RawMessage(`{"requestId": "req-1", "stats": {}}`))

	if len(direct.sent) != 1 {
		t.Fatalf("sent %d direct messages, want 1", len(direct.sent))
	}
	if direct.sent[0].consumerID != "consumer-a" || direct.sent[0].event != "player-stats-response" {
		t.Errorf("sent = %+v, want consumer-a/player-stats-response", direct.sent[0])
	}
	// Correlated responses are never broadcast.
	if len(bus.published) != 0 {
		t.Errorf("published %d bus messages for a correlated response, want 0", len(bus.published))
	}
}

func TestHandleResponse_UnknownRequestIgnored(t *testing.T) {
	bus := &memoryBus{}
	router := &fakeRouter{consumers: map[string]string{}}
	direct := &fakeDirect{connected: true}
	p, _ := newTestPipeline(bus, router, direct)

	p.HandleResponse(context.Background(), "player-stats-response",
		json.RawMessage(`{"requestId": "expired"}`))

	if len(direct.sent) != 0 {
		t.Errorf("sent %d direct messages for an unknown request id, want 0", len(direct.sent))
	}
}

func TestHandleResponse_MissingRequestIDDropped(t *testing.T) {
	bus := &memoryBus{}
	router := &fakeRouter{consumers: map[string]string{"req-1": "consumer-a"}}
	direct := &fakeDirect{connected: true}
	p, _ := newTestPipeline(bus, router, direct)

	p.HandleResponse(context.Background(), "player-stats-response", json.RawMessage(`{"stats": {}}`))

	if len(direct.sent) != 0 {
		t.Errorf("sent %d direct messages for a response without an id, want 0", len(direct.sent))
	}
}
