// Package snapshot holds the gateway's authoritative in-memory view of each
// data domain: odds per sport, live scores per sport, and player props per
// bookmaker. The store is created empty at process start, mutated only by the
// feed pipeline, and read by the broadcast hub and the REST handlers. There is
// no persistence; a restart rebuilds it from the next upstream ticks.
package snapshot

import (
	"sync"

	"github.com/sportfeed/oddsgate/internal/domain"
	"github.com/sportfeed/oddsgate/internal/normalize"
	"github.com/sportfeed/oddsgate/internal/resolve"
)

// sportBucket keeps events keyed by identity plus their insertion order so
// reads are deterministic.
type sportBucket struct {
	events map[string]domain.Event
	order  []string
}

// Store is the merge-preserving snapshot cache. Each domain map is guarded by
// its own coarse lock; a merge is read-modify-write and completes atomically
// under that lock, without I/O.
type Store struct {
	keys *resolve.Resolver

	oddsMu sync.RWMutex
	odds   map[string]*sportBucket

	scoresMu sync.RWMutex
	scores   map[string]map[string]domain.ScoreSnapshot

	propsMu sync.RWMutex
	props   map[string]map[string][]domain.PropEvent
}

// New creates an empty Store. The resolver supplies the canonical team-pair
// keys used for event identity when the upstream carries no event id.
func New(keys *resolve.Resolver) *Store {
	return &Store{
		keys:   keys,
		odds:   make(map[string]*sportBucket),
		scores: make(map[string]map[string]domain.ScoreSnapshot),
		props:  make(map[string]map[string][]domain.PropEvent),
	}
}

// EventKey resolves an event's identity: the upstream event id when present,
// otherwise the canonical away@home pair key. Within one sport bucket no two
// events share the same key concurrently.
func (s *Store) EventKey(ev domain.Event) string {
	if ev.EventID != "" {
		return ev.EventID
	}
	return s.keys.PairKey(ev.AwayTeam, ev.HomeTeam)
}

// MergeOdds applies one normalized odds batch. Sports absent from the batch
// are left untouched. Returns the sport keys that were modified.
//
// Per event, identity is resolved via EventKey. A new identity is inserted
// as-is. For an existing identity, an incoming event with zero quotes is a
// heartbeat and keeps the cached quotes entirely; otherwise quotes are
// replaced per incoming book key and unioned with every cached quote whose
// book does not appear in the incoming set. Non-quote fields take the
// incoming value when present.
func (s *Store) MergeOdds(batch map[string][]domain.Event) []string {
	s.oddsMu.Lock()
	defer s.oddsMu.Unlock()

	changed := make([]string, 0, len(batch))
	for sportKey, incoming := range batch {
		bucket, ok := s.odds[sportKey]
		if !ok {
			bucket = &sportBucket{events: make(map[string]domain.Event)}
			s.odds[sportKey] = bucket
		}
		for _, ev := range incoming {
			key := s.EventKey(ev)
			prev, exists := bucket.events[key]
			if !exists {
				bucket.events[key] = ev.Clone()
				bucket.order = append(bucket.order, key)
				continue
			}
			bucket.events[key] = mergeEvent(prev, ev)
		}
		changed = append(changed, sportKey)
	}
	return changed
}

// mergeEvent folds an incoming event into the cached one per the §4.3-style
// merge: zero incoming quotes means heartbeat, otherwise per-book wholesale
// replacement unioned with untouched cached books.
func mergeEvent(prev, in domain.Event) domain.Event {
	out := prev.Clone()

	if in.EventID != "" {
		out.EventID = in.EventID
	}
	if in.HomeTeam != "" {
		out.HomeTeam = in.HomeTeam
	}
	if in.AwayTeam != "" {
		out.AwayTeam = in.AwayTeam
	}
	if !in.StartTime.IsZero() {
		out.StartTime = in.StartTime
	}

	if len(in.Quotes) == 0 {
		// Heartbeat: cached quotes survive untouched.
		return out
	}

	incomingBooks := make(map[string]struct{}, len(in.Quotes))
	merged := make([]domain.BookmakerQuote, 0, len(in.Quotes)+len(out.Quotes))
	for _, q := range in.Quotes {
		incomingBooks[q.BookKey] = struct{}{}
		merged = append(merged, q)
	}
	for _, q := range out.Quotes {
		if _, replaced := incomingBooks[q.BookKey]; !replaced {
			merged = append(merged, q)
		}
	}
	out.Quotes = merged

	// The quote union changed, so the derived averages must be recomputed
	// over the merged set.
	normalize.ComputeAverages(&out)
	return out
}

// ApplyScore records a score snapshot for the given event identity and, when
// the odds bucket holds that event, overlays the score onto it. Cached quotes
// are never touched by a score overlay. The scores domain itself is
// overwritten wholesale per event.
func (s *Store) ApplyScore(sportKey, eventKey string, sc domain.ScoreSnapshot) {
	s.scoresMu.Lock()
	bySport, ok := s.scores[sportKey]
	if !ok {
		bySport = make(map[string]domain.ScoreSnapshot)
		s.scores[sportKey] = bySport
	}
	bySport[eventKey] = sc
	s.scoresMu.Unlock()

	s.oddsMu.Lock()
	if bucket, ok := s.odds[sportKey]; ok {
		if ev, ok := bucket.events[eventKey]; ok {
			copied := sc
			ev.LiveScore = &copied
			bucket.events[eventKey] = ev
		}
	}
	s.oddsMu.Unlock()
}

// SetProps stores a bookmaker's props payload for one sport verbatim. There is
// no cross-book merge here; merging for consumption happens at the read
// boundary.
func (s *Store) SetProps(bookKey, sportKey string, events []domain.PropEvent) {
	s.propsMu.Lock()
	defer s.propsMu.Unlock()

	bySport, ok := s.props[bookKey]
	if !ok {
		bySport = make(map[string][]domain.PropEvent)
		s.props[bookKey] = bySport
	}
	bySport[sportKey] = append([]domain.PropEvent(nil), events...)
}

// OddsView returns deep copies of the cached events for one sport, in
// insertion order, with live scores already overlaid.
func (s *Store) OddsView(sportKey string) []domain.Event {
	s.oddsMu.RLock()
	defer s.oddsMu.RUnlock()

	bucket, ok := s.odds[sportKey]
	if !ok {
		return nil
	}
	out := make([]domain.Event, 0, len(bucket.order))
	for _, key := range bucket.order {
		out = append(out, bucket.events[key].Clone())
	}
	return out
}

// AllOdds returns the full merged odds view keyed by sport.
func (s *Store) AllOdds() map[string][]domain.Event {
	s.oddsMu.RLock()
	sports := make([]string, 0, len(s.odds))
	for sportKey := range s.odds {
		sports = append(sports, sportKey)
	}
	s.oddsMu.RUnlock()

	out := make(map[string][]domain.Event, len(sports))
	for _, sportKey := range sports {
		out[sportKey] = s.OddsView(sportKey)
	}
	return out
}

// ScoresView returns a copy of the scores domain for one sport, keyed by
// event identity.
func (s *Store) ScoresView(sportKey string) map[string]domain.ScoreSnapshot {
	s.scoresMu.RLock()
	defer s.scoresMu.RUnlock()

	bySport, ok := s.scores[sportKey]
	if !ok {
		return nil
	}
	out := make(map[string]domain.ScoreSnapshot, len(bySport))
	for k, v := range bySport {
		out[k] = v
	}
	return out
}

// AllScores returns the full scores domain keyed by sport.
func (s *Store) AllScores() map[string]map[string]domain.ScoreSnapshot {
	s.scoresMu.RLock()
	sports := make([]string, 0, len(s.scores))
	for sportKey := range s.scores {
		sports = append(sports, sportKey)
	}
	s.scoresMu.RUnlock()

	out := make(map[string]map[string]domain.ScoreSnapshot, len(sports))
	for _, sportKey := range sports {
		out[sportKey] = s.ScoresView(sportKey)
	}
	return out
}

// PropsView returns a copy of one bookmaker's props domain keyed by sport.
func (s *Store) PropsView(bookKey string) map[string][]domain.PropEvent {
	s.propsMu.RLock()
	defer s.propsMu.RUnlock()

	bySport, ok := s.props[bookKey]
	if !ok {
		return nil
	}
	out := make(map[string][]domain.PropEvent, len(bySport))
	for sportKey, events := range bySport {
		out[sportKey] = append([]domain.PropEvent(nil), events...)
	}
	return out
}

// PropBooks returns the bookmaker keys that currently hold props data.
func (s *Store) PropBooks() []string {
	s.propsMu.RLock()
	defer s.propsMu.RUnlock()

	out := make([]string, 0, len(s.props))
	for bookKey := range s.props {
		out = append(out, bookKey)
	}
	return out
}
