// Package normalize converts the upstream feed's heterogeneous odds payload
// shapes into the canonical sportKey -> []Event structure and computes the
// derived cross-book average odds attached to every event.
package normalize

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sportfeed/oddsgate/internal/domain"
)

// Batch is the result of normalizing one upstream odds payload. Exactly one
// of Sports or Raw is populated: Sports for the canonical shapes, Raw for the
// last-resort passthrough of an unrecognised object, which downstream
// consumers must tolerate.
type Batch struct {
	Sports map[string][]domain.Event
	Raw    json.RawMessage
}

// Passthrough reports whether the batch carries an unrecognised payload.
func (b Batch) Passthrough() bool { return b.Raw != nil }

// rawEvent accepts the accepted spellings for every event field. Each
// accessor applies the spellings as a priority-ordered alias list.
type rawEvent struct {
	ID      string `json:"id"`
	EventID string `json:"event_id"`
	IDAlt   string `json:"eventId"`

	SportKey    string `json:"sport_key"`
	SportKeyAlt string `json:"sportKey"`
	Sport       string `json:"sport"`
	League      string `json:"league"`

	HomeTeam    string `json:"home_team"`
	HomeTeamAlt string `json:"homeTeam"`
	Home        string `json:"home"`

	AwayTeam    string `json:"away_team"`
	AwayTeamAlt string `json:"awayTeam"`
	Away        string `json:"away"`

	CommenceTime    string `json:"commence_time"`
	CommenceTimeAlt string `json:"commenceTime"`
	StartTime       string `json:"start_time"`

	Bookmakers []rawBookmaker `json:"bookmakers"`
	Sites      []rawBookmaker `json:"sites"`
}

type rawBookmaker struct {
	Key      string          `json:"key"`
	SiteKey  string          `json:"site_key"`
	Title    string          `json:"title"`
	SiteNice string          `json:"site_nice"`
	LastUpd  string          `json:"last_update"`
	Markets  []domain.Market `json:"markets"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (r rawEvent) eventID() string  { return firstNonEmpty(r.ID, r.EventID, r.IDAlt) }
func (r rawEvent) homeTeam() string { return firstNonEmpty(r.HomeTeam, r.HomeTeamAlt, r.Home) }
func (r rawEvent) awayTeam() string { return firstNonEmpty(r.AwayTeam, r.AwayTeamAlt, r.Away) }

func (r rawEvent) sportTag() string {
	return firstNonEmpty(r.SportKey, r.SportKeyAlt, r.Sport, r.League)
}

func (r rawEvent) startTime() time.Time {
	raw := firstNonEmpty(r.CommenceTime, r.CommenceTimeAlt, r.StartTime)
	if raw == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t
	}
	return time.Time{}
}

func (r rawEvent) toEvent(sportKey string) domain.Event {
	books := r.Bookmakers
	if len(books) == 0 {
		books = r.Sites
	}
	quotes := make([]domain.BookmakerQuote, 0, len(books))
	for _, b := range books {
		key := firstNonEmpty(b.Key, b.SiteKey)
		if key == "" {
			continue
		}
		q := domain.BookmakerQuote{
			BookKey: key,
			Title:   firstNonEmpty(b.Title, b.SiteNice),
			Markets: b.Markets,
		}
		if b.LastUpd != "" {
			if t, err := time.Parse(time.RFC3339, b.LastUpd); err == nil {
				q.LastUpdate = t
			}
		}
		quotes = append(quotes, q)
	}

	ev := domain.Event{
		EventID:   r.eventID(),
		SportKey:  sportKey,
		HomeTeam:  r.homeTeam(),
		AwayTeam:  r.awayTeam(),
		StartTime: r.startTime(),
		Quotes:    quotes,
	}
	ComputeAverages(&ev)
	return ev
}

// Normalize converts one upstream odds payload into a Batch. It accepts, in
// order:
//
//  1. an object keyed by canonical sport key, each value an event array;
//  2. a flat array of events tagged with an external league vocabulary,
//     mapped through CanonicalSportKey (unmapped events are dropped);
//  3. any other object, passed through raw.
func Normalize(payload json.RawMessage) (Batch, error) {
	trimmed := firstByte(payload)
	switch trimmed {
	case '{':
		if sports, ok := decodeKeyedBySport(payload); ok {
			return Batch{Sports: sports}, nil
		}
		// Unrecognised object: last-resort passthrough.
		return Batch{Raw: payload}, nil
	case '[':
		sports, err := decodeFlatArray(payload)
		if err != nil {
			return Batch{}, err
		}
		return Batch{Sports: sports}, nil
	default:
		return Batch{}, fmt.Errorf("normalize: unsupported payload shape")
	}
}

// firstByte returns the first non-whitespace byte of raw, or zero.
func firstByte(raw []byte) byte {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		}
		return b
	}
	return 0
}

func decodeKeyedBySport(payload json.RawMessage) (map[string][]domain.Event, bool) {
	var keyed map[string]json.RawMessage
	if err := json.Unmarshal(payload, &keyed); err != nil {
		return nil, false
	}

	sports := make(map[string][]domain.Event, len(keyed))
	for sportKey, rawEvents := range keyed {
		var raws []rawEvent
		if err := json.Unmarshal(rawEvents, &raws); err != nil {
			// A value that is not an event array means the payload is not
			// the canonical shape at all.
			return nil, false
		}
		events := make([]domain.Event, 0, len(raws))
		for _, r := range raws {
			events = append(events, r.toEvent(sportKey))
		}
		sports[sportKey] = events
	}
	return sports, true
}

func decodeFlatArray(payload json.RawMessage) (map[string][]domain.Event, error) {
	var raws []rawEvent
	if err := json.Unmarshal(payload, &raws); err != nil {
		return nil, fmt.Errorf("normalize: decode event array: %w", err)
	}

	sports := make(map[string][]domain.Event)
	for _, r := range raws {
		tag := r.sportTag()
		sportKey, ok := CanonicalSportKey(tag)
		if !ok {
			// Already canonical tags pass straight through; everything else
			// without a mapping is dropped.
			if _, known := externalSportKeys[tag]; !known && !looksCanonical(tag) {
				continue
			}
			sportKey = tag
		}
		sports[sportKey] = append(sports[sportKey], r.toEvent(sportKey))
	}
	return sports, nil
}

// looksCanonical reports whether a sport tag is already in the canonical
// "<group>_<league>" form.
func looksCanonical(tag string) bool {
	for i := 0; i < len(tag); i++ {
		if tag[i] == '_' {
			return i > 0 && i < len(tag)-1
		}
		if tag[i] >= 'A' && tag[i] <= 'Z' {
			return false
		}
	}
	return false
}
