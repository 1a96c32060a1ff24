// Package resolve matches live score updates to cached odds events despite
// inconsistent identifiers across the two sources. Matching is attempted in a
// fixed order, first match wins: exact event id, canonical alias-resolved
// team-pair key, then a conservative fuzzy prefix match that requires both
// sides to agree.
package resolve

import (
	"strings"

	"github.com/sportfeed/oddsgate/internal/domain"
)

// Resolver matches score updates against odds events using a fixed alias
// table. The zero value is unusable; use New.
type Resolver struct {
	aliases map[string]string
}

// New creates a Resolver with the given alias table. Pass DefaultAliases for
// the built-in table; a nil map disables alias resolution.
func New(aliases map[string]string) *Resolver {
	return &Resolver{aliases: aliases}
}

// Match is the result of resolving one score update against a set of events.
type Match struct {
	// Index of the matched event within the slice passed to Resolve.
	Index int

	// Flipped is true when the score's home/away orientation is reversed
	// relative to the odds event, and the score sides must be swapped before
	// the overlay.
	Flipped bool
}

// Resolve finds the odds event the score update belongs to. It returns false
// when no event matches; that is not an error, the odds event simply stays
// unscored for this cycle.
func (r *Resolver) Resolve(update domain.ScoreUpdate, events []domain.Event) (Match, bool) {
	// 1. Exact event id.
	if update.EventID != "" {
		for i := range events {
			if events[i].EventID != "" && events[i].EventID == update.EventID {
				return Match{Index: i}, true
			}
		}
	}

	scoreHome := r.TeamKey(update.HomeTeam)
	scoreAway := r.TeamKey(update.AwayTeam)
	if scoreHome == "" || scoreAway == "" {
		return Match{}, false
	}

	// 2. Canonical team-pair key equality.
	scorePair := scoreAway + "@" + scoreHome
	for i := range events {
		if r.PairKey(events[i].AwayTeam, events[i].HomeTeam) == scorePair {
			return Match{Index: i}, true
		}
	}

	// 3. Fuzzy prefix match. Both sides must satisfy the prefix relation;
	// a single-side match is rejected to avoid false positives on common
	// team names. The swapped orientation is tried as well and produces a
	// score-side flip when it is the one that matches.
	for i := range events {
		oddsHome := r.TeamKey(events[i].HomeTeam)
		oddsAway := r.TeamKey(events[i].AwayTeam)
		if prefixMatch(scoreHome, oddsHome) && prefixMatch(scoreAway, oddsAway) {
			return Match{Index: i}, true
		}
		if prefixMatch(scoreHome, oddsAway) && prefixMatch(scoreAway, oddsHome) {
			return Match{Index: i, Flipped: true}, true
		}
	}

	return Match{}, false
}

// TeamKey canonicalizes a team name: lower-cased, stripped of all
// non-alphanumeric characters, then passed through the alias table.
func (r *Resolver) TeamKey(name string) string {
	key := canonicalize(name)
	if alias, ok := r.aliases[key]; ok {
		return alias
	}
	return key
}

// PairKey builds the canonical away@home identity key for a team pair.
func (r *Resolver) PairKey(away, home string) string {
	return r.TeamKey(away) + "@" + r.TeamKey(home)
}

// canonicalize lower-cases a name and strips everything outside [a-z0-9].
func canonicalize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, c := range strings.ToLower(name) {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			b.WriteRune(c)
		}
	}
	return b.String()
}

// prefixMatch reports whether one canonical key is a prefix of the other.
// Empty keys never match.
func prefixMatch(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.HasPrefix(a, b) || strings.HasPrefix(b, a)
}
