package normalize

// externalSportKeys maps the short league vocabulary used by some upstream
// shapes onto the canonical sport keys the rest of the gateway is keyed by.
// Events tagged with a league that has no mapping here are dropped rather
// than being parked in an "unknown" bucket.
var externalSportKeys = map[string]string{
	"NFL":    "americanfootball_nfl",
	"NCAAF":  "americanfootball_ncaaf",
	"NBA":    "basketball_nba",
	"NCAAB":  "basketball_ncaab",
	"WNBA":   "basketball_wnba",
	"MLB":    "baseball_mlb",
	"NHL":    "icehockey_nhl",
	"EPL":    "soccer_epl",
	"MLS":    "soccer_usa_mls",
	"UCL":    "soccer_uefa_champs_league",
	"ATP":    "tennis_atp",
	"WTA":    "tennis_wta",
	"UFC":    "mma_mixed_martial_arts",
	"BOXING": "boxing_boxing",
}

// CanonicalSportKey resolves an external league tag to its canonical sport
// key. ok is false when the tag has no mapping.
func CanonicalSportKey(external string) (string, bool) {
	key, ok := externalSportKeys[external]
	return key, ok
}
