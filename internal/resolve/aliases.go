package resolve

// DefaultAliases maps canonicalized (lower-cased, alphanumeric-only) team name
// variants onto one canonical institution key, so the same real-world team
// matches across sources that spell it differently. Score feeds tend to use
// short school/city names while odds feeds include mascots.
var DefaultAliases = map[string]string{
	// NBA city/mascot variants.
	"lalakers":             "losangeleslakers",
	"laclippers":           "losangelesclippers",
	"goldenstate":          "goldenstatewarriors",
	"okcthunder":           "oklahomacitythunder",
	"sanantonio":           "sanantoniospurs",
	"newyorkknicks":        "nyknicks",
	"portlandtrailblazers": "portland",

	// NFL shorthand.
	"neweng":     "newenglandpatriots",
	"newengland": "newenglandpatriots",
	"tampabay":   "tampabaybuccaneers",
	"greenbay":   "greenbaypackers",
	"kansascity": "kansascitychiefs",

	// College short forms vs. mascot-suffixed names.
	"stjohnsredstorm":       "stjohns",
	"saintjohns":            "stjohns",
	"olemissrebels":         "olemiss",
	"mississippi":           "olemiss",
	"uconnhuskies":          "uconn",
	"connecticut":           "uconn",
	"texasamaggies":         "texasam",
	"northcarolinatarheels": "northcarolina",
	"unctarheels":           "northcarolina",
	"usctrojans":            "usc",
	"southerncalifornia":    "usc",
	"lsutigers":             "lsu",
	"louisianastate":        "lsu",
	"byucougars":            "byu",
	"brighamyoung":          "byu",
	"smumustangs":           "smu",
	"southernmethodist":     "smu",
	"tcuhornedfrogs":        "tcu",
	"texaschristian":        "tcu",
	"ucfknights":            "ucf",
	"centralflorida":        "ucf",
	"unlvrebels":            "unlv",
	"utahstateaggies":       "utahstate",
	"pittpanthers":          "pittsburgh",
	"pitt":                  "pittsburgh",
}
