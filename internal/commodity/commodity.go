// Package commodity holds the fixed produce vocabulary shared by the
// sync pipeline, the cache store and the prediction client: canonical
// commodity labels, the supported market list with county lookups, the
// external predictor's aliases, and the composite cache key builder.
package commodity

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrUnsupportedCommodity = errors.New("unsupported commodity")
	ErrUnmappedMarket       = errors.New("unmapped market")
)

// Canonical commodity display labels.
const (
	Tomatoes    = "Tomatoes"
	Onions      = "Onions"
	IrishPotato = "Irish potato"
	Kale        = "Kale"
	Cabbage     = "Cabbage"
)

// Supported is the closed commodity set, in sync grid order.
var Supported = []string{Tomatoes, Onions, IrishPotato, Kale, Cabbage}

// Markets is the closed market set, in sync grid order.
var Markets = []string{"Wakulima", "Nakuru Market", "Kongowea", "Eldoret Main", "Kibuye"}

// DefaultSeedPrices are the fallback previous-month prices (KES/kg) used
// to seed the predictor when no cached observation exists for a pair.
var DefaultSeedPrices = map[string]float64{
	Tomatoes:    50,
	Onions:      60,
	IrishPotato: 40,
	Kale:        45,
	Cabbage:     35,
}

// predictorTokens maps canonical labels to the lowercase tokens the
// external predictor expects in request bodies.
var predictorTokens = map[string]string{
	Tomatoes:    "tomatoes",
	Onions:      "onion",
	IrishPotato: "potatoes",
	Kale:        "kale",
	Cabbage:     "cabbage",
}

// matchers translate free-form input into a canonical label. Checked in
// order, substring match against the lowercased input.
var matchers = []struct {
	substr string
	label  string
}{
	{"tomato", Tomatoes},
	{"onion", Onions},
	{"potato", IrishPotato},
	{"kale", Kale},
	{"sukuma", Kale},
	{"cabbage", Cabbage},
}

// marketCounties maps a lowercase market name fragment to its county.
var marketCounties = []struct {
	substr string
	county string
}{
	{"wakulima", "Nairobi"},
	{"nairobi", "Nairobi"},
	{"nakuru", "Nakuru"},
	{"kongowea", "Mombasa"},
	{"mombasa", "Mombasa"},
	{"eldoret", "Uasin Gishu"},
	{"kibuye", "Kisumu"},
	{"kisumu", "Kisumu"},
}

// predictorMarkets bridges the cache's market display names to the
// display form the external predictor was trained on. Markets not listed
// pass through unchanged.
var predictorMarkets = map[string]string{
	"Wakulima":      "Wakulima Market",
	"Nakuru Market": "Nakuru",
	"Eldoret Main":  "Eldoret",
}

// Normalize maps a free-form commodity name to its canonical label.
func Normalize(input string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(input))
	if s == "" {
		return "", ErrUnsupportedCommodity
	}
	for _, m := range matchers {
		if strings.Contains(s, m.substr) {
			return m.label, nil
		}
	}
	return "", ErrUnsupportedCommodity
}

// PredictorToken returns the predictor's lowercase token for a canonical
// label, or the lowercased label itself if no alias is registered.
func PredictorToken(canonical string) string {
	if tok, ok := predictorTokens[canonical]; ok {
		return tok
	}
	return strings.ToLower(canonical)
}

// PredictorMarket returns the predictor's display name for a market.
func PredictorMarket(marketLabel string) string {
	if m, ok := predictorMarkets[marketLabel]; ok {
		return m
	}
	return marketLabel
}

// ResolveCounty derives the county (admin1 region) for a market label.
func ResolveCounty(marketLabel string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(marketLabel))
	for _, m := range marketCounties {
		if strings.Contains(s, m.substr) {
			return m.county, nil
		}
	}
	return "", ErrUnmappedMarket
}

// SeedPrice returns the default previous-month seed for a canonical label.
func SeedPrice(canonical string) float64 {
	return DefaultSeedPrices[canonical]
}

// Slug lowercases a label and collapses non-alphanumeric runs into single
// underscores, with no leading or trailing separator.
func Slug(label string) string {
	var b strings.Builder
	lastSep := true // suppress leading separator
	for _, r := range strings.ToLower(label) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSep = false
		default:
			if !lastSep {
				b.WriteByte('_')
				lastSep = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// Key builds the deterministic composite cache key for one
// (commodity, market, day) observation.
func Key(canonical, marketLabel string, day time.Time) string {
	return Slug(canonical) + "_" + Slug(marketLabel) + "_" + day.Format("2006-01-02")
}
