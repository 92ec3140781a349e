// Package synth derives the four combat stats of a character from a raw
// market-data record. Every function here is total: missing or degenerate
// inputs fall back to documented defaults instead of failing.
package synth

import (
	"math"
	"strings"
	"time"
	"unicode"
	"unicode/utf16"

	"github.com/okian/cryptoheroes/internal/domain/model"
)

// Stat bounds and defaults.
const (
	statFloor        = 50
	strengthCeil     = 95
	speedCeil        = 95
	intelligenceCeil = 98
	charismaCeil     = 98

	baseStat     = 65
	defaultSpeed = 65

	// log10 of the largest plausible market cap (about 1e12 USD).
	capMagnitude = 12.0
	speedScale   = 1000.0

	maxAgeBonus      = 10.0
	assumedAgeDays   = 3650.0
	memeBonus        = 25
	hoursPerDay      = 24
	genesisDateShort = "2006-01-02"
)

// Category bonuses for intelligence, checked in order; first match wins.
var intelligenceCategories = []struct { //nolint:gochecknoglobals // immutable lookup table
	bonus    int
	keywords []string
	tokens   []string
}{
	{bonus: 12, keywords: []string{"smart contract", "platform"}},
	{bonus: 8, keywords: []string{"defi", "finance"}},
	{bonus: 10, keywords: []string{"oracle"}, tokens: []string{"ai"}},
	{bonus: 7, keywords: []string{"privacy"}},
}

var memeKeywords = []string{"meme", "dog"} //nolint:gochecknoglobals // immutable lookup table

// Strength maps market capitalization onto [50,95] on a log scale.
func Strength(marketCap float64) int {
	magnitude := math.Log10(math.Max(1, finite(marketCap)))
	return clampRound(magnitude/capMagnitude*100, statFloor, strengthCeil)
}

// Speed is the 24h volume to market cap turnover, scaled and offset into
// [50,95]. A missing, zero or negative input yields 65.
func Speed(volume, marketCap float64) int {
	volume, marketCap = finite(volume), finite(marketCap)
	if volume <= 0 || marketCap <= 0 {
		return defaultSpeed
	}
	return clampRound(volume/marketCap*speedScale+baseStat, statFloor, speedCeil)
}

// Intelligence combines category, age, rank tier and identifier variance.
func Intelligence(rec model.MarketRecord, now time.Time) int {
	rank := effectiveRank(rec.MarketCapRank)
	v := float64(baseStat + categoryBonus(rec.Categories))
	v += AgeBonus(ageDays(rec.GenesisDate, rank, now))
	v += float64(intelligenceRankBonus(rank))
	v += float64(IdentifierVariance(rec.ID))
	return clampRound(v, statFloor, intelligenceCeil)
}

// Charisma rewards meme tags and well-known (low rank) assets.
func Charisma(rec model.MarketRecord) int {
	v := baseStat
	if hasAny(rec.Categories, memeKeywords, nil) {
		v += memeBonus
	}
	v += charismaRankBonus(effectiveRank(rec.MarketCapRank))
	return clamp(v, statFloor, charismaCeil)
}

// Synthesize derives all four stats, each clamped to [0,100].
func Synthesize(rec model.MarketRecord, now time.Time) model.Stats {
	return model.Stats{
		Strength:     clamp(Strength(rec.MarketCap), 0, 100),
		Speed:        clamp(Speed(rec.TotalVolume, rec.MarketCap), 0, 100),
		Intelligence: clamp(Intelligence(rec, now), 0, 100),
		Charisma:     clamp(Charisma(rec), 0, 100),
	}
}

// IdentifierVariance is a small deterministic offset in [-4,+5] derived from
// the identifier: the sum of its UTF-16 code units modulo 10, minus 4.
// Characters outside the Basic Multilingual Plane count as their two
// surrogate units, and invalid UTF-8 bytes count as U+FFFD.
func IdentifierVariance(id string) int {
	sum := 0
	for _, u := range utf16.Encode([]rune(id)) {
		sum += int(u)
	}
	return sum%10 - 4
}

// AgeBonus is min(10, log10(max(1, days))).
func AgeBonus(days float64) float64 {
	return math.Min(maxAgeBonus, math.Log10(math.Max(1, finite(days))))
}

func intelligenceRankBonus(rank int) int {
	switch {
	case rank <= 5:
		return 15
	case rank <= 20:
		return 10
	case rank <= 50:
		return 5
	default:
		return 0
	}
}

func charismaRankBonus(rank int) int {
	switch {
	case rank <= 10:
		return 20
	case rank <= 25:
		return 15
	case rank <= 50:
		return 10
	case rank <= 100:
		return 5
	default:
		return 0
	}
}

func categoryBonus(categories []string) int {
	for _, c := range intelligenceCategories {
		if hasAny(categories, c.keywords, c.tokens) {
			return c.bonus
		}
	}
	return 0
}

// hasAny reports whether any category contains one of keywords as a
// substring or one of tokens as a whole word (case-insensitive).
func hasAny(categories, keywords, tokens []string) bool {
	for _, cat := range categories {
		lc := strings.ToLower(cat)
		for _, k := range keywords {
			if strings.Contains(lc, k) {
				return true
			}
		}
		if len(tokens) == 0 {
			continue
		}
		words := strings.FieldsFunc(lc, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		for _, w := range words {
			for _, t := range tokens {
				if w == t {
					return true
				}
			}
		}
	}
	return false
}

// ageDays returns the days elapsed since genesis. Without a usable genesis
// date the age is assumed to be 3650/rank days, so better-ranked assets are
// treated as older.
func ageDays(genesis string, rank int, now time.Time) float64 {
	if t, ok := parseGenesis(genesis); ok {
		return now.Sub(t).Hours() / hoursPerDay
	}
	return assumedAgeDays / float64(rank)
}

func parseGenesis(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{genesisDateShort, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func effectiveRank(rank int) int {
	if rank < 1 {
		return DefaultRank
	}
	return rank
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// clampRound bounds v to [lo,hi] before rounding so huge or infinite
// values never reach the int conversion.
func clampRound(v float64, lo, hi int) int {
	if math.IsNaN(v) {
		return lo
	}
	return int(math.Round(math.Min(math.Max(v, float64(lo)), float64(hi))))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
