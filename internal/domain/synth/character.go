package synth

import (
	"fmt"
	"hash/fnv"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/okian/cryptoheroes/internal/domain/model"
)

// DefaultRank is assigned to records that carry no market rank.
const DefaultRank = 999

const (
	maxDescriptionRunes = 200
	placeholderImage    = "/placeholder.svg"
	colorMask           = 0xFFFFFF
)

var tagPattern = regexp.MustCompile(`</?[^>]+(>|$)`)

// ToCharacter builds a full Character from a market record.
func ToCharacter(rec model.MarketRecord, now time.Time) model.Character {
	rank := effectiveRank(rec.MarketCapRank)
	updated := now.UTC()
	if rec.LastUpdated != nil && !rec.LastUpdated.IsZero() {
		updated = rec.LastUpdated.UTC()
	}

	image := rec.Image
	if image == "" {
		image = placeholderImage
	}

	name := rec.Name
	if name == "" {
		name = rec.ID
	}

	return model.Character{
		ID:          rec.ID,
		Name:        name,
		Symbol:      strings.ToUpper(rec.Symbol),
		Rank:        rank,
		Price:       nonNegative(rec.CurrentPrice),
		MarketCap:   nonNegative(rec.MarketCap),
		Stats:       Synthesize(rec, now),
		Color:       Color(rec.ID),
		Description: Description(rec.Description, name, rank),
		Image:       image,
		LastUpdated: updated,
	}
}

// Description strips HTML and truncates raw to 200 runes. An empty result
// falls back to a generated sentence.
func Description(raw, name string, rank int) string {
	text := strings.TrimSpace(html.UnescapeString(tagPattern.ReplaceAllString(raw, "")))
	if text == "" {
		return fmt.Sprintf("%s is a cryptocurrency ranked #%d.", name, rank)
	}
	runes := []rune(text)
	if len(runes) > maxDescriptionRunes {
		text = strings.TrimSpace(string(runes[:maxDescriptionRunes]))
	}
	return text
}

// Color returns a stable "#rrggbb" display colour for id.
func Color(id string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return fmt.Sprintf("#%06X", h.Sum32()&colorMask)
}

func nonNegative(v float64) float64 {
	v = finite(v)
	if v < 0 {
		return 0
	}
	return v
}
