// Package battle turns characters into comparable battle scores and decides
// outcomes.
//
// A score is
//
//	max(0, round((weighted stats + rank bonus + cap bonus) * factor))
//
// where factor is drawn uniformly from [0.9, 1.1] by default.
package battle

import (
	"fmt"
	"math"

	"github.com/okian/cryptoheroes/internal/domain/model"
)

// Default scorer parameters.
const (
	DefaultFactorMin     = 0.9
	DefaultFactorMax     = 1.1
	DefaultCapDivisor    = 1e9
	DefaultCapMultiplier = 4.0
	defaultSeed          = 42
)

// Weights multiply each stat. A valid set satisfies
// Strength >= Intelligence >= Speed >= Charisma > 0.
type Weights struct {
	Strength     float64
	Speed        float64
	Intelligence float64
	Charisma     float64
}

// DefaultWeights favours strength and intelligence.
var DefaultWeights = Weights{Strength: 1.2, Speed: 0.8, Intelligence: 1.0, Charisma: 0.5} //nolint:gochecknoglobals // read-only defaults

// Validate checks the ordering contract.
func (w Weights) Validate() error {
	for _, v := range []float64{w.Strength, w.Speed, w.Intelligence, w.Charisma} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite weight", ErrInvalidWeights)
		}
	}
	if w.Strength < w.Intelligence || w.Intelligence < w.Speed || w.Speed < w.Charisma || w.Charisma <= 0 {
		return fmt.Errorf("%w: want strength >= intelligence >= speed >= charisma > 0, got %+v", ErrInvalidWeights, w)
	}
	return nil
}

// RankTier grants Bonus to every rank up to and including MaxRank.
type RankTier struct {
	MaxRank int
	Bonus   float64
}

// DefaultRankTable is the tiered rank bonus. Ranks past the last tier get 0.
var DefaultRankTable = []RankTier{ //nolint:gochecknoglobals // read-only defaults
	{MaxRank: 1, Bonus: 30},
	{MaxRank: 2, Bonus: 25},
	{MaxRank: 3, Bonus: 20},
	{MaxRank: 5, Bonus: 15},
	{MaxRank: 10, Bonus: 10},
	{MaxRank: 20, Bonus: 6},
	{MaxRank: 50, Bonus: 3},
	{MaxRank: 100, Bonus: 1},
}

// ValidateRankTable requires strictly increasing thresholds and
// non-negative, non-increasing bonuses.
func ValidateRankTable(table []RankTier) error {
	if len(table) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidRankTable)
	}
	for i, t := range table {
		if t.MaxRank < 1 || t.Bonus < 0 || math.IsNaN(t.Bonus) || math.IsInf(t.Bonus, 0) {
			return fmt.Errorf("%w: tier %d %+v", ErrInvalidRankTable, i, t)
		}
		if i == 0 {
			continue
		}
		prev := table[i-1]
		if t.MaxRank <= prev.MaxRank {
			return fmt.Errorf("%w: thresholds must increase at tier %d", ErrInvalidRankTable, i)
		}
		if t.Bonus > prev.Bonus {
			return fmt.Errorf("%w: bonus increases at tier %d", ErrInvalidRankTable, i)
		}
	}
	return nil
}

// Result is the outcome of a single fight from the player's side.
type Result struct {
	PlayerScore   int
	OpponentScore int
	Outcome       model.Outcome
	WinnerID      string
}

// Scorer computes battle scores. It holds no mutable state of its own; the
// Source is the only shared dependency.
type Scorer struct {
	weights       Weights
	rankTable     []RankTier
	factorMin     float64
	factorMax     float64
	capDivisor    float64
	capMultiplier float64
	src           Source
}

// NewScorer builds a Scorer from defaults and opts, rejecting parameter sets
// that break the scoring contract.
func NewScorer(opts ...Option) (*Scorer, error) {
	s := &Scorer{
		weights:       DefaultWeights,
		rankTable:     append([]RankTier(nil), DefaultRankTable...),
		factorMin:     DefaultFactorMin,
		factorMax:     DefaultFactorMax,
		capDivisor:    DefaultCapDivisor,
		capMultiplier: DefaultCapMultiplier,
	}

	for _, opt := range opts {
		opt(s)
	}

	if err := s.weights.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateRankTable(s.rankTable); err != nil {
		return nil, err
	}
	if !finitePositive(s.factorMin) || !finitePositive(s.factorMax) || s.factorMin > s.factorMax {
		return nil, fmt.Errorf("%w: [%v, %v]", ErrInvalidFactorRange, s.factorMin, s.factorMax)
	}
	if !finitePositive(s.capDivisor) || s.capMultiplier < 0 || math.IsInf(s.capMultiplier, 0) || math.IsNaN(s.capMultiplier) {
		return nil, fmt.Errorf("%w: divisor %v multiplier %v", ErrInvalidCapBonus, s.capDivisor, s.capMultiplier)
	}
	if s.src == nil {
		s.src = NewRandSource(defaultSeed)
	}
	return s, nil
}

// Score draws one random factor and returns the character's score.
func (s *Scorer) Score(c model.Character) int {
	return s.scoreWithFactor(c, s.Factor())
}

// ExpectedScore is the score with the factor fixed at 1.0.
func (s *Scorer) ExpectedScore(c model.Character) int {
	return s.scoreWithFactor(c, 1)
}

// Factor draws a multiplier from the configured range.
func (s *Scorer) Factor() float64 {
	return s.factorMin + (s.factorMax-s.factorMin)*sample(s.src)
}

// RankBonus looks up rank in the tier table. Ranks below 1 get no bonus.
func (s *Scorer) RankBonus(rank int) float64 {
	if rank < 1 {
		return 0
	}
	for _, t := range s.rankTable {
		if rank <= t.MaxRank {
			return t.Bonus
		}
	}
	return 0
}

// CapBonus is log10(max(1, cap/divisor)) * multiplier.
func (s *Scorer) CapBonus(marketCap float64) float64 {
	if math.IsNaN(marketCap) || math.IsInf(marketCap, 0) || marketCap < 0 {
		marketCap = 0
	}
	return math.Log10(math.Max(1, marketCap/s.capDivisor)) * s.capMultiplier
}

// StatSum is the weighted sum of the four stats, each clamped to [0,100].
func (s *Scorer) StatSum(st model.Stats) float64 {
	return float64(clampStat(st.Strength))*s.weights.Strength +
		float64(clampStat(st.Speed))*s.weights.Speed +
		float64(clampStat(st.Intelligence))*s.weights.Intelligence +
		float64(clampStat(st.Charisma))*s.weights.Charisma
}

func (s *Scorer) scoreWithFactor(c model.Character, factor float64) int {
	total := s.StatSum(c.Stats) + s.RankBonus(c.Rank) + s.CapBonus(c.MarketCap)
	score := math.Round(total * factor)
	if score < 0 || math.IsNaN(score) {
		return 0
	}
	return int(score)
}

// Fight scores both sides with independent draws and compares them.
func (s *Scorer) Fight(player, opponent model.Character) Result {
	ps := s.Score(player)
	oppScore := s.Score(opponent)
	return newResult(player, opponent, ps, oppScore)
}

// FightExpected is Fight with both factors fixed at 1.0.
func (s *Scorer) FightExpected(player, opponent model.Character) Result {
	return newResult(player, opponent, s.ExpectedScore(player), s.ExpectedScore(opponent))
}

func newResult(player, opponent model.Character, ps, oppScore int) Result {
	r := Result{PlayerScore: ps, OpponentScore: oppScore, Outcome: Compare(ps, oppScore)}
	switch r.Outcome {
	case model.OutcomeWin:
		r.WinnerID = player.ID
	case model.OutcomeLose:
		r.WinnerID = opponent.ID
	}
	return r
}

// Compare reports the outcome for the side that scored a. The strictly
// higher score wins; equal scores draw.
func Compare(a, b int) model.Outcome {
	switch {
	case a > b:
		return model.OutcomeWin
	case a < b:
		return model.OutcomeLose
	default:
		return model.OutcomeDraw
	}
}

// PickOpponent chooses a random character from roster other than excludeID.
func PickOpponent(roster []model.Character, excludeID string, src Source) (model.Character, error) {
	candidates := make([]model.Character, 0, len(roster))
	for _, c := range roster {
		if c.ID != excludeID {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return model.Character{}, ErrNoOpponent
	}
	idx := int(sample(src) * float64(len(candidates)))
	if idx >= len(candidates) {
		idx = len(candidates) - 1
	}
	return candidates[idx], nil
}

// Source returns the scorer's entropy source.
func (s *Scorer) Source() Source {
	return s.src
}

func clampStat(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func finitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
