package battle

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithWeights sets the stat weights.
func WithWeights(w Weights) Option {
	return func(s *Scorer) {
		s.weights = w
	}
}

// WithRankTable replaces the rank bonus table.
func WithRankTable(table []RankTier) Option {
	return func(s *Scorer) {
		s.rankTable = append([]RankTier(nil), table...)
	}
}

// WithFactorRange sets the bounds of the random multiplier.
func WithFactorRange(minFactor, maxFactor float64) Option {
	return func(s *Scorer) {
		s.factorMin = minFactor
		s.factorMax = maxFactor
	}
}

// WithCapBonus sets the market cap divisor and multiplier.
func WithCapBonus(divisor, multiplier float64) Option {
	return func(s *Scorer) {
		s.capDivisor = divisor
		s.capMultiplier = multiplier
	}
}

// WithSource sets the entropy source.
func WithSource(src Source) Option {
	return func(s *Scorer) {
		if src != nil {
			s.src = src
		}
	}
}
