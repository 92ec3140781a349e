package battle

import "errors"

// Sentinel errors for scorer configuration and opponent selection.
var (
	ErrInvalidWeights     = errors.New("invalid stat weights")
	ErrInvalidRankTable   = errors.New("invalid rank bonus table")
	ErrInvalidFactorRange = errors.New("invalid random factor range")
	ErrInvalidCapBonus    = errors.New("invalid market cap bonus")
	ErrNoOpponent         = errors.New("no opponent available")
)
