package repository

import "errors"

// Sentinel kinds for leaderboard errors.
var (
	ErrNotFound         = errors.New("player not found")
	ErrInvalidLimit     = errors.New("invalid leaderboard limit")
	ErrInvalidResult    = errors.New("invalid game result")
	ErrDuplicateBattle  = errors.New("battle already recorded")
	ErrStoreUnavailable = errors.New("result store unavailable")
)
