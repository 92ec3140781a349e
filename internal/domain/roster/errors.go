package roster

import "errors"

// Sentinel errors for roster operations.
var (
	ErrUnknownCharacter = errors.New("unknown character")
	ErrRefreshFailed    = errors.New("roster refresh failed")
	ErrNoFetcher        = errors.New("no market data fetcher configured")
)
