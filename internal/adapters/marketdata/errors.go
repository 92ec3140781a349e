package marketdata

import "errors"

// Sentinel errors for market-data calls.
var (
	ErrUpstream    = errors.New("market data upstream failure")
	ErrRateLimited = errors.New("market data rate limited")
	ErrDecode      = errors.New("market data decode failure")
	ErrNotFound    = errors.New("market data not found")
)
