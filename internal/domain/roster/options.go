package roster

import (
	"time"

	"github.com/okian/cryptoheroes/pkg/logger"
)

// Option applies a configuration option to the Loader.
type Option func(*Loader)

// WithStaleAfter sets how long a snapshot is served without refetching.
func WithStaleAfter(d time.Duration) Option {
	return func(l *Loader) {
		if d > 0 {
			l.staleAfter = d
		}
	}
}

// WithRetention sets the store TTL of a snapshot. It is raised to at least
// the staleness window so stale data survives for fallback.
func WithRetention(d time.Duration) Option {
	return func(l *Loader) {
		if d > 0 {
			l.retention = d
		}
	}
}

// WithCacheKey overrides the store key.
func WithCacheKey(key string) Option {
	return func(l *Loader) {
		if key != "" {
			l.key = key
		}
	}
}

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Loader) {
		if now != nil {
			l.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(l *Loader) {
		if log != nil {
			l.log = log
		}
	}
}

// WithRetryBackoff sets how long a failed refresh suppresses further
// attempts. Forced refreshes ignore it.
func WithRetryBackoff(d time.Duration) Option {
	return func(l *Loader) {
		if d >= 0 {
			l.backoff = d
		}
	}
}
