package repository

import "time"

const defaultHistorySize = 100

// Option applies a configuration option to the TreapStore.
type Option func(*TreapStore)

// WithMetricsUpdateInterval sets the interval for background metrics updates.
// It defaults to the metrics package refresh interval.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(s *TreapStore) {
		if interval > 0 {
			s.metricsUpdateInterval = interval
		}
	}
}

// WithHistorySize bounds how many results are kept per player.
func WithHistorySize(n int) Option {
	return func(s *TreapStore) {
		if n > 0 {
			s.historySize = n
		}
	}
}

// WithClock injects the time source used for results without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(s *TreapStore) {
		if now != nil {
			s.now = now
		}
	}
}
