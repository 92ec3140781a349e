package feed

import (
	"time"

	"github.com/okian/cryptoheroes/pkg/logger"
)

// Option configures a Hub.
type Option func(*Hub)

// WithSendBuffer sets how many messages may queue for one client before it
// is considered slow and dropped.
func WithSendBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

// WithPingPeriod sets how often idle connections are pinged.
func WithPingPeriod(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.pingPeriod = d
			h.pongWait = d * 10 / 9
		}
	}
}

// WithLogger sets the hub logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}
