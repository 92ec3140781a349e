package marketdata

import (
	"net/http"
	"strings"
	"time"

	"github.com/okian/cryptoheroes/pkg/logger"
)

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithBaseURL points the client at another API root (tests, Pro endpoint).
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithPerPage sets how many coins the markets call returns (1..250).
func WithPerPage(n int) Option {
	return func(c *Client) {
		if n > 0 && n <= maxPerPage {
			c.perPage = n
		}
	}
}

// WithRequestsPerMinute sets the client-side rate limit.
func WithRequestsPerMinute(rpm int) Option {
	return func(c *Client) {
		if rpm > 0 {
			c.rpm = rpm
		}
	}
}

// WithDetails enables the per-coin detail lookups.
func WithDetails(enabled bool) Option {
	return func(c *Client) {
		c.fetchDetails = enabled
	}
}

// WithDetailConcurrency bounds parallel detail lookups.
func WithDetailConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.detailConcurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}
