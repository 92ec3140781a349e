package app

import (
	"fmt"

	"github.com/okian/cryptoheroes/internal/adapters/mq/queue"
)

// ErrNotStarted is returned by operations that need the result pipeline
// while the service is not running. It matches queue.ErrClosed.
var ErrNotStarted = fmt.Errorf("service not started: %w", queue.ErrClosed)
