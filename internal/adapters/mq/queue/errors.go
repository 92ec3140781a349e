package queue

import "errors"

// Sentinel errors returned by Enqueue.
var (
	ErrFull     = errors.New("result queue full")
	ErrClosed   = errors.New("result queue closed")
	ErrCanceled = errors.New("enqueue canceled")
)
