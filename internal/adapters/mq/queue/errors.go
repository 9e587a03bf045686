package queue

import "errors"

// Sentinel kinds for queue errors.
var (
	ErrQueueFull   = errors.New("sync queue full")
	ErrQueueClosed = errors.New("sync queue closed")
)
