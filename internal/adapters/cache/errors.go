package cache

import "errors"

var (
	// ErrMiss is returned by Get when the key is absent or expired.
	ErrMiss = errors.New("cache miss")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("cache closed")
)
