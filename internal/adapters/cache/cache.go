// Package cache provides the TTL key/value store used for log API responses
// and access tokens.
package cache

import (
	"context"
	"time"
)

// Store is a byte-oriented key/value store with per-entry TTL.
type Store interface {
	// Get returns the value for key or ErrMiss.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value for ttl. A non-positive ttl stores without expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}
