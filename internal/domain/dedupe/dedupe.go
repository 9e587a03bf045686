// Package dedupe tracks keys that have already been handled.
//
// The source uses it to drop report codes already yielded by an earlier
// partition, and the sync workers use it to skip job ids that already
// succeeded.
package dedupe

import (
	"container/list"
	"context"
	"sync"
)

// DefaultMaxSize bounds the set when no size is given.
const DefaultMaxSize = 50000

// Deduper records seen keys.
type Deduper interface {
	// SeenAndRecord reports whether key was seen before, recording it if not.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord forgets key so it can be handled again, e.g. after a failed
	// attempt that had already been recorded.
	Unrecord(ctx context.Context, key string)

	Size() int64
}

// Option applies a configuration option to the in-memory deduper.
type Option func(*inMemoryDeduper)

// WithMaxSize sets the number of keys kept before the oldest is evicted.
// maxSize <= 0 means unbounded.
func WithMaxSize(maxSize int) Option {
	return func(d *inMemoryDeduper) {
		d.maxSize = maxSize
	}
}

// inMemoryDeduper keeps keys in a map, with insertion order tracked in a
// list for FIFO eviction when bounded.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List
	maxSize int
}

// NewInMemoryDeduper creates a deduper. Bounded by DefaultMaxSize unless
// WithMaxSize says otherwise.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: DefaultMaxSize,
		seen:    make(map[string]*list.Element),
		order:   list.New(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// NewCodeSet returns an unbounded deduper for a single pass over a source.
func NewCodeSet() Deduper {
	return NewInMemoryDeduper(WithMaxSize(0))
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		return true
	}
	if d.maxSize > 0 && len(d.seen) >= d.maxSize {
		if oldest := d.order.Front(); oldest != nil {
			delete(d.seen, oldest.Value.(string))
			d.order.Remove(oldest)
		}
	}
	d.seen[key] = d.order.PushBack(key)
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[key]; ok {
		d.order.Remove(el)
		delete(d.seen, key)
	}
}

func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.seen))
}
