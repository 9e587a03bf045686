package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStore implements Store on BadgerDB, using native entry TTLs.
type BadgerStore struct {
	db     *badger.DB
	prefix string
}

// BadgerOption configures a BadgerStore.
type BadgerOption func(*BadgerStore)

// WithPrefix namespaces every key.
func WithPrefix(prefix string) BadgerOption {
	return func(s *BadgerStore) { s.prefix = prefix }
}

// OpenBadger opens a BadgerDB at path. An empty path opens an in-memory DB.
func OpenBadger(path string, opts ...BadgerOption) (*BadgerStore, error) {
	bopts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		bopts = bopts.WithInMemory(true)
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger %q: %w", path, err)
	}
	return NewBadgerStore(db, opts...), nil
}

// NewBadgerStore wraps an already opened DB.
func NewBadgerStore(db *badger.DB, opts ...BadgerOption) *BadgerStore {
	s := &BadgerStore{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *BadgerStore) key(k string) []byte {
	return []byte(s.prefix + k)
}

// Get returns a copy of the stored value.
func (s *BadgerStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.key(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrMiss
		}
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrDBClosed) {
		return nil, ErrClosed
	}
	if err != nil && !errors.Is(err, ErrMiss) {
		return nil, fmt.Errorf("cache get %q: %w", key, err)
	}
	return out, err
}

func (s *BadgerStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(s.key(key), value)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
	if errors.Is(err, badger.ErrDBClosed) {
		return ErrClosed
	}
	if err != nil {
		return fmt.Errorf("cache set %q: %w", key, err)
	}
	return nil
}

func (s *BadgerStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(s.key(key))
	})
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("cache delete %q: %w", key, err)
	}
	return nil
}

// Close closes the underlying DB.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
