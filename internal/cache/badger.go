// OpenRecommend - Hybrid Content Recommendation Service
// Copyright 2026 Qoobot Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/qoobot/openrecommend

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/qoobot/openrecommend/internal/store"
)

// Badger is the durable CacheStore backend. Entry expiry is delegated to
// Badger's native TTL support, so expired keys report misses without any
// bookkeeping on our side.
type Badger struct {
	db     *badger.DB
	logger zerolog.Logger
}

var _ store.CacheStore = (*Badger)(nil)

// NewBadger opens a Badger-backed cache at dir.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewBadger(dir string, logger zerolog.Logger) (*Badger, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(nil).
		WithCompactL0OnClose(true)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger cache at %s: %w", dir, err)
	}
	return &Badger{db: db, logger: logger}, nil
}

// NewBadgerInMemory opens a Badger cache without a backing directory.
// Used by integration tests that want real TTL semantics.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewBadgerInMemory(logger zerolog.Logger) (*Badger, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open in-memory badger cache: %w", err)
	}
	return &Badger{db: db, logger: logger}, nil
}

// Get returns the live value for key, or store.ErrCacheMiss.
func (b *Badger) Get(_ context.Context, key string) ([]byte, error) {
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, store.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("badger get %s: %w", key, err)
	}
	return value, nil
}

// Set stores value under key. A non-positive TTL stores without expiry.
func (b *Badger) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("badger set %s: %w", key, err)
	}
	return nil
}

// Delete removes the entry for key. Absent keys are not an error.
func (b *Badger) Delete(_ context.Context, key string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("badger delete %s: %w", key, err)
	}
	return nil
}

// DeletePrefix removes every entry whose key starts with prefix.
func (b *Badger) DeletePrefix(_ context.Context, prefix string) error {
	if err := b.db.DropPrefix([]byte(prefix)); err != nil {
		return fmt.Errorf("badger drop prefix %s: %w", prefix, err)
	}
	return nil
}

// Close flushes and closes the underlying database.
func (b *Badger) Close() error {
	if err := b.db.Close(); err != nil {
		return fmt.Errorf("close badger cache: %w", err)
	}
	return nil
}

// RunGC runs one value-log garbage collection cycle. Intended to be called
// periodically by the scheduler; a no-rewrite result is not an error.
func (b *Badger) RunGC() error {
	if err := b.db.RunValueLogGC(0.5); err != nil &&
		!errors.Is(err, badger.ErrNoRewrite) && !errors.Is(err, badger.ErrRejected) {
		return fmt.Errorf("badger value log gc: %w", err)
	}
	return nil
}
