// OpenRecommend - Hybrid Content Recommendation Service
// Copyright 2026 Qoobot Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/qoobot/openrecommend

package cache

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/qoobot/openrecommend/internal/metrics"
	"github.com/qoobot/openrecommend/internal/store"
)

// Breaker wraps a CacheStore in a circuit breaker. A failing backend must
// never take the request path down with it: while the circuit is open, reads
// report cache misses and writes are dropped, so the engine recomputes from
// the stores and the service stays up.
//
// The breaker uses real time for its open-state timeout. Tests exercise the
// wrapped store directly or drive the breaker through repeated failures.
type Breaker struct {
	inner  store.CacheStore
	cb     *gobreaker.CircuitBreaker[[]byte]
	logger zerolog.Logger
}

var _ store.CacheStore = (*Breaker)(nil)

// BreakerConfig tunes the circuit breaker.
type BreakerConfig struct {
	// Timeout is how long the circuit stays open before probing.
	Timeout time.Duration
	// MinRequests is the minimum sample size before the failure rate can
	// trip the circuit.
	MinRequests uint32
	// FailureRatio trips the circuit when reached.
	FailureRatio float64
}

// DefaultBreakerConfig mirrors the production defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Timeout:      30 * time.Second,
		MinRequests:  10,
		FailureRatio: 0.6,
	}
}

// NewBreaker wraps inner in a circuit breaker.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewBreaker(inner store.CacheStore, cfg BreakerConfig, logger zerolog.Logger) *Breaker {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultBreakerConfig().Timeout
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = DefaultBreakerConfig().MinRequests
	}
	if cfg.FailureRatio <= 0 {
		cfg.FailureRatio = DefaultBreakerConfig().FailureRatio
	}

	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "cache",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.FailureRatio
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			logger.Warn().
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("cache circuit breaker state change")
			if to == gobreaker.StateOpen {
				metrics.CacheBreakerState.Set(1)
			} else {
				metrics.CacheBreakerState.Set(0)
			}
		},
	})

	return &Breaker{inner: inner, cb: cb, logger: logger}
}

// Get returns the cached value, degrading any backend or circuit failure to
// a cache miss.
func (b *Breaker) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := b.cb.Execute(func() ([]byte, error) {
		v, err := b.inner.Get(ctx, key)
		if errors.Is(err, store.ErrCacheMiss) {
			// A miss is a healthy outcome, not a backend failure.
			return nil, nil
		}
		return v, err
	})
	if err != nil {
		if !errors.Is(err, gobreaker.ErrOpenState) && !errors.Is(err, gobreaker.ErrTooManyRequests) {
			b.logger.Debug().Err(err).Str("key", key).Msg("cache get degraded to miss")
		}
		return nil, store.ErrCacheMiss
	}
	if value == nil {
		return nil, store.ErrCacheMiss
	}
	return value, nil
}

// Set stores the value unless the circuit is open.
func (b *Breaker) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := b.cb.Execute(func() ([]byte, error) {
		return nil, b.inner.Set(ctx, key, value, ttl)
	})
	return err
}

// Delete removes the entry unless the circuit is open.
func (b *Breaker) Delete(ctx context.Context, key string) error {
	_, err := b.cb.Execute(func() ([]byte, error) {
		return nil, b.inner.Delete(ctx, key)
	})
	return err
}

// DeletePrefix removes matching entries unless the circuit is open.
func (b *Breaker) DeletePrefix(ctx context.Context, prefix string) error {
	_, err := b.cb.Execute(func() ([]byte, error) {
		return nil, b.inner.DeletePrefix(ctx, prefix)
	})
	return err
}

// Close closes the wrapped store directly; shutdown must not depend on
// breaker state.
func (b *Breaker) Close() error {
	return b.inner.Close()
}

// State exposes the current breaker state for health reporting.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}
