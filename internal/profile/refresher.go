// OpenRecommend - Hybrid Content Recommendation Service
// Copyright 2026 Qoobot Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/qoobot/openrecommend

package profile

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// refreshTimeout bounds one background recomputation.
const refreshTimeout = 30 * time.Second

// Refresher debounces behavior-triggered profile recomputation: a burst of
// events for one user collapses into a single refresh after the quiet
// window. Refreshes run in the background and never block the caller.
type Refresher struct {
	svc    *Service
	window time.Duration
	logger zerolog.Logger

	mu     sync.Mutex
	timers map[int64]*refreshTimer
	closed bool
	wg     sync.WaitGroup
}

// refreshTimer identifies one armed debounce timer. fire compares the map
// entry against its own token so a stale callback never removes a timer
// armed after it was scheduled.
type refreshTimer struct {
	timer *time.Timer
}

// NewRefresher creates a Refresher with the given quiet window.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewRefresher(svc *Service, window time.Duration, logger zerolog.Logger) *Refresher {
	if window <= 0 {
		window = 30 * time.Second
	}
	return &Refresher{
		svc:    svc,
		window: window,
		logger: logger.With().Str("component", "profile-refresher").Logger(),
		timers: make(map[int64]*refreshTimer),
	}
}

// Trigger schedules a refresh for the user, extending any pending one.
func (r *Refresher) Trigger(userID int64) {
	if userID <= 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	// Reset only a timer that was still pending. A Stop that misses means
	// the callback already fired (it owns one wg slot and is about to
	// consume it), so a fresh timer with its own slot is armed instead.
	if tok, ok := r.timers[userID]; ok && tok.timer.Stop() {
		tok.timer.Reset(r.window)
		return
	}
	tok := &refreshTimer{}
	r.wg.Add(1)
	tok.timer = time.AfterFunc(r.window, func() { r.fire(userID, tok) })
	r.timers[userID] = tok
}

// Close cancels pending refreshes and waits for in-flight ones.
func (r *Refresher) Close() {
	r.mu.Lock()
	r.closed = true
	for userID, tok := range r.timers {
		if tok.timer.Stop() {
			r.wg.Done()
		}
		delete(r.timers, userID)
	}
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Refresher) fire(userID int64, tok *refreshTimer) {
	defer r.wg.Done()

	r.mu.Lock()
	if r.timers[userID] == tok {
		delete(r.timers, userID)
	}
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()
	if err := r.svc.Refresh(ctx, userID, TriggerBehavior); err != nil {
		r.logger.Warn().Err(err).Int64("user_id", userID).Msg("debounced profile refresh failed")
	}
}
