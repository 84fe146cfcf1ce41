// OpenRecommend - Hybrid Content Recommendation Service
// Copyright 2026 Qoobot Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/qoobot/openrecommend

package events

import (
	"context"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// CacheInvalidator drops a user's cached recommendation lists.
// Implemented by the recommendation engine.
type CacheInvalidator interface {
	InvalidateUser(ctx context.Context, userID int64) error
}

// RefreshScheduler schedules an asynchronous profile recomputation.
// Implemented by the debounced profile refresher.
type RefreshScheduler interface {
	Trigger(userID int64)
}

// Subscriber reacts to recorded behavior: it invalidates the user's
// recommendation cache and schedules a debounced profile refresh. Runs as
// a supervised service; Serve returns when the context is cancelled or the
// bus closes.
type Subscriber struct {
	bus         *Bus
	invalidator CacheInvalidator
	refresher   RefreshScheduler
	logger      zerolog.Logger
}

// NewSubscriber creates a Subscriber. Either downstream may be nil, which
// skips that reaction.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewSubscriber(bus *Bus, invalidator CacheInvalidator, refresher RefreshScheduler, logger zerolog.Logger) *Subscriber {
	return &Subscriber{
		bus:         bus,
		invalidator: invalidator,
		refresher:   refresher,
		logger:      logger.With().Str("component", "behavior-subscriber").Logger(),
	}
}

// Serve consumes behavior messages until the context is cancelled.
func (s *Subscriber) Serve(ctx context.Context) error {
	msgs, err := s.bus.SubscribeBehavior(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			s.handle(ctx, msg.Payload)
			msg.Ack()
		}
	}
}

// String names the service in supervisor logs.
func (s *Subscriber) String() string { return "behavior-subscriber" }

func (s *Subscriber) handle(ctx context.Context, payload []byte) {
	var ev BehaviorRecorded
	if err := json.Unmarshal(payload, &ev); err != nil {
		s.logger.Warn().Err(err).Msg("malformed behavior message dropped")
		return
	}

	if s.invalidator != nil {
		if err := s.invalidator.InvalidateUser(ctx, ev.UserID); err != nil {
			s.logger.Warn().Err(err).Int64("user_id", ev.UserID).Msg("recommendation cache invalidation failed")
		}
	}
	if s.refresher != nil {
		s.refresher.Trigger(ev.UserID)
	}
}
