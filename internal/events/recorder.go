// OpenRecommend - Hybrid Content Recommendation Service
// Copyright 2026 Qoobot Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/qoobot/openrecommend

package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/qoobot/openrecommend/internal/metrics"
	"github.com/qoobot/openrecommend/internal/store"
)

// ErrInvalidEvent marks interaction events rejected before any write
// happened. Callers can map it to a client error.
var ErrInvalidEvent = errors.New("invalid interaction event")

// Recorder validates and persists interaction events, then announces them
// on the bus. Everything downstream of the append (cache invalidation,
// profile recomputation) happens asynchronously in subscribers, so the
// write path stays fast.
type Recorder struct {
	behaviors store.BehaviorStore
	bus       *Bus
	logger    zerolog.Logger
}

// NewRecorder creates a Recorder.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewRecorder(behaviors store.BehaviorStore, bus *Bus, logger zerolog.Logger) *Recorder {
	return &Recorder{
		behaviors: behaviors,
		bus:       bus,
		logger:    logger.With().Str("component", "recorder").Logger(),
	}
}

// Record persists one interaction. A publish failure is logged but does
// not fail the write; the behavior is already durable.
func (r *Recorder) Record(ctx context.Context, ev *store.InteractionEvent) error {
	if err := validate(ev); err != nil {
		return err
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	if err := r.behaviors.Append(ctx, ev); err != nil {
		return fmt.Errorf("record behavior: %w", err)
	}
	metrics.BehaviorsRecorded.WithLabelValues(ev.BehaviorType.String()).Inc()

	if err := r.bus.PublishBehavior(BehaviorRecorded{
		UserID:       ev.UserID,
		ContentType:  ev.ContentType,
		ContentID:    ev.ContentID,
		BehaviorType: ev.BehaviorType,
	}); err != nil {
		r.logger.Warn().Err(err).Int64("user_id", ev.UserID).Msg("behavior publish failed, downstream refresh skipped")
	}
	return nil
}

func validate(ev *store.InteractionEvent) error {
	switch {
	case ev == nil:
		return fmt.Errorf("%w: nil event", ErrInvalidEvent)
	case ev.UserID <= 0:
		return fmt.Errorf("%w: user id %d", ErrInvalidEvent, ev.UserID)
	case ev.ContentID <= 0:
		return fmt.Errorf("%w: content id %d", ErrInvalidEvent, ev.ContentID)
	case !ev.ContentType.Valid():
		return fmt.Errorf("%w: unknown content type %q", ErrInvalidEvent, ev.ContentType)
	case !ev.BehaviorType.Valid():
		return fmt.Errorf("%w: unknown behavior type %d", ErrInvalidEvent, ev.BehaviorType)
	case ev.Duration < 0:
		return fmt.Errorf("%w: negative duration %d", ErrInvalidEvent, ev.Duration)
	default:
		return nil
	}
}
