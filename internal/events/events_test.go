// OpenRecommend - Hybrid Content Recommendation Service
// Copyright 2026 Qoobot Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/qoobot/openrecommend

package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/qoobot/openrecommend/internal/logging"
	"github.com/qoobot/openrecommend/internal/store"
)

type fakeBehaviorStore struct {
	mu     sync.Mutex
	events []store.InteractionEvent
	err    error
}

func (f *fakeBehaviorStore) Append(_ context.Context, ev *store.InteractionEvent) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, *ev)
	return nil
}

func (f *fakeBehaviorStore) QueryRecentByUser(context.Context, int64, time.Duration, int) ([]store.InteractionEvent, error) {
	return nil, nil
}

func (f *fakeBehaviorStore) QueryRecent(context.Context, time.Duration, int) ([]store.InteractionEvent, error) {
	return nil, nil
}

func (f *fakeBehaviorStore) QueryDistinctContentIDs(context.Context, int64, store.ContentType, int) ([]int64, error) {
	return nil, nil
}

func (f *fakeBehaviorStore) CountByBehaviorType(context.Context, int64, store.BehaviorType, time.Duration) (int64, error) {
	return 0, nil
}

func (f *fakeBehaviorStore) QueryActiveUserIDs(context.Context, time.Duration) ([]int64, error) {
	return nil, nil
}

type fakeInvalidator struct {
	users []int64
	mu    sync.Mutex
	calls atomic.Int64
}

func (f *fakeInvalidator) InvalidateUser(_ context.Context, userID int64) error {
	f.mu.Lock()
	f.users = append(f.users, userID)
	f.mu.Unlock()
	f.calls.Add(1)
	return nil
}

type fakeRefresher struct {
	calls atomic.Int64
}

func (f *fakeRefresher) Trigger(int64) { f.calls.Add(1) }

func validEvent() *store.InteractionEvent {
	return &store.InteractionEvent{
		UserID:       1,
		ContentType:  store.ContentTypeArticle,
		ContentID:    42,
		BehaviorType: store.BehaviorLike,
	}
}

func TestRecordPersistsAndStampsTime(t *testing.T) {
	bs := &fakeBehaviorStore{}
	bus := NewBus(logging.Nop())
	defer bus.Close()
	r := NewRecorder(bs, bus, logging.Nop())

	ev := validEvent()
	if err := r.Record(context.Background(), ev); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if len(bs.events) != 1 {
		t.Fatalf("persisted %d events, want 1", len(bs.events))
	}
	if bs.events[0].CreatedAt.IsZero() {
		t.Error("event persisted without a timestamp")
	}
}

func TestRecordValidation(t *testing.T) {
	bus := NewBus(logging.Nop())
	defer bus.Close()
	r := NewRecorder(&fakeBehaviorStore{}, bus, logging.Nop())
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*store.InteractionEvent)
	}{
		{"zero user", func(ev *store.InteractionEvent) { ev.UserID = 0 }},
		{"zero content", func(ev *store.InteractionEvent) { ev.ContentID = 0 }},
		{"unknown content type", func(ev *store.InteractionEvent) { ev.ContentType = "podcast" }},
		{"unknown behavior", func(ev *store.InteractionEvent) { ev.BehaviorType = 99 }},
		{"negative duration", func(ev *store.InteractionEvent) { ev.Duration = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := validEvent()
			tt.mutate(ev)
			if err := r.Record(ctx, ev); !errors.Is(err, ErrInvalidEvent) {
				t.Errorf("Record() = %v, want ErrInvalidEvent", err)
			}
		})
	}
}

func TestRecordAppendFailureSurfaces(t *testing.T) {
	bus := NewBus(logging.Nop())
	defer bus.Close()
	r := NewRecorder(&fakeBehaviorStore{err: errors.New("db down")}, bus, logging.Nop())

	if err := r.Record(context.Background(), validEvent()); err == nil {
		t.Error("Record() should surface append failure")
	}
}

func TestSubscriberReactsToBehavior(t *testing.T) {
	bus := NewBus(logging.Nop())
	defer bus.Close()
	inv := &fakeInvalidator{}
	ref := &fakeRefresher{}
	sub := NewSubscriber(bus, inv, ref, logging.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = sub.Serve(ctx)
	}()

	// Give the subscription a moment to attach before publishing.
	time.Sleep(20 * time.Millisecond)

	r := NewRecorder(&fakeBehaviorStore{}, bus, logging.Nop())
	if err := r.Record(ctx, validEvent()); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	deadline := time.After(2 * time.Second)
	for inv.calls.Load() == 0 || ref.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatalf("subscriber did not react: invalidations=%d refreshes=%d", inv.calls.Load(), ref.calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}

	inv.mu.Lock()
	defer inv.mu.Unlock()
	if inv.users[0] != 1 {
		t.Errorf("invalidated user %d, want 1", inv.users[0])
	}

	cancel()
	<-done
}

func TestSubscriberIgnoresMalformedPayload(t *testing.T) {
	bus := NewBus(logging.Nop())
	defer bus.Close()
	inv := &fakeInvalidator{}
	sub := NewSubscriber(bus, inv, nil, logging.Nop())

	sub.handle(context.Background(), []byte("{not json"))
	if inv.calls.Load() != 0 {
		t.Error("malformed payload triggered invalidation")
	}
}
