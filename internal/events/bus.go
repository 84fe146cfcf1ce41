// OpenRecommend - Hybrid Content Recommendation Service
// Copyright 2026 Qoobot Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/qoobot/openrecommend

// Package events carries behavior recording off the request path: the
// recorder persists an interaction and publishes it on an in-process bus;
// subscribers invalidate caches and debounce profile recomputation without
// adding latency to the write.
package events

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/qoobot/openrecommend/internal/store"
)

// TopicBehaviorRecorded carries one message per persisted interaction.
const TopicBehaviorRecorded = "behavior.recorded"

// BehaviorRecorded is the bus payload for one persisted interaction.
type BehaviorRecorded struct {
	UserID       int64              `json:"userId"`
	ContentType  store.ContentType  `json:"contentType"`
	ContentID    int64              `json:"contentId"`
	BehaviorType store.BehaviorType `json:"behaviorType"`
}

// Bus is the in-process pub/sub transport for behavior events.
type Bus struct {
	pubsub *gochannel.GoChannel
}

// NewBus creates a Bus. Messages are buffered so a slow subscriber does
// not stall publishers.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 256,
		}, NewLoggerAdapter(logger)),
	}
}

// PublishBehavior emits one recorded interaction onto the bus.
func (b *Bus) PublishBehavior(ev BehaviorRecorded) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("events: marshal behavior: %w", err)
	}
	msg := message.NewMessage(uuid.NewString(), data)
	if err := b.pubsub.Publish(TopicBehaviorRecorded, msg); err != nil {
		return fmt.Errorf("events: publish behavior: %w", err)
	}
	return nil
}

// SubscribeBehavior returns the stream of recorded interactions.
func (b *Bus) SubscribeBehavior(ctx context.Context) (<-chan *message.Message, error) {
	msgs, err := b.pubsub.Subscribe(ctx, TopicBehaviorRecorded)
	if err != nil {
		return nil, fmt.Errorf("events: subscribe %s: %w", TopicBehaviorRecorded, err)
	}
	return msgs, nil
}

// Close shuts the bus down; pending messages are dropped.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}
