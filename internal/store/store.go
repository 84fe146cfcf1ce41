// OpenRecommend - Hybrid Content Recommendation Service
// Copyright 2026 Qoobot Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/qoobot/openrecommend

package store

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors shared by all backends.
var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrCacheMiss indicates the cache holds no live entry for the key.
	// Expired entries report a miss, never a stale value.
	ErrCacheMiss = errors.New("store: cache miss")
)

// ContentStore provides read access to the content corpora.
type ContentStore interface {
	// GetByID fetches a single item, returning ErrNotFound when absent.
	GetByID(ctx context.Context, contentType ContentType, id int64) (*ContentItem, error)

	// GetByIDs fetches the given items in bulk. Missing IDs are silently
	// omitted; the result order is unspecified.
	GetByIDs(ctx context.Context, contentType ContentType, ids []int64) ([]ContentItem, error)

	// QueryByTags returns up to limit items whose tag set intersects the
	// given tags, most viewed first.
	QueryByTags(ctx context.Context, contentType ContentType, tags []string, limit int) ([]ContentItem, error)

	// QueryByCategory returns up to limit items in the given category,
	// best quality first, view count as the tiebreak.
	QueryByCategory(ctx context.Context, contentType ContentType, categoryID int64, limit int) ([]ContentItem, error)

	// QueryCandidates returns up to limit recommendation candidates,
	// excluding the given IDs, most recently published first.
	QueryCandidates(ctx context.Context, contentType ContentType, excludeIDs []int64, limit int) ([]ContentItem, error)

	// QueryHot returns up to limit items published within the window,
	// ordered by view count descending.
	QueryHot(ctx context.Context, contentType ContentType, window time.Duration, limit int) ([]ContentItem, error)
}

// BehaviorStore persists and queries the interaction event log.
type BehaviorStore interface {
	// Append records one interaction event. The event ID is assigned by
	// the store and written back to ev.
	Append(ctx context.Context, ev *InteractionEvent) error

	// QueryRecentByUser returns up to limit events for one user within the
	// lookback window, newest first.
	QueryRecentByUser(ctx context.Context, userID int64, lookback time.Duration, limit int) ([]InteractionEvent, error)

	// QueryRecent returns up to limit events across all users within the
	// lookback window, newest first. Feeds collaborative filtering.
	QueryRecent(ctx context.Context, lookback time.Duration, limit int) ([]InteractionEvent, error)

	// QueryDistinctContentIDs returns the distinct content IDs a user has
	// interacted with for one corpus, most recent interaction first.
	QueryDistinctContentIDs(ctx context.Context, userID int64, contentType ContentType, limit int) ([]int64, error)

	// CountByBehaviorType counts a user's events of one kind within the
	// lookback window.
	CountByBehaviorType(ctx context.Context, userID int64, behaviorType BehaviorType, lookback time.Duration) (int64, error)

	// QueryActiveUserIDs returns the distinct users with at least one
	// event within the lookback window.
	QueryActiveUserIDs(ctx context.Context, lookback time.Duration) ([]int64, error)
}

// ProfileStore persists derived user profiles.
type ProfileStore interface {
	// GetByUserID fetches the stored profile, returning ErrNotFound when
	// the user has never been profiled.
	GetByUserID(ctx context.Context, userID int64) (*UserProfile, error)

	// SaveOrUpdate upserts the profile keyed by UserID.
	SaveOrUpdate(ctx context.Context, profile *UserProfile) error
}

// CacheStore is the byte-oriented TTL cache the hot path reads through.
// Implementations must treat expired entries as absent.
type CacheStore interface {
	// Get returns the live value for key, or ErrCacheMiss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key for the given TTL. A non-positive TTL
	// stores the entry without expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes the entry for key. Deleting an absent key is not an
	// error.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes every entry whose key starts with prefix.
	DeletePrefix(ctx context.Context, prefix string) error

	// Close releases backend resources.
	Close() error
}
