// OpenRecommend - Hybrid Content Recommendation Service
// Copyright 2026 Qoobot Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/qoobot/openrecommend

// Package cache implements the TTL cache the recommendation hot path reads
// through: a durable Badger backend for production, an in-memory backend for
// tests and small deployments, and a circuit breaker wrapper that degrades a
// failing backend to cache misses.
//
// Key formats are part of the service contract; invalidation relies on the
// prefixes produced here.
package cache

import (
	"fmt"

	"github.com/qoobot/openrecommend/internal/store"
)

// Key namespaces, used as metrics labels and invalidation prefixes.
const (
	NamespaceProfile   = "user_profile"
	NamespaceRecommend = "recommend"
	NamespaceHot       = "hot_content"
	NamespaceFeature   = "content_feature"
)

// ProfileKey returns the cache key for a user's profile.
func ProfileKey(userID int64) string {
	return fmt.Sprintf("user_profile:%d", userID)
}

// RecommendKey returns the cache key for an assembled recommendation list.
func RecommendKey(userID int64, contentType store.ContentType, recommendType string) string {
	return fmt.Sprintf("recommend:%d:%s:%s", userID, contentType, recommendType)
}

// RecommendPrefix returns the invalidation prefix covering every cached
// recommendation list for one user.
func RecommendPrefix(userID int64) string {
	return fmt.Sprintf("recommend:%d:", userID)
}

// HotContentKey returns the cache key for a precomputed hot list. The period
// token names the aggregation window, e.g. "7d".
func HotContentKey(contentType store.ContentType, period string) string {
	return fmt.Sprintf("hot_content:%s:%s", contentType, period)
}

// FeatureKey returns the cache key for extracted content features.
func FeatureKey(contentType store.ContentType, contentID int64) string {
	return fmt.Sprintf("content_feature:%s:%d", contentType, contentID)
}
