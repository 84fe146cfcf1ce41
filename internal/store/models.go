// OpenRecommend - Hybrid Content Recommendation Service
// Copyright 2026 Qoobot Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/qoobot/openrecommend

// Package store defines the domain model and the persistence interfaces the
// recommendation pipeline is built on. Concrete backends live in subpackages
// (store/duckdb); the cache abstraction is implemented by internal/cache.
package store

import (
	"time"
)

// ContentType identifies one of the recommendable content corpora.
type ContentType string

// Supported content corpora.
const (
	ContentTypeArticle ContentType = "article"
	ContentTypeImage   ContentType = "image"
	ContentTypeVideo   ContentType = "video"
)

// AllContentTypes returns the supported corpora in a fixed order.
func AllContentTypes() []ContentType {
	return []ContentType{ContentTypeArticle, ContentTypeImage, ContentTypeVideo}
}

// ParseContentType maps a wire-format string to a ContentType.
// The second return value reports whether the input named a known corpus.
func ParseContentType(s string) (ContentType, bool) {
	switch ContentType(s) {
	case ContentTypeArticle, ContentTypeImage, ContentTypeVideo:
		return ContentType(s), true
	default:
		return "", false
	}
}

// Valid reports whether the content type names a known corpus.
func (c ContentType) Valid() bool {
	_, ok := ParseContentType(string(c))
	return ok
}

// HasQualityModel reports whether items of this corpus carry an editorial
// quality score. Only articles are quality-scored; image and video scoring
// falls back to engagement-only signals.
func (c ContentType) HasQualityModel() bool {
	return c == ContentTypeArticle
}

// BehaviorType encodes the kind of user interaction recorded against content.
// The numeric values are part of the storage format and must not be reordered.
type BehaviorType int

// Recorded interaction kinds.
const (
	BehaviorView    BehaviorType = 1
	BehaviorLike    BehaviorType = 2
	BehaviorCollect BehaviorType = 3
	BehaviorShare   BehaviorType = 4
	BehaviorComment BehaviorType = 5
)

// Strength returns the preference weight an interaction of this kind
// contributes to profile building and collaborative filtering. Stronger
// commitment signals (collect, share) outweigh passive views.
func (b BehaviorType) Strength() float64 {
	switch b {
	case BehaviorView:
		return 1.0
	case BehaviorLike:
		return 3.0
	case BehaviorCollect:
		return 5.0
	case BehaviorShare:
		return 4.0
	case BehaviorComment:
		return 3.0
	default:
		return 0.0
	}
}

// Valid reports whether the behavior type is one of the recorded kinds.
func (b BehaviorType) Valid() bool {
	return b >= BehaviorView && b <= BehaviorComment
}

// String returns a human-readable name for logs and metrics labels.
func (b BehaviorType) String() string {
	switch b {
	case BehaviorView:
		return "view"
	case BehaviorLike:
		return "like"
	case BehaviorCollect:
		return "collect"
	case BehaviorShare:
		return "share"
	case BehaviorComment:
		return "comment"
	default:
		return "unknown"
	}
}

// ContentItem is the corpus-agnostic view of a recommendable item. All three
// corpora share the fields the pipeline scores on; corpus-specific columns
// that no scorer reads are not modeled here.
type ContentItem struct {
	ID           int64       `json:"id"`
	ContentType  ContentType `json:"contentType"`
	Title        string      `json:"title"`
	CoverURL     string      `json:"coverUrl,omitempty"`
	CategoryID   int64       `json:"categoryId"`
	Tags         []string    `json:"tags,omitempty"`
	QualityScore float64     `json:"qualityScore"` // 0-100, meaningful only when the corpus has a quality model
	ViewCount    int64       `json:"viewCount"`
	LikeCount    int64       `json:"likeCount"`
	CollectCount int64       `json:"collectCount"`
	ShareCount   int64       `json:"shareCount"`
	PublishTime  time.Time   `json:"publishTime,omitzero"` // zero value means unknown
}

// InteractionEvent is one recorded user action against a content item.
type InteractionEvent struct {
	ID           int64        `json:"id"`
	UserID       int64        `json:"userId"`
	ContentType  ContentType  `json:"contentType"`
	ContentID    int64        `json:"contentId"`
	BehaviorType BehaviorType `json:"behaviorType"`
	Duration     int          `json:"duration"` // seconds spent, views only
	CreatedAt    time.Time    `json:"createdAt"`
}

// UserProfile is the derived interest model for a single user. Profiles are
// recomputed from recent interaction history and cached; a deterministic
// default stands in for users with no observed behavior.
type UserProfile struct {
	ID                    int64                   `json:"id"`
	UserID                int64                   `json:"userId"`
	InterestTags          map[string]float64      `json:"interestTags"`
	ContentTypePreference map[ContentType]float64 `json:"contentTypePreference"`
	ActivePeriods         []int                   `json:"activePeriods"` // hours of day, ascending
	TotalViewCount        int64                   `json:"totalViewCount"`
	TotalReadTime         int64                   `json:"totalReadTime"` // minutes, cumulative across rebuilds
	LastUpdateTime        time.Time               `json:"lastUpdateTime"`
}

// IsActiveAt reports whether the given hour of day falls in one of the
// user's habitual activity periods.
func (p *UserProfile) IsActiveAt(hour int) bool {
	for _, h := range p.ActivePeriods {
		if h == hour {
			return true
		}
	}
	return false
}
