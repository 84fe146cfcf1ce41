// OpenRecommend - Hybrid Content Recommendation Service
// Copyright 2026 Qoobot Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/qoobot/openrecommend

package recommend

import (
	"context"
	"time"

	"github.com/qoobot/openrecommend/internal/store"
)

// Recommendation list kinds. Personal runs only the personalized
// strategies; popular adds the popularity list. Unrecognized values run
// everything, which is exactly the popular pipeline.
const (
	TypePersonal = "personal"
	TypePopular  = "popular"
)

// Request describes one recommendation request after normalization.
type Request struct {
	UserID        int64
	ContentType   store.ContentType
	RecommendType string
	Limit         int

	// Device and Hour carry request context for contextual reranking.
	// Empty device and Hour of -1 mean unknown.
	Device string
	Hour   int
}

// Item is one recommended piece of content with its final score and the
// strategy that contributed it.
type Item struct {
	ContentID    int64             `json:"contentId"`
	ContentType  store.ContentType `json:"contentType"`
	Title        string            `json:"title"`
	CoverURL     string            `json:"coverUrl,omitempty"`
	CategoryID   int64             `json:"categoryId"`
	Tags         []string          `json:"tags,omitempty"`
	Score        float64           `json:"score"`
	Source       string            `json:"source"`
	QualityScore float64           `json:"qualityScore"`
	ViewCount    int64             `json:"viewCount"`
	LikeCount    int64             `json:"likeCount"`
	PublishTime  time.Time         `json:"publishTime,omitzero"`
}

// Result is an assembled recommendation list. Cached results are returned
// verbatim, GeneratedAt included, so repeated requests within the cache TTL
// are byte-identical.
type Result struct {
	Items       []Item    `json:"items"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// Ranker is the scoring and diversification stage applied after strategy
// fusion. Implemented by the ranking package; kept as an interface here so
// the engine does not import its own subpackage.
type Ranker interface {
	// Rank rescores hydrated items with the composite relevance model and
	// orders them best first.
	Rank(ctx context.Context, items []Item, userID int64) []Item

	// Rerank runs Rank and then applies contextual boosts (device, time
	// of day) before re-sorting. It subsumes Rank on the request path.
	Rerank(ctx context.Context, items []Item, userID int64, device string, hour int) []Item

	// Diversify caps per-category crowding while preserving order as far
	// as possible. Higher levels allow fewer items per category.
	Diversify(items []Item, level int) []Item
}

// CollaborativeFilter produces candidates from interaction co-behavior.
type CollaborativeFilter interface {
	HybridCF(ctx context.Context, userID int64, contentType store.ContentType, limit int) (map[int64]float64, error)
}

// ContentRecommender produces candidates from content features.
type ContentRecommender interface {
	RecommendByTags(ctx context.Context, contentType store.ContentType, tagWeights map[string]float64, limit int) (map[int64]float64, error)
	RecommendBySimilarity(ctx context.Context, contentType store.ContentType, viewedIDs, excludeIDs []int64, limit int) (map[int64]float64, error)
}

// ProfileSource provides user profiles to the engine and ranker. A profile
// is always available; users without history get a deterministic default.
type ProfileSource interface {
	GetByUserID(ctx context.Context, userID int64) (*store.UserProfile, error)
}
