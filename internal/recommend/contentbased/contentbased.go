// OpenRecommend - Hybrid Content Recommendation Service
// Copyright 2026 Qoobot Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/qoobot/openrecommend

// Package contentbased scores recommendation candidates from content
// features: tag overlap with a user's interest vector, tag-vector cosine
// similarity to recently viewed items, and category affinity. Quality and
// popularity signals blend in only for corpora that model them.
package contentbased

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/qoobot/openrecommend/internal/similarity"
	"github.com/qoobot/openrecommend/internal/store"
)

// Recommender computes content-based candidate scores. Stateless; safe for
// concurrent use.
type Recommender struct {
	contents store.ContentStore
	logger   zerolog.Logger
}

// NewRecommender creates a Recommender.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewRecommender(contents store.ContentStore, logger zerolog.Logger) *Recommender {
	return &Recommender{contents: contents, logger: logger}
}

// RecommendByTags scores candidates against a weighted interest tag vector.
// A candidate's base score is the sum of matched tag weights normalized by
// its own tag count, so narrowly tagged items that match well beat broadly
// tagged items that match incidentally. Quality blends in at 30% for
// quality-modeled corpora.
func (r *Recommender) RecommendByTags(ctx context.Context, contentType store.ContentType, tagWeights map[string]float64, limit int) (map[int64]float64, error) {
	if len(tagWeights) == 0 {
		return map[int64]float64{}, nil
	}

	tags := make([]string, 0, len(tagWeights))
	for tag := range tagWeights {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	candidates, err := r.contents.QueryByTags(ctx, contentType, tags, fetchLimit(limit, 3))
	if err != nil {
		return nil, fmt.Errorf("recommend by tags: query candidates: %w", err)
	}

	scores := make(map[int64]float64)
	for _, item := range candidates {
		if len(item.Tags) == 0 {
			continue
		}
		var matched float64
		for _, tag := range item.Tags {
			matched += tagWeights[tag]
		}
		if matched == 0 {
			continue
		}
		overlap := matched / float64(len(item.Tags))

		score := overlap
		if contentType.HasQualityModel() {
			score = 0.7*overlap + 0.3*quality01(item.QualityScore)
		}
		scores[item.ID] = score
	}
	return topN(scores, limit), nil
}

// RecommendBySimilarity scores candidates by cosine similarity between the
// tag distribution of the user's recently viewed items and each candidate's
// own tag vector. Viewed and explicitly excluded items never appear in the
// candidate pool.
func (r *Recommender) RecommendBySimilarity(ctx context.Context, contentType store.ContentType, viewedIDs, excludeIDs []int64, limit int) (map[int64]float64, error) {
	if len(viewedIDs) == 0 {
		return map[int64]float64{}, nil
	}

	viewed, err := r.contents.GetByIDs(ctx, contentType, viewedIDs)
	if err != nil {
		return nil, fmt.Errorf("recommend by similarity: load viewed items: %w", err)
	}

	pref := tagDistribution(viewed)
	if len(pref) == 0 {
		return map[int64]float64{}, nil
	}

	exclude := make([]int64, 0, len(viewedIDs)+len(excludeIDs))
	exclude = append(exclude, viewedIDs...)
	exclude = append(exclude, excludeIDs...)

	candidates, err := r.contents.QueryCandidates(ctx, contentType, exclude, fetchLimit(limit, 5))
	if err != nil {
		return nil, fmt.Errorf("recommend by similarity: query candidates: %w", err)
	}

	scores := make(map[int64]float64)
	for _, item := range candidates {
		vec := itemTagVector(item)
		sim := similarity.Cosine(pref, vec)
		if sim <= 0 {
			continue
		}

		score := sim
		if contentType.HasQualityModel() {
			score = 0.6*sim + 0.3*quality01(item.QualityScore) + 0.1*viewScore(item.ViewCount)
		}
		scores[item.ID] = score
	}
	return topN(scores, limit), nil
}

// RecommendByCategory pulls the top-quality items of each category in the
// given order, stopping as soon as limit distinct items are collected.
// Every item carries the default score 1.0; the caller's ordering of
// categories, not engagement, decides what makes the cut.
func (r *Recommender) RecommendByCategory(ctx context.Context, contentType store.ContentType, categoryIDs []int64, limit int) (map[int64]float64, error) {
	if len(categoryIDs) == 0 || limit <= 0 {
		return map[int64]float64{}, nil
	}

	scores := make(map[int64]float64, limit)
	for _, categoryID := range categoryIDs {
		if len(scores) >= limit {
			break
		}
		candidates, err := r.contents.QueryByCategory(ctx, contentType, categoryID, limit-len(scores))
		if err != nil {
			return nil, fmt.Errorf("recommend by category %d: query candidates: %w", categoryID, err)
		}
		for _, item := range candidates {
			if _, seen := scores[item.ID]; seen {
				continue
			}
			scores[item.ID] = 1.0
			if len(scores) >= limit {
				break
			}
		}
	}
	return scores, nil
}

// tagDistribution builds a tag frequency vector over the given items,
// normalized so all weights sum to 1.
func tagDistribution(items []store.ContentItem) map[string]float64 {
	counts := make(map[string]float64)
	var total float64
	for _, item := range items {
		for _, tag := range item.Tags {
			counts[tag]++
			total++
		}
	}
	if total == 0 {
		return nil
	}
	for tag := range counts {
		counts[tag] /= total
	}
	return counts
}

// itemTagVector is a uniform distribution over one item's tags.
func itemTagVector(item store.ContentItem) map[string]float64 {
	if len(item.Tags) == 0 {
		return nil
	}
	w := 1.0 / float64(len(item.Tags))
	vec := make(map[string]float64, len(item.Tags))
	for _, tag := range item.Tags {
		vec[tag] = w
	}
	return vec
}

// quality01 maps the stored 0-100 quality score onto [0, 1].
func quality01(q float64) float64 {
	if q <= 0 {
		return 0
	}
	if q >= 100 {
		return 1
	}
	return q / 100
}

// viewScore dampens a raw view count onto a log scale.
func viewScore(views int64) float64 {
	if views <= 0 {
		return 0
	}
	return math.Log1p(float64(views)) / 10
}

func fetchLimit(limit, factor int) int {
	if limit <= 0 {
		return limit
	}
	return limit * factor
}

// topN keeps the limit highest-scoring entries, ties broken by content ID.
func topN(scores map[int64]float64, limit int) map[int64]float64 {
	if limit <= 0 || len(scores) <= limit {
		return scores
	}

	type entry struct {
		contentID int64
		score     float64
	}
	entries := make([]entry, 0, len(scores))
	for cid, s := range scores {
		entries = append(entries, entry{contentID: cid, score: s})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].score != entries[j].score {
			return entries[i].score > entries[j].score
		}
		return entries[i].contentID < entries[j].contentID
	})

	out := make(map[int64]float64, limit)
	for _, e := range entries[:limit] {
		out[e.contentID] = e.score
	}
	return out
}
