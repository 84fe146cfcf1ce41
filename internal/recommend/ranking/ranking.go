// OpenRecommend - Hybrid Content Recommendation Service
// Copyright 2026 Qoobot Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/qoobot/openrecommend

// Package ranking implements the scoring stage applied after strategy
// fusion: a composite relevance model, contextual reranking and
// category diversification.
package ranking

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/qoobot/openrecommend/internal/recommend"
	"github.com/qoobot/openrecommend/internal/store"
)

// Config tunes the composite model. The four weights should sum to 1.
type Config struct {
	RelevanceWeight  float64
	QualityWeight    float64
	PopularityWeight float64
	FreshnessWeight  float64

	// FreshnessDecayHours is the exponential decay scale for content age.
	FreshnessDecayHours float64

	// MobileBoost multiplies video and image scores for mobile requests;
	// ActiveHourBoost multiplies all scores when the request falls inside
	// one of the user's active hours. Boosts compose multiplicatively.
	MobileBoost     float64
	ActiveHourBoost float64
}

// DefaultConfig returns the production weights.
func DefaultConfig() Config {
	return Config{
		RelevanceWeight:     0.4,
		QualityWeight:       0.3,
		PopularityWeight:    0.2,
		FreshnessWeight:     0.1,
		FreshnessDecayHours: 24,
		MobileBoost:         1.1,
		ActiveHourBoost:     1.05,
	}
}

// DeviceMobile is the request device value that triggers the visual
// content boost.
const DeviceMobile = "mobile"

// Service scores and orders recommendation lists. Stateless apart from
// its profile source; safe for concurrent use.
type Service struct {
	profiles recommend.ProfileSource
	cfg      Config
	logger   zerolog.Logger

	// now is swappable for tests.
	now func() time.Time
}

var _ recommend.Ranker = (*Service)(nil)

// NewService creates a Service. Zero config fields fall back to defaults.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewService(profiles recommend.ProfileSource, cfg Config, logger zerolog.Logger) *Service {
	def := DefaultConfig()
	if cfg.RelevanceWeight <= 0 && cfg.QualityWeight <= 0 && cfg.PopularityWeight <= 0 && cfg.FreshnessWeight <= 0 {
		cfg.RelevanceWeight = def.RelevanceWeight
		cfg.QualityWeight = def.QualityWeight
		cfg.PopularityWeight = def.PopularityWeight
		cfg.FreshnessWeight = def.FreshnessWeight
	}
	if cfg.FreshnessDecayHours <= 0 {
		cfg.FreshnessDecayHours = def.FreshnessDecayHours
	}
	if cfg.MobileBoost <= 0 {
		cfg.MobileBoost = def.MobileBoost
	}
	if cfg.ActiveHourBoost <= 0 {
		cfg.ActiveHourBoost = def.ActiveHourBoost
	}
	return &Service{
		profiles: profiles,
		cfg:      cfg,
		logger:   logger.With().Str("component", "ranking").Logger(),
		now:      time.Now,
	}
}

// Rank rescores items with the composite model and orders them best
// first: 40% profile relevance, 30% quality, 20% popularity, 10%
// freshness. Sorting is stable so equal scores keep their fused order.
func (s *Service) Rank(ctx context.Context, items []recommend.Item, userID int64) []recommend.Item {
	return s.rankWith(items, s.profile(ctx, userID))
}

// Rerank runs the composite model and applies contextual boosts on top:
// mobile requests favor visual content, requests inside one of the
// user's active hours get a small across-the-board lift.
func (s *Service) Rerank(ctx context.Context, items []recommend.Item, userID int64, device string, hour int) []recommend.Item {
	prof := s.profile(ctx, userID)
	out := s.rankWith(items, prof)

	active := hour >= 0 && prof != nil && prof.IsActiveAt(hour)
	for i := range out {
		factor := 1.0
		if device == DeviceMobile && visual(out[i].ContentType) {
			factor *= s.cfg.MobileBoost
		}
		if active {
			factor *= s.cfg.ActiveHourBoost
		}
		out[i].Score *= factor
	}
	sortByScore(out)
	return out
}

// Diversify limits same-category clustering: items are ordered by score
// and each category keeps at most ceil(N / (level + 1)) slots; the
// overflow refills the tail in score order, so the result always has the
// input's size. Level runs 1 (mild) to 10 (strict).
func (s *Service) Diversify(items []recommend.Item, level int) []recommend.Item {
	if len(items) < 2 {
		return items
	}
	if level < 1 {
		level = 1
	}
	if level > 10 {
		level = 10
	}

	sorted := make([]recommend.Item, len(items))
	copy(sorted, items)
	sortByScore(sorted)

	perCategory := int(math.Ceil(float64(len(sorted)) / float64(level+1)))
	counts := make(map[int64]int)
	kept := make([]recommend.Item, 0, len(sorted))
	var overflow []recommend.Item
	for _, item := range sorted {
		if counts[item.CategoryID] < perCategory {
			counts[item.CategoryID]++
			kept = append(kept, item)
			continue
		}
		overflow = append(overflow, item)
	}
	return append(kept, overflow...)
}

// MixedRank blends the composite score with a crowding penalty: items in
// categories that dominate the list score lower, alpha and beta weighting
// the two terms.
func (s *Service) MixedRank(ctx context.Context, items []recommend.Item, userID int64, alpha, beta float64) []recommend.Item {
	prof := s.profile(ctx, userID)
	out := s.rankWith(items, prof)

	categorySize := make(map[int64]int, len(out))
	for _, item := range out {
		categorySize[item.CategoryID]++
	}
	for i := range out {
		out[i].Score = alpha*out[i].Score + beta*(1/float64(1+categorySize[out[i].CategoryID]))
	}
	sortByScore(out)
	return out
}

// RankByFreshness orders items newest-decayed first, ignoring every
// other signal.
func (s *Service) RankByFreshness(items []recommend.Item) []recommend.Item {
	now := s.now().UTC()
	out := cloneItems(items)
	for i := range out {
		out[i].Score = recommend.FreshnessScore(out[i].PublishTime, now, s.cfg.FreshnessDecayHours)
	}
	sortByScore(out)
	return out
}

// RankByPopularity orders items by engagement alone.
func (s *Service) RankByPopularity(items []recommend.Item) []recommend.Item {
	out := cloneItems(items)
	for i := range out {
		out[i].Score = recommend.PopularityScore(out[i].ViewCount, out[i].LikeCount)
	}
	sortByScore(out)
	return out
}

// PersonalizedRank orders items by profile-tag relevance alone. Without a
// usable profile every item scores zero and the input order is kept.
func (s *Service) PersonalizedRank(ctx context.Context, items []recommend.Item, userID int64) []recommend.Item {
	prof := s.profile(ctx, userID)
	out := cloneItems(items)
	for i := range out {
		out[i].Score = relevance(out[i].Tags, prof)
	}
	sortByScore(out)
	return out
}

// rankWith applies the composite model against an already loaded profile.
func (s *Service) rankWith(items []recommend.Item, prof *store.UserProfile) []recommend.Item {
	now := s.now().UTC()
	out := cloneItems(items)
	for i := range out {
		out[i].Score = s.composite(&out[i], prof, now)
	}
	sortByScore(out)
	return out
}

func (s *Service) composite(item *recommend.Item, prof *store.UserProfile, now time.Time) float64 {
	return s.cfg.RelevanceWeight*relevance(item.Tags, prof) +
		s.cfg.QualityWeight*quality01(item.QualityScore) +
		s.cfg.PopularityWeight*recommend.PopularityScore(item.ViewCount, item.LikeCount) +
		s.cfg.FreshnessWeight*recommend.FreshnessScore(item.PublishTime, now, s.cfg.FreshnessDecayHours)
}

// profile loads the user's profile, degrading to nil on any failure so
// ranking still runs on the impersonal signals.
func (s *Service) profile(ctx context.Context, userID int64) *store.UserProfile {
	if s.profiles == nil || userID <= 0 {
		return nil
	}
	prof, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		s.logger.Warn().Err(err).Int64("user_id", userID).Msg("profile unavailable, ranking without relevance")
		return nil
	}
	return prof
}

// relevance sums the profile weights of an item's matching tags, capped
// at 1.0.
func relevance(tags []string, prof *store.UserProfile) float64 {
	if prof == nil || len(prof.InterestTags) == 0 || len(tags) == 0 {
		return 0
	}
	var matched float64
	for _, tag := range tags {
		matched += prof.InterestTags[tag]
	}
	r := matched / 10
	if r > 1 {
		return 1
	}
	return r
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

func visual(ct store.ContentType) bool {
	return ct == store.ContentTypeVideo || ct == store.ContentTypeImage
}

func cloneItems(items []recommend.Item) []recommend.Item {
	out := make([]recommend.Item, len(items))
	copy(out, items)
	return out
}

func sortByScore(items []recommend.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Score > items[j].Score
	})
}
