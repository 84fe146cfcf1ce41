// OpenRecommend - Hybrid Content Recommendation Service
// Copyright 2026 Qoobot Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/qoobot/openrecommend

// Package collaborative implements neighborhood collaborative filtering over
// the interaction event log: a user-based variant built on Jaccard
// similarity of interacted-content sets, an item-based variant built on
// co-occurrence, and the weighted hybrid of the two that feeds the engine.
package collaborative

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/qoobot/openrecommend/internal/similarity"
	"github.com/qoobot/openrecommend/internal/store"
)

// Config tunes both collaborative filtering variants.
type Config struct {
	// UserNeighbors is k for the user-based neighborhood.
	UserNeighbors int
	// UserLookbackDays bounds the event window for user-based filtering.
	UserLookbackDays int
	// UserMaxEvents caps events loaded for user-based filtering.
	UserMaxEvents int

	// ItemNeighbors is k for the item-based neighborhood.
	ItemNeighbors int
	// ItemLookbackDays bounds the event window for item co-occurrence.
	ItemLookbackDays int
	// ItemMaxEvents caps events loaded for item co-occurrence.
	ItemMaxEvents int

	// UserWeight and ItemWeight blend the two variants in HybridCF.
	UserWeight float64
	ItemWeight float64
}

// DefaultConfig returns the production defaults. Item-based filtering gets a
// longer window because co-occurrence needs more data to stabilize.
func DefaultConfig() Config {
	return Config{
		UserNeighbors:    10,
		UserLookbackDays: 30,
		UserMaxEvents:    10000,
		ItemNeighbors:    10,
		ItemLookbackDays: 90,
		ItemMaxEvents:    10000,
		UserWeight:       0.4,
		ItemWeight:       0.6,
	}
}

// Filter computes collaborative filtering scores from recent interaction
// events. It is stateless between calls; every invocation reads the current
// event window.
type Filter struct {
	behaviors store.BehaviorStore
	cfg       Config
	logger    zerolog.Logger
}

// NewFilter creates a Filter. Zero config fields fall back to defaults.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewFilter(behaviors store.BehaviorStore, cfg Config, logger zerolog.Logger) *Filter {
	def := DefaultConfig()
	if cfg.UserNeighbors <= 0 {
		cfg.UserNeighbors = def.UserNeighbors
	}
	if cfg.UserLookbackDays <= 0 {
		cfg.UserLookbackDays = def.UserLookbackDays
	}
	if cfg.UserMaxEvents <= 0 {
		cfg.UserMaxEvents = def.UserMaxEvents
	}
	if cfg.ItemNeighbors <= 0 {
		cfg.ItemNeighbors = def.ItemNeighbors
	}
	if cfg.ItemLookbackDays <= 0 {
		cfg.ItemLookbackDays = def.ItemLookbackDays
	}
	if cfg.ItemMaxEvents <= 0 {
		cfg.ItemMaxEvents = def.ItemMaxEvents
	}
	if cfg.UserWeight <= 0 && cfg.ItemWeight <= 0 {
		cfg.UserWeight = def.UserWeight
		cfg.ItemWeight = def.ItemWeight
	}
	return &Filter{behaviors: behaviors, cfg: cfg, logger: logger}
}

// neighbor is one similar user, kept with the data its rank is decided on.
type neighbor struct {
	userID       int64
	sim          float64
	lastActivity time.Time
}

// UserBasedCF scores candidate content for userID from the k most similar
// users. Similarity is the Jaccard index of interacted-content sets within
// the lookback window; a candidate's score is the similarity-weighted
// average behavior strength contributed by neighbors who touched it.
// Content the user already interacted with is never recommended back.
func (f *Filter) UserBasedCF(ctx context.Context, userID int64, contentType store.ContentType, k, limit int) (map[int64]float64, error) {
	if k <= 0 {
		k = f.cfg.UserNeighbors
	}

	lookback := time.Duration(f.cfg.UserLookbackDays) * 24 * time.Hour
	events, err := f.behaviors.QueryRecent(ctx, lookback, f.cfg.UserMaxEvents)
	if err != nil {
		return nil, fmt.Errorf("user cf: query recent events: %w", err)
	}

	sets := make(map[int64]map[int64]struct{})
	lastActivity := make(map[int64]time.Time)
	byUser := make(map[int64][]store.InteractionEvent)
	for _, ev := range events {
		if ev.ContentType != contentType {
			continue
		}
		set, ok := sets[ev.UserID]
		if !ok {
			set = make(map[int64]struct{})
			sets[ev.UserID] = set
		}
		set[ev.ContentID] = struct{}{}
		if ev.CreatedAt.After(lastActivity[ev.UserID]) {
			lastActivity[ev.UserID] = ev.CreatedAt
		}
		byUser[ev.UserID] = append(byUser[ev.UserID], ev)
	}

	mine := sets[userID]
	if len(mine) == 0 {
		return map[int64]float64{}, nil
	}

	neighbors := make([]neighbor, 0, len(sets))
	for uid, set := range sets {
		if uid == userID {
			continue
		}
		sim := similarity.JaccardIDs(mine, set)
		if sim <= 0 {
			continue
		}
		neighbors = append(neighbors, neighbor{userID: uid, sim: sim, lastActivity: lastActivity[uid]})
	}

	// Ties broken by most recent activity, then user ID for determinism.
	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].sim != neighbors[j].sim {
			return neighbors[i].sim > neighbors[j].sim
		}
		if !neighbors[i].lastActivity.Equal(neighbors[j].lastActivity) {
			return neighbors[i].lastActivity.After(neighbors[j].lastActivity)
		}
		return neighbors[i].userID < neighbors[j].userID
	})
	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}

	sums := make(map[int64]float64)
	counts := make(map[int64]int)
	for _, nb := range neighbors {
		for _, ev := range byUser[nb.userID] {
			if _, seen := mine[ev.ContentID]; seen {
				continue
			}
			sums[ev.ContentID] += ev.BehaviorType.Strength() * nb.sim
			counts[ev.ContentID]++
		}
	}

	scores := make(map[int64]float64, len(sums))
	for cid, sum := range sums {
		scores[cid] = sum / float64(counts[cid])
	}
	return topN(scores, limit), nil
}

// ItemBasedCF scores candidates by co-occurrence with the user's own
// interaction history. Item-to-item similarity is the co-occurrence count
// normalized by the geometric mean of the items' audience sizes, which keeps
// blockbuster items from dominating every neighborhood.
func (f *Filter) ItemBasedCF(ctx context.Context, userID int64, contentType store.ContentType, k, limit int) (map[int64]float64, error) {
	if k <= 0 {
		k = f.cfg.ItemNeighbors
	}

	lookback := time.Duration(f.cfg.ItemLookbackDays) * 24 * time.Hour
	events, err := f.behaviors.QueryRecent(ctx, lookback, f.cfg.ItemMaxEvents)
	if err != nil {
		return nil, fmt.Errorf("item cf: query recent events: %w", err)
	}

	userItems := make(map[int64]map[int64]struct{})
	for _, ev := range events {
		if ev.ContentType != contentType {
			continue
		}
		set, ok := userItems[ev.UserID]
		if !ok {
			set = make(map[int64]struct{})
			userItems[ev.UserID] = set
		}
		set[ev.ContentID] = struct{}{}
	}

	mine := userItems[userID]
	if len(mine) == 0 {
		return map[int64]float64{}, nil
	}

	// freq counts distinct users per item; co counts users who touched
	// both items of a pair.
	freq := make(map[int64]int)
	co := make(map[int64]map[int64]int)
	for _, set := range userItems {
		items := make([]int64, 0, len(set))
		for cid := range set {
			items = append(items, cid)
			freq[cid]++
		}
		for i := 0; i < len(items); i++ {
			for j := i + 1; j < len(items); j++ {
				a, b := items[i], items[j]
				if co[a] == nil {
					co[a] = make(map[int64]int)
				}
				if co[b] == nil {
					co[b] = make(map[int64]int)
				}
				co[a][b]++
				co[b][a]++
			}
		}
	}

	scores := make(map[int64]float64)
	for owned := range mine {
		related := co[owned]
		if len(related) == 0 {
			continue
		}

		type itemSim struct {
			contentID int64
			sim       float64
		}
		sims := make([]itemSim, 0, len(related))
		for cid, count := range related {
			if _, seen := mine[cid]; seen {
				continue
			}
			denom := math.Sqrt(float64(freq[owned]) * float64(freq[cid]))
			if denom == 0 {
				continue
			}
			sims = append(sims, itemSim{contentID: cid, sim: float64(count) / denom})
		}
		sort.Slice(sims, func(i, j int) bool {
			if sims[i].sim != sims[j].sim {
				return sims[i].sim > sims[j].sim
			}
			return sims[i].contentID < sims[j].contentID
		})
		if len(sims) > k {
			sims = sims[:k]
		}
		for _, s := range sims {
			scores[s.contentID] += s.sim
		}
	}
	return topN(scores, limit), nil
}

// HybridCF blends the user-based and item-based variants with the
// configured weights. If one variant fails the other still serves; only a
// total failure propagates.
func (f *Filter) HybridCF(ctx context.Context, userID int64, contentType store.ContentType, limit int) (map[int64]float64, error) {
	fetchLimit := limit * 2
	if fetchLimit <= 0 {
		fetchLimit = limit
	}

	userScores, userErr := f.UserBasedCF(ctx, userID, contentType, f.cfg.UserNeighbors, fetchLimit)
	if userErr != nil {
		f.logger.Warn().Err(userErr).Int64("user_id", userID).Msg("user-based cf failed, continuing with item-based only")
	}
	itemScores, itemErr := f.ItemBasedCF(ctx, userID, contentType, f.cfg.ItemNeighbors, fetchLimit)
	if itemErr != nil {
		f.logger.Warn().Err(itemErr).Int64("user_id", userID).Msg("item-based cf failed, continuing with user-based only")
	}
	if userErr != nil && itemErr != nil {
		return nil, fmt.Errorf("hybrid cf: both variants failed: %w", userErr)
	}

	merged := make(map[int64]float64, len(userScores)+len(itemScores))
	for cid, s := range userScores {
		merged[cid] += s * f.cfg.UserWeight
	}
	for cid, s := range itemScores {
		merged[cid] += s * f.cfg.ItemWeight
	}
	return topN(merged, limit), nil
}

// topN keeps the limit highest-scoring entries, breaking score ties by
// content ID so results are stable across runs.
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
