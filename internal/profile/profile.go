// OpenRecommend - Hybrid Content Recommendation Service
// Copyright 2026 Qoobot Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/qoobot/openrecommend

// Package profile derives per-user interest models from recorded
// interaction events: a weighted interest tag vector, content type
// preferences and habitual activity hours. Profiles are cached and
// recomputed asynchronously; recomputations for one user are serialized
// while different users proceed in parallel.
package profile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/qoobot/openrecommend/internal/cache"
	"github.com/qoobot/openrecommend/internal/metrics"
	"github.com/qoobot/openrecommend/internal/store"
)

// Rebuild trigger labels for metrics.
const (
	TriggerBehavior = "behavior"
	TriggerBatch    = "batch"
)

// Config tunes profile computation.
type Config struct {
	// Lookback and MaxEvents bound the behavior window one recomputation
	// reads.
	Lookback  time.Duration
	MaxEvents int

	// CacheTTL is the lifetime of cached profiles.
	CacheTTL time.Duration

	// MaxInterestTags and MaxActivePeriods cap the derived vectors.
	MaxInterestTags  int
	MaxActivePeriods int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Lookback:         30 * 24 * time.Hour,
		MaxEvents:        1000,
		CacheTTL:         time.Hour,
		MaxInterestTags:  10,
		MaxActivePeriods: 4,
	}
}

// Service builds, caches and persists user profiles. Safe for concurrent
// use; writes for the same user are serialized internally.
type Service struct {
	profiles  store.ProfileStore
	behaviors store.BehaviorStore
	contents  store.ContentStore
	cache     store.CacheStore
	cfg       Config
	logger    zerolog.Logger

	// userLocks serializes recomputation per user. Entries are never
	// reclaimed; the map is bounded by the active user population.
	mu        sync.Mutex
	userLocks map[int64]*sync.Mutex

	now func() time.Time
}

// NewService creates a Service. Zero config fields fall back to defaults.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewService(profiles store.ProfileStore, behaviors store.BehaviorStore, contents store.ContentStore, cacheStore store.CacheStore, cfg Config, logger zerolog.Logger) *Service {
	def := DefaultConfig()
	if cfg.Lookback <= 0 {
		cfg.Lookback = def.Lookback
	}
	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = def.MaxEvents
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if cfg.MaxInterestTags <= 0 {
		cfg.MaxInterestTags = def.MaxInterestTags
	}
	if cfg.MaxActivePeriods <= 0 {
		cfg.MaxActivePeriods = def.MaxActivePeriods
	}
	return &Service{
		profiles:  profiles,
		behaviors: behaviors,
		contents:  contents,
		cache:     cacheStore,
		cfg:       cfg,
		logger:    logger.With().Str("component", "profile").Logger(),
		userLocks: make(map[int64]*sync.Mutex),
		now:       time.Now,
	}
}

// GetByUserID returns the user's profile, reading through the cache. Users
// without a stored profile get the deterministic default so callers always
// have a usable interest vector.
func (s *Service) GetByUserID(ctx context.Context, userID int64) (*store.UserProfile, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("profile: invalid user id %d", userID)
	}

	key := cache.ProfileKey(userID)
	if data, err := s.cache.Get(ctx, key); err == nil {
		var prof store.UserProfile
		if err := json.Unmarshal(data, &prof); err == nil {
			metrics.CacheHits.WithLabelValues(cache.NamespaceProfile).Inc()
			return &prof, nil
		}
		s.logger.Warn().Int64("user_id", userID).Msg("corrupt cached profile dropped")
	}
	metrics.CacheMisses.WithLabelValues(cache.NamespaceProfile).Inc()

	prof, err := s.profiles.GetByUserID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		prof = DefaultProfile(userID)
	} else if err != nil {
		return nil, fmt.Errorf("profile: load user %d: %w", userID, err)
	}

	s.cacheProfile(ctx, prof)
	return prof, nil
}

// CalculateProfile recomputes the profile from the recent behavior window.
// A user with no events in the window gets their existing profile back
// unchanged, so recomputation is an idempotent no-op for idle users. The
// result is not persisted; Refresh does that.
func (s *Service) CalculateProfile(ctx context.Context, userID int64) (*store.UserProfile, error) {
	existing, err := s.profiles.GetByUserID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		existing = DefaultProfile(userID)
	} else if err != nil {
		return nil, fmt.Errorf("profile: load user %d: %w", userID, err)
	}

	events, err := s.behaviors.QueryRecentByUser(ctx, userID, s.cfg.Lookback, s.cfg.MaxEvents)
	if err != nil {
		return nil, fmt.Errorf("profile: load behavior window for user %d: %w", userID, err)
	}
	if len(events) == 0 {
		return existing, nil
	}

	tags, err := s.contentTags(ctx, events)
	if err != nil {
		return nil, err
	}

	tagStrength := make(map[string]float64)
	typeStrength := make(map[store.ContentType]float64)
	hourCounts := make(map[int]int)
	var viewCount int64
	var viewSeconds int64
	for _, ev := range events {
		strength := ev.BehaviorType.Strength()
		for _, tag := range tags[contentRef{ev.ContentType, ev.ContentID}] {
			tagStrength[tag] += strength
		}
		typeStrength[ev.ContentType] += strength
		hourCounts[ev.CreatedAt.Hour()]++
		if ev.BehaviorType == store.BehaviorView {
			viewCount++
			viewSeconds += int64(ev.Duration)
		}
	}

	prof := &store.UserProfile{
		ID:                    existing.ID,
		UserID:                userID,
		InterestTags:          topTags(tagStrength, s.cfg.MaxInterestTags),
		ContentTypePreference: normalizeTypes(typeStrength),
		ActivePeriods:         topHours(hourCounts, s.cfg.MaxActivePeriods),
		TotalViewCount:        viewCount,
		TotalReadTime:         existing.TotalReadTime + viewSeconds/60,
		LastUpdateTime:        s.now().UTC(),
	}
	return prof, nil
}

// Refresh recomputes and persists the user's profile, then invalidates the
// cached entry. Concurrent refreshes for the same user run one at a time.
func (s *Service) Refresh(ctx context.Context, userID int64, trigger string) error {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	prof, err := s.CalculateProfile(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.profiles.SaveOrUpdate(ctx, prof); err != nil {
		return fmt.Errorf("profile: save user %d: %w", userID, err)
	}
	if err := s.cache.Delete(ctx, cache.ProfileKey(userID)); err != nil {
		s.logger.Warn().Err(err).Int64("user_id", userID).Msg("profile cache invalidation failed")
	}

	metrics.ProfileRebuilds.WithLabelValues(trigger).Inc()
	metrics.ProfileRebuildDuration.Observe(time.Since(start).Seconds())
	s.logger.Debug().Int64("user_id", userID).Str("trigger", trigger).Msg("profile refreshed")
	return nil
}

// DefaultProfile is the deterministic starter profile for users with no
// observed behavior: a broad interest prior and no recorded activity hours.
func DefaultProfile(userID int64) *store.UserProfile {
	return &store.UserProfile{
		UserID: userID,
		InterestTags: map[string]float64{
			"tech":          0.5,
			"life":          0.3,
			"entertainment": 0.2,
		},
		ContentTypePreference: map[store.ContentType]float64{
			store.ContentTypeArticle: 0.5,
			store.ContentTypeImage:   0.3,
			store.ContentTypeVideo:   0.2,
		},
	}
}

type contentRef struct {
	contentType store.ContentType
	contentID   int64
}

// contentTags loads the tag sets of every content item the events touch,
// batched per corpus. Items that no longer exist contribute no tags.
func (s *Service) contentTags(ctx context.Context, events []store.InteractionEvent) (map[contentRef][]string, error) {
	byType := make(map[store.ContentType][]int64)
	seen := make(map[contentRef]struct{}, len(events))
	for _, ev := range events {
		ref := contentRef{ev.ContentType, ev.ContentID}
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		byType[ev.ContentType] = append(byType[ev.ContentType], ev.ContentID)
	}

	tags := make(map[contentRef][]string, len(seen))
	for ct, ids := range byType {
		items, err := s.contents.GetByIDs(ctx, ct, ids)
		if err != nil {
			return nil, fmt.Errorf("profile: load %s items: %w", ct, err)
		}
		for _, item := range items {
			tags[contentRef{ct, item.ID}] = item.Tags
		}
	}
	return tags, nil
}

func (s *Service) userLock(userID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.userLocks[userID] = lock
	}
	return lock
}

func (s *Service) cacheProfile(ctx context.Context, prof *store.UserProfile) {
	data, err := json.Marshal(prof)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", prof.UserID).Msg("marshal profile for cache")
		return
	}
	if err := s.cache.Set(ctx, cache.ProfileKey(prof.UserID), data, s.cfg.CacheTTL); err != nil {
		s.logger.Warn().Err(err).Int64("user_id", prof.UserID).Msg("profile cache write failed")
	}
}

// topTags keeps the limit strongest tags and renormalizes their weights to
// sum to 1. Ties break on tag name so recomputation is deterministic.
func topTags(strength map[string]float64, limit int) map[string]float64 {
	if len(strength) == 0 {
		return map[string]float64{}
	}

	type entry struct {
		tag string
		w   float64
	}
	entries := make([]entry, 0, len(strength))
	for tag, w := range strength {
		if w <= 0 {
			continue
		}
		entries = append(entries, entry{tag: tag, w: w})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].w != entries[j].w {
			return entries[i].w > entries[j].w
		}
		return entries[i].tag < entries[j].tag
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}

	var total float64
	for _, e := range entries {
		total += e.w
	}
	out := make(map[string]float64, len(entries))
	for _, e := range entries {
		out[e.tag] = e.w / total
	}
	return out
}

// normalizeTypes scales type strengths so the observed types sum to 1.
func normalizeTypes(strength map[store.ContentType]float64) map[store.ContentType]float64 {
	var total float64
	for _, w := range strength {
		total += w
	}
	out := make(map[store.ContentType]float64, len(strength))
	if total == 0 {
		return out
	}
	for ct, w := range strength {
		out[ct] = w / total
	}
	return out
}

// topHours keeps the limit busiest hours of day, returned ascending.
func topHours(counts map[int]int, limit int) []int {
	type entry struct {
		hour  int
		count int
	}
	entries := make([]entry, 0, len(counts))
	for hour, count := range counts {
		entries = append(entries, entry{hour: hour, count: count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].hour < entries[j].hour
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}

	hours := make([]int, 0, len(entries))
	for _, e := range entries {
		hours = append(hours, e.hour)
	}
	sort.Ints(hours)
	return hours
}
