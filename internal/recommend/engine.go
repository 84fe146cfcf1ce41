// OpenRecommend - Hybrid Content Recommendation Service
// Copyright 2026 Qoobot Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/qoobot/openrecommend

package recommend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/qoobot/openrecommend/internal/cache"
	"github.com/qoobot/openrecommend/internal/metrics"
	"github.com/qoobot/openrecommend/internal/store"
)

// Config tunes the engine.
type Config struct {
	// DefaultLimit applies when a request carries no limit; MaxLimit caps
	// requested limits.
	DefaultLimit int
	MaxLimit     int

	// CacheTTL is the lifetime of assembled recommendation lists.
	CacheTTL time.Duration

	// FanOutLimit bounds concurrently running strategies per request.
	FanOutLimit int

	// DiversityLevel is passed to the ranker's diversification stage.
	DiversityLevel int

	// HistoryLimit caps how many recently interacted content IDs feed the
	// similarity strategy and the already-seen filter.
	HistoryLimit int

	// HotWindow and HotCacheTTL control the popularity fallback list.
	HotWindow   time.Duration
	HotCacheTTL time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		DefaultLimit:   10,
		MaxLimit:       100,
		CacheTTL:       30 * time.Minute,
		FanOutLimit:    8,
		DiversityLevel: 5,
		HistoryLimit:   100,
		HotWindow:      7 * 24 * time.Hour,
		HotCacheTTL:    2 * time.Hour,
	}
}

// Deps carries the engine's collaborators. Cache, Contents, Behaviors and
// Profiles are required; Collaborative, ContentBased and Ranker are
// optional and simply narrow the pipeline when absent.
type Deps struct {
	Cache         store.CacheStore
	Contents      store.ContentStore
	Behaviors     store.BehaviorStore
	Profiles      ProfileSource
	Collaborative CollaborativeFilter
	ContentBased  ContentRecommender
	Ranker        Ranker
}

// Engine coordinates the recommendation pipeline. Safe for concurrent use.
type Engine struct {
	cfg    Config
	deps   Deps
	logger zerolog.Logger
}

// NewEngine creates an Engine. Zero config fields fall back to defaults.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewEngine(deps Deps, cfg Config, logger zerolog.Logger) (*Engine, error) {
	if deps.Cache == nil || deps.Contents == nil || deps.Behaviors == nil || deps.Profiles == nil {
		return nil, errors.New("engine: cache, content, behavior and profile dependencies are required")
	}

	def := DefaultConfig()
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = def.DefaultLimit
	}
	if cfg.MaxLimit < cfg.DefaultLimit {
		cfg.MaxLimit = def.MaxLimit
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if cfg.FanOutLimit <= 0 {
		cfg.FanOutLimit = def.FanOutLimit
	}
	if cfg.DiversityLevel <= 0 {
		cfg.DiversityLevel = def.DiversityLevel
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = def.HistoryLimit
	}
	if cfg.HotWindow <= 0 {
		cfg.HotWindow = def.HotWindow
	}
	if cfg.HotCacheTTL <= 0 {
		cfg.HotCacheTTL = def.HotCacheTTL
	}

	return &Engine{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With().Str("component", "engine").Logger(),
	}, nil
}

// Recommend serves one recommendation request through the full pipeline,
// reading through the per-user result cache.
func (e *Engine) Recommend(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	req = e.prepareRequest(req)

	metrics.RecommendRequestsTotal.WithLabelValues(req.RecommendType, string(req.ContentType)).Inc()
	defer func() {
		metrics.RecommendDuration.WithLabelValues(req.RecommendType).Observe(time.Since(start).Seconds())
	}()

	logger := e.logger.With().
		Int64("user_id", req.UserID).
		Str("content_type", string(req.ContentType)).
		Str("recommend_type", req.RecommendType).
		Logger()

	key := cache.RecommendKey(req.UserID, req.ContentType, req.RecommendType)
	if res := e.cachedResult(ctx, key, logger); res != nil {
		return res, nil
	}

	res, err := e.assemble(ctx, req, logger)
	if err != nil {
		return nil, err
	}

	e.storeResult(ctx, key, res, e.cfg.CacheTTL, logger)

	logger.Debug().
		Int("items", len(res.Items)).
		Dur("elapsed", time.Since(start)).
		Msg("recommendation assembled")
	return res, nil
}

// RecommendHot returns the popularity list for one corpus, independent of
// any user.
func (e *Engine) RecommendHot(ctx context.Context, contentType store.ContentType, limit int) (*Result, error) {
	if !contentType.Valid() {
		contentType = store.ContentTypeArticle
	}
	limit = e.clampLimit(limit)

	items, err := e.hotItems(ctx, contentType)
	if err != nil {
		return nil, err
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return &Result{Items: items, GeneratedAt: time.Now().UTC()}, nil
}

// RecommendByContent serves one list from the content-based strategy
// alone, skipping fusion with other strategies.
func (e *Engine) RecommendByContent(ctx context.Context, userID int64, contentType store.ContentType, limit int) (*Result, error) {
	req := e.prepareRequest(Request{UserID: userID, ContentType: contentType, RecommendType: TypePersonal, Limit: limit, Hour: -1})
	if e.deps.ContentBased == nil {
		return &Result{Items: []Item{}, GeneratedAt: time.Now().UTC()}, nil
	}

	logger := e.logger.With().Int64("user_id", userID).Str("strategy", "content").Logger()
	history, err := e.userHistory(ctx, req)
	if err != nil {
		return nil, err
	}
	prof := e.loadProfile(ctx, req.UserID, logger)

	st := strategy{name: "content", run: func(ctx context.Context) (map[int64]float64, error) {
		return e.contentScores(ctx, req, prof, history)
	}}
	return e.assembleWith(ctx, req, []strategy{st}, logger)
}

// RecommendByCollaborativeFiltering serves one list from the hybrid
// collaborative strategy alone.
func (e *Engine) RecommendByCollaborativeFiltering(ctx context.Context, userID int64, contentType store.ContentType, limit int) (*Result, error) {
	req := e.prepareRequest(Request{UserID: userID, ContentType: contentType, RecommendType: TypePersonal, Limit: limit, Hour: -1})
	if e.deps.Collaborative == nil {
		return &Result{Items: []Item{}, GeneratedAt: time.Now().UTC()}, nil
	}

	logger := e.logger.With().Int64("user_id", userID).Str("strategy", "cf").Logger()
	st := strategy{name: "cf", run: func(ctx context.Context) (map[int64]float64, error) {
		return e.deps.Collaborative.HybridCF(ctx, req.UserID, req.ContentType, req.Limit*2)
	}}
	return e.assembleWith(ctx, req, []strategy{st}, logger)
}

// RecommendRelated returns content similar to one seed item, looked up
// across all corpora. An unknown seed yields an empty result rather than an
// error, so stale links degrade gracefully.
func (e *Engine) RecommendRelated(ctx context.Context, contentID int64, limit int) (*Result, error) {
	limit = e.clampLimit(limit)

	var seed *store.ContentItem
	for _, ct := range store.AllContentTypes() {
		item, err := e.deps.Contents.GetByID(ctx, ct, contentID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("related: load seed %d: %w", contentID, err)
		}
		seed = item
		break
	}
	if seed == nil || len(seed.Tags) == 0 || e.deps.ContentBased == nil {
		return &Result{Items: []Item{}, GeneratedAt: time.Now().UTC()}, nil
	}

	weights := make(map[string]float64, len(seed.Tags))
	for _, tag := range seed.Tags {
		weights[tag] = 1.0
	}

	scores, err := e.deps.ContentBased.RecommendByTags(ctx, seed.ContentType, weights, limit+1)
	if err != nil {
		return nil, fmt.Errorf("related: score candidates: %w", err)
	}
	delete(scores, contentID)

	fused := make(map[int64]contribution, len(scores))
	for cid, s := range scores {
		fused[cid] = contribution{score: s, source: "related"}
	}
	items, err := e.hydrate(ctx, seed.ContentType, fused)
	if err != nil {
		return nil, err
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return &Result{Items: items, GeneratedAt: time.Now().UTC()}, nil
}

// InvalidateUser drops every cached recommendation list for one user.
// Called after new behavior lands so the next request reflects it.
func (e *Engine) InvalidateUser(ctx context.Context, userID int64) error {
	return e.deps.Cache.DeletePrefix(ctx, cache.RecommendPrefix(userID))
}

// RefreshHot recomputes and caches the hot list for one corpus. Called by
// the scheduler so user requests mostly hit the precomputed entry.
func (e *Engine) RefreshHot(ctx context.Context, contentType store.ContentType) error {
	_, err := e.computeHot(ctx, contentType)
	return err
}

// prepareRequest normalizes the request in place.
func (e *Engine) prepareRequest(req Request) Request {
	req.Limit = e.clampLimit(req.Limit)
	if !req.ContentType.Valid() {
		req.ContentType = store.ContentTypeArticle
	}
	// Unrecognized types run the full strategy set, which is exactly what
	// popular does; folding them into it keeps the cache key space to the
	// two supported types.
	if req.RecommendType != TypePersonal {
		req.RecommendType = TypePopular
	}
	return req
}

func (e *Engine) clampLimit(limit int) int {
	if limit <= 0 {
		return e.cfg.DefaultLimit
	}
	if limit > e.cfg.MaxLimit {
		return e.cfg.MaxLimit
	}
	return limit
}

//nolint:gocritic // zerolog.Logger is designed to be passed by value
func (e *Engine) cachedResult(ctx context.Context, key string, logger zerolog.Logger) *Result {
	data, err := e.deps.Cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrCacheMiss) {
			logger.Warn().Err(err).Msg("result cache read failed")
		}
		metrics.CacheMisses.WithLabelValues(cache.NamespaceRecommend).Inc()
		return nil
	}

	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("corrupt cached result dropped")
		metrics.CacheMisses.WithLabelValues(cache.NamespaceRecommend).Inc()
		return nil
	}
	metrics.CacheHits.WithLabelValues(cache.NamespaceRecommend).Inc()
	return &res
}

//nolint:gocritic // zerolog.Logger is designed to be passed by value
func (e *Engine) storeResult(ctx context.Context, key string, res *Result, ttl time.Duration, logger zerolog.Logger) {
	data, err := json.Marshal(res)
	if err != nil {
		logger.Error().Err(err).Msg("marshal result for cache")
		return
	}
	if err := e.deps.Cache.Set(ctx, key, data, ttl); err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("result cache write failed")
	}
}

// assemble runs the uncached pipeline: strategy fan-out, max-fusion,
// hydration, ranking, truncation.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func (e *Engine) assemble(ctx context.Context, req Request, logger zerolog.Logger) (*Result, error) {
	history, err := e.userHistory(ctx, req)
	if err != nil {
		return nil, err
	}

	prof := e.loadProfile(ctx, req.UserID, logger)
	strategies := e.strategiesFor(req, prof, history)
	return e.assembleWith(ctx, req, strategies, logger)
}

// assembleWith runs the given strategies and finishes the pipeline:
// fan-out, max-fusion, hydration, ranking, truncation.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func (e *Engine) assembleWith(ctx context.Context, req Request, strategies []strategy, logger zerolog.Logger) (*Result, error) {
	if len(strategies) == 0 {
		return &Result{Items: []Item{}, GeneratedAt: time.Now().UTC()}, nil
	}

	results := e.runStrategies(ctx, strategies, logger)
	fused := fuse(strategies, results)

	items, err := e.hydrate(ctx, req.ContentType, fused)
	if err != nil {
		return nil, err
	}

	items = e.applyRanking(ctx, req, items)
	if len(items) > req.Limit {
		items = items[:req.Limit]
	}
	return &Result{Items: items, GeneratedAt: time.Now().UTC()}, nil
}

// userHistory loads the user's recently interacted content IDs. Anonymous
// requests have none.
func (e *Engine) userHistory(ctx context.Context, req Request) ([]int64, error) {
	if req.UserID <= 0 {
		return nil, nil
	}
	history, err := e.deps.Behaviors.QueryDistinctContentIDs(ctx, req.UserID, req.ContentType, e.cfg.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("load interaction history: %w", err)
	}
	return history, nil
}

//nolint:gocritic // zerolog.Logger is designed to be passed by value
func (e *Engine) loadProfile(ctx context.Context, userID int64, logger zerolog.Logger) *store.UserProfile {
	if userID <= 0 {
		return nil
	}
	prof, err := e.deps.Profiles.GetByUserID(ctx, userID)
	if err != nil {
		logger.Warn().Err(err).Msg("profile unavailable, personalization degraded")
		return nil
	}
	return prof
}

// strategy is one bounded unit of candidate generation.
type strategy struct {
	name string
	run  func(ctx context.Context) (map[int64]float64, error)
}

// strategiesFor picks the strategy set for the request. Users without any
// interaction history fall back to the popularity list alone; there is no
// signal to personalize on and default-profile tags would only fabricate
// affinity.
func (e *Engine) strategiesFor(req Request, prof *store.UserProfile, history []int64) []strategy {
	hot := strategy{name: "hot", run: func(ctx context.Context) (map[int64]float64, error) {
		return e.hotScores(ctx, req.ContentType)
	}}

	cf := strategy{name: "cf", run: func(ctx context.Context) (map[int64]float64, error) {
		return e.deps.Collaborative.HybridCF(ctx, req.UserID, req.ContentType, req.Limit*2)
	}}

	content := strategy{name: "content", run: func(ctx context.Context) (map[int64]float64, error) {
		return e.contentScores(ctx, req, prof, history)
	}}

	if len(history) == 0 {
		return []strategy{hot}
	}

	out := make([]strategy, 0, 3)
	if e.deps.Collaborative != nil {
		out = append(out, cf)
	}
	if e.deps.ContentBased != nil {
		out = append(out, content)
	}
	if req.RecommendType != TypePersonal || len(out) == 0 {
		out = append(out, hot)
	}
	return out
}

// contentScores merges the two content-based signals: profile tag affinity
// at full weight and viewed-item similarity at 0.8.
func (e *Engine) contentScores(ctx context.Context, req Request, prof *store.UserProfile, history []int64) (map[int64]float64, error) {
	fetch := req.Limit * 2

	var tagScores map[int64]float64
	var tagErr error
	if prof != nil && len(prof.InterestTags) > 0 {
		tagScores, tagErr = e.deps.ContentBased.RecommendByTags(ctx, req.ContentType, prof.InterestTags, fetch)
	}

	simScores, simErr := e.deps.ContentBased.RecommendBySimilarity(ctx, req.ContentType, history, nil, fetch)
	if tagErr != nil && simErr != nil {
		return nil, fmt.Errorf("content strategy: %w", tagErr)
	}

	merged := make(map[int64]float64, len(tagScores)+len(simScores))
	for cid, s := range tagScores {
		merged[cid] += s
	}
	for cid, s := range simScores {
		merged[cid] += 0.8 * s
	}
	return merged, nil
}

// runStrategies executes strategies on a bounded pool. A strategy that
// errors or panics yields nil and the request continues without it.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func (e *Engine) runStrategies(ctx context.Context, strategies []strategy, logger zerolog.Logger) []map[int64]float64 {
	results := make([]map[int64]float64, len(strategies))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.FanOutLimit)
	for i, st := range strategies {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					logger.Error().Interface("panic", r).Str("strategy", st.name).Msg("strategy panicked")
					metrics.StrategyFailures.WithLabelValues(st.name, "panic").Inc()
				}
			}()

			start := time.Now()
			scores, err := st.run(gctx)
			metrics.ObserveStrategy(st.name, time.Since(start))
			if err != nil {
				logger.Warn().Err(err).Str("strategy", st.name).Msg("strategy failed, dropped from fusion")
				metrics.StrategyFailures.WithLabelValues(st.name, "error").Inc()
				return nil
			}
			results[i] = scores
			return nil
		})
	}
	_ = g.Wait() // strategies never return errors through the group
	return results
}

// contribution is one fused candidate score and the strategy that won it.
type contribution struct {
	score  float64
	source string
}

// fuse merges strategy outputs keeping the maximum score per candidate.
// Ties go to the earlier strategy in declaration order.
func fuse(strategies []strategy, results []map[int64]float64) map[int64]contribution {
	fused := make(map[int64]contribution)
	for i, scores := range results {
		name := strategies[i].name
		for cid, s := range scores {
			if cur, ok := fused[cid]; !ok || s > cur.score {
				fused[cid] = contribution{score: s, source: name}
			}
		}
	}
	return fused
}

// hydrate loads content metadata for fused candidates and returns items in
// fused-score order. Candidates missing from the store are dropped.
func (e *Engine) hydrate(ctx context.Context, contentType store.ContentType, fused map[int64]contribution) ([]Item, error) {
	if len(fused) == 0 {
		return []Item{}, nil
	}

	ids := make([]int64, 0, len(fused))
	for cid := range fused {
		ids = append(ids, cid)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := fused[ids[i]], fused[ids[j]]
		if a.score != b.score {
			return a.score > b.score
		}
		return ids[i] < ids[j]
	})

	rows, err := e.deps.Contents.GetByIDs(ctx, contentType, ids)
	if err != nil {
		return nil, fmt.Errorf("hydrate candidates: %w", err)
	}
	byID := make(map[int64]store.ContentItem, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}

	items := make([]Item, 0, len(ids))
	for _, cid := range ids {
		row, ok := byID[cid]
		if !ok {
			continue
		}
		c := fused[cid]
		items = append(items, Item{
			ContentID:    row.ID,
			ContentType:  row.ContentType,
			Title:        row.Title,
			CoverURL:     row.CoverURL,
			CategoryID:   row.CategoryID,
			Tags:         row.Tags,
			Score:        c.score,
			Source:       c.source,
			QualityScore: row.QualityScore,
			ViewCount:    row.ViewCount,
			LikeCount:    row.LikeCount,
			PublishTime:  row.PublishTime,
		})
	}
	return items, nil
}

// applyRanking runs the composite ranking stage when a ranker is wired.
func (e *Engine) applyRanking(ctx context.Context, req Request, items []Item) []Item {
	if e.deps.Ranker == nil || len(items) == 0 {
		return items
	}
	items = e.deps.Ranker.Rerank(ctx, items, req.UserID, req.Device, req.Hour)
	return e.deps.Ranker.Diversify(items, e.cfg.DiversityLevel)
}

// hotScores adapts the hot list into a strategy contribution.
func (e *Engine) hotScores(ctx context.Context, contentType store.ContentType) (map[int64]float64, error) {
	items, err := e.hotItems(ctx, contentType)
	if err != nil {
		return nil, err
	}
	scores := make(map[int64]float64, len(items))
	for _, item := range items {
		scores[item.ContentID] = item.Score
	}
	return scores, nil
}

// hotItems serves the precomputed hot list, recomputing on cache miss.
func (e *Engine) hotItems(ctx context.Context, contentType store.ContentType) ([]Item, error) {
	key := cache.HotContentKey(contentType, e.hotPeriod())
	if data, err := e.deps.Cache.Get(ctx, key); err == nil {
		var items []Item
		if err := json.Unmarshal(data, &items); err == nil {
			metrics.CacheHits.WithLabelValues(cache.NamespaceHot).Inc()
			return items, nil
		}
		e.logger.Warn().Str("key", key).Msg("corrupt hot list dropped")
	}
	metrics.CacheMisses.WithLabelValues(cache.NamespaceHot).Inc()
	return e.computeHot(ctx, contentType)
}

// computeHot rebuilds the hot list from the store and caches it.
func (e *Engine) computeHot(ctx context.Context, contentType store.ContentType) ([]Item, error) {
	rows, err := e.deps.Contents.QueryHot(ctx, contentType, e.cfg.HotWindow, e.cfg.MaxLimit)
	if err != nil {
		return nil, fmt.Errorf("query hot content: %w", err)
	}

	items := make([]Item, 0, len(rows))
	for _, row := range rows {
		items = append(items, Item{
			ContentID:    row.ID,
			ContentType:  row.ContentType,
			Title:        row.Title,
			CoverURL:     row.CoverURL,
			CategoryID:   row.CategoryID,
			Tags:         row.Tags,
			Score:        PopularityScore(row.ViewCount, row.LikeCount),
			Source:       "hot",
			QualityScore: row.QualityScore,
			ViewCount:    row.ViewCount,
			LikeCount:    row.LikeCount,
			PublishTime:  row.PublishTime,
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].ContentID < items[j].ContentID
	})

	if data, err := json.Marshal(items); err == nil {
		if err := e.deps.Cache.Set(ctx, cache.HotContentKey(contentType, e.hotPeriod()), data, e.cfg.HotCacheTTL); err != nil {
			e.logger.Warn().Err(err).Msg("hot list cache write failed")
		}
	}
	return items, nil
}

// hotPeriod renders the hot window as the cache key period token, e.g. "7d".
func (e *Engine) hotPeriod() string {
	days := int(e.cfg.HotWindow.Hours() / 24)
	if days < 1 {
		days = 1
	}
	return fmt.Sprintf("%dd", days)
}
