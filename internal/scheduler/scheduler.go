// OpenRecommend - Hybrid Content Recommendation Service
// Copyright 2026 Qoobot Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/qoobot/openrecommend

// Package scheduler runs the periodic maintenance jobs: batch profile
// recomputation for recently active users, hot-list precomputation per
// corpus, and cache garbage collection. Each job is a supervised service
// driven by its own ticker.
package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/qoobot/openrecommend/internal/metrics"
	"github.com/qoobot/openrecommend/internal/profile"
	"github.com/qoobot/openrecommend/internal/store"
)

// Config tunes the scheduled jobs.
type Config struct {
	// ProfileInterval is the period between batch profile runs;
	// ActiveWindow selects which users each run recomputes.
	ProfileInterval time.Duration
	ActiveWindow    time.Duration

	// BatchSize and Workers bound one batch run: users are processed in
	// batches of BatchSize, each batch fanning out to at most Workers
	// concurrent recomputations, joined before the next batch starts.
	BatchSize int
	Workers   int

	// HotInterval is the period between hot-list recomputations.
	HotInterval time.Duration

	// GCInterval is the period between cache garbage collection passes.
	GCInterval time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		ProfileInterval: 6 * time.Hour,
		ActiveWindow:    7 * 24 * time.Hour,
		BatchSize:       100,
		Workers:         8,
		HotInterval:     time.Hour,
		GCInterval:      10 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.ProfileInterval <= 0 {
		c.ProfileInterval = def.ProfileInterval
	}
	if c.ActiveWindow <= 0 {
		c.ActiveWindow = def.ActiveWindow
	}
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	if c.Workers <= 0 {
		c.Workers = def.Workers
	}
	if c.HotInterval <= 0 {
		c.HotInterval = def.HotInterval
	}
	if c.GCInterval <= 0 {
		c.GCInterval = def.GCInterval
	}
	return c
}

// ProfileRefresher recomputes and persists one user's profile.
// Implemented by the profile service.
type ProfileRefresher interface {
	Refresh(ctx context.Context, userID int64, trigger string) error
}

// ProfileJob recomputes profiles for users active in the recent window.
type ProfileJob struct {
	behaviors store.BehaviorStore
	profiles  ProfileRefresher
	cfg       Config
	logger    zerolog.Logger
}

// NewProfileJob creates a ProfileJob.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewProfileJob(behaviors store.BehaviorStore, profiles ProfileRefresher, cfg Config, logger zerolog.Logger) *ProfileJob {
	return &ProfileJob{
		behaviors: behaviors,
		profiles:  profiles,
		cfg:       cfg.withDefaults(),
		logger:    logger.With().Str("component", "profile-job").Logger(),
	}
}

// Serve implements suture.Service: one batch run per tick until the
// context is cancelled.
func (j *ProfileJob) Serve(ctx context.Context) error {
	return runTicker(ctx, j.cfg.ProfileInterval, func() {
		if err := j.RunBatch(ctx); err != nil && ctx.Err() == nil {
			j.logger.Error().Err(err).Msg("batch profile run failed")
		}
	})
}

// String names the service in supervisor logs.
func (j *ProfileJob) String() string { return "profile-job" }

// RunBatch recomputes profiles for every recently active user, in batches
// with bounded fan-out. One user's failure is logged and skipped; the run
// continues.
func (j *ProfileJob) RunBatch(ctx context.Context) error {
	start := time.Now()
	outcome := "ok"
	defer func() {
		metrics.JobRuns.WithLabelValues("profile_batch", outcome).Inc()
		metrics.JobDuration.WithLabelValues("profile_batch").Observe(time.Since(start).Seconds())
	}()

	userIDs, err := j.behaviors.QueryActiveUserIDs(ctx, j.cfg.ActiveWindow)
	if err != nil {
		outcome = "error"
		return fmt.Errorf("profile job: list active users: %w", err)
	}

	var failed atomic.Int64
	for begin := 0; begin < len(userIDs); begin += j.cfg.BatchSize {
		end := begin + j.cfg.BatchSize
		if end > len(userIDs) {
			end = len(userIDs)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(j.cfg.Workers)
		for _, userID := range userIDs[begin:end] {
			g.Go(func() error {
				if err := j.profiles.Refresh(gctx, userID, profile.TriggerBatch); err != nil {
					j.logger.Warn().Err(err).Int64("user_id", userID).Msg("profile recompute failed")
					failed.Add(1)
				}
				return nil
			})
		}
		// Join the batch before starting the next one.
		_ = g.Wait()

		if ctx.Err() != nil {
			outcome = "cancelled"
			return ctx.Err()
		}
	}

	j.logger.Info().
		Int("users", len(userIDs)).
		Int64("failed", failed.Load()).
		Dur("elapsed", time.Since(start)).
		Msg("batch profile run finished")
	return nil
}

// HotRefresher recomputes one corpus's hot list. Implemented by the
// recommendation engine.
type HotRefresher interface {
	RefreshHot(ctx context.Context, contentType store.ContentType) error
}

// HotContentJob keeps the per-corpus hot lists warm so user requests
// rarely pay for recomputation.
type HotContentJob struct {
	engine HotRefresher
	cfg    Config
	logger zerolog.Logger
}

// NewHotContentJob creates a HotContentJob.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewHotContentJob(engine HotRefresher, cfg Config, logger zerolog.Logger) *HotContentJob {
	return &HotContentJob{
		engine: engine,
		cfg:    cfg.withDefaults(),
		logger: logger.With().Str("component", "hot-job").Logger(),
	}
}

// Serve implements suture.Service.
func (j *HotContentJob) Serve(ctx context.Context) error {
	return runTicker(ctx, j.cfg.HotInterval, func() {
		j.Run(ctx)
	})
}

// String names the service in supervisor logs.
func (j *HotContentJob) String() string { return "hot-content-job" }

// Run refreshes the hot list for every corpus. Per-corpus failures are
// logged; the remaining corpora still refresh.
func (j *HotContentJob) Run(ctx context.Context) {
	start := time.Now()
	outcome := "ok"
	for _, ct := range store.AllContentTypes() {
		if err := j.engine.RefreshHot(ctx, ct); err != nil {
			j.logger.Warn().Err(err).Str("content_type", string(ct)).Msg("hot list refresh failed")
			outcome = "error"
		}
	}
	metrics.JobRuns.WithLabelValues("hot_content", outcome).Inc()
	metrics.JobDuration.WithLabelValues("hot_content").Observe(time.Since(start).Seconds())
}

// GarbageCollector reclaims storage space. Implemented by the badger
// cache backend.
type GarbageCollector interface {
	RunGC() error
}

// CacheGCJob periodically compacts the cache backend's value log.
type CacheGCJob struct {
	gc     GarbageCollector
	cfg    Config
	logger zerolog.Logger
}

// NewCacheGCJob creates a CacheGCJob.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewCacheGCJob(gc GarbageCollector, cfg Config, logger zerolog.Logger) *CacheGCJob {
	return &CacheGCJob{
		gc:     gc,
		cfg:    cfg.withDefaults(),
		logger: logger.With().Str("component", "cache-gc-job").Logger(),
	}
}

// Serve implements suture.Service.
func (j *CacheGCJob) Serve(ctx context.Context) error {
	return runTicker(ctx, j.cfg.GCInterval, func() {
		if err := j.gc.RunGC(); err != nil {
			j.logger.Warn().Err(err).Msg("cache gc pass failed")
		}
	})
}

// String names the service in supervisor logs.
func (j *CacheGCJob) String() string { return "cache-gc-job" }

// runTicker invokes fn every interval until the context is cancelled. The
// first run waits one full interval so supervised restarts do not stampede.
func runTicker(ctx context.Context, interval time.Duration, fn func()) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			fn()
		}
	}
}
