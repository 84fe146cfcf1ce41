// OpenRecommend - Hybrid Content Recommendation Service
// Copyright 2026 Qoobot Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/qoobot/openrecommend

// Command server runs the recommendation service: the HTTP API, the
// behavior event subscriber and the background jobs, all under one
// supervision tree.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/qoobot/openrecommend/internal/api"
	"github.com/qoobot/openrecommend/internal/cache"
	"github.com/qoobot/openrecommend/internal/config"
	"github.com/qoobot/openrecommend/internal/events"
	"github.com/qoobot/openrecommend/internal/logging"
	"github.com/qoobot/openrecommend/internal/profile"
	"github.com/qoobot/openrecommend/internal/recommend"
	"github.com/qoobot/openrecommend/internal/recommend/collaborative"
	"github.com/qoobot/openrecommend/internal/recommend/contentbased"
	"github.com/qoobot/openrecommend/internal/recommend/ranking"
	"github.com/qoobot/openrecommend/internal/scheduler"
	"github.com/qoobot/openrecommend/internal/store"
	"github.com/qoobot/openrecommend/internal/store/duckdb"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logger := logging.Logger()
	logger.Info().Str("addr", cfg.Server.Addr()).Msg("Starting OpenRecommend")

	db, err := duckdb.Open(cfg.Database, logger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error().Err(err).Msg("Database close failed")
		}
	}()

	cacheStore, badgerCache, err := openCache(cfg.Cache, logger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open cache")
	}
	defer func() {
		if err := cacheStore.Close(); err != nil {
			logger.Error().Err(err).Msg("Cache close failed")
		}
	}()

	profileSvc := profile.NewService(db.Profiles(), db.Behaviors(), db.Contents(), cacheStore, profile.Config{
		Lookback:         time.Duration(cfg.Profile.LookbackDays) * 24 * time.Hour,
		MaxEvents:        cfg.Profile.MaxEvents,
		CacheTTL:         cfg.Profile.CacheTTL,
		MaxInterestTags:  cfg.Profile.MaxTags,
		MaxActivePeriods: cfg.Profile.MaxActivePeriods,
	}, logger)

	engine, err := recommend.NewEngine(recommend.Deps{
		Cache:     cacheStore,
		Contents:  db.Contents(),
		Behaviors: db.Behaviors(),
		Profiles:  profileSvc,
		Collaborative: collaborative.NewFilter(db.Behaviors(), collaborative.Config{
			UserNeighbors:    cfg.Recommend.UserCF.Neighbors,
			UserLookbackDays: cfg.Recommend.UserCF.LookbackDays,
			UserMaxEvents:    cfg.Recommend.UserCF.MaxEvents,
			ItemNeighbors:    cfg.Recommend.ItemCF.Neighbors,
			ItemLookbackDays: cfg.Recommend.ItemCF.LookbackDays,
			ItemMaxEvents:    cfg.Recommend.ItemCF.MaxEvents,
			UserWeight:       cfg.Recommend.UserCFWeight,
			ItemWeight:       cfg.Recommend.ItemCFWeight,
		}, logger),
		ContentBased: contentbased.NewRecommender(db.Contents(), logger),
		Ranker:       ranking.NewService(profileSvc, ranking.DefaultConfig(), logger),
	}, recommend.Config{
		DefaultLimit:   cfg.Recommend.DefaultLimit,
		MaxLimit:       cfg.Recommend.MaxLimit,
		CacheTTL:       cfg.Recommend.CacheTTL,
		FanOutLimit:    cfg.Recommend.FanOutLimit,
		DiversityLevel: cfg.Recommend.DiversityLevel,
		HistoryLimit:   cfg.Recommend.HistoryLimit,
		HotWindow:      time.Duration(cfg.Recommend.HotWindowDays) * 24 * time.Hour,
		HotCacheTTL:    cfg.Recommend.HotCacheTTL,
	}, logger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build recommendation engine")
	}

	bus := events.NewBus(logger)
	defer func() {
		if err := bus.Close(); err != nil {
			logger.Error().Err(err).Msg("Event bus close failed")
		}
	}()

	refresher := profile.NewRefresher(profileSvc, cfg.Profile.DebounceWindow, logger)
	defer refresher.Close()

	recorder := events.NewRecorder(db.Behaviors(), bus, logger)
	subscriber := events.NewSubscriber(bus, engine, refresher, logger)

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           api.NewRouter(api.NewHandler(engine, recorder, logger)),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
	}

	root := suture.New("openrecommend", suture.Spec{
		EventHook: (&sutureslog.Handler{Logger: logging.NewSlogLogger(logger)}).MustHook(),
		Timeout:   shutdownTimeout,
	})
	root.Add(subscriber)
	root.Add(&httpService{srv: srv, logger: logger})

	if cfg.Scheduler.Enabled {
		schedCfg := scheduler.Config{
			ProfileInterval: cfg.Scheduler.ProfileInterval,
			ActiveWindow:    time.Duration(cfg.Scheduler.ActiveDays) * 24 * time.Hour,
			BatchSize:       cfg.Scheduler.BatchSize,
			Workers:         cfg.Scheduler.Workers,
			HotInterval:     cfg.Scheduler.HotInterval,
		}
		root.Add(scheduler.NewProfileJob(db.Behaviors(), profileSvc, schedCfg, logger))
		root.Add(scheduler.NewHotContentJob(engine, schedCfg, logger))
		if badgerCache != nil {
			root.Add(scheduler.NewCacheGCJob(badgerCache, schedCfg, logger))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("Supervisor exited with error")
	}
	logger.Info().Msg("Shutdown complete")
}

// openCache builds the configured cache backend. The second return value
// is non-nil only for the badger backend, whose value log the scheduler
// GC job compacts.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func openCache(cfg config.CacheConfig, logger zerolog.Logger) (store.CacheStore, *cache.Badger, error) {
	var (
		backend store.CacheStore
		bdg     *cache.Badger
	)

	switch cfg.Backend {
	case "badger":
		var err error
		bdg, err = cache.NewBadger(cfg.Path, logger)
		if err != nil {
			return nil, nil, err
		}
		backend = bdg
	default:
		backend = cache.NewMemory()
	}

	if cfg.BreakerEnabled {
		backend = cache.NewBreaker(backend, cache.BreakerConfig{Timeout: cfg.BreakerTimeout}, logger)
	}
	return backend, bdg, nil
}

// httpService adapts net/http serving to the supervisor contract:
// blocking Serve, shutdown on context cancellation.
type httpService struct {
	srv    *http.Server
	logger zerolog.Logger
}

func (s *httpService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error().Err(err).Msg("HTTP server shutdown failed")
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *httpService) String() string { return "http-server" }
