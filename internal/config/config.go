// OpenRecommend - Hybrid Content Recommendation Service
// Copyright 2026 Qoobot Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/qoobot/openrecommend

// Package config defines the service configuration and its layered loading:
// built-in defaults, then an optional YAML file, then environment variables.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the recommendation service.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Cache     CacheConfig     `koanf:"cache"`
	Recommend RecommendConfig `koanf:"recommend"`
	Profile   ProfileConfig   `koanf:"profile"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	// Path is the database file location. ":memory:" runs in-process only.
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	// Threads caps DuckDB worker threads; 0 lets DuckDB decide.
	Threads int `koanf:"threads"`
}

// CacheConfig holds the read-through cache settings.
type CacheConfig struct {
	// Backend selects the cache implementation: badger or memory.
	Backend string `koanf:"backend"`
	// Path is the Badger data directory; ignored by the memory backend.
	Path string `koanf:"path"`
	// BreakerEnabled wraps the cache in a circuit breaker that degrades
	// a failing backend to cache misses instead of request errors.
	BreakerEnabled bool `koanf:"breaker_enabled"`
	// BreakerTimeout is how long the breaker stays open before probing.
	BreakerTimeout time.Duration `koanf:"breaker_timeout"`
}

// CFConfig tunes one collaborative filtering variant.
type CFConfig struct {
	// Neighbors is the k parameter of the neighborhood model.
	Neighbors int `koanf:"neighbors"`
	// LookbackDays bounds the event window the model trains on.
	LookbackDays int `koanf:"lookback_days"`
	// MaxEvents caps the number of events loaded per query.
	MaxEvents int `koanf:"max_events"`
}

// RecommendConfig tunes the recommendation engine.
type RecommendConfig struct {
	DefaultLimit int `koanf:"default_limit"`
	MaxLimit     int `koanf:"max_limit"`
	// CacheTTL is the lifetime of assembled recommendation lists.
	CacheTTL time.Duration `koanf:"cache_ttl"`
	// FanOutLimit bounds concurrently running strategies per request.
	FanOutLimit int `koanf:"fan_out_limit"`
	// DiversityLevel caps per-category crowding; higher is stricter.
	DiversityLevel int `koanf:"diversity_level"`
	// HistoryLimit is how many recently interacted items feed the
	// content-similarity strategy.
	HistoryLimit   int           `koanf:"history_limit"`
	HotWindowDays  int           `koanf:"hot_window_days"`
	HotCacheTTL    time.Duration `koanf:"hot_cache_ttl"`
	UserCF         CFConfig      `koanf:"user_cf"`
	ItemCF         CFConfig      `koanf:"item_cf"`
	UserCFWeight   float64       `koanf:"user_cf_weight"`
	ItemCFWeight   float64       `koanf:"item_cf_weight"`
}

// ProfileConfig tunes user profile building.
type ProfileConfig struct {
	LookbackDays int           `koanf:"lookback_days"`
	MaxEvents    int           `koanf:"max_events"`
	CacheTTL     time.Duration `koanf:"cache_ttl"`
	// MaxTags bounds the interest tag vector kept per user.
	MaxTags          int `koanf:"max_tags"`
	MaxActivePeriods int `koanf:"max_active_periods"`
	// DebounceWindow coalesces behavior-triggered refreshes per user.
	DebounceWindow time.Duration `koanf:"debounce_window"`
}

// SchedulerConfig tunes the background jobs.
type SchedulerConfig struct {
	Enabled bool `koanf:"enabled"`
	// ProfileInterval is how often profiles of recently active users are
	// rebuilt in bulk.
	ProfileInterval time.Duration `koanf:"profile_interval"`
	// HotInterval is how often hot content lists are precomputed.
	HotInterval time.Duration `koanf:"hot_interval"`
	BatchSize   int           `koanf:"batch_size"`
	// ActiveDays defines "recently active" for the bulk profile job.
	ActiveDays int `koanf:"active_days"`
	// Workers bounds concurrent profile rebuilds within a batch.
	Workers int `koanf:"workers"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Default returns the built-in configuration defaults. These are applied
// first, then overridden by the config file and environment variables.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8080,
			Timeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Path:      "/data/openrecommend.duckdb",
			MaxMemory: "2GB",
			Threads:   0,
		},
		Cache: CacheConfig{
			Backend:        "badger",
			Path:           "/data/cache",
			BreakerEnabled: true,
			BreakerTimeout: 30 * time.Second,
		},
		Recommend: RecommendConfig{
			DefaultLimit:   10,
			MaxLimit:       100,
			CacheTTL:       30 * time.Minute,
			FanOutLimit:    8,
			DiversityLevel: 5,
			HistoryLimit:   100,
			HotWindowDays:  7,
			HotCacheTTL:    2 * time.Hour,
			UserCF: CFConfig{
				Neighbors:    10,
				LookbackDays: 30,
				MaxEvents:    10000,
			},
			ItemCF: CFConfig{
				Neighbors:    10,
				LookbackDays: 90,
				MaxEvents:    10000,
			},
			UserCFWeight: 0.4,
			ItemCFWeight: 0.6,
		},
		Profile: ProfileConfig{
			LookbackDays:     30,
			MaxEvents:        1000,
			CacheTTL:         time.Hour,
			MaxTags:          10,
			MaxActivePeriods: 4,
			DebounceWindow:   30 * time.Second,
		},
		Scheduler: SchedulerConfig{
			Enabled:         true,
			ProfileInterval: 6 * time.Hour,
			HotInterval:     time.Hour,
			BatchSize:       100,
			ActiveDays:      7,
			Workers:         8,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	switch c.Cache.Backend {
	case "badger", "memory":
	default:
		return fmt.Errorf("cache.backend %q not supported (badger, memory)", c.Cache.Backend)
	}
	if c.Cache.Backend == "badger" && c.Cache.Path == "" {
		return fmt.Errorf("cache.path must be set for the badger backend")
	}
	if c.Recommend.DefaultLimit < 1 {
		return fmt.Errorf("recommend.default_limit must be positive")
	}
	if c.Recommend.MaxLimit < c.Recommend.DefaultLimit {
		return fmt.Errorf("recommend.max_limit %d below default_limit %d",
			c.Recommend.MaxLimit, c.Recommend.DefaultLimit)
	}
	if c.Recommend.FanOutLimit < 1 {
		return fmt.Errorf("recommend.fan_out_limit must be positive")
	}
	if c.Recommend.UserCFWeight < 0 || c.Recommend.ItemCFWeight < 0 {
		return fmt.Errorf("collaborative filtering weights must be non-negative")
	}
	if c.Profile.LookbackDays < 1 || c.Profile.MaxEvents < 1 {
		return fmt.Errorf("profile lookback_days and max_events must be positive")
	}
	if c.Profile.MaxTags < 1 {
		return fmt.Errorf("profile.max_tags must be positive")
	}
	if c.Scheduler.BatchSize < 1 {
		return fmt.Errorf("scheduler.batch_size must be positive")
	}
	return nil
}
