// OpenRecommend - Hybrid Content Recommendation Service
// Copyright 2026 Qoobot Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/qoobot/openrecommend

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order.
// The first file found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/openrecommend/config.yaml",
	"/etc/openrecommend/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "CONFIG_PATH"

// envPrefix namespaces the service's environment variables.
const envPrefix = "OPENRECOMMEND_"

// Load builds the configuration from layered sources with the precedence
// ENV > file > defaults, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// findConfigFile returns the first readable config file, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
		return ""
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps environment variable names to koanf config paths.
//
// Examples:
//   - OPENRECOMMEND_SERVER_PORT        -> server.port
//   - OPENRECOMMEND_DATABASE_PATH      -> database.path
//   - OPENRECOMMEND_RECOMMEND_USER_CF_NEIGHBORS -> recommend.user_cf.neighbors
//   - OPENRECOMMEND_LOGGING_LEVEL      -> logging.level
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))

	// Multi-word leaf keys cannot be split purely on underscores, so known
	// compound names are mapped explicitly before the generic fallback.
	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// Generic fallback: first underscore separates section from key.
	if i := strings.Index(key, "_"); i > 0 {
		return key[:i] + "." + key[i+1:]
	}
	return key
}

var envMappings = map[string]string{
	"database_max_memory": "database.max_memory",

	"cache_breaker_enabled": "cache.breaker_enabled",
	"cache_breaker_timeout": "cache.breaker_timeout",

	"recommend_default_limit":      "recommend.default_limit",
	"recommend_max_limit":          "recommend.max_limit",
	"recommend_cache_ttl":          "recommend.cache_ttl",
	"recommend_fan_out_limit":      "recommend.fan_out_limit",
	"recommend_diversity_level":    "recommend.diversity_level",
	"recommend_history_limit":      "recommend.history_limit",
	"recommend_hot_window_days":    "recommend.hot_window_days",
	"recommend_hot_cache_ttl":      "recommend.hot_cache_ttl",
	"recommend_user_cf_weight":     "recommend.user_cf_weight",
	"recommend_item_cf_weight":     "recommend.item_cf_weight",
	"recommend_user_cf_neighbors":  "recommend.user_cf.neighbors",
	"recommend_user_cf_lookback_days": "recommend.user_cf.lookback_days",
	"recommend_user_cf_max_events": "recommend.user_cf.max_events",
	"recommend_item_cf_neighbors":  "recommend.item_cf.neighbors",
	"recommend_item_cf_lookback_days": "recommend.item_cf.lookback_days",
	"recommend_item_cf_max_events": "recommend.item_cf.max_events",

	"profile_lookback_days":      "profile.lookback_days",
	"profile_max_events":         "profile.max_events",
	"profile_cache_ttl":          "profile.cache_ttl",
	"profile_max_tags":           "profile.max_tags",
	"profile_max_active_periods": "profile.max_active_periods",
	"profile_debounce_window":    "profile.debounce_window",

	"scheduler_profile_interval": "scheduler.profile_interval",
	"scheduler_hot_interval":     "scheduler.hot_interval",
	"scheduler_batch_size":       "scheduler.batch_size",
	"scheduler_active_days":      "scheduler.active_days",
}
