// OpenRecommend - Hybrid Content Recommendation Service
// Copyright 2026 Qoobot Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/qoobot/openrecommend

// Package duckdb implements the persistence interfaces on an embedded
// DuckDB database: the content catalog, the behavior log and derived user
// profiles all live in one file.
package duckdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/rs/zerolog"

	"github.com/qoobot/openrecommend/internal/config"
)

// DB owns the DuckDB connection shared by the store implementations.
type DB struct {
	conn   *sql.DB
	logger zerolog.Logger
}

// Open connects to the configured database file and bootstraps the schema.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func Open(cfg config.DatabaseConfig, logger zerolog.Logger) (*DB, error) {
	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	maxMemory := cfg.MaxMemory
	if maxMemory == "" {
		maxMemory = "512MB"
	}

	if dir := filepath.Dir(cfg.Path); cfg.Path != ":memory:" && dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", dir, err)
		}
	}

	// Auto-install/auto-load stay disabled so startup never reaches for
	// the network in restricted environments.
	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, threads, maxMemory)
	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db := &DB{
		conn:   conn,
		logger: logger.With().Str("component", "duckdb").Logger(),
	}
	if err := db.initSchema(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return db, nil
}

// OpenInMemory opens a throwaway in-process database, used by tests.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func OpenInMemory(logger zerolog.Logger) (*DB, error) {
	return Open(config.DatabaseConfig{Path: ":memory:"}, logger)
}

// Close releases the connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Contents returns the content catalog store.
func (db *DB) Contents() *ContentStore { return &ContentStore{db: db} }

// Behaviors returns the interaction log store.
func (db *DB) Behaviors() *BehaviorStore { return &BehaviorStore{db: db} }

// Profiles returns the user profile store.
func (db *DB) Profiles() *ProfileStore { return &ProfileStore{db: db} }

var schema = []string{
	`CREATE SEQUENCE IF NOT EXISTS seq_content_id START 1`,
	`CREATE TABLE IF NOT EXISTS content (
		id BIGINT PRIMARY KEY DEFAULT nextval('seq_content_id'),
		content_type VARCHAR NOT NULL,
		title VARCHAR NOT NULL,
		cover_url VARCHAR,
		category_id BIGINT NOT NULL DEFAULT 0,
		tags VARCHAR,
		quality_score DOUBLE NOT NULL DEFAULT 0,
		view_count BIGINT NOT NULL DEFAULT 0,
		like_count BIGINT NOT NULL DEFAULT 0,
		collect_count BIGINT NOT NULL DEFAULT 0,
		share_count BIGINT NOT NULL DEFAULT 0,
		publish_time TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_content_type_category ON content (content_type, category_id)`,
	`CREATE INDEX IF NOT EXISTS idx_content_type_publish ON content (content_type, publish_time)`,

	`CREATE SEQUENCE IF NOT EXISTS seq_behavior_id START 1`,
	`CREATE TABLE IF NOT EXISTS user_behavior (
		id BIGINT PRIMARY KEY DEFAULT nextval('seq_behavior_id'),
		user_id BIGINT NOT NULL,
		content_type VARCHAR NOT NULL,
		content_id BIGINT NOT NULL,
		behavior_type INTEGER NOT NULL,
		duration INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_behavior_user_time ON user_behavior (user_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_behavior_time ON user_behavior (created_at)`,

	`CREATE SEQUENCE IF NOT EXISTS seq_profile_id START 1`,
	`CREATE TABLE IF NOT EXISTS user_profile (
		id BIGINT PRIMARY KEY DEFAULT nextval('seq_profile_id'),
		user_id BIGINT NOT NULL UNIQUE,
		interest_tags VARCHAR,
		content_type_preference VARCHAR,
		active_periods VARCHAR,
		total_view_count BIGINT NOT NULL DEFAULT 0,
		total_read_time BIGINT NOT NULL DEFAULT 0,
		last_update_time TIMESTAMP
	)`,
}

func (db *DB) initSchema() error {
	for _, stmt := range schema {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("bootstrap schema: %w", err)
		}
	}
	return nil
}

// placeholders renders "?, ?, ?" for n parameters.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	out := make([]byte, 0, n*3)
	for i := 0; i < n; i++ {
		if i > 0 {
			out = append(out, ", "...)
		}
		out = append(out, '?')
	}
	return string(out)
}
