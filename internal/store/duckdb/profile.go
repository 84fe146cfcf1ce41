// OpenRecommend - Hybrid Content Recommendation Service
// Copyright 2026 Qoobot Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/qoobot/openrecommend

package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/qoobot/openrecommend/internal/store"
)

// ProfileStore persists derived user profiles. The weighted vectors are
// stored as JSON columns; they are opaque to every query the service runs.
type ProfileStore struct {
	db *DB
}

var _ store.ProfileStore = (*ProfileStore)(nil)

// GetByUserID loads one profile, or store.ErrNotFound.
func (s *ProfileStore) GetByUserID(ctx context.Context, userID int64) (*store.UserProfile, error) {
	query := `SELECT id, user_id, interest_tags, content_type_preference, active_periods,
		total_view_count, total_read_time, last_update_time
		FROM user_profile WHERE user_id = ?`
	row := s.db.conn.QueryRowContext(ctx, query, userID)

	var prof store.UserProfile
	var interestTags, typePrefs, activePeriods sql.NullString
	var updated sql.NullTime
	err := row.Scan(&prof.ID, &prof.UserID, &interestTags, &typePrefs, &activePeriods,
		&prof.TotalViewCount, &prof.TotalReadTime, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load profile %d: %w", userID, err)
	}

	if err := decodeJSON(interestTags.String, &prof.InterestTags); err != nil {
		return nil, fmt.Errorf("profile %d interest tags: %w", userID, err)
	}
	if err := decodeJSON(typePrefs.String, &prof.ContentTypePreference); err != nil {
		return nil, fmt.Errorf("profile %d type preference: %w", userID, err)
	}
	if err := decodeJSON(activePeriods.String, &prof.ActivePeriods); err != nil {
		return nil, fmt.Errorf("profile %d active periods: %w", userID, err)
	}
	if updated.Valid {
		prof.LastUpdateTime = updated.Time.UTC()
	}
	return &prof, nil
}

// SaveOrUpdate upserts the profile keyed by user ID and fills in the
// assigned row ID on insert.
func (s *ProfileStore) SaveOrUpdate(ctx context.Context, prof *store.UserProfile) error {
	interestTags, err := json.Marshal(prof.InterestTags)
	if err != nil {
		return fmt.Errorf("encode interest tags: %w", err)
	}
	typePrefs, err := json.Marshal(prof.ContentTypePreference)
	if err != nil {
		return fmt.Errorf("encode type preference: %w", err)
	}
	activePeriods, err := json.Marshal(prof.ActivePeriods)
	if err != nil {
		return fmt.Errorf("encode active periods: %w", err)
	}

	updated := prof.LastUpdateTime
	if updated.IsZero() {
		updated = time.Now()
	}

	query := `INSERT INTO user_profile (user_id, interest_tags, content_type_preference, active_periods,
		total_view_count, total_read_time, last_update_time)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			interest_tags = excluded.interest_tags,
			content_type_preference = excluded.content_type_preference,
			active_periods = excluded.active_periods,
			total_view_count = excluded.total_view_count,
			total_read_time = excluded.total_read_time,
			last_update_time = excluded.last_update_time
		RETURNING id`
	row := s.db.conn.QueryRowContext(ctx, query,
		prof.UserID, string(interestTags), string(typePrefs), string(activePeriods),
		prof.TotalViewCount, prof.TotalReadTime, updated.UTC())
	if err := row.Scan(&prof.ID); err != nil {
		return fmt.Errorf("save profile %d: %w", prof.UserID, err)
	}
	return nil
}

func decodeJSON[T any](raw string, dst *T) error {
	if raw == "" || raw == "null" {
		return nil
	}
	return json.Unmarshal([]byte(raw), dst)
}
