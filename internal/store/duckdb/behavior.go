// OpenRecommend - Hybrid Content Recommendation Service
// Copyright 2026 Qoobot Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/qoobot/openrecommend

package duckdb

import (
	"context"
	"fmt"
	"time"

	"github.com/qoobot/openrecommend/internal/store"
)

// BehaviorStore persists and queries the interaction log.
type BehaviorStore struct {
	db *DB
}

var _ store.BehaviorStore = (*BehaviorStore)(nil)

// Append records one interaction, assigning its ID.
func (s *BehaviorStore) Append(ctx context.Context, ev *store.InteractionEvent) error {
	query := `INSERT INTO user_behavior (user_id, content_type, content_id, behavior_type, duration, created_at)
		VALUES (?, ?, ?, ?, ?, ?) RETURNING id`
	row := s.db.conn.QueryRowContext(ctx, query,
		ev.UserID, string(ev.ContentType), ev.ContentID, int(ev.BehaviorType), ev.Duration, ev.CreatedAt.UTC())
	if err := row.Scan(&ev.ID); err != nil {
		return fmt.Errorf("append behavior: %w", err)
	}
	return nil
}

// QueryRecentByUser returns the user's events inside the lookback window,
// newest first.
func (s *BehaviorStore) QueryRecentByUser(ctx context.Context, userID int64, lookback time.Duration, limit int) ([]store.InteractionEvent, error) {
	query := `SELECT id, user_id, content_type, content_id, behavior_type, duration, created_at
		FROM user_behavior
		WHERE user_id = ? AND created_at >= ?
		ORDER BY created_at DESC, id DESC LIMIT ?`
	return s.queryEvents(ctx, query, userID, cutoff(lookback), limit)
}

// QueryRecent returns every user's events inside the lookback window,
// newest first. Feeds the collaborative filters.
func (s *BehaviorStore) QueryRecent(ctx context.Context, lookback time.Duration, limit int) ([]store.InteractionEvent, error) {
	query := `SELECT id, user_id, content_type, content_id, behavior_type, duration, created_at
		FROM user_behavior
		WHERE created_at >= ?
		ORDER BY created_at DESC, id DESC LIMIT ?`
	return s.queryEvents(ctx, query, cutoff(lookback), limit)
}

// QueryDistinctContentIDs returns the distinct content the user touched in
// one corpus, most recently touched first.
func (s *BehaviorStore) QueryDistinctContentIDs(ctx context.Context, userID int64, contentType store.ContentType, limit int) ([]int64, error) {
	query := `SELECT content_id
		FROM user_behavior
		WHERE user_id = ? AND content_type = ?
		GROUP BY content_id
		ORDER BY max(created_at) DESC, content_id ASC LIMIT ?`
	rows, err := s.db.conn.QueryContext(ctx, query, userID, string(contentType), limit)
	if err != nil {
		return nil, fmt.Errorf("query interacted content: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan content id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate content ids: %w", err)
	}
	return ids, nil
}

// CountByBehaviorType counts the user's events of one kind inside the
// window.
func (s *BehaviorStore) CountByBehaviorType(ctx context.Context, userID int64, behaviorType store.BehaviorType, lookback time.Duration) (int64, error) {
	query := `SELECT count(*) FROM user_behavior
		WHERE user_id = ? AND behavior_type = ? AND created_at >= ?`
	var n int64
	if err := s.db.conn.QueryRowContext(ctx, query, userID, int(behaviorType), cutoff(lookback)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count behaviors: %w", err)
	}
	return n, nil
}

// QueryActiveUserIDs returns the users with any event inside the window,
// in stable ascending order.
func (s *BehaviorStore) QueryActiveUserIDs(ctx context.Context, lookback time.Duration) ([]int64, error) {
	query := `SELECT DISTINCT user_id FROM user_behavior WHERE created_at >= ? ORDER BY user_id ASC`
	rows, err := s.db.conn.QueryContext(ctx, query, cutoff(lookback))
	if err != nil {
		return nil, fmt.Errorf("query active users: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user ids: %w", err)
	}
	return ids, nil
}

func (s *BehaviorStore) queryEvents(ctx context.Context, query string, args ...any) ([]store.InteractionEvent, error) {
	rows, err := s.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query behaviors: %w", err)
	}
	defer rows.Close()

	var events []store.InteractionEvent
	for rows.Next() {
		var ev store.InteractionEvent
		var contentType string
		var behaviorType int
		var created time.Time
		if err := rows.Scan(&ev.ID, &ev.UserID, &contentType, &ev.ContentID, &behaviorType, &ev.Duration, &created); err != nil {
			return nil, fmt.Errorf("scan behavior: %w", err)
		}
		ev.ContentType = store.ContentType(contentType)
		ev.BehaviorType = store.BehaviorType(behaviorType)
		ev.CreatedAt = created.UTC()
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate behaviors: %w", err)
	}
	return events, nil
}

func cutoff(lookback time.Duration) time.Time {
	return time.Now().UTC().Add(-lookback)
}
