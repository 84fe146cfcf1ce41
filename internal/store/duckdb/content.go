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
	"strings"
	"time"

	"github.com/qoobot/openrecommend/internal/store"
)

const contentColumns = `id, content_type, title, cover_url, category_id, tags,
	quality_score, view_count, like_count, collect_count, share_count, publish_time`

// ContentStore reads the content catalog.
type ContentStore struct {
	db *DB
}

var _ store.ContentStore = (*ContentStore)(nil)

// GetByID loads one item.
func (s *ContentStore) GetByID(ctx context.Context, contentType store.ContentType, id int64) (*store.ContentItem, error) {
	query := `SELECT ` + contentColumns + ` FROM content WHERE content_type = ? AND id = ?`
	row := s.db.conn.QueryRowContext(ctx, query, string(contentType), id)

	item, err := s.scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("content %d: %w", id, err)
	}
	return item, nil
}

// GetByIDs loads a batch of items. Missing IDs are silently omitted.
func (s *ContentStore) GetByIDs(ctx context.Context, contentType store.ContentType, ids []int64) ([]store.ContentItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	args := make([]any, 0, len(ids)+1)
	args = append(args, string(contentType))
	for _, id := range ids {
		args = append(args, id)
	}
	query := `SELECT ` + contentColumns + ` FROM content WHERE content_type = ? AND id IN (` + placeholders(len(ids)) + `)`
	return s.queryItems(ctx, query, args...)
}

// QueryByTags returns items whose tag payload contains any of the given
// tags, most viewed first. Tag containment matches the JSON-quoted form so
// partial tag names do not collide.
func (s *ContentStore) QueryByTags(ctx context.Context, contentType store.ContentType, tags []string, limit int) ([]store.ContentItem, error) {
	if len(tags) == 0 {
		return nil, nil
	}

	conds := make([]string, 0, len(tags))
	args := make([]any, 0, len(tags)+2)
	args = append(args, string(contentType))
	for _, tag := range tags {
		conds = append(conds, `tags LIKE ? ESCAPE '\'`)
		args = append(args, `%"`+escapeLike(tag)+`"%`)
	}
	args = append(args, limit)

	query := `SELECT ` + contentColumns + ` FROM content
		WHERE content_type = ? AND (` + strings.Join(conds, " OR ") + `)
		ORDER BY view_count DESC, id ASC LIMIT ?`
	return s.queryItems(ctx, query, args...)
}

// QueryByCategory returns a category's items, best quality first.
func (s *ContentStore) QueryByCategory(ctx context.Context, contentType store.ContentType, categoryID int64, limit int) ([]store.ContentItem, error) {
	query := `SELECT ` + contentColumns + ` FROM content
		WHERE content_type = ? AND category_id = ?
		ORDER BY quality_score DESC, view_count DESC, id ASC LIMIT ?`
	return s.queryItems(ctx, query, string(contentType), categoryID, limit)
}

// QueryCandidates returns the recommendation candidate pool, excluding the
// given IDs, most recently published first.
func (s *ContentStore) QueryCandidates(ctx context.Context, contentType store.ContentType, excludeIDs []int64, limit int) ([]store.ContentItem, error) {
	args := make([]any, 0, len(excludeIDs)+2)
	args = append(args, string(contentType))

	var exclude string
	if len(excludeIDs) > 0 {
		exclude = ` AND id NOT IN (` + placeholders(len(excludeIDs)) + `)`
		for _, id := range excludeIDs {
			args = append(args, id)
		}
	}
	args = append(args, limit)

	query := `SELECT ` + contentColumns + ` FROM content
		WHERE content_type = ?` + exclude + `
		ORDER BY publish_time DESC NULLS LAST, id ASC LIMIT ?`
	return s.queryItems(ctx, query, args...)
}

// QueryHot returns items published within the window, ordered by view
// count.
func (s *ContentStore) QueryHot(ctx context.Context, contentType store.ContentType, window time.Duration, limit int) ([]store.ContentItem, error) {
	cutoff := time.Now().UTC().Add(-window)
	query := `SELECT ` + contentColumns + ` FROM content
		WHERE content_type = ? AND publish_time >= ?
		ORDER BY view_count DESC, id ASC LIMIT ?`
	return s.queryItems(ctx, query, string(contentType), cutoff, limit)
}

// Insert adds one item, assigning its ID. Used by fixtures and imports.
func (s *ContentStore) Insert(ctx context.Context, item *store.ContentItem) error {
	tags, err := store.EncodeTags(item.Tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}

	var publish any
	if !item.PublishTime.IsZero() {
		publish = item.PublishTime.UTC()
	}
	query := `INSERT INTO content (content_type, title, cover_url, category_id, tags,
		quality_score, view_count, like_count, collect_count, share_count, publish_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`
	row := s.db.conn.QueryRowContext(ctx, query,
		string(item.ContentType), item.Title, item.CoverURL, item.CategoryID, tags,
		item.QualityScore, item.ViewCount, item.LikeCount, item.CollectCount, item.ShareCount, publish)
	if err := row.Scan(&item.ID); err != nil {
		return fmt.Errorf("insert content: %w", err)
	}
	return nil
}

func (s *ContentStore) queryItems(ctx context.Context, query string, args ...any) ([]store.ContentItem, error) {
	rows, err := s.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query content: %w", err)
	}
	defer rows.Close()

	var items []store.ContentItem
	for rows.Next() {
		item, err := s.scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan content: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate content: %w", err)
	}
	return items, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *ContentStore) scanItem(row rowScanner) (*store.ContentItem, error) {
	var item store.ContentItem
	var contentType string
	var coverURL, tags sql.NullString
	var publish sql.NullTime
	if err := row.Scan(&item.ID, &contentType, &item.Title, &coverURL, &item.CategoryID, &tags,
		&item.QualityScore, &item.ViewCount, &item.LikeCount, &item.CollectCount, &item.ShareCount, &publish); err != nil {
		return nil, err
	}

	item.ContentType = store.ContentType(contentType)
	item.CoverURL = coverURL.String
	if publish.Valid {
		item.PublishTime = publish.Time.UTC()
	}

	// Malformed tag payloads degrade to no tags; the item still serves.
	parsed, err := store.ParseTags(tags.String)
	if err != nil {
		s.db.logger.Warn().Err(err).Int64("content_id", item.ID).Msg("malformed tag payload ignored")
	}
	item.Tags = parsed
	return &item, nil
}

// escapeLike neutralizes LIKE wildcards inside a tag literal.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `%`, `\%`)
	return strings.ReplaceAll(s, `_`, `\_`)
}
