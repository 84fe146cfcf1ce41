// OpenRecommend - Hybrid Content Recommendation Service
// Copyright 2026 Qoobot Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/qoobot/openrecommend

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/qoobot/openrecommend/internal/events"
	"github.com/qoobot/openrecommend/internal/recommend"
	"github.com/qoobot/openrecommend/internal/store"
)

const requestTimeout = 10 * time.Second

// Handler serves the recommendation and behavior endpoints.
type Handler struct {
	engine   *recommend.Engine
	recorder *events.Recorder
	logger   zerolog.Logger
}

// NewHandler creates a Handler.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewHandler(engine *recommend.Engine, recorder *events.Recorder, logger zerolog.Logger) *Handler {
	return &Handler{
		engine:   engine,
		recorder: recorder,
		logger:   logger.With().Str("component", "api").Logger(),
	}
}

// GetRecommendations handles GET /api/v1/recommend.
// Query parameters: userId, contentType, recommendType, limit, device, hour.
func (h *Handler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	userID, err := getInt64Param(r, "userId", 0)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Invalid userId", err)
		return
	}

	limit, err := getIntParam(r, "limit", 0)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Invalid limit", err)
		return
	}

	// Hour of -1 means the client did not say; the reranker skips the
	// active-hour boost in that case.
	hour := -1
	if hourStr := r.URL.Query().Get("hour"); hourStr != "" {
		parsed, err := strconv.Atoi(hourStr)
		if err != nil || parsed < 0 || parsed > 23 {
			respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Invalid hour", err)
			return
		}
		hour = parsed
	}

	req := recommend.Request{
		UserID:        userID,
		ContentType:   store.ContentType(r.URL.Query().Get("contentType")),
		RecommendType: r.URL.Query().Get("recommendType"),
		Limit:         limit,
		Device:        r.URL.Query().Get("device"),
		Hour:          hour,
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	res, err := h.engine.Recommend(ctx, req)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "Failed to generate recommendations", err)
		return
	}

	respondSuccess(w, r, res)
}

// GetHotContent handles GET /api/v1/recommend/hot.
// Query parameters: contentType, limit.
func (h *Handler) GetHotContent(w http.ResponseWriter, r *http.Request) {
	limit, err := getIntParam(r, "limit", 0)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Invalid limit", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	res, err := h.engine.RecommendHot(ctx, store.ContentType(r.URL.Query().Get("contentType")), limit)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "Failed to load hot content", err)
		return
	}

	respondSuccess(w, r, res)
}

// GetRelatedContent handles GET /api/v1/recommend/related/{contentId}.
func (h *Handler) GetRelatedContent(w http.ResponseWriter, r *http.Request) {
	contentID, err := strconv.ParseInt(chi.URLParam(r, "contentId"), 10, 64)
	if err != nil || contentID <= 0 {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Invalid content ID", err)
		return
	}

	limit, err := getIntParam(r, "limit", 0)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Invalid limit", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	res, err := h.engine.RecommendRelated(ctx, contentID, limit)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "Failed to load related content", err)
		return
	}

	respondSuccess(w, r, res)
}

// behaviorRequest is the POST /api/v1/behaviors body.
type behaviorRequest struct {
	UserID       int64  `json:"userId"`
	ContentType  string `json:"contentType"`
	ContentID    int64  `json:"contentId"`
	BehaviorType int    `json:"behaviorType"`
	Duration     int    `json:"duration"`
}

// RecordBehavior handles POST /api/v1/behaviors. The write is durable
// when this returns; profile refresh happens asynchronously.
func (h *Handler) RecordBehavior(w http.ResponseWriter, r *http.Request) {
	var body behaviorRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Invalid request body", err)
		return
	}

	ev := &store.InteractionEvent{
		UserID:       body.UserID,
		ContentType:  store.ContentType(body.ContentType),
		ContentID:    body.ContentID,
		BehaviorType: store.BehaviorType(body.BehaviorType),
		Duration:     body.Duration,
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if err := h.recorder.Record(ctx, ev); err != nil {
		if errors.Is(err, events.ErrInvalidEvent) {
			respondError(w, r, http.StatusBadRequest, ErrCodeValidationFailed, err.Error(), nil)
			return
		}
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "Failed to record behavior", err)
		return
	}

	respondJSON(w, r, http.StatusCreated, &APIResponse{
		Status: "success",
		Data:   ev,
	})
}

// Healthz handles GET /healthz.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, r, map[string]string{"status": "ok"})
}

// getIntParam extracts an integer query parameter with a default value.
func getIntParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

// getInt64Param extracts an int64 query parameter with a default value.
func getInt64Param(r *http.Request, name string, def int64) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}
