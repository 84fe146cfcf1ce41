// OpenRecommend - Hybrid Content Recommendation Service
// Copyright 2026 Qoobot Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/qoobot/openrecommend

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/qoobot/openrecommend/internal/metrics"
)

// NewRouter wires the handler into a chi router with the standard
// middleware stack.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(RequestID)
	r.Use(chimw.Recoverer)
	r.Use(Instrument)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/recommend", h.GetRecommendations)
		r.Get("/recommend/hot", h.GetHotContent)
		r.Get("/recommend/related/{contentId}", h.GetRelatedContent)
		r.Post("/behaviors", h.RecordBehavior)
	})

	r.Get("/healthz", h.Healthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	return r
}
