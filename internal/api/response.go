// OpenRecommend - Hybrid Content Recommendation Service
// Copyright 2026 Qoobot Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/qoobot/openrecommend

// Package api exposes the recommendation service over HTTP. Every
// endpoint returns the same JSON envelope so clients can handle
// success and error payloads uniformly.
package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/qoobot/openrecommend/internal/logging"
)

// APIResponse is the envelope wrapping every JSON response.
type APIResponse struct {
	// Status is "success" or "error".
	Status string `json:"status"`

	// Data carries the endpoint payload; null on error.
	Data interface{} `json:"data,omitempty"`

	// Error carries error details; null on success.
	Error *APIError `json:"error,omitempty"`

	Metadata Metadata `json:"metadata"`
}

// APIError is the error half of the envelope.
type APIError struct {
	// Code is a stable machine-readable error code.
	Code string `json:"code"`

	// Message is a human-readable description safe to show clients.
	Message string `json:"message"`
}

// Metadata carries response-level information for tracing.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"requestId,omitempty"`
}

// Error codes returned by the API.
const (
	ErrCodeBadRequest       = "BAD_REQUEST"
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

// respondJSON sends a JSON response with proper headers.
func respondJSON(w http.ResponseWriter, r *http.Request, status int, response *APIResponse) {
	response.Metadata.Timestamp = time.Now().UTC()
	response.Metadata.RequestID = GetRequestID(r.Context())

	w.Header().Set("Content-Type", "application/json")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondSuccess wraps data in a success envelope.
func respondSuccess(w http.ResponseWriter, r *http.Request, data interface{}) {
	respondJSON(w, r, http.StatusOK, &APIResponse{
		Status: "success",
		Data:   data,
	})
}

// respondError sends an error envelope. The wrapped error is logged but
// never leaks into the response body.
func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, err error) {
	if err != nil {
		logging.Error().Str("code", code).Err(err).Msg("API error")
	}

	respondJSON(w, r, status, &APIResponse{
		Status: "error",
		Error: &APIError{
			Code:    code,
			Message: message,
		},
	})
}
