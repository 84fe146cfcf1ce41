// OpenRecommend - Hybrid Content Recommendation Service
// Copyright 2026 Qoobot Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/qoobot/openrecommend

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/qoobot/openrecommend/internal/cache"
	"github.com/qoobot/openrecommend/internal/events"
	"github.com/qoobot/openrecommend/internal/logging"
	"github.com/qoobot/openrecommend/internal/recommend"
	"github.com/qoobot/openrecommend/internal/store"
)

type fakeContents struct {
	hot []store.ContentItem
}

func (f *fakeContents) GetByID(_ context.Context, contentType store.ContentType, id int64) (*store.ContentItem, error) {
	for i := range f.hot {
		if f.hot[i].ID == id && f.hot[i].ContentType == contentType {
			return &f.hot[i], nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeContents) GetByIDs(_ context.Context, contentType store.ContentType, ids []int64) ([]store.ContentItem, error) {
	var out []store.ContentItem
	for _, id := range ids {
		for i := range f.hot {
			if f.hot[i].ID == id && f.hot[i].ContentType == contentType {
				out = append(out, f.hot[i])
			}
		}
	}
	return out, nil
}

func (f *fakeContents) QueryByTags(context.Context, store.ContentType, []string, int) ([]store.ContentItem, error) {
	return nil, nil
}

func (f *fakeContents) QueryByCategory(context.Context, store.ContentType, int64, int) ([]store.ContentItem, error) {
	return nil, nil
}

func (f *fakeContents) QueryCandidates(context.Context, store.ContentType, []int64, int) ([]store.ContentItem, error) {
	return nil, nil
}

func (f *fakeContents) QueryHot(_ context.Context, contentType store.ContentType, _ time.Duration, limit int) ([]store.ContentItem, error) {
	var out []store.ContentItem
	for _, item := range f.hot {
		if item.ContentType != contentType {
			continue
		}
		out = append(out, item)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type fakeBehaviors struct {
	events []store.InteractionEvent
}

func (f *fakeBehaviors) Append(_ context.Context, ev *store.InteractionEvent) error {
	ev.ID = int64(len(f.events) + 1)
	f.events = append(f.events, *ev)
	return nil
}

func (f *fakeBehaviors) QueryRecentByUser(context.Context, int64, time.Duration, int) ([]store.InteractionEvent, error) {
	return nil, nil
}

func (f *fakeBehaviors) QueryRecent(context.Context, time.Duration, int) ([]store.InteractionEvent, error) {
	return nil, nil
}

func (f *fakeBehaviors) QueryDistinctContentIDs(context.Context, int64, store.ContentType, int) ([]int64, error) {
	return nil, nil
}

func (f *fakeBehaviors) CountByBehaviorType(context.Context, int64, store.BehaviorType, time.Duration) (int64, error) {
	return 0, nil
}

func (f *fakeBehaviors) QueryActiveUserIDs(context.Context, time.Duration) ([]int64, error) {
	return nil, nil
}

type fakeProfiles struct{}

func (f *fakeProfiles) GetByUserID(context.Context, int64) (*store.UserProfile, error) {
	return nil, store.ErrNotFound
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeBehaviors) {
	t.Helper()

	contents := &fakeContents{hot: []store.ContentItem{
		{ID: 1, ContentType: store.ContentTypeArticle, Title: "first", ViewCount: 90},
		{ID: 2, ContentType: store.ContentTypeArticle, Title: "second", ViewCount: 50},
		{ID: 3, ContentType: store.ContentTypeArticle, Title: "third", ViewCount: 10},
	}}
	behaviors := &fakeBehaviors{}
	mem := cache.NewMemory()
	t.Cleanup(func() { _ = mem.Close() })

	engine, err := recommend.NewEngine(recommend.Deps{
		Cache:     mem,
		Contents:  contents,
		Behaviors: behaviors,
		Profiles:  &fakeProfiles{},
	}, recommend.Config{}, logging.Nop())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	bus := events.NewBus(logging.Nop())
	t.Cleanup(func() { _ = bus.Close() })
	recorder := events.NewRecorder(behaviors, bus, logging.Nop())

	srv := httptest.NewServer(NewRouter(NewHandler(engine, recorder, logging.Nop())))
	t.Cleanup(srv.Close)
	return srv, behaviors
}

// envelope mirrors APIResponse with a raw Data payload for re-decoding.
type envelope struct {
	Status   string          `json:"status"`
	Data     json.RawMessage `json:"data"`
	Error    *APIError       `json:"error"`
	Metadata Metadata        `json:"metadata"`
}

func decodeEnvelope(t *testing.T, resp *http.Response) envelope {
	t.Helper()
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

func TestGetHotContent(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/recommend/hot?contentType=article&limit=2")
	if err != nil {
		t.Fatalf("GET hot: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	env := decodeEnvelope(t, resp)
	if env.Status != "success" {
		t.Fatalf("envelope status = %q, want success", env.Status)
	}

	var res recommend.Result
	if err := json.Unmarshal(env.Data, &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if len(res.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(res.Items))
	}
	if res.Items[0].ContentID != 1 {
		t.Errorf("top item = %d, want 1", res.Items[0].ContentID)
	}
}

func TestGetRecommendationsAnonymousFallsBackToHot(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/recommend?contentType=article&limit=3")
	if err != nil {
		t.Fatalf("GET recommend: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	env := decodeEnvelope(t, resp)
	var res recommend.Result
	if err := json.Unmarshal(env.Data, &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if len(res.Items) == 0 {
		t.Fatal("expected hot fallback items for anonymous user")
	}
}

func TestGetRecommendationsBadParams(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name  string
		query string
	}{
		{"bad user id", "?userId=abc"},
		{"bad limit", "?limit=ten"},
		{"hour out of range", "?hour=24"},
		{"bad hour", "?hour=noon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(srv.URL + "/api/v1/recommend" + tt.query)
			if err != nil {
				t.Fatalf("GET recommend: %v", err)
			}
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}
			env := decodeEnvelope(t, resp)
			if env.Error == nil || env.Error.Code != ErrCodeBadRequest {
				t.Errorf("error = %+v, want code %s", env.Error, ErrCodeBadRequest)
			}
		})
	}
}

func TestGetRelatedContentInvalidID(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/recommend/related/zero")
	if err != nil {
		t.Fatalf("GET related: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestRecordBehavior(t *testing.T) {
	srv, behaviors := newTestServer(t)

	body := `{"userId":7,"contentType":"article","contentId":1,"behaviorType":1,"duration":30}`
	resp, err := http.Post(srv.URL+"/api/v1/behaviors", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST behaviors: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	env := decodeEnvelope(t, resp)
	if env.Status != "success" {
		t.Fatalf("envelope status = %q, want success", env.Status)
	}
	if len(behaviors.events) != 1 {
		t.Fatalf("persisted events = %d, want 1", len(behaviors.events))
	}
	ev := behaviors.events[0]
	if ev.UserID != 7 || ev.BehaviorType != store.BehaviorView || ev.Duration != 30 {
		t.Errorf("persisted event = %+v", ev)
	}
	if ev.CreatedAt.IsZero() {
		t.Error("expected server-assigned timestamp")
	}
}

func TestRecordBehaviorRejectsInvalid(t *testing.T) {
	srv, behaviors := newTestServer(t)

	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"malformed json", `{"userId":`, ErrCodeBadRequest},
		{"zero user", `{"userId":0,"contentType":"article","contentId":1,"behaviorType":1}`, ErrCodeValidationFailed},
		{"unknown content type", `{"userId":7,"contentType":"podcast","contentId":1,"behaviorType":1}`, ErrCodeValidationFailed},
		{"unknown behavior", `{"userId":7,"contentType":"article","contentId":1,"behaviorType":42}`, ErrCodeValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/api/v1/behaviors", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("POST behaviors: %v", err)
			}
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}
			env := decodeEnvelope(t, resp)
			if env.Error == nil || env.Error.Code != tt.wantCode {
				t.Errorf("error = %+v, want code %s", env.Error, tt.wantCode)
			}
		})
	}
	if len(behaviors.events) != 0 {
		t.Errorf("persisted events = %d, want 0", len(behaviors.events))
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET healthz: %v", err)
	}
	env := decodeEnvelope(t, resp)
	if resp.StatusCode != http.StatusOK || env.Status != "success" {
		t.Fatalf("healthz status = %d/%q", resp.StatusCode, env.Status)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestRequestIDPropagation(t *testing.T) {
	srv, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("X-Request-ID", "upstream-42")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET healthz: %v", err)
	}
	if got := resp.Header.Get("X-Request-ID"); got != "upstream-42" {
		t.Errorf("X-Request-ID = %q, want upstream-42", got)
	}
	env := decodeEnvelope(t, resp)
	if env.Metadata.RequestID != "upstream-42" {
		t.Errorf("metadata request id = %q, want upstream-42", env.Metadata.RequestID)
	}

	// Without a client-supplied ID the server generates one.
	resp2, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET healthz: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.Header.Get("X-Request-ID") == "" {
		t.Error("expected generated request ID")
	}
}
