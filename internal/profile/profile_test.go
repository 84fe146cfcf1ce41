// OpenRecommend - Hybrid Content Recommendation Service
// Copyright 2026 Qoobot Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/qoobot/openrecommend

package profile

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/qoobot/openrecommend/internal/cache"
	"github.com/qoobot/openrecommend/internal/logging"
	"github.com/qoobot/openrecommend/internal/store"
)

type fakeProfileStore struct {
	mu       sync.Mutex
	profiles map[int64]*store.UserProfile
	loads    atomic.Int64
	saves    atomic.Int64

	// inFlight tracks concurrent SaveOrUpdate calls to verify per-user
	// serialization.
	inFlight    atomic.Int64
	maxInFlight atomic.Int64
	saveDelay   time.Duration
}

func newFakeProfileStore() *fakeProfileStore {
	return &fakeProfileStore{profiles: make(map[int64]*store.UserProfile)}
}

func (f *fakeProfileStore) GetByUserID(_ context.Context, userID int64) (*store.UserProfile, error) {
	f.loads.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	prof, ok := f.profiles[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *prof
	return &cp, nil
}

func (f *fakeProfileStore) SaveOrUpdate(_ context.Context, prof *store.UserProfile) error {
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		maxSeen := f.maxInFlight.Load()
		if cur <= maxSeen || f.maxInFlight.CompareAndSwap(maxSeen, cur) {
			break
		}
	}
	if f.saveDelay > 0 {
		time.Sleep(f.saveDelay)
	}

	f.saves.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *prof
	if cp.ID == 0 {
		cp.ID = int64(len(f.profiles) + 1)
	}
	f.profiles[prof.UserID] = &cp
	return nil
}

type fakeBehaviorStore struct {
	events []store.InteractionEvent
}

func (f *fakeBehaviorStore) Append(context.Context, *store.InteractionEvent) error { return nil }

func (f *fakeBehaviorStore) QueryRecentByUser(_ context.Context, userID int64, _ time.Duration, limit int) ([]store.InteractionEvent, error) {
	var out []store.InteractionEvent
	for _, ev := range f.events {
		if ev.UserID != userID {
			continue
		}
		out = append(out, ev)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeBehaviorStore) QueryRecent(context.Context, time.Duration, int) ([]store.InteractionEvent, error) {
	return nil, nil
}

func (f *fakeBehaviorStore) QueryDistinctContentIDs(context.Context, int64, store.ContentType, int) ([]int64, error) {
	return nil, nil
}

func (f *fakeBehaviorStore) CountByBehaviorType(context.Context, int64, store.BehaviorType, time.Duration) (int64, error) {
	return 0, nil
}

func (f *fakeBehaviorStore) QueryActiveUserIDs(context.Context, time.Duration) ([]int64, error) {
	return nil, nil
}

type fakeContentStore struct {
	items map[store.ContentType]map[int64]store.ContentItem
}

func (f *fakeContentStore) GetByID(_ context.Context, ct store.ContentType, id int64) (*store.ContentItem, error) {
	item, ok := f.items[ct][id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &item, nil
}

func (f *fakeContentStore) GetByIDs(_ context.Context, ct store.ContentType, ids []int64) ([]store.ContentItem, error) {
	var out []store.ContentItem
	for _, id := range ids {
		if item, ok := f.items[ct][id]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f *fakeContentStore) QueryByTags(context.Context, store.ContentType, []string, int) ([]store.ContentItem, error) {
	return nil, nil
}

func (f *fakeContentStore) QueryByCategory(context.Context, store.ContentType, int64, int) ([]store.ContentItem, error) {
	return nil, nil
}

func (f *fakeContentStore) QueryCandidates(context.Context, store.ContentType, []int64, int) ([]store.ContentItem, error) {
	return nil, nil
}

func (f *fakeContentStore) QueryHot(context.Context, store.ContentType, time.Duration, int) ([]store.ContentItem, error) {
	return nil, nil
}

func tagged(ct store.ContentType, id int64, tags ...string) store.ContentItem {
	return store.ContentItem{ID: id, ContentType: ct, Tags: tags}
}

func newTestService(profiles *fakeProfileStore, behaviors *fakeBehaviorStore, contents *fakeContentStore) *Service {
	return NewService(profiles, behaviors, contents, cache.NewMemory(), DefaultConfig(), logging.Nop())
}

func TestGetByUserIDDefaultsAndCaches(t *testing.T) {
	ps := newFakeProfileStore()
	s := newTestService(ps, &fakeBehaviorStore{}, &fakeContentStore{})
	ctx := context.Background()

	prof, err := s.GetByUserID(ctx, 1)
	if err != nil {
		t.Fatalf("GetByUserID() error = %v", err)
	}
	if prof.InterestTags["tech"] != 0.5 || prof.InterestTags["life"] != 0.3 || prof.InterestTags["entertainment"] != 0.2 {
		t.Errorf("default interest tags = %v", prof.InterestTags)
	}
	if prof.ContentTypePreference[store.ContentTypeArticle] != 0.5 {
		t.Errorf("default type preference = %v", prof.ContentTypePreference)
	}
	if len(prof.ActivePeriods) != 0 {
		t.Errorf("default profile has active periods: %v", prof.ActivePeriods)
	}

	if _, err := s.GetByUserID(ctx, 1); err != nil {
		t.Fatalf("second GetByUserID() error = %v", err)
	}
	if got := ps.loads.Load(); got != 1 {
		t.Errorf("store loaded %d times, want 1 (second read cached)", got)
	}
}

func TestGetByUserIDRejectsInvalidID(t *testing.T) {
	s := newTestService(newFakeProfileStore(), &fakeBehaviorStore{}, &fakeContentStore{})
	if _, err := s.GetByUserID(context.Background(), 0); err == nil {
		t.Error("GetByUserID(0) should fail")
	}
}

func TestCalculateProfile(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	ps := newFakeProfileStore()
	bs := &fakeBehaviorStore{events: []store.InteractionEvent{
		{UserID: 1, ContentType: store.ContentTypeArticle, ContentID: 1, BehaviorType: store.BehaviorView, Duration: 120, CreatedAt: base.Add(9 * time.Hour)},
		{UserID: 1, ContentType: store.ContentTypeArticle, ContentID: 2, BehaviorType: store.BehaviorLike, CreatedAt: base.Add(9 * time.Hour)},
		{UserID: 1, ContentType: store.ContentTypeVideo, ContentID: 3, BehaviorType: store.BehaviorCollect, CreatedAt: base.Add(21 * time.Hour)},
	}}
	cs := &fakeContentStore{items: map[store.ContentType]map[int64]store.ContentItem{
		store.ContentTypeArticle: {
			1: tagged(store.ContentTypeArticle, 1, "tech", "golang"),
			2: tagged(store.ContentTypeArticle, 2, "tech"),
		},
		store.ContentTypeVideo: {
			3: tagged(store.ContentTypeVideo, 3, "gaming"),
		},
	}}
	s := newTestService(ps, bs, cs)

	prof, err := s.CalculateProfile(context.Background(), 1)
	if err != nil {
		t.Fatalf("CalculateProfile() error = %v", err)
	}

	// Strengths: view=1 on {tech,golang}, like=3 on {tech}, collect=5 on
	// {gaming}. Tag strengths tech=4, golang=1, gaming=5; total 10.
	wantTags := map[string]float64{"gaming": 0.5, "tech": 0.4, "golang": 0.1}
	for tag, want := range wantTags {
		if got := prof.InterestTags[tag]; math.Abs(got-want) > 1e-9 {
			t.Errorf("interest[%s] = %v, want %v", tag, got, want)
		}
	}

	// Type strengths: article 1+3=4, video 5.
	if got := prof.ContentTypePreference[store.ContentTypeArticle]; math.Abs(got-4.0/9.0) > 1e-9 {
		t.Errorf("article preference = %v, want %v", got, 4.0/9.0)
	}
	if got := prof.ContentTypePreference[store.ContentTypeVideo]; math.Abs(got-5.0/9.0) > 1e-9 {
		t.Errorf("video preference = %v, want %v", got, 5.0/9.0)
	}

	if len(prof.ActivePeriods) != 2 || prof.ActivePeriods[0] != 9 || prof.ActivePeriods[1] != 21 {
		t.Errorf("active periods = %v, want [9 21]", prof.ActivePeriods)
	}
	if prof.TotalViewCount != 1 {
		t.Errorf("view count = %d, want 1", prof.TotalViewCount)
	}
	if prof.TotalReadTime != 2 {
		t.Errorf("read time = %d minutes, want 2", prof.TotalReadTime)
	}
}

func TestCalculateProfileViewsVersusLikeOrdering(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	ps := newFakeProfileStore()
	bs := &fakeBehaviorStore{events: []store.InteractionEvent{
		{UserID: 1, ContentType: store.ContentTypeArticle, ContentID: 1, BehaviorType: store.BehaviorView, CreatedAt: base.Add(10 * time.Hour)},
		{UserID: 1, ContentType: store.ContentTypeArticle, ContentID: 2, BehaviorType: store.BehaviorView, CreatedAt: base.Add(11 * time.Hour)},
		{UserID: 1, ContentType: store.ContentTypeArticle, ContentID: 3, BehaviorType: store.BehaviorLike, CreatedAt: base.Add(12 * time.Hour)},
	}}
	cs := &fakeContentStore{items: map[store.ContentType]map[int64]store.ContentItem{
		store.ContentTypeArticle: {
			1: tagged(store.ContentTypeArticle, 1, "tech", "ai"),
			2: tagged(store.ContentTypeArticle, 2, "tech", "ai"),
			3: tagged(store.ContentTypeArticle, 3, "sports"),
		},
	}}
	s := newTestService(ps, bs, cs)

	prof, err := s.CalculateProfile(context.Background(), 1)
	if err != nil {
		t.Fatalf("CalculateProfile() error = %v", err)
	}

	// Two views (strength 1 each) on tech/ai against one like (strength 3)
	// on sports: sports=3, tech=2, ai=2, total 7. The single like outranks
	// the repeated views, and the tech/ai tie resolves by tag name.
	wantTags := map[string]float64{"sports": 3.0 / 7.0, "tech": 2.0 / 7.0, "ai": 2.0 / 7.0}
	for tag, want := range wantTags {
		if got := prof.InterestTags[tag]; math.Abs(got-want) > 1e-9 {
			t.Errorf("interest[%s] = %v, want %v", tag, got, want)
		}
	}

	// Under a cap of 2 the tech/ai tie is what decides survival: tag name
	// ascending keeps ai, deterministically.
	capped := topTags(map[string]float64{"sports": 3, "tech": 2, "ai": 2}, 2)
	if _, ok := capped["ai"]; !ok {
		t.Errorf("topTags capped to 2 = %v, want ai kept over tech", capped)
	}
	if _, ok := capped["tech"]; ok {
		t.Errorf("topTags capped to 2 = %v, want tech dropped", capped)
	}

	var sum float64
	for _, w := range prof.InterestTags {
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-6 {
		t.Errorf("interest tag weights sum to %v, want 1", sum)
	}
}

func TestCalculateProfileEmptyWindowIsNoop(t *testing.T) {
	ps := newFakeProfileStore()
	existing := &store.UserProfile{ID: 5, UserID: 1, InterestTags: map[string]float64{"tech": 1}, TotalReadTime: 42}
	ps.profiles[1] = existing
	s := newTestService(ps, &fakeBehaviorStore{}, &fakeContentStore{})

	prof, err := s.CalculateProfile(context.Background(), 1)
	if err != nil {
		t.Fatalf("CalculateProfile() error = %v", err)
	}
	if prof.TotalReadTime != 42 || prof.InterestTags["tech"] != 1 {
		t.Errorf("idle user's profile changed: %+v", prof)
	}
}

func TestCalculateProfileReadTimeAccumulates(t *testing.T) {
	ps := newFakeProfileStore()
	ps.profiles[1] = &store.UserProfile{ID: 5, UserID: 1, TotalReadTime: 10}
	bs := &fakeBehaviorStore{events: []store.InteractionEvent{
		{UserID: 1, ContentType: store.ContentTypeArticle, ContentID: 1, BehaviorType: store.BehaviorView, Duration: 300},
	}}
	cs := &fakeContentStore{items: map[store.ContentType]map[int64]store.ContentItem{
		store.ContentTypeArticle: {1: tagged(store.ContentTypeArticle, 1, "tech")},
	}}
	s := newTestService(ps, bs, cs)

	prof, err := s.CalculateProfile(context.Background(), 1)
	if err != nil {
		t.Fatalf("CalculateProfile() error = %v", err)
	}
	if prof.TotalReadTime != 15 {
		t.Errorf("read time = %d, want cumulative 15", prof.TotalReadTime)
	}
	if prof.ID != 5 {
		t.Errorf("profile identity lost: id = %d", prof.ID)
	}
}

func TestTopTagsCappedAndRenormalized(t *testing.T) {
	strength := make(map[string]float64, 12)
	for i := 0; i < 12; i++ {
		strength[string(rune('a'+i))] = float64(i + 1)
	}

	got := topTags(strength, 10)
	if len(got) != 10 {
		t.Fatalf("kept %d tags, want 10", len(got))
	}
	// Weakest two ("a", "b") dropped.
	if _, ok := got["a"]; ok {
		t.Error("weakest tag survived the cap")
	}
	var sum float64
	for _, w := range got {
		sum += w
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("weights sum to %v, want 1", sum)
	}
}

func TestTopHours(t *testing.T) {
	counts := map[int]int{22: 9, 8: 7, 12: 5, 9: 5, 3: 1, 15: 1}
	got := topHours(counts, 4)
	want := []int{8, 9, 12, 22}
	if len(got) != len(want) {
		t.Fatalf("hours = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("hours = %v, want %v", got, want)
		}
	}
}

func TestRefreshPersistsAndInvalidates(t *testing.T) {
	ps := newFakeProfileStore()
	bs := &fakeBehaviorStore{events: []store.InteractionEvent{
		{UserID: 1, ContentType: store.ContentTypeArticle, ContentID: 1, BehaviorType: store.BehaviorView, Duration: 60},
	}}
	cs := &fakeContentStore{items: map[store.ContentType]map[int64]store.ContentItem{
		store.ContentTypeArticle: {1: tagged(store.ContentTypeArticle, 1, "tech")},
	}}
	s := newTestService(ps, bs, cs)
	ctx := context.Background()

	// Warm the cache with the default profile.
	if _, err := s.GetByUserID(ctx, 1); err != nil {
		t.Fatalf("GetByUserID() error = %v", err)
	}

	if err := s.Refresh(ctx, 1, TriggerBehavior); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if got := ps.saves.Load(); got != 1 {
		t.Errorf("saves = %d, want 1", got)
	}

	// The next read recomputes from the store, not the stale cache entry.
	prof, err := s.GetByUserID(ctx, 1)
	if err != nil {
		t.Fatalf("GetByUserID() after refresh error = %v", err)
	}
	if prof.InterestTags["tech"] != 1 {
		t.Errorf("post-refresh interest tags = %v, want recomputed", prof.InterestTags)
	}
}

func TestRefreshSerializedPerUser(t *testing.T) {
	ps := newFakeProfileStore()
	ps.saveDelay = 5 * time.Millisecond
	bs := &fakeBehaviorStore{events: []store.InteractionEvent{
		{UserID: 1, ContentType: store.ContentTypeArticle, ContentID: 1, BehaviorType: store.BehaviorView},
	}}
	cs := &fakeContentStore{items: map[store.ContentType]map[int64]store.ContentItem{
		store.ContentTypeArticle: {1: tagged(store.ContentTypeArticle, 1, "tech")},
	}}
	s := newTestService(ps, bs, cs)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Refresh(context.Background(), 1, TriggerBatch); err != nil {
				t.Errorf("Refresh() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if got := ps.maxInFlight.Load(); got != 1 {
		t.Errorf("max concurrent saves for one user = %d, want 1", got)
	}
}

func TestRefresherDebounces(t *testing.T) {
	ps := newFakeProfileStore()
	bs := &fakeBehaviorStore{events: []store.InteractionEvent{
		{UserID: 1, ContentType: store.ContentTypeArticle, ContentID: 1, BehaviorType: store.BehaviorView},
	}}
	cs := &fakeContentStore{items: map[store.ContentType]map[int64]store.ContentItem{
		store.ContentTypeArticle: {1: tagged(store.ContentTypeArticle, 1, "tech")},
	}}
	s := newTestService(ps, bs, cs)
	r := NewRefresher(s, 20*time.Millisecond, logging.Nop())
	defer r.Close()

	for i := 0; i < 5; i++ {
		r.Trigger(1)
	}
	time.Sleep(100 * time.Millisecond)

	if got := ps.saves.Load(); got != 1 {
		t.Errorf("saves = %d, want burst collapsed to 1", got)
	}
}

func TestRefresherTriggerBurstAcrossWindowBoundary(t *testing.T) {
	ps := newFakeProfileStore()
	s := newTestService(ps, &fakeBehaviorStore{}, &fakeContentStore{})
	r := NewRefresher(s, 50*time.Microsecond, logging.Nop())

	// Triggers landing right as the debounce window elapses race the
	// firing callback; the accounting must stay balanced no matter how
	// the interleaving falls out.
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			deadline := time.Now().Add(250 * time.Millisecond)
			for time.Now().Before(deadline) {
				r.Trigger(1)
				time.Sleep(50 * time.Microsecond)
			}
		}()
	}
	wg.Wait()

	// Close waits on the refresher's internal WaitGroup; unbalanced
	// timer accounting would have panicked before reaching it.
	r.Close()

	if ps.saves.Load() == 0 {
		t.Error("expected at least one refresh across the burst")
	}
}

func TestRefresherCloseCancelsPending(t *testing.T) {
	ps := newFakeProfileStore()
	s := newTestService(ps, &fakeBehaviorStore{}, &fakeContentStore{})
	r := NewRefresher(s, time.Hour, logging.Nop())

	r.Trigger(1)
	r.Close()

	if got := ps.saves.Load(); got != 0 {
		t.Errorf("saves = %d, want pending refresh cancelled", got)
	}

	// Triggers after close are ignored.
	r.Trigger(2)
}
