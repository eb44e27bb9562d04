package match

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/grievance/internal/model"
	"github.com/ppiankov/grievance/internal/similarity"
	"github.com/ppiankov/grievance/internal/store"
)

var now = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func sequentialIDs() func() string {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("case-%d", n.Add(1))
	}
}

func grievance(description, location string, at time.Time) model.Grievance {
	return model.Grievance{
		CallerName:  "Ravi Kumar",
		CallerPhone: "9876543210",
		Description: description,
		Location:    location,
		DateTime:    at,
	}
}

func TestMatcher_CreatesFirstCase(t *testing.T) {
	s := store.NewMemory()
	m := NewMatcher(s, similarity.NewTable(0), nil, WithIDGenerator(sequentialIDs()))

	res, err := m.Match(context.Background(), grievance("no water supply for 3 days", "Lucknow", now))
	if err != nil {
		t.Fatalf("Match: %v", err)
	}

	if res.Status != model.OutcomeCreated {
		t.Errorf("Expected created, got %s", res.Status)
	}
	c := res.Case
	if c.ID != "case-1" || len(c.Thread) != 1 || c.Status != model.StatusOpen || c.Score != 0 {
		t.Errorf("Unexpected new case: %+v", c)
	}
	if c.Location != "lucknow" || c.Detail != "no water supply for 3 days" || !c.ProblemStart.Equal(now) {
		t.Errorf("Expected case fields copied from grievance, got %+v", c)
	}

	cases, _, _ := s.Load(context.Background())
	if len(cases) != 1 {
		t.Errorf("Expected one persisted case, got %d", len(cases))
	}
}

func TestMatcher_MergesSameIncident(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	m := NewMatcher(s, similarity.NewTable(0.5), nil, WithIDGenerator(sequentialIDs()))

	first, err := m.Match(ctx, grievance("no water supply for 3 days", "Lucknow", now))
	if err != nil {
		t.Fatal(err)
	}
	second, err := m.Match(ctx, grievance("water not restored in sector 5", "lucknow", now.Add(36*time.Hour)))
	if err != nil {
		t.Fatal(err)
	}

	if second.Status != model.OutcomeMerged || second.Case.ID != first.Case.ID {
		t.Fatalf("Expected merge into %s, got %+v", first.Case.ID, second)
	}
	if len(second.Case.Thread) != 2 {
		t.Errorf("Expected thread length 2, got %d", len(second.Case.Thread))
	}
	if second.Case.Detail != "no water supply for 3 days" {
		t.Errorf("Expected detail unchanged, got %q", second.Case.Detail)
	}
	if second.Case.Thread[0].Description != "no water supply for 3 days" {
		t.Errorf("Expected first thread entry untouched, got %+v", second.Case.Thread[0])
	}
	if second.Similarity < 0.2 || len(second.Candidates) != 1 {
		t.Errorf("Expected one candidate above threshold, got %+v", second.Candidates)
	}

	cand := second.Candidates[0]
	want := 0.6*cand.Lexical + 0.4*0.5
	if diff := cand.Combined - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Expected combined %.5f, got %.5f", want, cand.Combined)
	}
}

func TestMatcher_Gating(t *testing.T) {
	tests := []struct {
		location string
		offset   time.Duration
		merged   bool
		desc     string
	}{
		{"Lucknow", 47 * time.Hour, true, "within window"},
		{"Lucknow", 71 * time.Hour, true, "two whole days and change"},
		{"Lucknow", -71 * time.Hour, true, "before problem start"},
		{"Lucknow", 72 * time.Hour, false, "three days apart"},
		{"Kanpur", 0, false, "different location"},
		{" LUCKNOW ", 0, true, "location compared case-insensitively"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			ctx := context.Background()
			m := NewMatcher(store.NewMemory(), similarity.NewTable(1), nil, WithIDGenerator(sequentialIDs()))

			if _, err := m.Match(ctx, grievance("no water supply", "Lucknow", now)); err != nil {
				t.Fatal(err)
			}
			res, err := m.Match(ctx, grievance("no water supply", tt.location, now.Add(tt.offset)))
			if err != nil {
				t.Fatal(err)
			}
			if got := res.Status == model.OutcomeMerged; got != tt.merged {
				t.Errorf("Expected merged=%v, got %s", tt.merged, res.Status)
			}
		})
	}
}

func TestMatcher_BelowThresholdCreates(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	m := NewMatcher(s, similarity.NewTable(0), nil, WithIDGenerator(sequentialIDs()))

	if _, err := m.Match(ctx, grievance("pothole on main road", "Agra", now)); err != nil {
		t.Fatal(err)
	}
	res, err := m.Match(ctx, grievance("electricity bill dispute", "Agra", now))
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != model.OutcomeCreated || len(res.Candidates) != 1 {
		t.Errorf("Expected new case after one gated candidate, got %+v", res)
	}

	cases, _, _ := s.Load(ctx)
	if len(cases) != 2 {
		t.Errorf("Expected two cases, got %d", len(cases))
	}
}

func TestMatcher_TiesFavorFirstSeen(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	seed := []model.Case{
		{ID: "a", Detail: "garbage not collected", Location: "agra", ProblemStart: now, Status: model.StatusOpen,
			Thread: []model.Grievance{grievance("garbage not collected", "Agra", now)}},
		{ID: "b", Detail: "garbage not collected", Location: "agra", ProblemStart: now, Status: model.StatusOpen,
			Thread: []model.Grievance{grievance("garbage not collected", "Agra", now)}},
	}
	if _, err := s.Save(ctx, seed, ""); err != nil {
		t.Fatal(err)
	}

	m := NewMatcher(s, similarity.NewTable(0.8), nil)
	res, err := m.Match(ctx, grievance("garbage not collected", "agra", now))
	if err != nil {
		t.Fatal(err)
	}
	if res.Case.ID != "a" {
		t.Errorf("Expected first-seen case a, got %s", res.Case.ID)
	}
}

func TestMatcher_PicksBestCandidate(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	seed := []model.Case{
		{ID: "a", Detail: "street light broken", Location: "agra", ProblemStart: now, Status: model.StatusOpen,
			Thread: []model.Grievance{grievance("street light broken", "Agra", now)}},
		{ID: "b", Detail: "drain overflowing", Location: "agra", ProblemStart: now, Status: model.StatusOpen,
			Thread: []model.Grievance{grievance("drain overflowing", "Agra", now)}},
	}
	if _, err := s.Save(ctx, seed, ""); err != nil {
		t.Fatal(err)
	}

	table := similarity.NewTable(0).
		Set("sewage on the road", "street light broken", 0.3).
		Set("sewage on the road", "drain overflowing", 0.9)
	m := NewMatcher(s, table, nil)

	res, err := m.Match(ctx, grievance("sewage on the road", "Agra", now))
	if err != nil {
		t.Fatal(err)
	}
	if res.Case.ID != "b" {
		t.Errorf("Expected best-scoring case b, got %s (%+v)", res.Case.ID, res.Candidates)
	}
}

func TestMatcher_SemanticFailureDegrades(t *testing.T) {
	ctx := context.Background()
	table := similarity.NewTable(0)
	table.Err = fmt.Errorf("embed: %w", model.ErrProviderUnavailable)

	m := NewMatcher(store.NewMemory(), table, nil, WithIDGenerator(sequentialIDs()))
	if _, err := m.Match(ctx, grievance("no water supply in sector five", "Lucknow", now)); err != nil {
		t.Fatal(err)
	}
	res, err := m.Match(ctx, grievance("no water supply in sector five", "Lucknow", now))
	if err != nil {
		t.Fatalf("Expected degradation instead of error, got %v", err)
	}

	cand := res.Candidates[0]
	if !cand.Degraded || cand.Combined != cand.Lexical {
		t.Errorf("Expected lexical-only score, got %+v", cand)
	}
	if res.Status != model.OutcomeMerged {
		t.Errorf("Expected identical text merged on lexical score, got %s", res.Status)
	}
}

// hookStore runs hook before every Load and can fail the first saves with a conflict
type hookStore struct {
	store.CaseStore
	loads     int
	hook      func(n int)
	conflicts int
	saves     int
}

func (h *hookStore) Load(ctx context.Context) ([]model.Case, store.Version, error) {
	h.loads++
	if h.hook != nil {
		h.hook(h.loads)
	}
	return h.CaseStore.Load(ctx)
}

func (h *hookStore) Save(ctx context.Context, cases []model.Case, expected store.Version) (store.Version, error) {
	h.saves++
	if h.saves <= h.conflicts {
		return "", store.ErrConflict
	}
	return h.CaseStore.Save(ctx, cases, expected)
}

func TestMatcher_RetriesConflicts(t *testing.T) {
	ctx := context.Background()
	s := &hookStore{CaseStore: store.NewMemory(), conflicts: 2}
	m := NewMatcher(s, nil, nil)

	res, err := m.Match(ctx, grievance("no water supply", "Lucknow", now))
	if err != nil {
		t.Fatalf("Expected success on third attempt, got %v", err)
	}
	if res.Attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", res.Attempts)
	}
}

func TestMatcher_PersistentConflict(t *testing.T) {
	s := &hookStore{CaseStore: store.NewMemory(), conflicts: 100}
	m := NewMatcher(s, nil, nil)

	_, err := m.Match(context.Background(), grievance("no water supply", "Lucknow", now))
	if !errors.Is(err, model.ErrPersistenceConflict) {
		t.Fatalf("Expected ErrPersistenceConflict, got %v", err)
	}
	if s.saves != 3 {
		t.Errorf("Expected 3 save attempts, got %d", s.saves)
	}
}

func TestMatcher_RechecksUnderLock(t *testing.T) {
	ctx := context.Background()
	inner := store.NewMemory()

	late := model.Case{ID: "late", Detail: "no water supply", Location: "lucknow", ProblemStart: now,
		Status: model.StatusOpen, Thread: []model.Grievance{grievance("no water supply", "Lucknow", now)}}

	s := &hookStore{CaseStore: inner}
	s.hook = func(n int) {
		// another writer lands between the snapshot and the locked read
		if n == 2 {
			if _, err := inner.Save(ctx, []model.Case{late}, ""); err != nil {
				t.Errorf("seed late case: %v", err)
			}
		}
	}

	table := similarity.NewTable(0.9)
	m := NewMatcher(s, table, nil)
	res, err := m.Match(ctx, grievance("no water supply", "Lucknow", now))
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != model.OutcomeMerged || res.Case.ID != "late" {
		t.Errorf("Expected merge into the case that appeared under the lock, got %+v", res)
	}
	if table.Calls() != 1 {
		t.Errorf("Expected the late candidate scored once, got %d calls", table.Calls())
	}
}

func TestMatcher_ConcurrentSubmissions(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	m := NewMatcher(s, nil, nil, WithConcurrency(2))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Match(ctx, grievance("garbage not collected near bus stand", "Agra", now)); err != nil {
				t.Errorf("Match: %v", err)
			}
		}()
	}
	wg.Wait()

	cases, _, _ := s.Load(ctx)
	if len(cases) != 1 {
		t.Fatalf("Expected one case, got %d", len(cases))
	}
	if len(cases[0].Thread) != 10 {
		t.Errorf("Expected thread of 10, got %d", len(cases[0].Thread))
	}
}
