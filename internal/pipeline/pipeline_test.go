package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/grievance/internal/model"
	"github.com/ppiankov/grievance/internal/similarity"
	"github.com/ppiankov/grievance/internal/store"
)

var fixedNow = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

const completeTranscript = "My name is Ravi Kumar. I am calling from Lucknow, PIN 226001. " +
	"There is no water supply in our area for 3 days. Contact 9876543210."

func testCatalog() []model.Category {
	return []model.Category{
		{Name: "Water", SemanticWeight: 0.9, Keywords: []string{"water", "pipeline"}},
		{Name: "Roads", SemanticWeight: 0.6, Keywords: []string{"pothole"}},
	}
}

func newTestPipeline(t *testing.T, deps Deps) *Pipeline {
	t.Helper()
	if deps.Store == nil {
		deps.Store = store.NewMemory()
	}
	if deps.Semantic == nil {
		deps.Semantic = similarity.NewTable(0.5)
	}
	if deps.Catalog == nil {
		deps.Catalog = testCatalog()
	}
	deps.Clock = func() time.Time { return fixedNow }

	p, err := New(model.DefaultConfig(), deps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

type stubFiller struct {
	slots *model.Slots
	err   error
}

func (s *stubFiller) Name() string { return "stub" }

func (s *stubFiller) Fill(ctx context.Context, transcript string) (*model.Slots, error) {
	return s.slots, s.err
}

func TestNew_RequiresStore(t *testing.T) {
	if _, err := New(nil, Deps{}); err == nil {
		t.Error("Expected error without a case store")
	}
}

func TestPipeline_SubmitCreatesThenMerges(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(t, Deps{})

	first, err := p.SubmitTranscript(ctx, completeTranscript)
	if err != nil {
		t.Fatalf("SubmitTranscript: %v", err)
	}
	if first.Status != model.OutcomeCreated || first.CaseID == "" || first.ThreadLength != 1 {
		t.Fatalf("Expected a new case, got %+v", first)
	}

	second, err := p.SubmitTranscript(ctx, "My name is Sunita Devi. I am calling from Lucknow, PIN 226001. "+
		"Water supply has stopped in our area for 3 days. Contact 9123456780.")
	if err != nil {
		t.Fatalf("SubmitTranscript: %v", err)
	}
	if second.Status != model.OutcomeMerged || second.CaseID != first.CaseID {
		t.Fatalf("Expected merge into %s, got %+v", first.CaseID, second)
	}
	if second.ThreadLength != 2 {
		t.Errorf("Expected thread length 2, got %d", second.ThreadLength)
	}

	cases, err := p.Cases(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(cases) != 1 {
		t.Errorf("Expected one case, got %d", len(cases))
	}
}

func TestPipeline_Rejections(t *testing.T) {
	tests := []struct {
		transcript string
		reason     model.RejectReason
		desc       string
	}{
		{"test test test", model.ReasonNonGrievance, "spam indicator"},
		{"My name is Ravi Kumar. I am calling from Mumbai, PIN 400001. " +
			"There is no water supply in our area for 3 days. Contact 9876543210.",
			model.ReasonJurisdiction, "outside jurisdiction"},
		{"Initial Statement: hello hello\n" +
			"Agent Question: May we have your name for updates?\nUser Answer: Ravi\n" +
			"Agent Question: May we have your phone number for updates?\nUser Answer: 9876543210\n" +
			"Agent Question: Please describe your grievance in brief.\nUser Answer: just time pass nothing really here\n" +
			"Agent Question: Where is the issue located? (Address/PIN)\nUser Answer: Lucknow\n" +
			"Agent Question: How long has this been ongoing?\nUser Answer: 2 days",
			model.ReasonNonGrievance, "agent questions do not count as caller content"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			p := newTestPipeline(t, Deps{})

			out, err := p.SubmitTranscript(context.Background(), tt.transcript)
			if err != nil {
				t.Fatalf("Expected rejection as outcome, got error %v", err)
			}
			if out.Status != model.OutcomeRejected || out.Reason != tt.reason {
				t.Errorf("Expected rejected/%s, got %+v", tt.reason, out)
			}

			cases, _ := p.Cases(context.Background())
			if len(cases) != 0 {
				t.Errorf("Expected nothing persisted, got %d cases", len(cases))
			}
		})
	}
}

func TestPipeline_IncompleteAsksQuestions(t *testing.T) {
	p := newTestPipeline(t, Deps{})

	out, err := p.SubmitTranscript(context.Background(), "There is no water supply in our area for 3 days")
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != model.OutcomeIncomplete {
		t.Fatalf("Expected incomplete, got %+v", out)
	}
	if len(out.Questions) == 0 {
		t.Error("Expected follow-up questions")
	}
	if out.Grievance == nil || out.Grievance.Description == "" {
		t.Errorf("Expected the partial grievance, got %+v", out.Grievance)
	}
}

func TestPipeline_IntakePrefersSlotFiller(t *testing.T) {
	filler := &stubFiller{slots: &model.Slots{
		CallerName:       "Aryan",
		PhoneNumber:      "9582707063",
		Location:         "Lucknow",
		CaseDetail:       "no water supply for 3 days",
		IncidentDatetime: "2025-06-08",
	}}
	p := newTestPipeline(t, Deps{Filler: filler})

	res := p.Intake(context.Background(), "anything")
	if res.Source != "slotfill" {
		t.Errorf("Expected slotfill source, got %q", res.Source)
	}
	if !res.Complete || res.Grievance.CallerName != "Aryan" {
		t.Errorf("Expected complete slots, got %+v", res.Result)
	}
}

func TestPipeline_IntakeFallsBackOnFillerError(t *testing.T) {
	filler := &stubFiller{err: fmt.Errorf("%w: timeout", model.ErrProviderUnavailable)}
	p := newTestPipeline(t, Deps{Filler: filler})

	res := p.Intake(context.Background(), completeTranscript)
	if res.Source != "normalizer" {
		t.Errorf("Expected normalizer source, got %q", res.Source)
	}
	if res.Grievance.CallerName != "Ravi Kumar" {
		t.Errorf("Expected normalizer extraction, got %+v", res.Grievance)
	}
}

func TestPipeline_SubmitGrievance(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(t, Deps{})

	out, err := p.SubmitGrievance(ctx, model.Grievance{
		CallerName:  "Ravi Kumar",
		CallerPhone: "9876543210",
		Description: "garbage not collected near the station",
		Location:    "Kanpur",
	})
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != model.OutcomeCreated {
		t.Fatalf("Expected created, got %+v", out)
	}

	c, err := p.Case(ctx, out.CaseID)
	if err != nil {
		t.Fatal(err)
	}
	if !c.ProblemStart.Equal(fixedNow) {
		t.Errorf("Expected zero date_time to default to now, got %v", c.ProblemStart)
	}

	empty, err := p.SubmitGrievance(ctx, model.Grievance{Location: "Kanpur"})
	if err != nil {
		t.Fatal(err)
	}
	if empty.Status != model.OutcomeIncomplete || len(empty.Questions) != 1 {
		t.Errorf("Expected incomplete with one question, got %+v", empty)
	}
}

func TestPipeline_CaseNotFound(t *testing.T) {
	p := newTestPipeline(t, Deps{})

	if _, err := p.Case(context.Background(), "missing"); !errors.Is(err, ErrCaseNotFound) {
		t.Errorf("Expected ErrCaseNotFound, got %v", err)
	}
}

func TestPipeline_Score(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(t, Deps{})

	if _, err := p.SubmitTranscript(ctx, completeTranscript); err != nil {
		t.Fatal(err)
	}

	report, err := p.Score(ctx)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if len(report.Cases) != 1 {
		t.Fatalf("Expected one scored case, got %d", len(report.Cases))
	}

	cases, _ := p.Cases(ctx)
	c := cases[0]
	// Uniform similarity ties every category, so the first one wins:
	// 0.5*0.6 + 0.5*0.5 + 1
	if c.Category != "Water" {
		t.Errorf("Expected Water, got %q", c.Category)
	}
	if diff := c.Score - 1.55; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Expected score 1.55, got %v", c.Score)
	}
	if c.Priority != model.PriorityHigh {
		t.Errorf("Expected high priority, got %s", c.Priority)
	}
}

type conflictStore struct {
	store.CaseStore
	saves int
}

func (c *conflictStore) Save(ctx context.Context, cases []model.Case, expected store.Version) (store.Version, error) {
	c.saves++
	return "", store.ErrConflict
}

func TestPipeline_ScorePersistentConflict(t *testing.T) {
	s := &conflictStore{CaseStore: store.NewMemory()}
	p := newTestPipeline(t, Deps{Store: s})

	_, err := p.Score(context.Background())
	if !errors.Is(err, model.ErrPersistenceConflict) {
		t.Fatalf("Expected ErrPersistenceConflict, got %v", err)
	}
	if s.saves != 3 {
		t.Errorf("Expected 3 save attempts, got %d", s.saves)
	}
}

func TestPipeline_ConcurrentSubmitAndScore(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(t, Deps{})

	var wg sync.WaitGroup
	errs := make(chan error, 11)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := p.SubmitGrievance(ctx, model.Grievance{
				CallerName:  "Caller",
				CallerPhone: fmt.Sprintf("98765432%02d", i),
				Description: "street light broken on the main road",
				Location:    "Agra",
				DateTime:    fixedNow,
			})
			errs <- err
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := p.Score(ctx)
		errs <- err
	}()
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	}

	cases, _ := p.Cases(ctx)
	if len(cases) != 1 || len(cases[0].Thread) != 10 {
		t.Errorf("Expected one case with 10 submissions, got %d cases", len(cases))
	}
}
