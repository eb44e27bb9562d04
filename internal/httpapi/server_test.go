package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/grievance/internal/model"
	"github.com/ppiankov/grievance/internal/pipeline"
	"github.com/ppiankov/grievance/internal/score"
	"github.com/ppiankov/grievance/internal/similarity"
	"github.com/ppiankov/grievance/internal/store"
)

const transcript = "My name is Ravi Kumar. I am calling from Lucknow, PIN 226001. " +
	"There is no water supply in our area for 3 days. Contact 9876543210."

func newTestServer(t *testing.T) *Server {
	t.Helper()
	p, err := pipeline.New(model.DefaultConfig(), pipeline.Deps{
		Store:    store.NewMemory(),
		Semantic: similarity.NewTable(0.5),
		Clock:    func() time.Time { return time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatal(err)
	}
	return NewServer(p, nil)
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(t), http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
}

func TestIntake(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/v1/intake", fmt.Sprintf(`{"transcript":%q}`, transcript))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var res pipeline.IntakeResult
	decode(t, rec, &res)
	if !res.Complete || res.Grievance.CallerName != "Ravi Kumar" || res.Source != "normalizer" {
		t.Errorf("Unexpected intake result: %s", rec.Body)
	}

	if rec := do(t, s, http.MethodPost, "/v1/intake", `{"transcript":"  "}`); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty transcript, got %d", rec.Code)
	}
}

func TestSubmit(t *testing.T) {
	tests := []struct {
		body   string
		code   int
		status model.OutcomeStatus
		desc   string
	}{
		{fmt.Sprintf(`{"transcript":%q}`, transcript), http.StatusCreated, model.OutcomeCreated, "complete transcript"},
		{`{"transcript":"test test test"}`, http.StatusUnprocessableEntity, model.OutcomeRejected, "spam"},
		{`{"transcript":"There is no water supply in our area for 3 days"}`, http.StatusOK, model.OutcomeIncomplete, "missing fields"},
		{`{"grievance":{"caller_name":"Ravi","caller_phone_no":"9876543210","description":"garbage not collected near the station","location":"Kanpur","date_time":"2025-06-09T10:00:00"}}`,
			http.StatusCreated, model.OutcomeCreated, "structured grievance"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			rec := do(t, newTestServer(t), http.MethodPost, "/v1/grievances", tt.body)
			if rec.Code != tt.code {
				t.Fatalf("Expected %d, got %d: %s", tt.code, rec.Code, rec.Body)
			}
			var out model.Outcome
			decode(t, rec, &out)
			if out.Status != tt.status {
				t.Errorf("Expected %s, got %s", tt.status, out.Status)
			}
		})
	}
}

func TestSubmit_BadRequests(t *testing.T) {
	s := newTestServer(t)

	for _, body := range []string{`{}`, `not json`, `{"grievance":{"date_time":"yesterday"}}`} {
		if rec := do(t, s, http.MethodPost, "/v1/grievances", body); rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestCases(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/v1/grievances", fmt.Sprintf(`{"transcript":%q}`, transcript))
	var out model.Outcome
	decode(t, rec, &out)

	rec = do(t, s, http.MethodGet, "/v1/cases/"+out.CaseID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var c model.Case
	decode(t, rec, &c)
	if c.ID != out.CaseID || len(c.Thread) != 1 {
		t.Errorf("Unexpected case: %s", rec.Body)
	}

	if rec := do(t, s, http.MethodGet, "/v1/cases/nope", ""); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}

	filters := []struct {
		query string
		want  int
	}{
		{"", 1},
		{"?status=open", 1},
		{"?status=closed", 0},
		{"?location=LUCKNOW,%20PIN%20226001", 1},
		{"?location=Agra", 0},
	}
	for _, f := range filters {
		rec := do(t, s, http.MethodGet, "/v1/cases"+f.query, "")
		var cases []model.Case
		decode(t, rec, &cases)
		if len(cases) != f.want {
			t.Errorf("GET /v1/cases%s: expected %d cases, got %d", f.query, f.want, len(cases))
		}
	}
}

func TestScore(t *testing.T) {
	s := newTestServer(t)
	do(t, s, http.MethodPost, "/v1/grievances", fmt.Sprintf(`{"transcript":%q}`, transcript))

	rec := do(t, s, http.MethodPost, "/v1/score", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var report score.Report
	decode(t, rec, &report)
	if len(report.Cases) != 1 {
		t.Errorf("Expected one scored case, got %d", len(report.Cases))
	}

	rec = do(t, s, http.MethodGet, "/v1/cases?priority="+string(report.Cases[0].Priority), "")
	var cases []model.Case
	decode(t, rec, &cases)
	if len(cases) != 1 {
		t.Errorf("Expected priority filter to find the scored case, got %d", len(cases))
	}
}

type failingPipeline struct {
	Pipeline
	err error
}

func (f *failingPipeline) Score(ctx context.Context) (*score.Report, error) {
	return nil, f.err
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("score: %w", model.ErrPersistenceConflict), http.StatusConflict},
		{fmt.Errorf("%w: down", model.ErrProviderUnavailable), http.StatusServiceUnavailable},
		{&model.RejectionError{Reason: model.ReasonJurisdiction}, http.StatusUnprocessableEntity},
		{fmt.Errorf("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		s := NewServer(&failingPipeline{err: tt.err}, nil)
		if rec := do(t, s, http.MethodPost, "/v1/score", ""); rec.Code != tt.code {
			t.Errorf("error %v: expected %d, got %d", tt.err, tt.code, rec.Code)
		}
	}
}
