package match

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ppiankov/grievance/internal/model"
	"github.com/ppiankov/grievance/internal/similarity"
	"github.com/ppiankov/grievance/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Candidate is the score breakdown for one gated case
type Candidate struct {
	CaseID   string  `json:"case_no"`
	Lexical  float64 `json:"lexical"`
	Semantic float64 `json:"semantic"`
	Combined float64 `json:"combined"`
	Degraded bool    `json:"degraded,omitempty"` // semantic provider failed, combined = lexical
}

// Result describes what a match did to the collection
type Result struct {
	Status     model.OutcomeStatus `json:"status"`
	Case       model.Case          `json:"case"`
	Similarity float64             `json:"similarity"`
	Candidates []Candidate         `json:"candidates"`
	Attempts   int                 `json:"attempts"`
}

// Matcher merges a grievance into an existing case or opens a new one
type Matcher struct {
	store    store.CaseStore
	semantic similarity.Provider
	config   model.MatchConfig
	lock     sync.Locker
	workers  int
	newID    func() string
	logger   *zap.Logger
}

// Option configures a Matcher
type Option func(*Matcher)

// WithLocker shares the single-writer lock with other collection writers
func WithLocker(l sync.Locker) Option {
	return func(m *Matcher) { m.lock = l }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(m *Matcher) { m.logger = l }
}

// WithConcurrency bounds concurrent similarity calls
func WithConcurrency(n int) Option {
	return func(m *Matcher) { m.workers = n }
}

// WithIDGenerator replaces uuid case ids
func WithIDGenerator(fn func() string) Option {
	return func(m *Matcher) { m.newID = fn }
}

// NewMatcher creates a matcher. A nil semantic provider scores lexically only.
func NewMatcher(s store.CaseStore, semantic similarity.Provider, config *model.MatchConfig, opts ...Option) *Matcher {
	if config == nil {
		config = &model.DefaultConfig().Match
	}

	m := &Matcher{
		store:    s,
		semantic: semantic,
		config:   *config,
		lock:     &sync.Mutex{},
		workers:  4,
		newID:    uuid.NewString,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.workers <= 0 {
		m.workers = 1
	}
	if m.config.MaxAttempts <= 0 {
		m.config.MaxAttempts = 1
	}
	return m
}

// Match places g in the collection. A version conflict restarts from a fresh
// read; after MaxAttempts conflicts it returns model.ErrPersistenceConflict.
func (m *Matcher) Match(ctx context.Context, g model.Grievance) (*Result, error) {
	for attempt := 1; attempt <= m.config.MaxAttempts; attempt++ {
		res, err := m.attempt(ctx, g)
		if err == nil {
			res.Attempts = attempt
			return res, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return nil, err
		}
		m.logger.Warn("case collection changed during match, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", m.config.MaxAttempts),
		)
	}
	return nil, fmt.Errorf("match grievance after %d attempts: %w", m.config.MaxAttempts, model.ErrPersistenceConflict)
}

func (m *Matcher) attempt(ctx context.Context, g model.Grievance) (*Result, error) {
	snapshot, _, err := m.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cases: %w", err)
	}
	scored, err := m.scoreCandidates(ctx, g, m.gate(snapshot, g))
	if err != nil {
		return nil, err
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	cases, version, err := m.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cases: %w", err)
	}

	gated := m.gate(cases, g)
	var fresh []model.Case
	for _, c := range gated {
		if _, ok := scored[c.ID]; !ok {
			fresh = append(fresh, c)
		}
	}
	if len(fresh) > 0 {
		late, err := m.scoreCandidates(ctx, g, fresh)
		if err != nil {
			return nil, err
		}
		for id, c := range late {
			scored[id] = c
		}
	}

	res := &Result{Candidates: make([]Candidate, 0, len(gated))}
	best := -1
	for i, c := range gated {
		cand := scored[c.ID]
		res.Candidates = append(res.Candidates, cand)
		if best < 0 || cand.Combined > res.Candidates[best].Combined {
			best = i
		}
	}

	if best >= 0 && res.Candidates[best].Combined >= m.config.Threshold {
		id := gated[best].ID
		for i := range cases {
			if cases[i].ID == id {
				cases[i].Thread = append(append([]model.Grievance(nil), cases[i].Thread...), g)
				res.Case = cases[i]
				break
			}
		}
		res.Status = model.OutcomeMerged
		res.Similarity = res.Candidates[best].Combined
	} else {
		c := m.newCase(g)
		cases = append(cases, c)
		res.Case = c
		res.Status = model.OutcomeCreated
		if best >= 0 {
			res.Similarity = res.Candidates[best].Combined
		}
	}

	if _, err := m.store.Save(ctx, cases, version); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("save cases: %w", err)
	}

	m.logger.Debug("grievance matched",
		zap.String("status", string(res.Status)),
		zap.String("case_no", res.Case.ID),
		zap.Int("thread_length", len(res.Case.Thread)),
		zap.Int("candidates", len(res.Candidates)),
		zap.Float64("similarity", res.Similarity),
	)
	return res, nil
}

// gate keeps cases at the same location whose problem start is within the
// date window, in collection order
func (m *Matcher) gate(cases []model.Case, g model.Grievance) []model.Case {
	location := model.NormalizeLocation(g.Location)

	var out []model.Case
	for _, c := range cases {
		if model.NormalizeLocation(c.Location) != location {
			continue
		}
		if wholeDays(g.DateTime.Sub(c.ProblemStart)) > m.config.DateWindowDays {
			continue
		}
		out = append(out, c)
	}
	return out
}

func wholeDays(d time.Duration) int {
	days := int(d / (24 * time.Hour))
	if days < 0 {
		return -days
	}
	return days
}

// scoreCandidates computes the hybrid score for each case concurrently
func (m *Matcher) scoreCandidates(ctx context.Context, g model.Grievance, cases []model.Case) (map[string]Candidate, error) {
	results := make([]Candidate, len(cases))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(m.workers)
	for i, c := range cases {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			results[i] = m.score(egCtx, g.Description, c)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("score candidates: %w", err)
	}

	out := make(map[string]Candidate, len(results))
	for _, r := range results {
		out[r.CaseID] = r
	}
	return out, nil
}

func (m *Matcher) score(ctx context.Context, description string, c model.Case) Candidate {
	cand := Candidate{
		CaseID:  c.ID,
		Lexical: similarity.TFIDFCosine(description, c.Detail),
	}

	total := m.config.LexicalWeight + m.config.SemanticWeight
	if m.semantic == nil || total <= 0 {
		cand.Combined = cand.Lexical
		return cand
	}

	callCtx := ctx
	if m.config.ProviderTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, m.config.ProviderTimeout)
		defer cancel()
	}

	sem, err := m.semantic.Similarity(callCtx, description, c.Detail)
	if err != nil {
		m.logger.Warn("semantic similarity unavailable, using lexical score",
			zap.String("case_no", c.ID),
			zap.Error(err),
		)
		cand.Combined = cand.Lexical
		cand.Degraded = true
		return cand
	}

	cand.Semantic = sem
	cand.Combined = (m.config.LexicalWeight*cand.Lexical + m.config.SemanticWeight*sem) / total
	return cand
}

func (m *Matcher) newCase(g model.Grievance) model.Case {
	return model.Case{
		ID:           m.newID(),
		Detail:       g.Description,
		ProblemStart: g.DateTime,
		Location:     model.NormalizeLocation(g.Location),
		Status:       model.StatusOpen,
		Score:        0,
		Thread:       []model.Grievance{g},
	}
}
