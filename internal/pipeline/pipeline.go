package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ppiankov/grievance/internal/geo"
	"github.com/ppiankov/grievance/internal/intake"
	"github.com/ppiankov/grievance/internal/match"
	"github.com/ppiankov/grievance/internal/model"
	"github.com/ppiankov/grievance/internal/score"
	"github.com/ppiankov/grievance/internal/similarity"
	"github.com/ppiankov/grievance/internal/slotfill"
	"github.com/ppiankov/grievance/internal/store"
	"github.com/ppiankov/grievance/internal/validate"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ErrCaseNotFound is returned when a case id is not in the collection
var ErrCaseNotFound = errors.New("case not found")

// Deps are the collaborators a pipeline is assembled from. Store is required;
// everything else has a default.
type Deps struct {
	Store    store.CaseStore
	Semantic similarity.Provider // nil means lexical-only matching and classification
	Filler   slotfill.Filler     // nil means the local normalizer alone
	Catalog  []model.Category
	History  validate.History
	Logger   *zap.Logger
	Clock    func() time.Time
}

// Pipeline runs submissions through intake, filtering and matching, and
// the collection through batch scoring. Matching and scoring share one
// single-writer lock.
type Pipeline struct {
	config     *model.Config
	store      store.CaseStore
	normalizer *intake.Normalizer
	filler     slotfill.Filler
	filter     *validate.Filter
	matcher    *match.Matcher
	scorer     *score.Scorer
	mu         sync.Mutex
	now        func() time.Time
	logger     *zap.Logger
	tracer     trace.Tracer
}

// New creates a pipeline from cfg and deps
func New(cfg *model.Config, deps Deps) (*Pipeline, error) {
	if cfg == nil {
		cfg = model.DefaultConfig()
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("pipeline requires a case store")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}

	gazetteer := geo.NewGazetteer(&cfg.Jurisdiction)
	normalizer := intake.NewNormalizer(gazetteer,
		intake.WithClock(deps.Clock),
		intake.WithKeywords(vocabulary(deps.Catalog)),
	)

	p := &Pipeline{
		config:     cfg,
		store:      deps.Store,
		normalizer: normalizer,
		filler:     deps.Filler,
		filter:     validate.NewFilter(&cfg.Filter, gazetteer, deps.History, deps.Logger.Named("filter")),
		now:        deps.Clock,
		logger:     deps.Logger,
		tracer:     otel.Tracer("github.com/ppiankov/grievance/internal/pipeline"),
	}
	p.matcher = match.NewMatcher(deps.Store, deps.Semantic, &cfg.Match,
		match.WithLocker(&p.mu),
		match.WithConcurrency(cfg.Concurrency.SimilarityCalls),
		match.WithLogger(deps.Logger.Named("match")),
	)
	p.scorer = score.NewScorer(deps.Catalog, deps.Semantic, &cfg.Score,
		score.WithWorkers(cfg.Concurrency.Workers),
		score.WithLogger(deps.Logger.Named("score")),
	)

	return p, nil
}

// Close releases the case store
func (p *Pipeline) Close() error {
	return p.store.Close()
}

// IntakeResult is a normalized transcript and where its slots came from
type IntakeResult struct {
	*intake.Result
	Source string `json:"source"` // "slotfill" or "normalizer"
}

// Intake extracts grievance slots from a transcript without filtering or
// matching. The slot filler is preferred; when it is missing or fails the
// local normalizer takes over.
func (p *Pipeline) Intake(ctx context.Context, transcript string) *IntakeResult {
	ctx, span := p.tracer.Start(ctx, "pipeline.Intake")
	defer span.End()

	res := p.extract(ctx, transcript)
	span.SetAttributes(
		attribute.String("source", res.Source),
		attribute.Bool("complete", res.Complete),
		attribute.Int("missing", len(res.Missing)),
	)
	return res
}

func (p *Pipeline) extract(ctx context.Context, transcript string) *IntakeResult {
	if p.filler != nil {
		slots, err := p.filler.Fill(ctx, transcript)
		if err == nil {
			return &IntakeResult{Result: p.normalizer.FromSlots(*slots), Source: "slotfill"}
		}
		p.logger.Warn("slot filler unavailable, using local normalizer",
			zap.String("provider", p.filler.Name()),
			zap.Error(err),
		)
	}
	return &IntakeResult{Result: p.normalizer.Normalize(transcript), Source: "normalizer"}
}

// SubmitTranscript runs a raw transcript through the whole pipeline.
// Incomplete transcripts are screened by the content rules only and come
// back with follow-up questions; rejections are outcomes, not errors.
func (p *Pipeline) SubmitTranscript(ctx context.Context, transcript string) (*model.Outcome, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.SubmitTranscript")
	defer span.End()

	res := p.Intake(ctx, transcript)
	text := p.normalizer.CallerText(transcript)
	g := res.Grievance

	if !res.Complete {
		if v := p.screen(ctx, text); !v.Accepted {
			return rejected(v), nil
		}
		span.SetAttributes(attribute.String("outcome", string(model.OutcomeIncomplete)))
		return &model.Outcome{
			Status:    model.OutcomeIncomplete,
			Questions: res.Questions,
			Grievance: &g,
		}, nil
	}

	if v := p.check(ctx, func() validate.Verdict { return p.filter.Evaluate(text, g) }); !v.Accepted {
		span.SetAttributes(attribute.String("outcome", string(model.OutcomeRejected)))
		return rejected(v), nil
	}

	out, err := p.match(ctx, g)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("outcome", string(out.Status)))
	return out, nil
}

// SubmitGrievance runs an already structured grievance through filtering
// and matching. A zero date_time means now.
func (p *Pipeline) SubmitGrievance(ctx context.Context, g model.Grievance) (*model.Outcome, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.SubmitGrievance")
	defer span.End()

	g.CallerName = strings.TrimSpace(p.normalizer.Sanitize(g.CallerName))
	g.CallerPhone = strings.TrimSpace(g.CallerPhone)
	g.Description = strings.TrimSpace(p.normalizer.Sanitize(g.Description))
	g.Location = strings.TrimSpace(p.normalizer.Sanitize(g.Location))
	if g.DateTime.IsZero() {
		g.DateTime = p.now()
	}

	if g.Description == "" {
		return &model.Outcome{
			Status:    model.OutcomeIncomplete,
			Questions: []string{intake.Question(intake.FieldDescription)},
			Grievance: &g,
		}, nil
	}

	if v := p.check(ctx, func() validate.Verdict { return p.filter.CheckGrievance(g) }); !v.Accepted {
		return rejected(v), nil
	}

	out, err := p.match(ctx, g)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return out, nil
}

func (p *Pipeline) screen(ctx context.Context, text string) validate.Verdict {
	_, span := p.tracer.Start(ctx, "pipeline.Screen")
	defer span.End()

	v := p.filter.Screen(text)
	span.SetAttributes(attribute.Bool("accepted", v.Accepted), attribute.String("rule", v.Rule))
	return v
}

func (p *Pipeline) check(ctx context.Context, rules func() validate.Verdict) validate.Verdict {
	_, span := p.tracer.Start(ctx, "pipeline.Filter")
	defer span.End()

	v := rules()
	span.SetAttributes(attribute.Bool("accepted", v.Accepted), attribute.String("rule", v.Rule))
	return v
}

func (p *Pipeline) match(ctx context.Context, g model.Grievance) (*model.Outcome, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.Match")
	defer span.End()

	res, err := p.matcher.Match(ctx, g)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("match: %w", err)
	}

	span.SetAttributes(
		attribute.String("status", string(res.Status)),
		attribute.String("case_no", res.Case.ID),
		attribute.Int("candidates", len(res.Candidates)),
		attribute.Int("attempts", res.Attempts),
	)
	p.logger.Info("grievance accepted",
		zap.String("status", string(res.Status)),
		zap.String("case_no", res.Case.ID),
		zap.Int("thread_length", len(res.Case.Thread)),
	)

	return &model.Outcome{
		Status:       res.Status,
		CaseID:       res.Case.ID,
		ThreadLength: len(res.Case.Thread),
		Similarity:   res.Similarity,
		Grievance:    &g,
	}, nil
}

// vocabulary widens the grievance keywords with every catalog keyword
func vocabulary(categories []model.Category) []string {
	words := append([]string(nil), model.GrievanceKeywords...)
	for _, c := range categories {
		words = append(words, c.Keywords...)
	}
	return words
}

func rejected(v validate.Verdict) *model.Outcome {
	return &model.Outcome{
		Status: model.OutcomeRejected,
		Reason: v.Reason,
	}
}

// Score reclassifies and reprioritizes the whole collection. Classification
// runs on a snapshot outside the lock; cases that appear meanwhile are
// classified under the lock before the result is saved.
func (p *Pipeline) Score(ctx context.Context) (*score.Report, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.Score")
	defer span.End()

	attempts := p.config.Match.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		report, err := p.scoreOnce(ctx)
		if err == nil {
			span.SetAttributes(
				attribute.Int("cases", len(report.Cases)),
				attribute.Int("degraded", report.Degraded),
			)
			return report, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		p.logger.Warn("case collection changed during scoring, retrying", zap.Int("attempt", attempt))
	}

	err := fmt.Errorf("score cases after %d attempts: %w", attempts, model.ErrPersistenceConflict)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return nil, err
}

func (p *Pipeline) scoreOnce(ctx context.Context) (*score.Report, error) {
	snapshot, _, err := p.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cases: %w", err)
	}
	classes := p.scorer.ClassifyAll(ctx, snapshot)

	p.mu.Lock()
	defer p.mu.Unlock()

	cases, version, err := p.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cases: %w", err)
	}

	var fresh []model.Case
	for _, c := range cases {
		if _, ok := classes[c.ID]; !ok {
			fresh = append(fresh, c)
		}
	}
	for id, cl := range p.scorer.ClassifyAll(ctx, fresh) {
		classes[id] = cl
	}

	report := p.scorer.Apply(cases, classes)
	if _, err := p.store.Save(ctx, cases, version); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("save cases: %w", err)
	}

	p.logger.Info("cases scored",
		zap.Int("cases", len(report.Cases)),
		zap.Int("degraded", report.Degraded),
		zap.Int("max_thread", report.MaxThread),
	)
	return &report, nil
}

// Cases returns the current collection
func (p *Pipeline) Cases(ctx context.Context) ([]model.Case, error) {
	cases, _, err := p.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cases: %w", err)
	}
	return cases, nil
}

// Case returns one case by id
func (p *Pipeline) Case(ctx context.Context, id string) (*model.Case, error) {
	cases, err := p.Cases(ctx)
	if err != nil {
		return nil, err
	}
	for i := range cases {
		if cases[i].ID == id {
			return &cases[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrCaseNotFound, id)
}

// Catalog returns the category catalog used for scoring
func (p *Pipeline) Catalog() []model.Category {
	return p.scorer.Catalog()
}
