package score

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/grievance/internal/model"
	"github.com/ppiankov/grievance/internal/similarity"
	"github.com/ppiankov/grievance/internal/worker"
	"go.uber.org/zap"
)

// Classification is the provider-bound half of scoring a case
type Classification struct {
	CaseID        string             `json:"case_no"`
	Category      string             `json:"category"`
	Weight        float64            `json:"weight"`
	CategoryScore float64            `json:"category_score"`
	Scores        map[string]float64 `json:"scores,omitempty"`
	Usable        bool               `json:"usable"`
	Reason        string             `json:"reason,omitempty"`
}

// CaseScore is the full breakdown for one scored case
type CaseScore struct {
	CaseID         string         `json:"case_no"`
	Category       string         `json:"category"`
	CategoryScore  float64        `json:"category_score"`
	WeightFraction float64        `json:"weight_fraction"`
	ThreadFactor   float64        `json:"thread_factor"`
	Score          float64        `json:"score"`
	Priority       model.Priority `json:"priority"`
	Signals        []Signal       `json:"signals"`
}

// Report summarizes one batch run
type Report struct {
	Cases     []CaseScore `json:"cases"`
	MaxThread int         `json:"max_thread"`
	Degraded  int         `json:"degraded"`
}

// Scorer assigns category, score and priority to cases
type Scorer struct {
	catalog     []model.Category
	totalWeight float64
	provider    similarity.Provider
	alpha       float64
	timeout     time.Duration
	workers     int
	logger      *zap.Logger
}

// Option configures a Scorer
type Option func(*Scorer)

// WithWorkers sets how many cases are classified concurrently
func WithWorkers(n int) Option {
	return func(s *Scorer) { s.workers = n }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Scorer) { s.logger = l }
}

// NewScorer creates a scorer over catalog. The provider scores detail/keyword pairs.
func NewScorer(catalog []model.Category, provider similarity.Provider, config *model.ScoreConfig, opts ...Option) *Scorer {
	if config == nil {
		config = &model.DefaultConfig().Score
	}
	if provider == nil {
		provider = similarity.NewLexical()
	}

	total := model.TotalWeight(catalog)
	if total <= 0 {
		total = 1
	}

	s := &Scorer{
		catalog:     catalog,
		totalWeight: total,
		provider:    provider,
		alpha:       config.Alpha,
		timeout:     config.ProviderTimeout,
		workers:     4,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Classify picks the catalog category whose keywords best match the case detail.
// Catalog order breaks ties; if nothing scores above zero the case is "unknown"
// with weight 1. Provider failures leave the classification unusable.
func (s *Scorer) Classify(ctx context.Context, c model.Case) Classification {
	cl := Classification{
		CaseID:   c.ID,
		Category: model.CategoryUnknown,
		Weight:   1,
	}

	detail := strings.TrimSpace(c.Detail)
	if detail == "" {
		cl.Reason = "empty detail"
		return cl
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	cl.Scores = make(map[string]float64, len(s.catalog))
	for _, cat := range s.catalog {
		score, err := s.categoryScore(ctx, detail, cat)
		if err != nil {
			s.logger.Warn("category classification unavailable",
				zap.String("case_no", c.ID),
				zap.String("category", cat.Name),
				zap.Error(err),
			)
			return Classification{
				CaseID:   c.ID,
				Category: model.CategoryUnknown,
				Weight:   1,
				Reason:   err.Error(),
			}
		}
		cl.Scores[cat.Name] = score
		if score > cl.CategoryScore {
			cl.CategoryScore = score
			cl.Category = cat.Name
			cl.Weight = cat.SemanticWeight
		}
	}

	cl.Usable = true
	return cl
}

// categoryScore is the mean similarity between detail and the category keywords
func (s *Scorer) categoryScore(ctx context.Context, detail string, cat model.Category) (float64, error) {
	if len(cat.Keywords) == 0 {
		return 0, nil
	}

	sum := 0.0
	for _, kw := range cat.Keywords {
		v, err := s.provider.Similarity(ctx, detail, kw)
		if err != nil {
			return 0, fmt.Errorf("similarity to %q: %w", kw, err)
		}
		sum += v
	}
	return sum / float64(len(cat.Keywords)), nil
}

// ClassifyAll classifies every case on the worker pool
func (s *Scorer) ClassifyAll(ctx context.Context, cases []model.Case) map[string]Classification {
	results := worker.Map(ctx, s.workers, cases, func(ctx context.Context, c model.Case) Classification {
		if err := ctx.Err(); err != nil {
			return Classification{CaseID: c.ID, Category: model.CategoryUnknown, Weight: 1, Reason: err.Error()}
		}
		return s.Classify(ctx, c)
	})

	out := make(map[string]Classification, len(results))
	for _, cl := range results {
		out[cl.CaseID] = cl
	}
	return out
}

// Apply writes category, score and priority into cases using precomputed
// classifications. Cases without one are classified as unknown.
func (s *Scorer) Apply(cases []model.Case, classes map[string]Classification) Report {
	report := Report{Cases: make([]CaseScore, 0, len(cases))}
	for _, c := range cases {
		if len(c.Thread) > report.MaxThread {
			report.MaxThread = len(c.Thread)
		}
	}

	for i := range cases {
		cl, ok := classes[cases[i].ID]
		if !ok {
			cl = Classification{CaseID: cases[i].ID, Category: model.CategoryUnknown, Weight: 1, Reason: "not classified"}
		}

		cs := s.compute(cases[i], cl, report.MaxThread)
		if !cl.Usable {
			report.Degraded++
		}

		cases[i].Category = cs.Category
		cases[i].Score = cs.Score
		cases[i].Priority = cs.Priority
		report.Cases = append(report.Cases, cs)
	}
	return report
}

// Score classifies and applies in one step, mutating cases in place
func (s *Scorer) Score(ctx context.Context, cases []model.Case) Report {
	return s.Apply(cases, s.ClassifyAll(ctx, cases))
}

func (s *Scorer) compute(c model.Case, cl Classification, maxThread int) CaseScore {
	if !cl.Usable {
		return CaseScore{
			CaseID:   c.ID,
			Category: model.CategoryUnknown,
			Priority: model.PriorityLow,
			Signals: []Signal{{
				Type:        SignalDegraded,
				Severity:    SeverityWarning,
				Description: "Case could not be classified",
				Data:        map[string]interface{}{"reason": cl.Reason},
			}},
		}
	}

	wf := cl.Weight / s.totalWeight
	tf := 0.0
	if maxThread > 0 {
		tf = float64(len(c.Thread)) / float64(maxThread)
	}
	score := s.alpha*wf + (1-s.alpha)*cl.CategoryScore + tf

	return CaseScore{
		CaseID:         c.ID,
		Category:       cl.Category,
		CategoryScore:  cl.CategoryScore,
		WeightFraction: wf,
		ThreadFactor:   tf,
		Score:          score,
		Priority:       model.PriorityForScore(score),
		Signals: []Signal{
			{
				Type:        SignalCategory,
				Severity:    SeverityInfo,
				Description: fmt.Sprintf("Category %s, keyword similarity %.3f", cl.Category, cl.CategoryScore),
				Data: map[string]interface{}{
					"category": cl.Category,
					"score":    cl.CategoryScore,
					"scores":   cl.Scores,
				},
			},
			{
				Type:        SignalWeightFraction,
				Severity:    SeverityInfo,
				Description: fmt.Sprintf("Weight fraction: %.3f", wf),
				Data: map[string]interface{}{
					"weight":       cl.Weight,
					"total_weight": s.totalWeight,
					"fraction":     wf,
					"formula":      "weight / sum(catalog weights)",
				},
			},
			{
				Type:        SignalThreadFactor,
				Severity:    SeverityInfo,
				Description: fmt.Sprintf("Thread %d of busiest %d", len(c.Thread), maxThread),
				Data: map[string]interface{}{
					"thread":     len(c.Thread),
					"max_thread": maxThread,
					"factor":     tf,
					"formula":    "alpha * weight_fraction + (1 - alpha) * category_score + thread_factor",
					"alpha":      s.alpha,
				},
			},
		},
	}
}

// Catalog returns the catalog the scorer classifies against
func (s *Scorer) Catalog() []model.Category {
	return s.catalog
}
