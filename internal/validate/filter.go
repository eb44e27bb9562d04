package validate

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ppiankov/grievance/internal/geo"
	"github.com/ppiankov/grievance/internal/model"
	"go.uber.org/zap"
)

// Rule names reported in a Verdict
const (
	RuleSpamIndicator = "spam_indicator"
	RuleRepetition    = "repetition"
	RuleMeaningful    = "meaningful_content"
	RuleBulk          = "bulk_submission"
	RuleJurisdiction  = "jurisdiction"
)

// Verdict is the filter's accept/reject decision
type Verdict struct {
	Accepted bool               `json:"accepted"`
	Reason   model.RejectReason `json:"reason,omitempty"`
	Rule     string             `json:"rule,omitempty"`
	Detail   string             `json:"detail,omitempty"`
}

// Err returns nil for an accepted verdict and a *model.RejectionError otherwise
func (v Verdict) Err() error {
	if v.Accepted {
		return nil
	}
	return &model.RejectionError{Reason: v.Reason}
}

var accepted = Verdict{Accepted: true}

func reject(reason model.RejectReason, rule, detail string) Verdict {
	return Verdict{Reason: reason, Rule: rule, Detail: detail}
}

// Filter applies the spam and jurisdiction rules; the first failing rule is terminal
type Filter struct {
	config    model.FilterConfig
	gazetteer *geo.Gazetteer
	history   History
	spam      []string // space-padded token sequences
	keywords  []string
	markers   []string
	logger    *zap.Logger
}

// NewFilter creates a filter. A nil history gets a go-cache backed one sized from config.
func NewFilter(config *model.FilterConfig, gazetteer *geo.Gazetteer, history History, logger *zap.Logger) *Filter {
	if config == nil {
		config = &model.DefaultConfig().Filter
	}
	if gazetteer == nil {
		gazetteer = geo.NewGazetteer(nil)
	}
	if history == nil {
		history = NewCacheHistory(config.HistoryTTL, config.HistoryMaxEntries)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	f := &Filter{
		config:    *config,
		gazetteer: gazetteer,
		history:   history,
		keywords:  lowerAll(model.GrievanceKeywords),
		markers:   lowerAll(model.MeaningfulMarkers),
		logger:    logger,
	}
	for _, indicator := range model.SpamIndicators {
		if seq := padded(tokenize(indicator)); seq != "  " {
			f.spam = append(f.spam, seq)
		}
	}
	return f
}

// Screen runs the stateless content rules only. It never touches the submission history.
func (f *Filter) Screen(text string) Verdict {
	if v := f.checkSpamIndicators(text); !v.Accepted {
		return v
	}
	if v := f.checkRepetition(text); !v.Accepted {
		return v
	}
	return f.checkMeaningful(text)
}

// Evaluate runs every rule against the submission text and its structured grievance
func (f *Filter) Evaluate(text string, g model.Grievance) Verdict {
	v := f.Screen(text)
	if v.Accepted {
		v = f.checkBulk(text, g)
	}
	if v.Accepted {
		v = f.checkJurisdiction(g.Location)
	}

	if !v.Accepted {
		f.logger.Info("submission rejected",
			zap.String("reason", string(v.Reason)),
			zap.String("rule", v.Rule),
			zap.String("detail", v.Detail),
		)
	}
	return v
}

// CheckGrievance evaluates a grievance synthesized without a transcript
func (f *Filter) CheckGrievance(g model.Grievance) Verdict {
	return f.Evaluate(g.CombinedText(), g)
}

func (f *Filter) checkSpamIndicators(text string) Verdict {
	words := len(strings.Fields(text))
	if words >= f.config.ShortMessageWords {
		return accepted
	}

	seq := padded(tokenize(text))
	for _, indicator := range f.spam {
		if strings.Contains(seq, indicator) {
			return reject(model.ReasonNonGrievance, RuleSpamIndicator,
				fmt.Sprintf("indicator %q in %d-word message", strings.TrimSpace(indicator), words))
		}
	}
	return accepted
}

// checkRepetition walks the whitespace token stream; only tokens longer than
// two runes count toward adjacent repeats and token dominance
func (f *Filter) checkRepetition(text string) Verdict {
	words := strings.Fields(strings.ToLower(text))
	if len(words) <= 3 {
		return accepted
	}

	pairs := 0
	for i := 0; i+1 < len(words); i++ {
		if words[i] == words[i+1] && utf8.RuneCountInString(words[i]) > 2 {
			pairs++
		}
	}
	if pairs >= f.config.RepeatedPairs {
		return reject(model.ReasonRepeated, RuleRepetition, fmt.Sprintf("%d adjacent repeats", pairs))
	}

	counts := make(map[string]int)
	qualifying := 0
	for _, w := range words {
		if utf8.RuneCountInString(w) > 2 {
			counts[w]++
			qualifying++
		}
	}
	for tok, c := range counts {
		if float64(c)/float64(qualifying) > f.config.RepeatRatio {
			return reject(model.ReasonRepeated, RuleRepetition,
				fmt.Sprintf("%q is %d of %d tokens", tok, c, qualifying))
		}
	}
	return accepted
}

func (f *Filter) checkMeaningful(text string) Verdict {
	if utf8.RuneCountInString(text) <= f.config.MinMeaningfulLength {
		return accepted
	}

	lower := strings.ToLower(text)
	if containsAny(lower, f.keywords) || containsAny(lower, f.markers) {
		return accepted
	}
	return reject(model.ReasonNonGrievance, RuleMeaningful, "no grievance vocabulary")
}

// checkBulk appends the submission prefix to the phone's history and rejects
// when the latest window is mostly near-identical. Anonymous submissions are not tracked.
func (f *Filter) checkBulk(text string, g model.Grievance) Verdict {
	phone := strings.TrimSpace(g.CallerPhone)
	if phone == "" {
		return accepted
	}

	source := g.Description
	if strings.TrimSpace(source) == "" {
		source = text
	}
	window := f.history.Append(phone, prefix(source, f.config.BulkPrefixChars))
	if len(window) < f.config.BulkWindow {
		return accepted
	}

	recent := window[len(window)-f.config.BulkWindow:]
	similar := 0
	for i := 0; i < len(recent); i++ {
		for j := i + 1; j < len(recent); j++ {
			if sharedTokens(recent[i], recent[j]) > f.config.BulkSharedTokens {
				similar++
			}
		}
	}
	if similar >= f.config.BulkSimilarPairs {
		return reject(model.ReasonBulkSubmission, RuleBulk,
			fmt.Sprintf("%d similar pairs in last %d submissions", similar, len(recent)))
	}
	return accepted
}

// checkJurisdiction skips empty locations and lets short unresolved ones through
func (f *Filter) checkJurisdiction(location string) Verdict {
	location = strings.TrimSpace(location)
	if location == "" {
		return accepted
	}

	res := f.gazetteer.Resolve(location)
	if res.InArea || utf8.RuneCountInString(location) <= f.config.MinJurisdictionLength {
		return accepted
	}

	detail := fmt.Sprintf("%q not in %s", location, f.gazetteer.Name())
	if res.Via == "pin" {
		detail = fmt.Sprintf("postal code %06d outside %s", res.PIN, f.gazetteer.Name())
	}
	return reject(model.ReasonJurisdiction, RuleJurisdiction, detail)
}

// tokenize lower-cases text and splits it into letter/digit runs (any script)
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r))
	})
}

func padded(tokens []string) string {
	return " " + strings.Join(tokens, " ") + " "
}

func sharedTokens(a, b string) int {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(a)) {
		set[tok] = true
	}

	shared := 0
	seen := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(b)) {
		if set[tok] && !seen[tok] {
			seen[tok] = true
			shared++
		}
	}
	return shared
}

func prefix(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func lowerAll(words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = strings.ToLower(w)
	}
	return out
}
