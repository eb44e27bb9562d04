package intake

import (
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/ppiankov/grievance/internal/geo"
	"github.com/ppiankov/grievance/internal/model"
)

// Field names a slot the normalizer tries to fill
type Field string

const (
	FieldName          Field = "name"
	FieldPhone         Field = "phone"
	FieldDescription   Field = "description"
	FieldLocation      Field = "location"
	FieldIncidentStart Field = "incident_start"
)

// RequiredFields lists the slots a complete grievance needs, in the order questions are asked
var RequiredFields = []Field{FieldName, FieldPhone, FieldDescription, FieldLocation, FieldIncidentStart}

var questions = map[Field]string{
	FieldName:          "May we have your name for updates?",
	FieldPhone:         "May we have your phone number for updates?",
	FieldDescription:   "Please describe your grievance in brief.",
	FieldLocation:      "Where is the issue located? (Address/PIN)",
	FieldIncidentStart: "How long has this been ongoing?",
}

// Question returns the fixed clarifying question for a missing field
func Question(f Field) string {
	return questions[f]
}

// IncidentDateLayout is the fixed-width DD-MM-YY rendering of an incident start
const IncidentDateLayout = "02-01-06"

// Result is a partially-filled grievance plus its completeness verdict
type Result struct {
	Grievance     model.Grievance `json:"grievance"`
	IncidentStart string          `json:"incident_start,omitempty"`
	Missing       []Field         `json:"missing,omitempty"`
	Questions     []string        `json:"questions,omitempty"`
	Complete      bool            `json:"complete"`
}

// Normalizer extracts structured grievance fields from free text.
// Extraction never fails: a field that does not parse is left empty
// and reported through the completeness verdict.
type Normalizer struct {
	gazetteer *geo.Gazetteer
	keywords  []string
	sanitizer *bluemonday.Policy
	now       func() time.Time
}

// Option configures a Normalizer
type Option func(*Normalizer)

// WithClock overrides the time source used for relative incident dates
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) {
		if now != nil {
			n.now = now
		}
	}
}

// WithKeywords replaces the grievance vocabulary used to pick the description
func WithKeywords(keywords []string) Option {
	return func(n *Normalizer) {
		if len(keywords) > 0 {
			n.keywords = lowerAll(keywords)
		}
	}
}

// NewNormalizer creates a normalizer bound to a gazetteer (nil means the default service area)
func NewNormalizer(gazetteer *geo.Gazetteer, opts ...Option) *Normalizer {
	if gazetteer == nil {
		gazetteer = geo.NewGazetteer(nil)
	}

	n := &Normalizer{
		gazetteer: gazetteer,
		keywords:  lowerAll(model.GrievanceKeywords),
		sanitizer: bluemonday.StrictPolicy(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize extracts name, phone, description, location and incident start from a transcript
func (n *Normalizer) Normalize(transcript string) *Result {
	now := n.now()
	body, answers := splitTurns(n.Sanitize(transcript))

	name := n.extractName(body)
	phone := ExtractPhone(body)
	location := n.extractLocation(body)
	description := n.extractDescription(body)
	start, ok := n.extractIncidentStart(body, now)

	// Bare answers to our own questions fill what the free text left open
	if name == "" {
		name = n.nameFromAnswer(answers[FieldName])
	}
	if phone == "" {
		phone = ExtractPhone(answers[FieldPhone])
	}
	if location == "" {
		location = n.locationFromAnswer(answers[FieldLocation])
	}
	if description == "" {
		description = n.extractDescription(answers[FieldDescription])
	}
	if !ok {
		start, ok = n.incidentFromAnswer(answers[FieldIncidentStart], now)
	}

	name, location = n.repair(name, location)

	res := &Result{
		Grievance: model.Grievance{
			CallerName:  name,
			CallerPhone: phone,
			Description: description,
			Location:    location,
			DateTime:    now,
		},
	}
	if ok {
		res.Grievance.DateTime = start
		res.IncidentStart = start.Format(IncidentDateLayout)
	}
	res.assess(nil)
	return res
}

// Sanitize strips markup from web-form input and decodes entities
func (n *Normalizer) Sanitize(text string) string {
	return html.UnescapeString(n.sanitizer.Sanitize(text))
}

// CallerText returns the caller's words from a transcript with markup and
// agent question lines removed
func (n *Normalizer) CallerText(transcript string) string {
	body, _ := splitTurns(n.Sanitize(transcript))
	return body
}

// repair moves values that landed in the wrong slot
func (n *Normalizer) repair(name, location string) (string, string) {
	if name != "" && n.gazetteer.IsPlace(name) {
		if location == "" {
			location = titleCase(name)
		}
		name = ""
	}

	if location != "" && name == "" && !n.mentionsPlace(location) && !hasPINMarker(location) {
		name = location
		location = ""
	}

	return name, location
}

func (n *Normalizer) mentionsPlace(s string) bool {
	_, ok := n.gazetteer.FindPlace(s)
	return ok
}

// assess fills Missing, Questions and Complete; leading questions come first
func (r *Result) assess(leading []string) {
	g := r.Grievance
	present := map[Field]bool{
		FieldName:          g.CallerName != "",
		FieldPhone:         g.CallerPhone != "",
		FieldDescription:   g.Description != "",
		FieldLocation:      g.Location != "",
		FieldIncidentStart: r.IncidentStart != "",
	}

	r.Missing = nil
	r.Questions = nil
	for _, f := range RequiredFields {
		if !present[f] {
			r.Missing = append(r.Missing, f)
		}
	}
	r.Complete = len(r.Missing) == 0
	if r.Complete {
		return
	}

	seen := make(map[string]bool)
	add := func(q string) {
		q = strings.TrimSpace(q)
		if q == "" || seen[q] {
			return
		}
		seen[q] = true
		r.Questions = append(r.Questions, q)
	}
	for _, q := range leading {
		add(q)
	}
	for _, f := range r.Missing {
		add(questions[f])
	}
}

func lowerAll(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}
