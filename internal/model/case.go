package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Case is the durable aggregate for one tracked incident.
// Detail, ProblemStart and Location are set once at creation; only Thread,
// Category, Score and Priority change afterwards.
type Case struct {
	ID           string      `json:"case_no"`
	Category     string      `json:"case_category"`
	Detail       string      `json:"case_detail"`
	ProblemStart time.Time   `json:"problem_start"`
	Location     string      `json:"location"`
	Priority     Priority    `json:"priority"`
	Score        float64     `json:"score"`
	Status       Status      `json:"status"`
	Thread       []Grievance `json:"thread"`
}

// Priority is the tier derived from a case score
type Priority string

const (
	PriorityUnset  Priority = ""
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Tier boundaries are half-open: [0, 2/3) low, [2/3, 4/3) medium, [4/3, inf) high.
const (
	MediumThreshold = 2.0 / 3.0
	HighThreshold   = 4.0 / 3.0
)

// PriorityForScore maps a score onto its tier
func PriorityForScore(score float64) Priority {
	switch {
	case score >= HighThreshold:
		return PriorityHigh
	case score >= MediumThreshold:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

func (p Priority) valid() bool {
	switch p {
	case PriorityUnset, PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Status is the lifecycle state of a case
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// CategoryUnknown is assigned when no catalog category scores above zero
const CategoryUnknown = "unknown"

// NormalizeLocation is the canonical form used for case locations and gating
func NormalizeLocation(location string) string {
	return strings.ToLower(strings.TrimSpace(location))
}

// Clone returns a copy whose thread can be appended to without aliasing c
func (c Case) Clone() Case {
	out := c
	out.Thread = append([]Grievance(nil), c.Thread...)
	return out
}

// Validate checks a single record's invariants
func (c *Case) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("%w: case_no is empty", ErrInvalidRecord)
	}
	if len(c.Thread) == 0 {
		return fmt.Errorf("%w: case %s has an empty thread", ErrInvalidRecord, c.ID)
	}
	if c.Status == "" {
		c.Status = StatusOpen
	}
	if c.Status != StatusOpen && c.Status != StatusClosed {
		return fmt.Errorf("%w: case %s has status %q", ErrInvalidRecord, c.ID, c.Status)
	}
	if !c.Priority.valid() {
		return fmt.Errorf("%w: case %s has priority %q", ErrInvalidRecord, c.ID, c.Priority)
	}
	if c.Score < 0 {
		return fmt.Errorf("%w: case %s has negative score %f", ErrInvalidRecord, c.ID, c.Score)
	}
	return nil
}

// ValidateCases validates every record and the collection-wide id uniqueness
func ValidateCases(cases []Case) error {
	seen := make(map[string]bool, len(cases))
	for i := range cases {
		if err := cases[i].Validate(); err != nil {
			return err
		}
		if seen[cases[i].ID] {
			return fmt.Errorf("%w: duplicate case_no %s", ErrInvalidRecord, cases[i].ID)
		}
		seen[cases[i].ID] = true
	}
	return nil
}

type caseRecord struct {
	ID           string      `json:"case_no"`
	Category     string      `json:"case_category"`
	Detail       string      `json:"case_detail"`
	ProblemStart string      `json:"problem_start"`
	Location     string      `json:"location"`
	Priority     Priority    `json:"priority"`
	Score        float64     `json:"score"`
	Status       Status      `json:"status"`
	Thread       []Grievance `json:"thread"`
}

// MarshalJSON writes problem_start as ISO-8601
func (c Case) MarshalJSON() ([]byte, error) {
	thread := c.Thread
	if thread == nil {
		thread = []Grievance{}
	}
	return json.Marshal(caseRecord{
		ID:           c.ID,
		Category:     c.Category,
		Detail:       c.Detail,
		ProblemStart: FormatTimestamp(c.ProblemStart),
		Location:     c.Location,
		Priority:     c.Priority,
		Score:        c.Score,
		Status:       c.Status,
		Thread:       thread,
	})
}

// UnmarshalJSON parses the persisted record
func (c *Case) UnmarshalJSON(data []byte) error {
	var rec caseRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}

	ts, err := ParseTimestamp(rec.ProblemStart)
	if err != nil {
		return fmt.Errorf("%w: case %s problem_start: %v", ErrInvalidRecord, rec.ID, err)
	}

	*c = Case{
		ID:           rec.ID,
		Category:     rec.Category,
		Detail:       rec.Detail,
		ProblemStart: ts,
		Location:     rec.Location,
		Priority:     rec.Priority,
		Score:        rec.Score,
		Status:       rec.Status,
		Thread:       rec.Thread,
	}
	return nil
}
