package store

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/ppiankov/grievance/internal/model"
)

// caseRow is the flattened shape shared by the SQL stores; the thread is a JSON array
type caseRow struct {
	Position     int     `db:"position"`
	ID           string  `db:"case_no"`
	Category     string  `db:"case_category"`
	Detail       string  `db:"case_detail"`
	ProblemStart string  `db:"problem_start"`
	Location     string  `db:"location"`
	Priority     string  `db:"priority"`
	Score        float64 `db:"score"`
	Status       string  `db:"status"`
	Thread       string  `db:"thread"`
}

func toRow(position int, c model.Case) (caseRow, error) {
	thread := c.Thread
	if thread == nil {
		thread = []model.Grievance{}
	}
	data, err := json.Marshal(thread)
	if err != nil {
		return caseRow{}, fmt.Errorf("marshal thread of case %s: %w", c.ID, err)
	}

	return caseRow{
		Position:     position,
		ID:           c.ID,
		Category:     c.Category,
		Detail:       c.Detail,
		ProblemStart: model.FormatTimestamp(c.ProblemStart),
		Location:     c.Location,
		Priority:     string(c.Priority),
		Score:        c.Score,
		Status:       string(c.Status),
		Thread:       string(data),
	}, nil
}

func (r caseRow) toCase() (model.Case, error) {
	start, err := model.ParseTimestamp(r.ProblemStart)
	if err != nil {
		return model.Case{}, fmt.Errorf("%w: case %s problem_start: %v", model.ErrInvalidRecord, r.ID, err)
	}
	return r.withThread(start, []byte(r.Thread))
}

func (r caseRow) withThread(start time.Time, thread []byte) (model.Case, error) {
	c := model.Case{
		ID:           r.ID,
		Category:     r.Category,
		Detail:       r.Detail,
		ProblemStart: start,
		Location:     r.Location,
		Priority:     model.Priority(r.Priority),
		Score:        r.Score,
		Status:       model.Status(r.Status),
	}
	if err := json.Unmarshal(thread, &c.Thread); err != nil {
		return model.Case{}, fmt.Errorf("%w: case %s thread: %v", model.ErrInvalidRecord, r.ID, err)
	}
	return c, nil
}

// counterVersion maps the SQL version counter onto Version; 0 means never saved
func counterVersion(n int64) Version {
	if n == 0 {
		return ""
	}
	return Version(strconv.FormatInt(n, 10))
}

func parseCounter(v Version) (int64, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(string(v), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed version %q", ErrConflict, v)
	}
	return n, nil
}
