package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Grievance is a single report as received from a caller.
// It is immutable once created and owned by the case thread that holds it.
type Grievance struct {
	CallerName  string    `json:"caller_name"`
	CallerPhone string    `json:"caller_phone_no"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	DateTime    time.Time `json:"date_time"`
}

// grievanceRecord is the persisted shape with a string timestamp
type grievanceRecord struct {
	CallerName  string `json:"caller_name"`
	CallerPhone string `json:"caller_phone_no"`
	Description string `json:"description"`
	Location    string `json:"location"`
	DateTime    string `json:"date_time"`
}

// MarshalJSON writes date_time as ISO-8601
func (g Grievance) MarshalJSON() ([]byte, error) {
	return json.Marshal(grievanceRecord{
		CallerName:  g.CallerName,
		CallerPhone: g.CallerPhone,
		Description: g.Description,
		Location:    g.Location,
		DateTime:    FormatTimestamp(g.DateTime),
	})
}

// UnmarshalJSON accepts the ISO-8601 variants produced by earlier tooling
func (g *Grievance) UnmarshalJSON(data []byte) error {
	var rec grievanceRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}

	ts, err := ParseTimestamp(rec.DateTime)
	if err != nil {
		return fmt.Errorf("%w: grievance date_time: %v", ErrInvalidRecord, err)
	}

	*g = Grievance{
		CallerName:  rec.CallerName,
		CallerPhone: rec.CallerPhone,
		Description: rec.Description,
		Location:    rec.Location,
		DateTime:    ts,
	}
	return nil
}

// CombinedText joins every free-text field, the way spam rules see a grievance
func (g Grievance) CombinedText() string {
	return strings.Join([]string{g.CallerName, g.CallerPhone, g.Description, g.Location}, " ")
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 timestamp. An empty string yields the zero time.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// FormatTimestamp formats t as RFC 3339, or "" for the zero time
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
