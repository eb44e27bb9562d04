package intake

import (
	"strings"
	"time"

	"github.com/ppiankov/grievance/internal/model"
)

var slotDateLayouts = []string{IncidentDateLayout, "02-01-2006", "02/01/2006", "02/01/06"}

// FromSlots adopts a slot filler's structured output. The phone is re-validated
// with the same rule as free text and completeness is recomputed locally; the
// slot filler's own questions lead when the result is incomplete.
func (n *Normalizer) FromSlots(slots model.Slots) *Result {
	now := n.now()

	name := n.Sanitize(strings.TrimSpace(slots.CallerName))
	location := n.Sanitize(strings.TrimSpace(slots.Location))
	description := capRunes(strings.TrimSpace(n.Sanitize(slots.CaseDetail)), maxDescriptionRunes)
	name, location = n.repair(name, location)

	res := &Result{
		Grievance: model.Grievance{
			CallerName:  name,
			CallerPhone: ExtractPhone(slots.PhoneNumber),
			Description: description,
			Location:    location,
			DateTime:    now,
		},
	}
	if start, ok := n.parseSlotDate(slots.IncidentDatetime, now); ok {
		res.Grievance.DateTime = start
		res.IncidentStart = start.Format(IncidentDateLayout)
	}

	res.assess(slots.Questions)
	return res
}

func (n *Normalizer) parseSlotDate(value string, now time.Time) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	if t, err := model.ParseTimestamp(value); err == nil && !t.IsZero() {
		return t, true
	}
	for _, layout := range slotDateLayouts {
		if t, err := time.ParseInLocation(layout, value, now.Location()); err == nil {
			return t, true
		}
	}
	return n.incidentFromAnswer(value, now)
}
