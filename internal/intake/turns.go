package intake

import (
	"regexp"
	"strings"
)

var (
	agentLineRe = regexp.MustCompile(`(?i)^\s*(?:agent(?:\s+question)?|assistant|bot)\s*:\s*(.*)$`)
	userLineRe  = regexp.MustCompile(`(?i)^\s*(?:user(?:\s+answer)?|caller|initial\s+statement)\s*:\s*(.*)$`)
)

// splitTurns separates a conversation transcript into the caller's words and
// the caller's replies to each clarifying question. Agent lines are dropped
// from the body so that question wording never becomes a description.
func splitTurns(transcript string) (string, map[Field]string) {
	answers := make(map[Field]string)
	var body []string
	var pending Field

	for _, line := range strings.Split(transcript, "\n") {
		if m := agentLineRe.FindStringSubmatch(line); m != nil {
			pending = fieldForQuestion(m[1])
			continue
		}

		content := line
		if m := userLineRe.FindStringSubmatch(line); m != nil {
			content = m[1]
		}
		content = strings.TrimSpace(content)
		if content == "" {
			continue
		}

		body = append(body, content)
		if pending != "" {
			answers[pending] = content
			pending = ""
		}
	}

	return strings.Join(body, "\n"), answers
}

// fieldForQuestion maps a clarifying question back to the slot it asks for
func fieldForQuestion(q string) Field {
	q = strings.TrimSpace(q)
	for f, text := range questions {
		if strings.EqualFold(q, text) {
			return f
		}
	}

	lower := strings.ToLower(q)
	switch {
	case strings.Contains(lower, "phone") || strings.Contains(lower, "mobile") || strings.Contains(lower, "number"):
		return FieldPhone
	case strings.Contains(lower, "name"):
		return FieldName
	case strings.Contains(lower, "how long") || strings.Contains(lower, "when") || strings.Contains(lower, "since"):
		return FieldIncidentStart
	case strings.Contains(lower, "where") || strings.Contains(lower, "located") || strings.Contains(lower, "address") || strings.Contains(lower, "location"):
		return FieldLocation
	case strings.Contains(lower, "describe") || strings.Contains(lower, "grievance") || strings.Contains(lower, "problem"):
		return FieldDescription
	}
	return ""
}
