package slotfill

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ppiankov/grievance/internal/model"
)

// Filler extracts structured grievance slots from a conversation transcript
type Filler interface {
	// Name returns the provider name
	Name() string

	// Fill returns the extracted slots and, when something is missing,
	// the questions to ask next
	Fill(ctx context.Context, transcript string) (*model.Slots, error)
}

const systemPrompt = "You extract structured details from civic grievance call transcripts. You never invent values. Return strict JSON only."

// BuildPrompt constructs the extraction prompt for a transcript
func BuildPrompt(transcript string) string {
	return fmt.Sprintf(`Analyze the following grievance report text, which may be a transcript of a conversation.
Extract the key information. The conversation might include explicit questions and answers.
Return the information as a JSON object with the following keys:
- "caller_name": (string) The name of the person reporting the incident. If not found, use null.
- "phone_number": (string) The contact phone number. If not found, use null.
- "location": (string) The location where the incident occurred. If not found, use null.
- "case_detail": (string) A brief description of the incident or problem. If not found, use null.
- "incident_datetime": (string) When the incident started, if mentioned. If not found, use null.
- "questions": (array of strings) Questions to ask to gather any missing information from the above fields. Empty if everything is present.

Grievance report text:
%q`, transcript)
}

// ParseSlots decodes a model reply, tolerating code fences and surrounding prose
func ParseSlots(raw string) (*model.Slots, error) {
	text := strings.TrimSpace(raw)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object in reply", model.ErrProviderUnavailable)
	}

	var slots model.Slots
	if err := json.Unmarshal([]byte(text[start:end+1]), &slots); err != nil {
		return nil, fmt.Errorf("%w: parse slots: %v", model.ErrProviderUnavailable, err)
	}
	return &slots, nil
}

func unavailable(provider string, err error) error {
	return fmt.Errorf("%s slot filler: %w: %w", provider, model.ErrProviderUnavailable, err)
}
