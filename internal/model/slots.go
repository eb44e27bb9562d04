package model

// Slots is the structured output of a conversational slot filler.
// Absent values are empty strings; Questions lists what to ask next.
type Slots struct {
	CallerName       string   `json:"caller_name"`
	PhoneNumber      string   `json:"phone_number"`
	Location         string   `json:"location"`
	CaseDetail       string   `json:"case_detail"`
	IncidentDatetime string   `json:"incident_datetime"`
	Questions        []string `json:"questions"`
}
