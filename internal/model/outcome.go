package model

// OutcomeStatus is what happened to one submission
type OutcomeStatus string

const (
	OutcomeMerged     OutcomeStatus = "merged"
	OutcomeCreated    OutcomeStatus = "created"
	OutcomeRejected   OutcomeStatus = "rejected"
	OutcomeIncomplete OutcomeStatus = "incomplete"
)

// Outcome is the pipeline's answer for a single submission
type Outcome struct {
	Status       OutcomeStatus `json:"status"`
	CaseID       string        `json:"case_no,omitempty"`
	ThreadLength int           `json:"thread_length,omitempty"`
	Similarity   float64       `json:"similarity,omitempty"`
	Reason       RejectReason  `json:"reason,omitempty"`
	Questions    []string      `json:"questions,omitempty"`
	Grievance    *Grievance    `json:"grievance,omitempty"`
}
