package model

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRecord marks a persisted record that fails validation on load
	ErrInvalidRecord = errors.New("invalid record")

	// ErrSpamRejected marks a submission dropped by the content rules
	ErrSpamRejected = errors.New("spam rejected")

	// ErrOutOfJurisdiction marks a submission outside the service area
	ErrOutOfJurisdiction = errors.New("out of jurisdiction")

	// ErrProviderUnavailable marks a similarity or slot-filling backend failure
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrPersistenceConflict is returned when the case collection kept changing underneath a write
	ErrPersistenceConflict = errors.New("persistence conflict")
)

// RejectReason is the typed reason attached to a rejected submission
type RejectReason string

const (
	ReasonNonGrievance   RejectReason = "non-grievance content"
	ReasonRepeated       RejectReason = "repeated phrases"
	ReasonBulkSubmission RejectReason = "bulk submission"
	ReasonJurisdiction   RejectReason = "out of jurisdiction"
)

// RejectionError carries a rejection reason across the pipeline boundary
type RejectionError struct {
	Reason RejectReason
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("submission rejected: %s", e.Reason)
}

// Is matches ErrOutOfJurisdiction for jurisdiction rejections and ErrSpamRejected otherwise
func (e *RejectionError) Is(target error) bool {
	if e.Reason == ReasonJurisdiction {
		return target == ErrOutOfJurisdiction
	}
	return target == ErrSpamRejected
}
