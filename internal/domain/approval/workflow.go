package approval

import (
	"strings"
	"time"

	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/validator"
)

const MaxReasonLength = 500

// Workflow carries the approval state of one record. Records embed it and the
// methods below are the only place the status changes.
type Workflow struct {
	Status          Status
	RejectionReason *string
	RejectedBy      *string
	RejectedAt      *time.Time

	SectionApprovedBy    *string
	SectionApprovedAt    *time.Time
	DepartmentApprovedBy *string
	DepartmentApprovedAt *time.Time
	ManagerApprovedBy    *string
	ManagerApprovedAt    *time.Time

	SubmittedAt    *time.Time
	TransitionedAt *time.Time
}

// NewDraft returns a workflow that has not been submitted yet.
func NewDraft() Workflow {
	return Workflow{Status: StatusDraft}
}

// Submit moves a draft into the approval chain.
func (w *Workflow) Submit(now time.Time) error {
	to, err := Next(w.Status, ActionSubmit)
	if err != nil {
		return err
	}
	w.Status = to
	w.SubmittedAt = &now
	w.TransitionedAt = &now
	return nil
}

// Approve records approverID's approval at stage and advances the chain.
func (w *Workflow) Approve(stage Stage, approverID string, now time.Time) error {
	to, err := Next(w.Status, ApproveAction(stage))
	if err != nil {
		return err
	}

	switch stage {
	case StageSection:
		w.SectionApprovedBy, w.SectionApprovedAt = &approverID, &now
	case StageDepartment:
		w.DepartmentApprovedBy, w.DepartmentApprovedAt = &approverID, &now
	case StageManager:
		w.ManagerApprovedBy, w.ManagerApprovedAt = &approverID, &now
	}
	w.Status = to
	w.TransitionedAt = &now
	return nil
}

// Reject ends the chain at stage. The reason must be 1-500 characters.
func (w *Workflow) Reject(stage Stage, reason, rejectorID string, now time.Time) error {
	reason = strings.TrimSpace(reason)
	if err := ValidateReason(reason); err != nil {
		return err
	}

	to, err := Next(w.Status, RejectAction(stage))
	if err != nil {
		return err
	}
	w.Status = to
	w.RejectionReason = &reason
	w.RejectedBy = &rejectorID
	w.RejectedAt = &now
	w.TransitionedAt = &now
	return nil
}

// Resubmit restarts a rejected record at the section stage, clearing the
// rejection and every earlier approval.
func (w *Workflow) Resubmit(now time.Time) error {
	to, err := Next(w.Status, ActionResubmit)
	if err != nil {
		return err
	}
	w.Status = to
	w.RejectionReason = nil
	w.RejectedBy = nil
	w.RejectedAt = nil
	w.SectionApprovedBy, w.SectionApprovedAt = nil, nil
	w.DepartmentApprovedBy, w.DepartmentApprovedAt = nil, nil
	w.ManagerApprovedBy, w.ManagerApprovedAt = nil, nil
	w.SubmittedAt = &now
	w.TransitionedAt = &now
	return nil
}

// ExpectPending fails with a PreconditionError unless the record waits on stage.
func (w *Workflow) ExpectPending(stage Stage) error {
	if w.Status.Normalize() != stage.Pending() {
		return &PreconditionError{Expected: string(stage.Pending()), Actual: string(w.Status)}
	}
	return nil
}

// ValidateReason checks a rejection reason after trimming.
func ValidateReason(reason string) error {
	n := validator.RuneLen(strings.TrimSpace(reason))
	switch {
	case n == 0:
		return validator.ValidationErrors{{Field: "reason", Message: "reason is required"}}
	case n > MaxReasonLength:
		return validator.ValidationErrors{{Field: "reason", Message: "reason must not exceed 500 characters"}}
	}
	return nil
}
