package approval

import "fmt"

type Status string

const (
	StatusDraft                  Status = "draft"
	StatusSubmitted              Status = "submitted" // legacy rows, equivalent to pending_section_approval
	StatusPendingSectionApproval Status = "pending_section_approval"
	StatusPendingDeptApproval    Status = "pending_dept_approval"
	StatusPendingManagerApproval Status = "pending_manager_approval"
	StatusApproved               Status = "approved"
	StatusRejectedBySection      Status = "rejected_by_section"
	StatusRejectedByDept         Status = "rejected_by_dept"
	StatusRejectedByManager      Status = "rejected_by_manager"
)

// Statuses is the closed set of workflow states.
var Statuses = []Status{
	StatusDraft,
	StatusSubmitted,
	StatusPendingSectionApproval,
	StatusPendingDeptApproval,
	StatusPendingManagerApproval,
	StatusApproved,
	StatusRejectedBySection,
	StatusRejectedByDept,
	StatusRejectedByManager,
}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

// Normalize folds the legacy submitted state into pending_section_approval.
func (s Status) Normalize() Status {
	if s == StatusSubmitted {
		return StatusPendingSectionApproval
	}
	return s
}

func (s Status) IsRejected() bool {
	return s == StatusRejectedBySection || s == StatusRejectedByDept || s == StatusRejectedByManager
}

func (s Status) IsPending() bool {
	_, ok := s.PendingStage()
	return ok
}

// PendingStage returns the stage whose approver the record is waiting on.
func (s Status) PendingStage() (Stage, bool) {
	switch s.Normalize() {
	case StatusPendingSectionApproval:
		return StageSection, true
	case StatusPendingDeptApproval:
		return StageDepartment, true
	case StatusPendingManagerApproval:
		return StageManager, true
	}
	return "", false
}

// RejectedStage returns the stage that rejected the record.
func (s Status) RejectedStage() (Stage, bool) {
	switch s {
	case StatusRejectedBySection:
		return StageSection, true
	case StatusRejectedByDept:
		return StageDepartment, true
	case StatusRejectedByManager:
		return StageManager, true
	}
	return "", false
}

type Stage string

const (
	StageSection    Stage = "section"
	StageDepartment Stage = "department"
	StageManager    Stage = "manager"
)

// Stages in chain order.
var Stages = []Stage{StageSection, StageDepartment, StageManager}

func ParseStage(s string) (Stage, error) {
	switch Stage(s) {
	case StageSection, StageDepartment, StageManager:
		return Stage(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStage, s)
}

// Pending is the status a record holds while waiting on this stage.
func (st Stage) Pending() Status {
	switch st {
	case StageSection:
		return StatusPendingSectionApproval
	case StageDepartment:
		return StatusPendingDeptApproval
	case StageManager:
		return StatusPendingManagerApproval
	}
	return ""
}

// Rejected is the terminal status written when this stage rejects.
func (st Stage) Rejected() Status {
	switch st {
	case StageSection:
		return StatusRejectedBySection
	case StageDepartment:
		return StatusRejectedByDept
	case StageManager:
		return StatusRejectedByManager
	}
	return ""
}

type Action string

const (
	ActionSubmit            Action = "submit"
	ActionApproveSection    Action = "approve_section"
	ActionApproveDepartment Action = "approve_department"
	ActionApproveManager    Action = "approve_manager"
	ActionRejectSection     Action = "reject_section"
	ActionRejectDepartment  Action = "reject_department"
	ActionRejectManager     Action = "reject_manager"
	ActionResubmit          Action = "resubmit"
)

func ApproveAction(st Stage) Action {
	return Action("approve_" + string(st))
}

func RejectAction(st Stage) Action {
	return Action("reject_" + string(st))
}

type transition struct {
	from   Status
	action Action
}

var transitions = map[transition]Status{
	{StatusDraft, ActionSubmit}: StatusPendingSectionApproval,

	{StatusPendingSectionApproval, ActionApproveSection}: StatusPendingDeptApproval,
	{StatusPendingSectionApproval, ActionRejectSection}:  StatusRejectedBySection,
	{StatusSubmitted, ActionApproveSection}:              StatusPendingDeptApproval,
	{StatusSubmitted, ActionRejectSection}:               StatusRejectedBySection,

	{StatusPendingDeptApproval, ActionApproveDepartment}: StatusPendingManagerApproval,
	{StatusPendingDeptApproval, ActionRejectDepartment}:  StatusRejectedByDept,

	{StatusPendingManagerApproval, ActionApproveManager}: StatusApproved,
	{StatusPendingManagerApproval, ActionRejectManager}:  StatusRejectedByManager,

	{StatusRejectedBySection, ActionResubmit}: StatusPendingSectionApproval,
	{StatusRejectedByDept, ActionResubmit}:    StatusPendingSectionApproval,
	{StatusRejectedByManager, ActionResubmit}: StatusPendingSectionApproval,
}

// Next looks up the status reached by applying action to from.
func Next(from Status, action Action) (Status, error) {
	to, ok := transitions[transition{from, action}]
	if !ok {
		return from, &InvalidTransitionError{Current: from, Action: action}
	}
	return to, nil
}
