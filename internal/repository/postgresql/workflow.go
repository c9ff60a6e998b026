package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/approval"
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

// workflowColumns are shared by every table that embeds approval.Workflow.
const workflowColumns = `status, rejection_reason, rejected_by, rejected_at,
	section_approved_by, section_approved_at, department_approved_by, department_approved_at,
	manager_approved_by, manager_approved_at, submitted_at, transitioned_at`

func workflowDest(w *approval.Workflow) []interface{} {
	return []interface{}{
		&w.Status, &w.RejectionReason, &w.RejectedBy, &w.RejectedAt,
		&w.SectionApprovedBy, &w.SectionApprovedAt, &w.DepartmentApprovedBy, &w.DepartmentApprovedAt,
		&w.ManagerApprovedBy, &w.ManagerApprovedAt, &w.SubmittedAt, &w.TransitionedAt,
	}
}

func workflowArgs(w approval.Workflow) []interface{} {
	return []interface{}{
		w.Status, w.RejectionReason, w.RejectedBy, w.RejectedAt,
		w.SectionApprovedBy, w.SectionApprovedAt, w.DepartmentApprovedBy, w.DepartmentApprovedAt,
		w.ManagerApprovedBy, w.ManagerApprovedAt, w.SubmittedAt, w.TransitionedAt,
	}
}

// pendingStatuses lists the stored values that mean "waiting on an approver",
// including the legacy submitted state.
var pendingStatuses = []string{
	string(approval.StatusSubmitted),
	string(approval.StatusPendingSectionApproval),
	string(approval.StatusPendingDeptApproval),
	string(approval.StatusPendingManagerApproval),
}

// statusFilter expands a requested status to the stored values it covers.
func statusFilter(status string) []string {
	if approval.Status(status).Normalize() == approval.StatusPendingSectionApproval {
		return []string{string(approval.StatusSubmitted), string(approval.StatusPendingSectionApproval)}
	}
	return []string{status}
}

// preconditionFailed explains why a conditional update touched no rows: either the
// row is gone or its status moved on.
func preconditionFailed(ctx context.Context, q database.Querier, table, id string, expected approval.Status, notFound error) error {
	var actual string
	err := q.QueryRow(ctx, fmt.Sprintf(`SELECT status FROM %s WHERE id = $1`, table), id).Scan(&actual)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notFound
		}
		return err
	}
	return &approval.PreconditionError{Expected: string(expected), Actual: actual}
}
