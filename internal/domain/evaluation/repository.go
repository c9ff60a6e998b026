package evaluation

import (
	"context"
	"time"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/approval"
)

type EvaluationRepository interface {
	Create(ctx context.Context, e Evaluation) (Evaluation, error)
	GetByID(ctx context.Context, id string) (Evaluation, error)
	// GetByIDForUpdate locks the row until the surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id string) (Evaluation, error)
	List(ctx context.Context, filter EvaluationFilter) ([]Evaluation, int64, error)
	// Update writes e only if the stored status still equals expected. It returns a
	// *approval.PreconditionError when the row moved on.
	Update(ctx context.Context, e Evaluation, expected approval.Status) error
	ExistsForEmployeeCycle(ctx context.Context, employeeID, reviewCycleID string) (bool, error)
	// ListPendingSince returns evaluations waiting on an approver since before.
	ListPendingSince(ctx context.Context, before time.Time) ([]Evaluation, error)
}
