package dashboard

import (
	"context"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/approval"
)

// Scope narrows every count to one cycle and one slice of the organisation.
// Nil fields are not filtered on.
type Scope struct {
	ReviewCycleID *string
	EmployeeID    *string
	SectionID     *string
	DepartmentID  *string
	// ExcludeEmployeeID drops one employee's records, used for the approval
	// queue since nobody approves their own.
	ExcludeEmployeeID *string
}

// StatusCounts is keyed by stored status; legacy submitted rows are folded
// into pending_section_approval by the repository.
type StatusCounts map[approval.Status]int64

// ScoreStats summarises completed evaluations.
type ScoreStats struct {
	Completed    int64
	AverageFinal float64
	Ranks        map[string]int64
}

type DashboardRepository interface {
	// CountValuesByStatus groups KPI values in scope by workflow status in one query
	CountValuesByStatus(ctx context.Context, scope Scope) (StatusCounts, error)

	// CountEvaluationsByStatus groups evaluations in scope by workflow status in one query
	CountEvaluationsByStatus(ctx context.Context, scope Scope) (StatusCounts, error)

	// GetScoreStats returns the average final score and rank distribution of completed evaluations
	GetScoreStats(ctx context.Context, scope Scope) (*ScoreStats, error)
}
