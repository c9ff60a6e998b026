package report

import "context"

// Filter is a resolved report scope. Nil unit fields are not filtered on.
type Filter struct {
	ReviewCycleID string
	SectionID     *string
	DepartmentID  *string
	// EmployeeID limits the report to one employee, for callers without a unit
	EmployeeID *string
}

// ReportRepository defines the interface for report data access
type ReportRepository interface {
	// KPI values grouped per employee, one row per employee with at least one value
	GetKpiAchievement(ctx context.Context, filter Filter) ([]KpiAchievementRow, error)

	// One row per evaluation in the cycle
	GetEvaluationResults(ctx context.Context, filter Filter) ([]EvaluationResultRow, error)
}
