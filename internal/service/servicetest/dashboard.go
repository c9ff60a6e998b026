package servicetest

import (
	"context"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/dashboard"
)

// DashboardRepository counts over the value and evaluation fakes so dashboard
// numbers follow whatever the workflow services wrote.
type DashboardRepository struct {
	Values      *ValueRepository
	Evaluations *EvaluationRepository
}

func NewDashboardRepository(values *ValueRepository, evaluations *EvaluationRepository) *DashboardRepository {
	return &DashboardRepository{Values: values, Evaluations: evaluations}
}

func inScope(scope dashboard.Scope, cycleID, employeeID, sectionID, departmentID string) bool {
	match := func(want *string, got string) bool { return want == nil || *want == got }
	if scope.ExcludeEmployeeID != nil && *scope.ExcludeEmployeeID == employeeID {
		return false
	}
	return match(scope.ReviewCycleID, cycleID) &&
		match(scope.EmployeeID, employeeID) &&
		match(scope.SectionID, sectionID) &&
		match(scope.DepartmentID, departmentID)
}

func (r *DashboardRepository) CountValuesByStatus(ctx context.Context, scope dashboard.Scope) (dashboard.StatusCounts, error) {
	counts := make(dashboard.StatusCounts)
	if r.Values == nil {
		return counts, nil
	}
	r.Values.mu.Lock()
	defer r.Values.mu.Unlock()
	for _, v := range r.Values.Values {
		v = r.Values.join(v)
		if inScope(scope, v.ReviewCycleID, v.EmployeeID, v.SectionID, v.DepartmentID) {
			counts[v.Status.Normalize()]++
		}
	}
	return counts, nil
}

func (r *DashboardRepository) CountEvaluationsByStatus(ctx context.Context, scope dashboard.Scope) (dashboard.StatusCounts, error) {
	counts := make(dashboard.StatusCounts)
	if r.Evaluations == nil {
		return counts, nil
	}
	r.Evaluations.mu.Lock()
	defer r.Evaluations.mu.Unlock()
	for _, e := range r.Evaluations.Evaluations {
		e = r.Evaluations.join(e)
		if inScope(scope, e.ReviewCycleID, e.EmployeeID, e.SectionID, e.DepartmentID) {
			counts[e.Status.Normalize()]++
		}
	}
	return counts, nil
}

func (r *DashboardRepository) GetScoreStats(ctx context.Context, scope dashboard.Scope) (*dashboard.ScoreStats, error) {
	stats := &dashboard.ScoreStats{Ranks: make(map[string]int64)}
	if r.Evaluations == nil {
		return stats, nil
	}
	r.Evaluations.mu.Lock()
	defer r.Evaluations.mu.Unlock()

	var sum float64
	for _, e := range r.Evaluations.Evaluations {
		if e.CompletedAt == nil {
			continue
		}
		e = r.Evaluations.join(e)
		if !inScope(scope, e.ReviewCycleID, e.EmployeeID, e.SectionID, e.DepartmentID) {
			continue
		}
		stats.Completed++
		if e.FinalScore != nil {
			sum += *e.FinalScore
		}
		if e.Rank != "" {
			stats.Ranks[e.Rank]++
		}
	}
	if stats.Completed > 0 {
		stats.AverageFinal = sum / float64(stats.Completed)
	}
	return stats, nil
}

var _ dashboard.DashboardRepository = (*DashboardRepository)(nil)
