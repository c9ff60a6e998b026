package postgresql

import (
	"context"
	"fmt"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/approval"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/dashboard"
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/database"
)

type dashboardRepositoryImpl struct {
	db *database.DB
}

func NewDashboardRepository(db *database.DB) dashboard.DashboardRepository {
	return &dashboardRepositoryImpl{db: db}
}

// scopeConditions filters rows of alias t joined to employees e.
func scopeConditions(t string, scope dashboard.Scope) conditions {
	var c conditions
	if scope.ReviewCycleID != nil {
		c.add(t+".review_cycle_id = $%d", *scope.ReviewCycleID)
	}
	if scope.EmployeeID != nil {
		c.add(t+".employee_id = $%d", *scope.EmployeeID)
	}
	if scope.ExcludeEmployeeID != nil {
		c.add(t+".employee_id <> $%d", *scope.ExcludeEmployeeID)
	}
	if scope.SectionID != nil {
		c.add("e.section_id = $%d", *scope.SectionID)
	}
	if scope.DepartmentID != nil {
		c.add("e.department_id = $%d", *scope.DepartmentID)
	}
	return c
}

func (r *dashboardRepositoryImpl) countByStatus(ctx context.Context, table string, scope dashboard.Scope) (dashboard.StatusCounts, error) {
	q := GetQuerier(ctx, r.db)

	c := scopeConditions("t", scope)
	query := fmt.Sprintf(`
		SELECT t.status, COUNT(*)
		FROM %s t
		JOIN employees e ON e.id = t.employee_id`, table) + c.where() + `
		GROUP BY t.status`

	rows, err := q.Query(ctx, query, c.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count %s by status: %w", table, err)
	}
	defer rows.Close()

	counts := dashboard.StatusCounts{}
	for rows.Next() {
		var status approval.Status
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status.Normalize()] += n
	}
	return counts, rows.Err()
}

func (r *dashboardRepositoryImpl) CountValuesByStatus(ctx context.Context, scope dashboard.Scope) (dashboard.StatusCounts, error) {
	return r.countByStatus(ctx, "kpi_values", scope)
}

func (r *dashboardRepositoryImpl) CountEvaluationsByStatus(ctx context.Context, scope dashboard.Scope) (dashboard.StatusCounts, error) {
	return r.countByStatus(ctx, "evaluations", scope)
}

// GetScoreStats reads completed evaluations only; the rank is fixed at completion.
func (r *dashboardRepositoryImpl) GetScoreStats(ctx context.Context, scope dashboard.Scope) (*dashboard.ScoreStats, error) {
	q := GetQuerier(ctx, r.db)

	c := scopeConditions("t", scope)
	c.clauses = append(c.clauses, "t.completed_at IS NOT NULL")
	rows, err := q.Query(ctx, `
		SELECT t.rank, COUNT(*), COALESCE(SUM(t.final_score), 0)
		FROM evaluations t
		JOIN employees e ON e.id = t.employee_id`+c.where()+`
		GROUP BY t.rank`, c.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read score stats: %w", err)
	}
	defer rows.Close()

	stats := &dashboard.ScoreStats{Ranks: map[string]int64{}}
	var sum float64
	for rows.Next() {
		var rank string
		var n int64
		var rankSum float64
		if err := rows.Scan(&rank, &n, &rankSum); err != nil {
			return nil, err
		}
		stats.Ranks[rank] = n
		stats.Completed += n
		sum += rankSum
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if stats.Completed > 0 {
		stats.AverageFinal = sum / float64(stats.Completed)
	}
	return stats, nil
}
