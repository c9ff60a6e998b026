package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/approval"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/report"
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/database"
)

type reportRepositoryImpl struct {
	db *database.DB
}

func NewReportRepository(db *database.DB) report.ReportRepository {
	return &reportRepositoryImpl{db: db}
}

// reportConditions filters rows of alias t joined to employees e. The cycle is
// always $1.
func reportConditions(t string, filter report.Filter) conditions {
	var c conditions
	c.add(t+".review_cycle_id = $%d", filter.ReviewCycleID)
	c.clauses = append(c.clauses, "e.deleted_at IS NULL")
	if filter.EmployeeID != nil {
		c.add("e.id = $%d", *filter.EmployeeID)
	}
	if filter.SectionID != nil {
		c.add("e.section_id = $%d", *filter.SectionID)
	}
	if filter.DepartmentID != nil {
		c.add("e.department_id = $%d", *filter.DepartmentID)
	}
	return c
}

// GetKpiAchievement aggregates KPI values per employee. Legacy submitted rows count as pending.
func (r *reportRepositoryImpl) GetKpiAchievement(ctx context.Context, filter report.Filter) ([]report.KpiAchievementRow, error) {
	q := GetQuerier(ctx, r.db)

	c := reportConditions("v", filter)
	query := `
		SELECT
			e.id,
			e.full_name,
			e.employee_code,
			s.name,
			d.name,
			COUNT(*),
			COUNT(*) FILTER (WHERE v.status = 'approved'),
			COUNT(*) FILTER (WHERE v.status LIKE 'pending_%' OR v.status = 'submitted'),
			COUNT(*) FILTER (WHERE v.status LIKE 'rejected_%'),
			COUNT(*) FILTER (WHERE v.status = 'draft'),
			COALESCE(SUM(v.weight), 0),
			COALESCE(SUM(v.weight) FILTER (WHERE v.status = 'approved'), 0),
			COALESCE(SUM(v.weight * v.actual_value / v.target_value) FILTER (WHERE v.status = 'approved' AND v.target_value > 0), 0),
			COALESCE(SUM(v.weight) FILTER (WHERE v.status = 'approved' AND v.target_value > 0), 0)
		FROM kpi_values v
		JOIN employees e ON e.id = v.employee_id
		LEFT JOIN sections s ON s.id = e.section_id
		LEFT JOIN departments d ON d.id = e.department_id` + c.where() + `
		GROUP BY e.id, e.full_name, e.employee_code, s.name, d.name
		ORDER BY e.full_name ASC`

	rows, err := q.Query(ctx, query, c.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query kpi achievement: %w", err)
	}
	defer rows.Close()

	var result []report.KpiAchievementRow
	for rows.Next() {
		var row report.KpiAchievementRow
		err := rows.Scan(
			&row.EmployeeID,
			&row.EmployeeName,
			&row.EmployeeCode,
			&row.SectionName,
			&row.DepartmentName,
			&row.TotalValues,
			&row.ApprovedValues,
			&row.PendingValues,
			&row.RejectedValues,
			&row.DraftValues,
			&row.TotalWeight,
			&row.ApprovedWeight,
			&row.WeightedAttainment,
			&row.AttainmentWeight,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan kpi achievement: %w", err)
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func (r *reportRepositoryImpl) GetEvaluationResults(ctx context.Context, filter report.Filter) ([]report.EvaluationResultRow, error) {
	q := GetQuerier(ctx, r.db)

	c := reportConditions("ev", filter)
	query := `
		SELECT
			ev.id,
			e.id,
			e.full_name,
			e.employee_code,
			s.name,
			d.name,
			ev.status,
			ev.rank,
			ev.average_score,
			ev.final_score,
			ev.completed_at
		FROM evaluations ev
		JOIN employees e ON e.id = ev.employee_id
		LEFT JOIN sections s ON s.id = e.section_id
		LEFT JOIN departments d ON d.id = e.department_id` + c.where() + `
		ORDER BY ev.final_score DESC NULLS LAST, e.full_name ASC`

	rows, err := q.Query(ctx, query, c.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query evaluation results: %w", err)
	}
	defer rows.Close()

	var result []report.EvaluationResultRow
	for rows.Next() {
		var row report.EvaluationResultRow
		var completedAt *time.Time
		err := rows.Scan(
			&row.EvaluationID,
			&row.EmployeeID,
			&row.EmployeeName,
			&row.EmployeeCode,
			&row.SectionName,
			&row.DepartmentName,
			&row.Status,
			&row.Rank,
			&row.AverageScore,
			&row.FinalScore,
			&completedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan evaluation results: %w", err)
		}
		row.Status = string(approval.Status(row.Status).Normalize())
		if completedAt != nil {
			formatted := completedAt.Format(time.RFC3339)
			row.CompletedAt = &formatted
		}
		result = append(result, row)
	}
	return result, rows.Err()
}
