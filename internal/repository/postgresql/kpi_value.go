package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/approval"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/kpi"
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type valueRepositoryImpl struct {
	db *database.DB
}

func NewValueRepository(db *database.DB) kpi.ValueRepository {
	return &valueRepositoryImpl{db: db}
}

const valueSelect = `
	SELECT v.id, v.kpi_id, v.employee_id, v.review_cycle_id, v.target_value, v.actual_value, v.weight, v.notes, v.evidence_path,
		   v.status, v.rejection_reason, v.rejected_by, v.rejected_at,
		   v.section_approved_by, v.section_approved_at, v.department_approved_by, v.department_approved_at,
		   v.manager_approved_by, v.manager_approved_at, v.submitted_at, v.transitioned_at,
		   v.created_at, v.updated_at,
		   k.name, e.full_name, COALESCE(e.section_id::text, ''), COALESCE(e.department_id::text, '')
	FROM kpi_values v
	JOIN kpis k ON k.id = v.kpi_id
	JOIN employees e ON e.id = v.employee_id
`

func scanValue(row pgx.Row) (kpi.Value, error) {
	var v kpi.Value
	dest := []interface{}{&v.ID, &v.KpiID, &v.EmployeeID, &v.ReviewCycleID, &v.TargetValue, &v.ActualValue, &v.Weight, &v.Notes, &v.EvidencePath}
	dest = append(dest, workflowDest(&v.Workflow)...)
	dest = append(dest, &v.CreatedAt, &v.UpdatedAt, &v.KpiName, &v.EmployeeName, &v.SectionID, &v.DepartmentID)

	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return kpi.Value{}, kpi.ErrKpiValueNotFound
		}
		return kpi.Value{}, err
	}
	return v, nil
}

func collectValues(rows pgx.Rows) ([]kpi.Value, error) {
	defer rows.Close()
	var values []kpi.Value
	for rows.Next() {
		v, err := scanValue(rows)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

func (r *valueRepositoryImpl) Create(ctx context.Context, v kpi.Value) (kpi.Value, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO kpi_values (kpi_id, employee_id, review_cycle_id, target_value, actual_value, weight, notes, ` + workflowColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING id
	`
	args := append([]interface{}{v.KpiID, v.EmployeeID, v.ReviewCycleID, v.TargetValue, v.ActualValue, v.Weight, v.Notes}, workflowArgs(v.Workflow)...)

	var id string
	if err := q.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		if isUniqueViolation(err, "kpi_values_kpi_employee_cycle_key") {
			return kpi.Value{}, kpi.ErrKpiValueExists
		}
		return kpi.Value{}, fmt.Errorf("failed to create kpi value: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r *valueRepositoryImpl) GetByID(ctx context.Context, id string) (kpi.Value, error) {
	q := GetQuerier(ctx, r.db)
	return scanValue(q.QueryRow(ctx, valueSelect+` WHERE v.id = $1`, id))
}

// GetByIDForUpdate implements kpi.ValueRepository. Only the value row is locked.
func (r *valueRepositoryImpl) GetByIDForUpdate(ctx context.Context, id string) (kpi.Value, error) {
	q := GetQuerier(ctx, r.db)
	return scanValue(q.QueryRow(ctx, valueSelect+` WHERE v.id = $1 FOR UPDATE OF v`, id))
}

func (r *valueRepositoryImpl) List(ctx context.Context, filter kpi.ValueFilter) ([]kpi.Value, int64, error) {
	q := GetQuerier(ctx, r.db)

	var c conditions
	if filter.EmployeeID != nil {
		c.add("v.employee_id = $%d", *filter.EmployeeID)
	}
	if filter.KpiID != nil {
		c.add("v.kpi_id = $%d", *filter.KpiID)
	}
	if filter.ReviewCycleID != nil {
		c.add("v.review_cycle_id = $%d", *filter.ReviewCycleID)
	}
	if filter.Status != nil {
		c.add("v.status = ANY($%d)", statusFilter(*filter.Status))
	}
	if filter.SectionID != nil {
		c.add("e.section_id = $%d", *filter.SectionID)
	}
	if filter.DepartmentID != nil {
		c.add("e.department_id = $%d", *filter.DepartmentID)
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM kpi_values v JOIN employees e ON e.id = v.employee_id` + c.where()
	if err := q.QueryRow(ctx, countQuery, c.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count kpi values: %w", err)
	}

	limit, args := c.page(filter.Page, filter.Limit)
	rows, err := q.Query(ctx, valueSelect+c.where()+` ORDER BY v.created_at DESC`+limit, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list kpi values: %w", err)
	}
	values, err := collectValues(rows)
	if err != nil {
		return nil, 0, err
	}
	return values, total, nil
}

// Update implements kpi.ValueRepository as a compare-and-set on status.
func (r *valueRepositoryImpl) Update(ctx context.Context, v kpi.Value, expected approval.Status) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE kpi_values SET
			target_value = $1, actual_value = $2, weight = $3, notes = $4,
			status = $5, rejection_reason = $6, rejected_by = $7, rejected_at = $8,
			section_approved_by = $9, section_approved_at = $10,
			department_approved_by = $11, department_approved_at = $12,
			manager_approved_by = $13, manager_approved_at = $14,
			submitted_at = $15, transitioned_at = $16, updated_at = NOW()
		WHERE id = $17 AND status = $18
	`
	args := append([]interface{}{v.TargetValue, v.ActualValue, v.Weight, v.Notes}, workflowArgs(v.Workflow)...)
	args = append(args, v.ID, expected)

	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update kpi value: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return preconditionFailed(ctx, q, "kpi_values", v.ID, expected, kpi.ErrKpiValueNotFound)
	}
	return nil
}

// LockWeightBudget takes a transaction-scoped advisory lock keyed on the employee
// and cycle. Sibling values may not exist yet, so there is no row to lock.
func (r *valueRepositoryImpl) LockWeightBudget(ctx context.Context, employeeID, reviewCycleID string) error {
	q := GetQuerier(ctx, r.db)

	_, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended('kpi_weight:' || $1 || ':' || $2, 0))`, employeeID, reviewCycleID)
	if err != nil {
		return fmt.Errorf("failed to lock weight budget: %w", err)
	}
	return nil
}

func (r *valueRepositoryImpl) SumWeight(ctx context.Context, employeeID, reviewCycleID, excludeID string) (float64, error) {
	q := GetQuerier(ctx, r.db)

	c := conditions{}
	c.add("employee_id = $%d", employeeID)
	c.add("review_cycle_id = $%d", reviewCycleID)
	if excludeID != "" {
		c.add("id <> $%d", excludeID)
	}

	var sum float64
	err := q.QueryRow(ctx, `SELECT COALESCE(SUM(weight), 0) FROM kpi_values`+c.where(), c.args...).Scan(&sum)
	return sum, err
}

func (r *valueRepositoryImpl) CountByKpi(ctx context.Context, kpiID string) (int64, error) {
	q := GetQuerier(ctx, r.db)

	var n int64
	err := q.QueryRow(ctx, `SELECT COUNT(*) FROM kpi_values WHERE kpi_id = $1`, kpiID).Scan(&n)
	return n, err
}

func (r *valueRepositoryImpl) ListPendingSince(ctx context.Context, before time.Time) ([]kpi.Value, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, valueSelect+` WHERE v.status = ANY($1) AND v.transitioned_at < $2 ORDER BY v.transitioned_at`, pendingStatuses, before)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending kpi values: %w", err)
	}
	return collectValues(rows)
}

func (r *valueRepositoryImpl) UpdateEvidence(ctx context.Context, id, path string) error {
	q := GetQuerier(ctx, r.db)

	affected, err := updateColumns(ctx, q, "kpi_values", id, map[string]interface{}{"evidence_path": path}, "")
	if err != nil {
		return fmt.Errorf("failed to update evidence: %w", err)
	}
	if affected == 0 {
		return kpi.ErrKpiValueNotFound
	}
	return nil
}
