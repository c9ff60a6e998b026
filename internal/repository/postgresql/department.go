package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/master/department"
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type departmentRepositoryImpl struct {
	db *database.DB
}

func NewDepartmentRepository(db *database.DB) department.DepartmentRepository {
	return &departmentRepositoryImpl{db: db}
}

const departmentColumns = `id, name, code, description, head_id, created_at, updated_at`

func scanDepartment(row pgx.Row) (department.Department, error) {
	var d department.Department
	err := row.Scan(&d.ID, &d.Name, &d.Code, &d.Description, &d.HeadID, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return department.Department{}, department.ErrDepartmentNotFound
	}
	return d, err
}

func (r *departmentRepositoryImpl) Create(ctx context.Context, d department.Department) (department.Department, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO departments (name, code, description, head_id)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + departmentColumns

	created, err := scanDepartment(q.QueryRow(ctx, query, d.Name, d.Code, d.Description, d.HeadID))
	if err != nil {
		if isUniqueViolation(err, "departments_code_key") {
			return department.Department{}, department.ErrDepartmentCodeExists
		}
		return department.Department{}, err
	}
	return created, nil
}

func (r *departmentRepositoryImpl) GetByID(ctx context.Context, id string) (department.Department, error) {
	q := GetQuerier(ctx, r.db)
	return scanDepartment(q.QueryRow(ctx, `SELECT `+departmentColumns+` FROM departments WHERE id = $1`, id))
}

func (r *departmentRepositoryImpl) List(ctx context.Context) ([]department.Department, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `SELECT `+departmentColumns+` FROM departments ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var departments []department.Department
	for rows.Next() {
		d, err := scanDepartment(rows)
		if err != nil {
			return nil, err
		}
		departments = append(departments, d)
	}
	return departments, rows.Err()
}

func (r *departmentRepositoryImpl) Update(ctx context.Context, req department.UpdateDepartmentRequest) error {
	q := GetQuerier(ctx, r.db)

	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Code != nil {
		updates["code"] = *req.Code
	}
	if req.Description != nil {
		updates["description"] = nullable(*req.Description)
	}
	if req.HeadID != nil {
		updates["head_id"] = nullable(*req.HeadID)
	}

	affected, err := updateColumns(ctx, q, "departments", req.ID, updates, "")
	if err != nil {
		if isUniqueViolation(err, "departments_code_key") {
			return department.ErrDepartmentCodeExists
		}
		return err
	}
	if affected == 0 {
		return department.ErrDepartmentNotFound
	}
	return nil
}

// Delete refuses while sections or employees reference the department.
func (r *departmentRepositoryImpl) Delete(ctx context.Context, id string) error {
	q := GetQuerier(ctx, r.db)

	var inUse bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM sections WHERE department_id = $1)
			OR EXISTS(SELECT 1 FROM employees WHERE department_id = $1 AND deleted_at IS NULL)
	`, id).Scan(&inUse)
	if err != nil {
		return fmt.Errorf("failed to check department usage: %w", err)
	}
	if inUse {
		return department.ErrDepartmentInUse
	}

	tag, err := q.Exec(ctx, `DELETE FROM departments WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return department.ErrDepartmentInUse
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return department.ErrDepartmentNotFound
	}
	return nil
}
