package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/approval"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/employee"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/user"
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type employeeRepositoryImpl struct {
	db *database.DB
}

func NewEmployeeRepository(db *database.DB) employee.EmployeeRepository {
	return &employeeRepositoryImpl{db: db}
}

const employeeSelect = `
	SELECT e.id, e.user_id, e.employee_code, e.full_name, e.position_title, e.section_id,
		   e.department_id, e.hire_date, e.avatar_path, e.created_at, e.updated_at, e.deleted_at,
		   u.email, u.role, s.name, d.name
	FROM employees e
	JOIN users u ON u.id = e.user_id
	LEFT JOIN sections s ON s.id = e.section_id
	LEFT JOIN departments d ON d.id = e.department_id
`

func scanEmployee(row pgx.Row) (employee.Employee, error) {
	var emp employee.Employee
	err := row.Scan(
		&emp.ID, &emp.UserID, &emp.EmployeeCode, &emp.FullName, &emp.PositionTitle, &emp.SectionID,
		&emp.DepartmentID, &emp.HireDate, &emp.AvatarPath, &emp.CreatedAt, &emp.UpdatedAt, &emp.DeletedAt,
		&emp.Email, &emp.Role, &emp.SectionName, &emp.DepartmentName,
	)
	return emp, err
}

func collectEmployees(rows pgx.Rows) ([]employee.Employee, error) {
	defer rows.Close()
	var employees []employee.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, emp)
	}
	return employees, rows.Err()
}

func (r *employeeRepositoryImpl) getOne(ctx context.Context, where string, arg interface{}) (employee.Employee, error) {
	q := GetQuerier(ctx, r.db)
	emp, err := scanEmployee(q.QueryRow(ctx, employeeSelect+where+` AND e.deleted_at IS NULL`, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return employee.Employee{}, employee.ErrEmployeeNotFound
		}
		return employee.Employee{}, err
	}
	return emp, nil
}

// GetByID implements employee.EmployeeRepository.
func (r *employeeRepositoryImpl) GetByID(ctx context.Context, id string) (employee.Employee, error) {
	return r.getOne(ctx, ` WHERE e.id = $1`, id)
}

// GetByUserID implements employee.EmployeeRepository.
func (r *employeeRepositoryImpl) GetByUserID(ctx context.Context, userID string) (employee.Employee, error) {
	return r.getOne(ctx, ` WHERE e.user_id = $1`, userID)
}

// Create implements employee.EmployeeRepository.
func (r *employeeRepositoryImpl) Create(ctx context.Context, newEmployee employee.Employee) (employee.Employee, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO employees (user_id, employee_code, full_name, position_title, section_id, department_id, hire_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	var id string
	err := q.QueryRow(ctx, query,
		newEmployee.UserID, newEmployee.EmployeeCode, newEmployee.FullName, newEmployee.PositionTitle,
		newEmployee.SectionID, newEmployee.DepartmentID, newEmployee.HireDate,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err, "employees_employee_code_key") {
			return employee.Employee{}, employee.ErrEmployeeCodeExists
		}
		return employee.Employee{}, fmt.Errorf("failed to create employee: %w", err)
	}

	return r.GetByID(ctx, id)
}

// ExistsByCode implements employee.EmployeeRepository.
func (r *employeeRepositoryImpl) ExistsByCode(ctx context.Context, employeeCode string) (bool, error) {
	q := GetQuerier(ctx, r.db)

	var exists bool
	err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM employees WHERE employee_code = $1)`, employeeCode).Scan(&exists)
	return exists, err
}

// Update implements employee.EmployeeRepository. The role lives on the user row and is
// written by the user repository.
func (r *employeeRepositoryImpl) Update(ctx context.Context, req employee.UpdateEmployeeRequest) error {
	q := GetQuerier(ctx, r.db)

	updates := make(map[string]interface{})
	if req.FullName != nil && *req.FullName != "" {
		updates["full_name"] = *req.FullName
	}
	if req.PositionTitle != nil {
		updates["position_title"] = nullable(*req.PositionTitle)
	}
	if req.SectionID != nil {
		updates["section_id"] = nullable(*req.SectionID)
	}
	if req.DepartmentID != nil {
		updates["department_id"] = nullable(*req.DepartmentID)
	}
	if req.HireDate != nil {
		if *req.HireDate == "" {
			updates["hire_date"] = nil
		} else {
			parsed, err := time.Parse(time.DateOnly, *req.HireDate)
			if err != nil {
				return fmt.Errorf("invalid hire_date: %w", err)
			}
			updates["hire_date"] = parsed
		}
	}

	affected, err := updateColumns(ctx, q, "employees", req.ID, updates, " AND deleted_at IS NULL")
	if err != nil {
		return fmt.Errorf("failed to update employee: %w", err)
	}
	if affected == 0 {
		return employee.ErrEmployeeNotFound
	}
	return nil
}

// UpdateAvatar implements employee.EmployeeRepository.
func (r *employeeRepositoryImpl) UpdateAvatar(ctx context.Context, id, path string) error {
	q := GetQuerier(ctx, r.db)

	affected, err := updateColumns(ctx, q, "employees", id, map[string]interface{}{"avatar_path": path}, " AND deleted_at IS NULL")
	if err != nil {
		return fmt.Errorf("failed to update avatar: %w", err)
	}
	if affected == 0 {
		return employee.ErrEmployeeNotFound
	}
	return nil
}

// SoftDelete implements employee.EmployeeRepository.
func (r *employeeRepositoryImpl) SoftDelete(ctx context.Context, id string) error {
	q := GetQuerier(ctx, r.db)

	tag, err := q.Exec(ctx, `UPDATE employees SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("failed to delete employee: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return employee.ErrEmployeeNotFound
	}
	return nil
}

// List implements employee.EmployeeRepository.
func (r *employeeRepositoryImpl) List(ctx context.Context, filter employee.EmployeeFilter) ([]employee.Employee, int64, error) {
	q := GetQuerier(ctx, r.db)

	c := conditions{clauses: []string{"e.deleted_at IS NULL"}}
	if filter.Search != nil && *filter.Search != "" {
		c.add("(e.full_name ILIKE $%[1]d OR e.employee_code ILIKE $%[1]d)", "%"+*filter.Search+"%")
	}
	if filter.SectionID != nil {
		c.add("e.section_id = $%d", *filter.SectionID)
	}
	if filter.DepartmentID != nil {
		c.add("e.department_id = $%d", *filter.DepartmentID)
	}
	if filter.Role != nil {
		c.add("u.role = $%d", *filter.Role)
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM employees e JOIN users u ON u.id = e.user_id` + c.where()
	if err := q.QueryRow(ctx, countQuery, c.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count employees: %w", err)
	}

	limit, args := c.page(filter.Page, filter.Limit)
	rows, err := q.Query(ctx, employeeSelect+c.where()+` ORDER BY e.employee_code`+limit, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list employees: %w", err)
	}
	employees, err := collectEmployees(rows)
	if err != nil {
		return nil, 0, err
	}
	return employees, total, nil
}

// FindApprovers implements employee.EmployeeRepository. Admins can act at every stage
// but only the stage role is routed requests.
func (r *employeeRepositoryImpl) FindApprovers(ctx context.Context, stage approval.Stage, owner user.Owner) ([]employee.Employee, error) {
	q := GetQuerier(ctx, r.db)

	role, ok := user.StageRoles[stage]
	if !ok {
		return nil, approval.ErrInvalidStage
	}

	c := conditions{clauses: []string{"e.deleted_at IS NULL"}}
	c.add("u.role = $%d", string(role))
	switch stage {
	case approval.StageSection:
		c.add("e.section_id = $%d", nullable(owner.SectionID))
	case approval.StageDepartment:
		c.add("e.department_id = $%d", nullable(owner.DepartmentID))
	}
	if owner.EmployeeID != "" {
		c.add("e.id <> $%d", owner.EmployeeID)
	}

	rows, err := q.Query(ctx, employeeSelect+c.where()+` ORDER BY e.employee_code`, c.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find approvers: %w", err)
	}
	return collectEmployees(rows)
}
