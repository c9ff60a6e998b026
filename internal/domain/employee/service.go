package employee

import (
	"context"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/user"
)

// EmployeeService defines business logic for employee operations
type EmployeeService interface {
	// GetEmployee retrieves a single employee by ID, scoped to what the actor may see
	GetEmployee(ctx context.Context, actor user.Actor, id string) (EmployeeResponse, error)

	// GetMe returns the actor's own employee profile
	GetMe(ctx context.Context, actor user.Actor) (EmployeeResponse, error)

	// CreateEmployee creates the login account and employee profile together (admin only)
	CreateEmployee(ctx context.Context, req CreateEmployeeRequest) (EmployeeResponse, error)

	// UpdateEmployee updates placement, role or profile fields (admin only)
	UpdateEmployee(ctx context.Context, req UpdateEmployeeRequest) (EmployeeResponse, error)

	// DeleteEmployee soft deletes an employee (admin only)
	DeleteEmployee(ctx context.Context, actor user.Actor, id string) error

	// ListEmployees lists employees with filters
	ListEmployees(ctx context.Context, actor user.Actor, filter EmployeeFilter) (ListEmployeeResponse, error)
}
