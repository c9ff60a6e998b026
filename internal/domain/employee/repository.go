package employee

import (
	"context"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/approval"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/user"
)

type EmployeeRepository interface {
	GetByID(ctx context.Context, id string) (Employee, error)
	GetByUserID(ctx context.Context, userID string) (Employee, error)
	Create(ctx context.Context, newEmployee Employee) (Employee, error)
	ExistsByCode(ctx context.Context, employeeCode string) (bool, error)
	Update(ctx context.Context, req UpdateEmployeeRequest) error
	SoftDelete(ctx context.Context, id string) error
	// UpdateAvatar replaces the stored avatar key.
	UpdateAvatar(ctx context.Context, id, path string) error
	List(ctx context.Context, filter EmployeeFilter) ([]Employee, int64, error)
	// FindApprovers returns the active employees allowed to act at stage for owner.
	FindApprovers(ctx context.Context, stage approval.Stage, owner user.Owner) ([]Employee, error)
}
