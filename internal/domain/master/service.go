package master

import (
	"context"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/master/department"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/master/section"
)

type MasterService interface {
	// Department
	CreateDepartment(ctx context.Context, req department.CreateDepartmentRequest) (department.DepartmentResponse, error)
	GetDepartment(ctx context.Context, id string) (department.DepartmentResponse, error)
	ListDepartments(ctx context.Context) ([]department.DepartmentResponse, error)
	UpdateDepartment(ctx context.Context, req department.UpdateDepartmentRequest) (department.DepartmentResponse, error)
	DeleteDepartment(ctx context.Context, id string) error

	// Section
	CreateSection(ctx context.Context, req section.CreateSectionRequest) (section.SectionResponse, error)
	GetSection(ctx context.Context, id string) (section.SectionResponse, error)
	ListSections(ctx context.Context, filter section.SectionFilter) ([]section.SectionResponse, error)
	UpdateSection(ctx context.Context, req section.UpdateSectionRequest) (section.SectionResponse, error)
	DeleteSection(ctx context.Context, id string) error
}
