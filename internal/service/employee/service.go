package employee

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/audit"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/employee"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/master/department"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/master/section"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/user"
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/database"
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/pagination"
	"golang.org/x/crypto/bcrypt"
)

type EmployeeServiceImpl struct {
	tx             database.Transactor
	employeeRepo   employee.EmployeeRepository
	userRepo       user.UserRepository
	departmentRepo department.DepartmentRepository
	sectionRepo    section.SectionRepository
	audit          audit.Service
}

func NewEmployeeService(
	tx database.Transactor,
	employeeRepo employee.EmployeeRepository,
	userRepo user.UserRepository,
	departmentRepo department.DepartmentRepository,
	sectionRepo section.SectionRepository,
	auditService audit.Service,
) employee.EmployeeService {
	return &EmployeeServiceImpl{
		tx:             tx,
		employeeRepo:   employeeRepo,
		userRepo:       userRepo,
		departmentRepo: departmentRepo,
		sectionRepo:    sectionRepo,
		audit:          auditService,
	}
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format("2006-01-02")
	return &s
}

func mapEmployeeToResponse(emp employee.Employee) employee.EmployeeResponse {
	return employee.EmployeeResponse{
		ID:             emp.ID,
		UserID:         emp.UserID,
		Email:          emp.Email,
		Role:           string(emp.Role),
		EmployeeCode:   emp.EmployeeCode,
		FullName:       emp.FullName,
		PositionTitle:  emp.PositionTitle,
		SectionID:      emp.SectionID,
		SectionName:    emp.SectionName,
		DepartmentID:   emp.DepartmentID,
		DepartmentName: emp.DepartmentName,
		HireDate:       formatDate(emp.HireDate),
		HasAvatar:      emp.AvatarPath != nil,
		CreatedAt:      emp.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      emp.UpdatedAt.Format(time.RFC3339),
	}
}

func (s *EmployeeServiceImpl) record(ctx context.Context, action, id string, before, after any) {
	if s.audit == nil {
		return
	}
	actor, _ := user.ActorFrom(ctx)
	s.audit.Record(ctx, audit.RecordRequest{
		ActorUserID: actor.UserID,
		Action:      action,
		EntityType:  audit.EntityEmployee,
		EntityID:    id,
		Before:      before,
		After:       after,
	})
}

// checkPlacement verifies that the department exists and that the section sits inside it.
func (s *EmployeeServiceImpl) checkPlacement(ctx context.Context, sectionID, departmentID *string) error {
	if departmentID != nil {
		if _, err := s.departmentRepo.GetByID(ctx, *departmentID); err != nil {
			return err
		}
	}
	if sectionID == nil {
		return nil
	}
	sec, err := s.sectionRepo.GetByID(ctx, *sectionID)
	if err != nil {
		return err
	}
	if departmentID == nil || sec.DepartmentID != *departmentID {
		return employee.ErrSectionOutsideDept
	}
	return nil
}

// GetEmployee implements employee.EmployeeService.
func (s *EmployeeServiceImpl) GetEmployee(ctx context.Context, actor user.Actor, id string) (employee.EmployeeResponse, error) {
	emp, err := s.employeeRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, employee.ErrEmployeeNotFound) {
			return employee.EmployeeResponse{}, employee.ErrEmployeeNotFound
		}
		return employee.EmployeeResponse{}, fmt.Errorf("failed to get employee: %w", err)
	}

	if !user.CanView(actor, emp.Owner()) {
		return employee.EmployeeResponse{}, employee.ErrUnauthorized
	}

	return mapEmployeeToResponse(emp), nil
}

// GetMe implements employee.EmployeeService.
func (s *EmployeeServiceImpl) GetMe(ctx context.Context, actor user.Actor) (employee.EmployeeResponse, error) {
	emp, err := s.employeeRepo.GetByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, employee.ErrEmployeeNotFound) {
			return employee.EmployeeResponse{}, user.ErrEmployeeProfileRequired
		}
		return employee.EmployeeResponse{}, fmt.Errorf("failed to get employee: %w", err)
	}
	return mapEmployeeToResponse(emp), nil
}

// CreateEmployee implements employee.EmployeeService.
func (s *EmployeeServiceImpl) CreateEmployee(ctx context.Context, req employee.CreateEmployeeRequest) (employee.EmployeeResponse, error) {
	if err := req.Validate(); err != nil {
		return employee.EmployeeResponse{}, err
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	exists, err := s.employeeRepo.ExistsByCode(ctx, req.EmployeeCode)
	if err != nil {
		return employee.EmployeeResponse{}, fmt.Errorf("failed to check employee code existence: %w", err)
	}
	if exists {
		return employee.EmployeeResponse{}, employee.ErrEmployeeCodeExists
	}

	if _, err := s.userRepo.GetByEmail(ctx, req.Email); err == nil {
		return employee.EmployeeResponse{}, employee.ErrEmailExists
	} else if !errors.Is(err, user.ErrUserNotFound) {
		return employee.EmployeeResponse{}, fmt.Errorf("failed to check email existence: %w", err)
	}

	if err := s.checkPlacement(ctx, req.SectionID, req.DepartmentID); err != nil {
		return employee.EmployeeResponse{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return employee.EmployeeResponse{}, fmt.Errorf("failed to hash password: %w", err)
	}
	passwordHash := string(hash)

	var hireDate *time.Time
	if req.HireDate != nil {
		parsed, _ := time.Parse("2006-01-02", *req.HireDate)
		hireDate = &parsed
	}

	var created employee.Employee
	err = s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		newUser, err := s.userRepo.Create(txCtx, user.User{
			Email:        req.Email,
			PasswordHash: &passwordHash,
			Role:         user.Role(req.Role),
		})
		if err != nil {
			if errors.Is(err, user.ErrUserEmailExists) {
				return employee.ErrEmailExists
			}
			return fmt.Errorf("failed to create user: %w", err)
		}

		created, err = s.employeeRepo.Create(txCtx, employee.Employee{
			UserID:        newUser.ID,
			EmployeeCode:  req.EmployeeCode,
			FullName:      req.FullName,
			PositionTitle: req.PositionTitle,
			SectionID:     req.SectionID,
			DepartmentID:  req.DepartmentID,
			HireDate:      hireDate,
			Email:         newUser.Email,
			Role:          newUser.Role,
		})
		if err != nil {
			if errors.Is(err, employee.ErrEmployeeCodeExists) {
				return err
			}
			return fmt.Errorf("failed to create employee: %w", err)
		}
		created.Email = newUser.Email
		created.Role = newUser.Role
		return nil
	})
	if err != nil {
		return employee.EmployeeResponse{}, err
	}

	resp := mapEmployeeToResponse(created)
	s.record(ctx, "create", created.ID, nil, resp)
	return resp, nil
}

// UpdateEmployee implements employee.EmployeeService. A role change is written to
// the login account as well, so it applies from the next token refresh.
func (s *EmployeeServiceImpl) UpdateEmployee(ctx context.Context, req employee.UpdateEmployeeRequest) (employee.EmployeeResponse, error) {
	if err := req.Validate(); err != nil {
		return employee.EmployeeResponse{}, err
	}

	before, err := s.employeeRepo.GetByID(ctx, req.ID)
	if err != nil {
		return employee.EmployeeResponse{}, err
	}

	if req.SectionID != nil || req.DepartmentID != nil {
		sectionID, departmentID := before.SectionID, before.DepartmentID
		if req.SectionID != nil {
			sectionID = req.SectionID
		}
		if req.DepartmentID != nil {
			departmentID = req.DepartmentID
		}
		if err := s.checkPlacement(ctx, sectionID, departmentID); err != nil {
			return employee.EmployeeResponse{}, err
		}
	}

	err = s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := s.employeeRepo.Update(txCtx, req); err != nil {
			return fmt.Errorf("failed to update employee: %w", err)
		}
		if req.Role != nil && user.Role(*req.Role) != before.Role {
			if err := s.userRepo.UpdateRole(txCtx, before.UserID, user.Role(*req.Role)); err != nil {
				return fmt.Errorf("failed to update user role: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return employee.EmployeeResponse{}, err
	}

	updated, err := s.employeeRepo.GetByID(ctx, req.ID)
	if err != nil {
		return employee.EmployeeResponse{}, err
	}
	resp := mapEmployeeToResponse(updated)
	s.record(ctx, "update", req.ID, mapEmployeeToResponse(before), resp)
	return resp, nil
}

// DeleteEmployee implements employee.EmployeeService.
func (s *EmployeeServiceImpl) DeleteEmployee(ctx context.Context, actor user.Actor, id string) error {
	if actor.EmployeeID == id {
		return employee.ErrCannotDeleteSelf
	}

	before, err := s.employeeRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.employeeRepo.SoftDelete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete employee: %w", err)
	}

	s.record(ctx, "delete", id, mapEmployeeToResponse(before), nil)
	return nil
}

// ListEmployees implements employee.EmployeeService. Section and department heads
// only see their own unit regardless of the filter they send.
func (s *EmployeeServiceImpl) ListEmployees(ctx context.Context, actor user.Actor, filter employee.EmployeeFilter) (employee.ListEmployeeResponse, error) {
	if err := filter.Validate(); err != nil {
		return employee.ListEmployeeResponse{}, err
	}

	switch actor.Role {
	case user.RoleAdmin, user.RoleManager:
	case user.RoleDepartmentHead:
		filter.DepartmentID = &actor.DepartmentID
	case user.RoleSectionHead:
		filter.SectionID = &actor.SectionID
	default:
		return employee.ListEmployeeResponse{}, user.ErrInsufficientPermissions
	}

	employees, total, err := s.employeeRepo.List(ctx, filter)
	if err != nil {
		return employee.ListEmployeeResponse{}, fmt.Errorf("failed to list employees: %w", err)
	}

	responses := make([]employee.EmployeeResponse, 0, len(employees))
	for _, emp := range employees {
		responses = append(responses, mapEmployeeToResponse(emp))
	}

	totalPages, showing := pagination.Meta(total, filter.Page, filter.Limit)
	return employee.ListEmployeeResponse{
		TotalCount: total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: totalPages,
		Showing:    showing,
		Employees:  responses,
	}, nil
}
