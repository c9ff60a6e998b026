package master

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/audit"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/master"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/master/department"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/master/section"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/user"
)

type masterServiceImpl struct {
	departmentRepo department.DepartmentRepository
	sectionRepo    section.SectionRepository
	audit          audit.Service
}

func NewMasterService(
	departmentRepo department.DepartmentRepository,
	sectionRepo section.SectionRepository,
	auditService audit.Service,
) master.MasterService {
	return &masterServiceImpl{
		departmentRepo: departmentRepo,
		sectionRepo:    sectionRepo,
		audit:          auditService,
	}
}

func (s *masterServiceImpl) record(ctx context.Context, action, entityType, entityID string, before, after any) {
	if s.audit == nil {
		return
	}
	actor, _ := user.ActorFrom(ctx)
	s.audit.Record(ctx, audit.RecordRequest{
		ActorUserID: actor.UserID,
		Action:      action,
		EntityType:  entityType,
		EntityID:    entityID,
		Before:      before,
		After:       after,
	})
}

// ==================== DEPARTMENT OPERATIONS ====================

func (s *masterServiceImpl) CreateDepartment(ctx context.Context, req department.CreateDepartmentRequest) (department.DepartmentResponse, error) {
	if err := req.Validate(); err != nil {
		return department.DepartmentResponse{}, err
	}

	created, err := s.departmentRepo.Create(ctx, department.Department{
		Name:        req.Name,
		Code:        req.Code,
		Description: req.Description,
		HeadID:      req.HeadID,
	})
	if err != nil {
		return department.DepartmentResponse{}, fmt.Errorf("failed to create department: %w", err)
	}

	resp := toDepartmentResponse(created)
	s.record(ctx, "create", audit.EntityDepartment, created.ID, nil, resp)
	return resp, nil
}

func (s *masterServiceImpl) GetDepartment(ctx context.Context, id string) (department.DepartmentResponse, error) {
	entity, err := s.departmentRepo.GetByID(ctx, id)
	if err != nil {
		return department.DepartmentResponse{}, err
	}
	return toDepartmentResponse(entity), nil
}

func (s *masterServiceImpl) ListDepartments(ctx context.Context) ([]department.DepartmentResponse, error) {
	departments, err := s.departmentRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list departments: %w", err)
	}

	responses := make([]department.DepartmentResponse, 0, len(departments))
	for _, d := range departments {
		responses = append(responses, toDepartmentResponse(d))
	}
	return responses, nil
}

func (s *masterServiceImpl) UpdateDepartment(ctx context.Context, req department.UpdateDepartmentRequest) (department.DepartmentResponse, error) {
	if err := req.Validate(); err != nil {
		return department.DepartmentResponse{}, err
	}

	before, err := s.departmentRepo.GetByID(ctx, req.ID)
	if err != nil {
		return department.DepartmentResponse{}, err
	}
	if err := s.departmentRepo.Update(ctx, req); err != nil {
		return department.DepartmentResponse{}, fmt.Errorf("failed to update department: %w", err)
	}

	updated, err := s.departmentRepo.GetByID(ctx, req.ID)
	if err != nil {
		return department.DepartmentResponse{}, err
	}
	resp := toDepartmentResponse(updated)
	s.record(ctx, "update", audit.EntityDepartment, req.ID, toDepartmentResponse(before), resp)
	return resp, nil
}

// DeleteDepartment refuses while sections or employees still point at the department.
func (s *masterServiceImpl) DeleteDepartment(ctx context.Context, id string) error {
	before, err := s.departmentRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.departmentRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, "delete", audit.EntityDepartment, id, toDepartmentResponse(before), nil)
	return nil
}

func toDepartmentResponse(d department.Department) department.DepartmentResponse {
	return department.DepartmentResponse{
		ID:          d.ID,
		Name:        d.Name,
		Code:        d.Code,
		Description: d.Description,
		HeadID:      d.HeadID,
		CreatedAt:   d.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   d.UpdatedAt.Format(time.RFC3339),
	}
}

// ==================== SECTION OPERATIONS ====================

func (s *masterServiceImpl) CreateSection(ctx context.Context, req section.CreateSectionRequest) (section.SectionResponse, error) {
	if err := req.Validate(); err != nil {
		return section.SectionResponse{}, err
	}

	dept, err := s.departmentRepo.GetByID(ctx, req.DepartmentID)
	if err != nil {
		return section.SectionResponse{}, err
	}

	created, err := s.sectionRepo.Create(ctx, section.Section{
		DepartmentID: req.DepartmentID,
		Name:         req.Name,
		Code:         req.Code,
		HeadID:       req.HeadID,
	})
	if err != nil {
		return section.SectionResponse{}, fmt.Errorf("failed to create section: %w", err)
	}
	created.DepartmentName = dept.Name

	resp := toSectionResponse(created)
	s.record(ctx, "create", audit.EntitySection, created.ID, nil, resp)
	return resp, nil
}

func (s *masterServiceImpl) GetSection(ctx context.Context, id string) (section.SectionResponse, error) {
	entity, err := s.sectionRepo.GetByID(ctx, id)
	if err != nil {
		return section.SectionResponse{}, err
	}
	return toSectionResponse(entity), nil
}

func (s *masterServiceImpl) ListSections(ctx context.Context, filter section.SectionFilter) ([]section.SectionResponse, error) {
	sections, err := s.sectionRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list sections: %w", err)
	}

	responses := make([]section.SectionResponse, 0, len(sections))
	for _, sec := range sections {
		responses = append(responses, toSectionResponse(sec))
	}
	return responses, nil
}

func (s *masterServiceImpl) UpdateSection(ctx context.Context, req section.UpdateSectionRequest) (section.SectionResponse, error) {
	if err := req.Validate(); err != nil {
		return section.SectionResponse{}, err
	}

	before, err := s.sectionRepo.GetByID(ctx, req.ID)
	if err != nil {
		return section.SectionResponse{}, err
	}
	if req.DepartmentID != nil {
		if _, err := s.departmentRepo.GetByID(ctx, *req.DepartmentID); err != nil {
			return section.SectionResponse{}, err
		}
	}

	if err := s.sectionRepo.Update(ctx, req); err != nil {
		return section.SectionResponse{}, fmt.Errorf("failed to update section: %w", err)
	}

	updated, err := s.sectionRepo.GetByID(ctx, req.ID)
	if err != nil {
		return section.SectionResponse{}, err
	}
	resp := toSectionResponse(updated)
	s.record(ctx, "update", audit.EntitySection, req.ID, toSectionResponse(before), resp)
	return resp, nil
}

func (s *masterServiceImpl) DeleteSection(ctx context.Context, id string) error {
	before, err := s.sectionRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.sectionRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, "delete", audit.EntitySection, id, toSectionResponse(before), nil)
	return nil
}

func toSectionResponse(sec section.Section) section.SectionResponse {
	return section.SectionResponse{
		ID:             sec.ID,
		DepartmentID:   sec.DepartmentID,
		DepartmentName: sec.DepartmentName,
		Name:           sec.Name,
		Code:           sec.Code,
		HeadID:         sec.HeadID,
		CreatedAt:      sec.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      sec.UpdatedAt.Format(time.RFC3339),
	}
}
