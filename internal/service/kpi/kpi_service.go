package kpi

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/audit"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/kpi"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/master/department"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/user"
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/pagination"
)

type KpiServiceImpl struct {
	kpiRepo        kpi.KpiRepository
	valueRepo      kpi.ValueRepository
	departmentRepo department.DepartmentRepository
	audit          audit.Service
}

func NewKpiService(kpiRepo kpi.KpiRepository, valueRepo kpi.ValueRepository, departmentRepo department.DepartmentRepository, auditService audit.Service) kpi.KpiService {
	return &KpiServiceImpl{
		kpiRepo:        kpiRepo,
		valueRepo:      valueRepo,
		departmentRepo: departmentRepo,
		audit:          auditService,
	}
}

func toKpiResponse(k kpi.Kpi) kpi.KpiResponse {
	return kpi.KpiResponse{
		ID:            k.ID,
		Name:          k.Name,
		Description:   k.Description,
		Unit:          k.Unit,
		DepartmentID:  k.DepartmentID,
		DefaultTarget: k.DefaultTarget,
		Frequency:     string(k.Frequency),
		IsActive:      k.IsActive,
		CreatedAt:     k.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     k.UpdatedAt.Format(time.RFC3339),
	}
}

func (s *KpiServiceImpl) record(ctx context.Context, action, id string, before, after any) {
	if s.audit == nil {
		return
	}
	actor, _ := user.ActorFrom(ctx)
	s.audit.Record(ctx, audit.RecordRequest{
		ActorUserID: actor.UserID,
		Action:      action,
		EntityType:  audit.EntityKpi,
		EntityID:    id,
		Before:      before,
		After:       after,
	})
}

func (s *KpiServiceImpl) Create(ctx context.Context, req kpi.CreateKpiRequest) (kpi.KpiResponse, error) {
	if err := req.Validate(); err != nil {
		return kpi.KpiResponse{}, err
	}
	if req.DepartmentID != nil {
		if _, err := s.departmentRepo.GetByID(ctx, *req.DepartmentID); err != nil {
			return kpi.KpiResponse{}, err
		}
	}

	created, err := s.kpiRepo.Create(ctx, kpi.Kpi{
		Name:          req.Name,
		Description:   req.Description,
		Unit:          req.Unit,
		DepartmentID:  req.DepartmentID,
		DefaultTarget: req.DefaultTarget,
		Frequency:     kpi.Frequency(req.Frequency),
		IsActive:      true,
	})
	if err != nil {
		return kpi.KpiResponse{}, fmt.Errorf("failed to create kpi: %w", err)
	}

	resp := toKpiResponse(created)
	s.record(ctx, "create", created.ID, nil, resp)
	return resp, nil
}

func (s *KpiServiceImpl) Get(ctx context.Context, id string) (kpi.KpiResponse, error) {
	k, err := s.kpiRepo.GetByID(ctx, id)
	if err != nil {
		return kpi.KpiResponse{}, err
	}
	return toKpiResponse(k), nil
}

func (s *KpiServiceImpl) List(ctx context.Context, filter kpi.KpiFilter) (kpi.ListKpiResponse, error) {
	if err := filter.Validate(); err != nil {
		return kpi.ListKpiResponse{}, err
	}

	kpis, total, err := s.kpiRepo.List(ctx, filter)
	if err != nil {
		return kpi.ListKpiResponse{}, fmt.Errorf("failed to list kpis: %w", err)
	}

	responses := make([]kpi.KpiResponse, 0, len(kpis))
	for _, k := range kpis {
		responses = append(responses, toKpiResponse(k))
	}
	totalPages, showing := pagination.Meta(total, filter.Page, filter.Limit)
	return kpi.ListKpiResponse{
		TotalCount: total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: totalPages,
		Showing:    showing,
		Kpis:       responses,
	}, nil
}

func (s *KpiServiceImpl) Update(ctx context.Context, req kpi.UpdateKpiRequest) (kpi.KpiResponse, error) {
	if err := req.Validate(); err != nil {
		return kpi.KpiResponse{}, err
	}

	before, err := s.kpiRepo.GetByID(ctx, req.ID)
	if err != nil {
		return kpi.KpiResponse{}, err
	}
	if req.DepartmentID != nil {
		if _, err := s.departmentRepo.GetByID(ctx, *req.DepartmentID); err != nil {
			return kpi.KpiResponse{}, err
		}
	}

	if err := s.kpiRepo.Update(ctx, req); err != nil {
		return kpi.KpiResponse{}, fmt.Errorf("failed to update kpi: %w", err)
	}

	updated, err := s.kpiRepo.GetByID(ctx, req.ID)
	if err != nil {
		return kpi.KpiResponse{}, err
	}
	resp := toKpiResponse(updated)
	s.record(ctx, "update", req.ID, toKpiResponse(before), resp)
	return resp, nil
}

// Delete removes a definition nobody has submitted against yet. Used KPIs can
// only be deactivated.
func (s *KpiServiceImpl) Delete(ctx context.Context, id string) error {
	before, err := s.kpiRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	n, err := s.valueRepo.CountByKpi(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to count kpi values: %w", err)
	}
	if n > 0 {
		return kpi.ErrKpiInUse
	}

	if err := s.kpiRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, "delete", id, toKpiResponse(before), nil)
	return nil
}
