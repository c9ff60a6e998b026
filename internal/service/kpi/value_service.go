package kpi

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/approval"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/audit"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/kpi"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/reviewcycle"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/user"
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/database"
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/pagination"
	approvalsvc "github.com/cmlabs-hris/kpi-backend-go/internal/service/approval"
)

// ValueServiceImpl runs KPI values through the approval chain. Every transition
// locks the row, applies the workflow method and writes back conditioned on the
// status it read; side effects go out through the dispatcher after commit.
type ValueServiceImpl struct {
	tx          database.Transactor
	valueRepo   kpi.ValueRepository
	kpiRepo     kpi.KpiRepository
	cycleRepo   reviewcycle.ReviewCycleRepository
	dispatcher  *approvalsvc.Dispatcher
	totalWeight float64
	now         func() time.Time
}

func NewValueService(
	tx database.Transactor,
	valueRepo kpi.ValueRepository,
	kpiRepo kpi.KpiRepository,
	cycleRepo reviewcycle.ReviewCycleRepository,
	dispatcher *approvalsvc.Dispatcher,
	totalWeight float64,
) *ValueServiceImpl {
	return &ValueServiceImpl{
		tx:          tx,
		valueRepo:   valueRepo,
		kpiRepo:     kpiRepo,
		cycleRepo:   cycleRepo,
		dispatcher:  dispatcher,
		totalWeight: totalWeight,
		now:         time.Now,
	}
}

var _ kpi.ValueService = (*ValueServiceImpl)(nil)

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func toValueResponse(v kpi.Value) kpi.ValueResponse {
	return kpi.ValueResponse{
		ID:            v.ID,
		KpiID:         v.KpiID,
		KpiName:       v.KpiName,
		EmployeeID:    v.EmployeeID,
		EmployeeName:  v.EmployeeName,
		ReviewCycleID: v.ReviewCycleID,
		TargetValue:   v.TargetValue,
		ActualValue:   v.ActualValue,
		Weight:        v.Weight,
		Notes:         v.Notes,
		HasEvidence:   v.EvidencePath != nil,

		Status:               string(v.Status.Normalize()),
		RejectionReason:      v.RejectionReason,
		RejectedBy:           v.RejectedBy,
		RejectedAt:           formatTime(v.RejectedAt),
		SectionApprovedBy:    v.SectionApprovedBy,
		SectionApprovedAt:    formatTime(v.SectionApprovedAt),
		DepartmentApprovedBy: v.DepartmentApprovedBy,
		DepartmentApprovedAt: formatTime(v.DepartmentApprovedAt),
		ManagerApprovedBy:    v.ManagerApprovedBy,
		ManagerApprovedAt:    formatTime(v.ManagerApprovedAt),
		SubmittedAt:          formatTime(v.SubmittedAt),
		TransitionedAt:       formatTime(v.TransitionedAt),

		CreatedAt: v.CreatedAt.Format(time.RFC3339),
		UpdatedAt: v.UpdatedAt.Format(time.RFC3339),
	}
}

func valueOwner(v kpi.Value) user.Owner {
	return user.Owner{EmployeeID: v.EmployeeID, SectionID: v.SectionID, DepartmentID: v.DepartmentID}
}

func (s *ValueServiceImpl) dispatch(ctx context.Context, action string, actor user.Actor, before approval.Status, v kpi.Value, notify approvalsvc.Notify) {
	if s.dispatcher == nil {
		return
	}
	var reason string
	if v.RejectionReason != nil {
		reason = *v.RejectionReason
	}
	var prev any
	if before != "" {
		prev = map[string]string{"status": string(before)}
	}
	s.dispatcher.Dispatch(ctx, approvalsvc.Event{
		Action:          action,
		EntityType:      audit.EntityKpiValue,
		EntityID:        v.ID,
		Label:           "KPI value " + v.KpiName,
		OwnerEmployeeID: v.EmployeeID,
		Actor:           actor,
		Status:          v.Status,
		Reason:          reason,
		Before:          prev,
		After:           toValueResponse(v),
		Notify:          notify,
	})
}

// checkWeight must run inside a transaction so the budget lock holds until commit.
func (s *ValueServiceImpl) checkWeight(ctx context.Context, employeeID, reviewCycleID, excludeID string, weight float64) error {
	if err := s.valueRepo.LockWeightBudget(ctx, employeeID, reviewCycleID); err != nil {
		return err
	}
	sum, err := s.valueRepo.SumWeight(ctx, employeeID, reviewCycleID, excludeID)
	if err != nil {
		return fmt.Errorf("failed to sum kpi weights: %w", err)
	}
	if sum+weight > s.totalWeight {
		return kpi.ErrWeightBudgetExceeded
	}
	return nil
}

// Submit implements kpi.ValueService.
func (s *ValueServiceImpl) Submit(ctx context.Context, actor user.Actor, req kpi.SubmitValueRequest) (kpi.ValueResponse, error) {
	if err := req.Validate(); err != nil {
		return kpi.ValueResponse{}, err
	}
	if actor.EmployeeID == "" {
		return kpi.ValueResponse{}, user.ErrEmployeeProfileRequired
	}

	var created kpi.Value
	err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		definition, err := s.kpiRepo.GetByID(txCtx, req.KpiID)
		if err != nil {
			return err
		}
		if !definition.IsActive {
			return kpi.ErrKpiInactive
		}
		if _, err := s.cycleRepo.GetByID(txCtx, req.ReviewCycleID); err != nil {
			return err
		}
		if err := s.checkWeight(txCtx, actor.EmployeeID, req.ReviewCycleID, "", req.Weight); err != nil {
			return err
		}

		v := kpi.Value{
			KpiID:         req.KpiID,
			EmployeeID:    actor.EmployeeID,
			ReviewCycleID: req.ReviewCycleID,
			ActualValue:   req.ActualValue,
			Weight:        req.Weight,
			Notes:         req.Notes,
			Workflow:      approval.NewDraft(),
		}
		switch {
		case req.TargetValue != nil:
			v.TargetValue = *req.TargetValue
		case definition.DefaultTarget != nil:
			v.TargetValue = *definition.DefaultTarget
		}
		if !req.Draft {
			if err := v.Submit(s.now()); err != nil {
				return err
			}
		}

		created, err = s.valueRepo.Create(txCtx, v)
		if err != nil {
			return err
		}
		created.KpiName = definition.Name
		return nil
	})
	if err != nil {
		return kpi.ValueResponse{}, err
	}

	if req.Draft {
		s.dispatch(ctx, "create", actor, "", created, approvalsvc.NotifyNone)
	} else {
		s.dispatch(ctx, string(approval.ActionSubmit), actor, "", created, approvalsvc.NotifyWorkflow)
	}
	return toValueResponse(created), nil
}

// SubmitDraft implements kpi.ValueService.
func (s *ValueServiceImpl) SubmitDraft(ctx context.Context, actor user.Actor, id string) (kpi.ValueResponse, error) {
	var v kpi.Value
	var before approval.Status
	err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		var err error
		v, err = s.valueRepo.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if v.EmployeeID != actor.EmployeeID {
			return user.ErrNotOwner
		}
		before = v.Status
		if err := v.Submit(s.now()); err != nil {
			return err
		}
		return s.valueRepo.Update(txCtx, v, before)
	})
	if err != nil {
		return kpi.ValueResponse{}, err
	}

	s.dispatch(ctx, string(approval.ActionSubmit), actor, before, v, approvalsvc.NotifyWorkflow)
	return toValueResponse(v), nil
}

// Get implements kpi.ValueService.
func (s *ValueServiceImpl) Get(ctx context.Context, actor user.Actor, id string) (kpi.ValueResponse, error) {
	v, err := s.valueRepo.GetByID(ctx, id)
	if err != nil {
		return kpi.ValueResponse{}, err
	}
	if !user.CanView(actor, valueOwner(v)) {
		return kpi.ValueResponse{}, user.ErrInsufficientPermissions
	}
	return toValueResponse(v), nil
}

// List implements kpi.ValueService. Approvers are narrowed to the unit they head;
// plain employees only ever see their own values.
func (s *ValueServiceImpl) List(ctx context.Context, actor user.Actor, filter kpi.ValueFilter) (kpi.ListValueResponse, error) {
	switch actor.Role {
	case user.RoleAdmin, user.RoleManager:
	case user.RoleDepartmentHead:
		filter.DepartmentID = &actor.DepartmentID
	case user.RoleSectionHead:
		filter.SectionID = &actor.SectionID
	default:
		filter.EmployeeID = &actor.EmployeeID
	}
	return s.list(ctx, filter)
}

// ListMine implements kpi.ValueService.
func (s *ValueServiceImpl) ListMine(ctx context.Context, actor user.Actor, filter kpi.ValueFilter) (kpi.ListValueResponse, error) {
	if actor.EmployeeID == "" {
		return kpi.ListValueResponse{}, user.ErrEmployeeProfileRequired
	}
	filter.EmployeeID = &actor.EmployeeID
	return s.list(ctx, filter)
}

func (s *ValueServiceImpl) list(ctx context.Context, filter kpi.ValueFilter) (kpi.ListValueResponse, error) {
	if err := filter.Validate(); err != nil {
		return kpi.ListValueResponse{}, err
	}

	values, total, err := s.valueRepo.List(ctx, filter)
	if err != nil {
		return kpi.ListValueResponse{}, fmt.Errorf("failed to list kpi values: %w", err)
	}

	responses := make([]kpi.ValueResponse, 0, len(values))
	for _, v := range values {
		responses = append(responses, toValueResponse(v))
	}
	totalPages, showing := pagination.Meta(total, filter.Page, filter.Limit)
	return kpi.ListValueResponse{
		TotalCount: total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: totalPages,
		Showing:    showing,
		Values:     responses,
	}, nil
}

// transition locks the value, checks the actor may act at stage and applies fn.
func (s *ValueServiceImpl) transition(ctx context.Context, actor user.Actor, id string, stage approval.Stage, fn func(v *kpi.Value) error) (kpi.Value, approval.Status, error) {
	if _, err := approval.ParseStage(string(stage)); err != nil {
		return kpi.Value{}, "", err
	}

	var v kpi.Value
	var before approval.Status
	err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		var err error
		v, err = s.valueRepo.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if !user.CanActAtStage(actor, stage, valueOwner(v)) {
			return user.ErrForbiddenStage
		}
		before = v.Status
		if err := fn(&v); err != nil {
			return err
		}
		return s.valueRepo.Update(txCtx, v, before)
	})
	return v, before, err
}

// Approve implements kpi.ValueService.
func (s *ValueServiceImpl) Approve(ctx context.Context, actor user.Actor, req kpi.ApproveValueRequest) (kpi.ValueResponse, error) {
	v, before, err := s.transition(ctx, actor, req.ID, req.Stage, func(v *kpi.Value) error {
		return v.Approve(req.Stage, actor.UserID, s.now())
	})
	if err != nil {
		return kpi.ValueResponse{}, err
	}

	s.dispatch(ctx, string(approval.ApproveAction(req.Stage)), actor, before, v, approvalsvc.NotifyWorkflow)
	return toValueResponse(v), nil
}

// Reject implements kpi.ValueService.
func (s *ValueServiceImpl) Reject(ctx context.Context, actor user.Actor, req kpi.RejectValueRequest) (kpi.ValueResponse, error) {
	if err := req.Validate(); err != nil {
		return kpi.ValueResponse{}, err
	}

	v, before, err := s.transition(ctx, actor, req.ID, req.Stage, func(v *kpi.Value) error {
		return v.Reject(req.Stage, req.Reason, actor.UserID, s.now())
	})
	if err != nil {
		return kpi.ValueResponse{}, err
	}

	s.dispatch(ctx, string(approval.RejectAction(req.Stage)), actor, before, v, approvalsvc.NotifyWorkflow)
	return toValueResponse(v), nil
}

// Resubmit implements kpi.ValueService. Corrections are applied only when the
// value was actually rejected.
func (s *ValueServiceImpl) Resubmit(ctx context.Context, actor user.Actor, req kpi.ResubmitValueRequest) (kpi.ValueResponse, error) {
	if err := req.Validate(); err != nil {
		return kpi.ValueResponse{}, err
	}

	var v kpi.Value
	var before approval.Status
	err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		var err error
		v, err = s.valueRepo.GetByIDForUpdate(txCtx, req.ID)
		if err != nil {
			return err
		}
		if v.EmployeeID != actor.EmployeeID {
			return user.ErrNotOwner
		}
		before = v.Status
		if err := v.Resubmit(s.now()); err != nil {
			return err
		}

		if req.Weight != nil && *req.Weight != v.Weight {
			if err := s.checkWeight(txCtx, v.EmployeeID, v.ReviewCycleID, v.ID, *req.Weight); err != nil {
				return err
			}
			v.Weight = *req.Weight
		}
		if req.TargetValue != nil {
			v.TargetValue = *req.TargetValue
		}
		if req.ActualValue != nil {
			v.ActualValue = *req.ActualValue
		}
		if req.Notes != nil {
			v.Notes = req.Notes
		}
		return s.valueRepo.Update(txCtx, v, before)
	})
	if err != nil {
		return kpi.ValueResponse{}, err
	}

	s.dispatch(ctx, string(approval.ActionResubmit), actor, before, v, approvalsvc.NotifyWorkflow)
	return toValueResponse(v), nil
}
