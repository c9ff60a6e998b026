package evaluation

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/approval"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/audit"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/employee"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/evaluation"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/reviewcycle"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/user"
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/database"
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/pagination"
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/report"
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/storage"
	approvalsvc "github.com/cmlabs-hris/kpi-backend-go/internal/service/approval"
)

const exportURLExpiry = 15 * time.Minute

type EvaluationServiceImpl struct {
	tx           database.Transactor
	repo         evaluation.EvaluationRepository
	employeeRepo employee.EmployeeRepository
	cycleRepo    reviewcycle.ReviewCycleRepository
	storage      storage.FileStorage
	dispatcher   *approvalsvc.Dispatcher
	template     evaluation.Template
	now          func() time.Time
}

func NewEvaluationService(
	tx database.Transactor,
	repo evaluation.EvaluationRepository,
	employeeRepo employee.EmployeeRepository,
	cycleRepo reviewcycle.ReviewCycleRepository,
	fileStorage storage.FileStorage,
	dispatcher *approvalsvc.Dispatcher,
	template evaluation.Template,
) *EvaluationServiceImpl {
	return &EvaluationServiceImpl{
		tx:           tx,
		repo:         repo,
		employeeRepo: employeeRepo,
		cycleRepo:    cycleRepo,
		storage:      fileStorage,
		dispatcher:   dispatcher,
		template:     template,
		now:          time.Now,
	}
}

var _ evaluation.EvaluationService = (*EvaluationServiceImpl)(nil)

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func toResponse(e evaluation.Evaluation) evaluation.EvaluationResponse {
	return evaluation.EvaluationResponse{
		ID:            e.ID,
		EmployeeID:    e.EmployeeID,
		EmployeeName:  e.EmployeeName,
		ReviewCycleID: e.ReviewCycleID,
		CycleName:     e.CycleName,
		SupervisorID:  e.SupervisorID,
		Objectives:    e.Objectives,

		Rank:         e.Rank,
		TotalScore:   e.TotalScore,
		AverageScore: e.AverageScore,
		IEScore:      e.IEScore,
		ScoringMode:  string(e.ScoringMode),

		Status:          string(e.Status.Normalize()),
		RejectionReason: e.RejectionReason,
		RejectedBy:      e.RejectedBy,
		SubmittedAt:     formatTime(e.SubmittedAt),
		TransitionedAt:  formatTime(e.TransitionedAt),

		SelfReview:       e.SelfReview,
		SectionReview:    e.SectionReview,
		DepartmentReview: e.DepartmentReview,
		ManagerReview:    e.ManagerReview,

		FinalScore:          e.FinalScore,
		CompletedAt:         formatTime(e.CompletedAt),
		EmployeeFeedback:    e.EmployeeFeedback,
		EmployeeConfirmed:   e.EmployeeConfirmed,
		SupervisorConfirmed: e.SupervisorConfirmed,
		Comments:            e.Comments,

		CreatedAt: e.CreatedAt.Format(time.RFC3339),
		UpdatedAt: e.UpdatedAt.Format(time.RFC3339),
	}
}

func owner(e evaluation.Evaluation) user.Owner {
	return user.Owner{EmployeeID: e.EmployeeID, SectionID: e.SectionID, DepartmentID: e.DepartmentID}
}

func isSupervisor(actor user.Actor, e evaluation.Evaluation) bool {
	return e.SupervisorID != nil && actor.EmployeeID != "" && *e.SupervisorID == actor.EmployeeID
}

// canManage reports whether actor may set up another employee's evaluation.
func canManage(actor user.Actor, o user.Owner) bool {
	if actor.Role == user.RoleEmployee {
		return false
	}
	return user.CanView(actor, o)
}

func (s *EvaluationServiceImpl) dispatch(ctx context.Context, action string, actor user.Actor, before approval.Status, e evaluation.Evaluation, notify approvalsvc.Notify, recipients ...string) {
	if s.dispatcher == nil {
		return
	}
	var reason string
	if e.RejectionReason != nil {
		reason = *e.RejectionReason
	}
	var prev any
	if before != "" {
		prev = map[string]string{"status": string(before)}
	}
	label := "Performance evaluation"
	if e.CycleName != "" {
		label += " " + e.CycleName
	}
	s.dispatcher.Dispatch(ctx, approvalsvc.Event{
		Action:          action,
		EntityType:      audit.EntityEvaluation,
		EntityID:        e.ID,
		Label:           label,
		OwnerEmployeeID: e.EmployeeID,
		Actor:           actor,
		Status:          e.Status,
		Reason:          reason,
		Before:          prev,
		After:           toResponse(e),
		Notify:          notify,
		Recipients:      recipients,
	})
}

// mutate locks the evaluation, lets check authorize the actor, applies fn and
// writes the result back conditioned on the status that was read.
func (s *EvaluationServiceImpl) mutate(ctx context.Context, id string, check func(e evaluation.Evaluation) error, fn func(e *evaluation.Evaluation) error) (evaluation.Evaluation, approval.Status, error) {
	var e evaluation.Evaluation
	var before approval.Status
	err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		var err error
		e, err = s.repo.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if err := check(e); err != nil {
			return err
		}
		before = e.Status
		if err := fn(&e); err != nil {
			return err
		}
		return s.repo.Update(txCtx, e, before)
	})
	return e, before, err
}

func ownerOnly(actor user.Actor) func(evaluation.Evaluation) error {
	return func(e evaluation.Evaluation) error {
		if actor.EmployeeID == "" || e.EmployeeID != actor.EmployeeID {
			return user.ErrNotOwner
		}
		return nil
	}
}

func atStage(actor user.Actor, stage approval.Stage) func(evaluation.Evaluation) error {
	return func(e evaluation.Evaluation) error {
		if !user.CanActAtStage(actor, stage, owner(e)) {
			return user.ErrForbiddenStage
		}
		return nil
	}
}

// Create implements evaluation.EvaluationService. Employees may open their own
// evaluation; approvers may open one for anybody in their scope.
func (s *EvaluationServiceImpl) Create(ctx context.Context, actor user.Actor, req evaluation.CreateEvaluationRequest) (evaluation.EvaluationResponse, error) {
	if err := req.Validate(); err != nil {
		return evaluation.EvaluationResponse{}, err
	}

	emp, err := s.employeeRepo.GetByID(ctx, req.EmployeeID)
	if err != nil {
		return evaluation.EvaluationResponse{}, err
	}
	if emp.ID != actor.EmployeeID && !canManage(actor, emp.Owner()) {
		return evaluation.EvaluationResponse{}, user.ErrInsufficientPermissions
	}
	if req.SupervisorID != nil {
		if _, err := s.employeeRepo.GetByID(ctx, *req.SupervisorID); err != nil {
			return evaluation.EvaluationResponse{}, err
		}
	}

	var created evaluation.Evaluation
	err = s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if _, err := s.cycleRepo.GetByID(txCtx, req.ReviewCycleID); err != nil {
			return err
		}
		exists, err := s.repo.ExistsForEmployeeCycle(txCtx, req.EmployeeID, req.ReviewCycleID)
		if err != nil {
			return fmt.Errorf("failed to check evaluation existence: %w", err)
		}
		if exists {
			return evaluation.ErrEvaluationExists
		}

		e := evaluation.Evaluation{
			EmployeeID:    req.EmployeeID,
			ReviewCycleID: req.ReviewCycleID,
			SupervisorID:  req.SupervisorID,
			Objectives:    s.template.NewObjectives(),
			ScoringMode:   s.template.ScoringMode,
			Comments:      req.Comments,
			Workflow:      approval.NewDraft(),
		}
		e.Recalculate(s.template)

		created, err = s.repo.Create(txCtx, e)
		return err
	})
	if err != nil {
		return evaluation.EvaluationResponse{}, err
	}

	s.dispatch(ctx, "create", actor, "", created, approvalsvc.NotifyNone)
	return toResponse(created), nil
}

func (s *EvaluationServiceImpl) Get(ctx context.Context, actor user.Actor, id string) (evaluation.EvaluationResponse, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return evaluation.EvaluationResponse{}, err
	}
	if !user.CanView(actor, owner(e)) && !isSupervisor(actor, e) {
		return evaluation.EvaluationResponse{}, user.ErrInsufficientPermissions
	}
	return toResponse(e), nil
}

func (s *EvaluationServiceImpl) List(ctx context.Context, actor user.Actor, filter evaluation.EvaluationFilter) (evaluation.ListEvaluationResponse, error) {
	switch actor.Role {
	case user.RoleAdmin, user.RoleManager:
	case user.RoleDepartmentHead:
		filter.DepartmentID = &actor.DepartmentID
	case user.RoleSectionHead:
		filter.SectionID = &actor.SectionID
	default:
		filter.EmployeeID = &actor.EmployeeID
	}
	if err := filter.Validate(); err != nil {
		return evaluation.ListEvaluationResponse{}, err
	}

	evaluations, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return evaluation.ListEvaluationResponse{}, fmt.Errorf("failed to list evaluations: %w", err)
	}

	responses := make([]evaluation.EvaluationResponse, 0, len(evaluations))
	for _, e := range evaluations {
		responses = append(responses, toResponse(e))
	}
	totalPages, showing := pagination.Meta(total, filter.Page, filter.Limit)
	return evaluation.ListEvaluationResponse{
		TotalCount:  total,
		Page:        filter.Page,
		Limit:       filter.Limit,
		TotalPages:  totalPages,
		Showing:     showing,
		Evaluations: responses,
	}, nil
}

// UpdateObjectives edits descriptions, targets, self scores and weights while the
// evaluation is a draft or has been sent back.
func (s *EvaluationServiceImpl) UpdateObjectives(ctx context.Context, actor user.Actor, req evaluation.UpdateObjectivesRequest) (evaluation.EvaluationResponse, error) {
	if err := req.Validate(); err != nil {
		return evaluation.EvaluationResponse{}, err
	}

	check := func(e evaluation.Evaluation) error {
		if e.EmployeeID == actor.EmployeeID || isSupervisor(actor, e) || canManage(actor, owner(e)) {
			return nil
		}
		return user.ErrInsufficientPermissions
	}
	e, _, err := s.mutate(ctx, req.ID, check, func(e *evaluation.Evaluation) error {
		if !e.CanEditObjectives() {
			return evaluation.ErrObjectivesLocked
		}
		for _, in := range req.Objectives {
			o := e.Objective(in.Code)
			if o == nil {
				return evaluation.ErrObjectiveNotFound
			}
			if in.Description != nil {
				o.Description = strings.TrimSpace(*in.Description)
			}
			if in.Target != nil {
				o.Target = strings.TrimSpace(*in.Target)
			}
			if in.SelfScore != nil {
				score := *in.SelfScore
				o.SelfScore = &score
			}
			if in.Weight != nil {
				o.Weight = *in.Weight
			}
		}
		if s.template.TotalWeight > 0 && e.TotalWeight() > s.template.TotalWeight {
			return evaluation.ErrWeightBudgetExceeded
		}
		if req.Comments != nil {
			e.Comments = req.Comments
		}
		e.Recalculate(s.template)
		return nil
	})
	if err != nil {
		return evaluation.EvaluationResponse{}, err
	}

	s.dispatch(ctx, "update_objectives", actor, "", e, approvalsvc.NotifyNone)
	return toResponse(e), nil
}

func (s *EvaluationServiceImpl) Submit(ctx context.Context, actor user.Actor, id string) (evaluation.EvaluationResponse, error) {
	e, before, err := s.mutate(ctx, id, ownerOnly(actor), func(e *evaluation.Evaluation) error {
		return e.Submit(s.now())
	})
	if err != nil {
		return evaluation.EvaluationResponse{}, err
	}

	s.dispatch(ctx, string(approval.ActionSubmit), actor, before, e, approvalsvc.NotifyWorkflow)
	return toResponse(e), nil
}

func (s *EvaluationServiceImpl) SubmitSelfReview(ctx context.Context, actor user.Actor, req evaluation.SelfReviewRequest) (evaluation.EvaluationResponse, error) {
	if err := req.Validate(); err != nil {
		return evaluation.EvaluationResponse{}, err
	}

	e, _, err := s.mutate(ctx, req.ID, ownerOnly(actor), func(e *evaluation.Evaluation) error {
		return e.SubmitSelfReview(actor.EmployeeID, req.Score, req.Comment, s.now())
	})
	if err != nil {
		return evaluation.EvaluationResponse{}, err
	}

	s.dispatch(ctx, "self_review", actor, "", e, approvalsvc.NotifyNone)
	return toResponse(e), nil
}

// SubmitStageReview records the stage score and approves the stage in one write.
func (s *EvaluationServiceImpl) SubmitStageReview(ctx context.Context, actor user.Actor, req evaluation.StageReviewRequest) (evaluation.EvaluationResponse, error) {
	if _, err := approval.ParseStage(string(req.Stage)); err != nil {
		return evaluation.EvaluationResponse{}, err
	}
	if err := req.Validate(); err != nil {
		return evaluation.EvaluationResponse{}, err
	}

	e, before, err := s.mutate(ctx, req.ID, atStage(actor, req.Stage), func(e *evaluation.Evaluation) error {
		return e.SubmitStageReview(req.Stage, actor.UserID, req.Score, req.Comment, req.ToObjectiveScores(), s.template, s.now())
	})
	if err != nil {
		return evaluation.EvaluationResponse{}, err
	}

	s.dispatch(ctx, string(approval.ApproveAction(req.Stage)), actor, before, e, approvalsvc.NotifyWorkflow)
	return toResponse(e), nil
}

func (s *EvaluationServiceImpl) RejectStage(ctx context.Context, actor user.Actor, req evaluation.RejectRequest) (evaluation.EvaluationResponse, error) {
	if _, err := approval.ParseStage(string(req.Stage)); err != nil {
		return evaluation.EvaluationResponse{}, err
	}
	if err := req.Validate(); err != nil {
		return evaluation.EvaluationResponse{}, err
	}

	e, before, err := s.mutate(ctx, req.ID, atStage(actor, req.Stage), func(e *evaluation.Evaluation) error {
		return e.RejectStage(req.Stage, actor.UserID, req.Reason, s.now())
	})
	if err != nil {
		return evaluation.EvaluationResponse{}, err
	}

	s.dispatch(ctx, string(approval.RejectAction(req.Stage)), actor, before, e, approvalsvc.NotifyWorkflow)
	return toResponse(e), nil
}

func (s *EvaluationServiceImpl) Resubmit(ctx context.Context, actor user.Actor, id string) (evaluation.EvaluationResponse, error) {
	e, before, err := s.mutate(ctx, id, ownerOnly(actor), func(e *evaluation.Evaluation) error {
		if err := e.ResubmitForReview(s.now()); err != nil {
			return err
		}
		e.Recalculate(s.template)
		return nil
	})
	if err != nil {
		return evaluation.EvaluationResponse{}, err
	}

	s.dispatch(ctx, string(approval.ActionResubmit), actor, before, e, approvalsvc.NotifyWorkflow)
	return toResponse(e), nil
}

// CompleteReview freezes the final score. Only someone who may act at the manager
// stage for the employee can complete it.
func (s *EvaluationServiceImpl) CompleteReview(ctx context.Context, actor user.Actor, id string) (evaluation.EvaluationResponse, error) {
	e, _, err := s.mutate(ctx, id, atStage(actor, approval.StageManager), func(e *evaluation.Evaluation) error {
		return e.CompleteReview(s.template.StageWeights, s.now())
	})
	if err != nil {
		return evaluation.EvaluationResponse{}, err
	}

	s.dispatch(ctx, "complete", actor, "", e, approvalsvc.NotifyCompleted)
	return toResponse(e), nil
}

func (s *EvaluationServiceImpl) SubmitEmployeeFeedback(ctx context.Context, actor user.Actor, req evaluation.FeedbackRequest) (evaluation.EvaluationResponse, error) {
	e, _, err := s.mutate(ctx, req.ID, ownerOnly(actor), func(e *evaluation.Evaluation) error {
		return e.SubmitEmployeeFeedback(req.Feedback, s.now())
	})
	if err != nil {
		return evaluation.EvaluationResponse{}, err
	}

	var reviewers []string
	for _, st := range approval.Stages {
		if r := e.StageReview(st); r != nil {
			reviewers = append(reviewers, r.ReviewerID)
		}
	}
	s.dispatch(ctx, "feedback", actor, "", e, approvalsvc.NotifyReviewers, reviewers...)
	return toResponse(e), nil
}

// Confirm acknowledges a completed evaluation. The evaluated employee sets the
// employee flag; the supervisor or any approver in scope sets the supervisor flag.
func (s *EvaluationServiceImpl) Confirm(ctx context.Context, actor user.Actor, id string) (evaluation.EvaluationResponse, error) {
	var asEmployee bool
	check := func(e evaluation.Evaluation) error {
		if actor.EmployeeID != "" && e.EmployeeID == actor.EmployeeID {
			asEmployee = true
			return nil
		}
		if isSupervisor(actor, e) {
			return nil
		}
		for _, st := range approval.Stages {
			if user.CanActAtStage(actor, st, owner(e)) {
				return nil
			}
		}
		return evaluation.ErrConfirmationNotAllowed
	}

	e, _, err := s.mutate(ctx, id, check, func(e *evaluation.Evaluation) error {
		return e.Confirm(asEmployee)
	})
	if err != nil {
		return evaluation.EvaluationResponse{}, err
	}

	s.dispatch(ctx, "confirm", actor, "", e, approvalsvc.NotifyNone)
	return toResponse(e), nil
}

// Export renders the evaluation as a PDF, stores it and returns a download link.
func (s *EvaluationServiceImpl) Export(ctx context.Context, actor user.Actor, id string) (evaluation.ExportResponse, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return evaluation.ExportResponse{}, err
	}
	if !user.CanView(actor, owner(e)) && !isSupervisor(actor, e) {
		return evaluation.ExportResponse{}, user.ErrInsufficientPermissions
	}

	emp, err := s.employeeRepo.GetByID(ctx, e.EmployeeID)
	if err != nil {
		return evaluation.ExportResponse{}, fmt.Errorf("failed to get employee: %w", err)
	}

	pdf, err := report.RenderEvaluationSheet(s.sheet(e, emp))
	if err != nil {
		return evaluation.ExportResponse{}, fmt.Errorf("failed to render evaluation sheet: %w", err)
	}

	fileName := fmt.Sprintf("evaluation-%s-%s.pdf", emp.EmployeeCode, safeName(e.CycleName))
	path := fmt.Sprintf("evaluations/%s/%s", e.ID, fileName)
	key, err := s.storage.Upload(ctx, bytes.NewReader(pdf), int64(len(pdf)), path, "application/pdf")
	if err != nil {
		return evaluation.ExportResponse{}, fmt.Errorf("failed to store evaluation sheet: %w", err)
	}
	url, err := s.storage.GetURL(ctx, key, exportURLExpiry)
	if err != nil {
		return evaluation.ExportResponse{}, fmt.Errorf("failed to get evaluation sheet url: %w", err)
	}

	return evaluation.ExportResponse{URL: url, FileName: fileName}, nil
}

func (s *EvaluationServiceImpl) sheet(e evaluation.Evaluation, emp employee.Employee) report.EvaluationSheet {
	sheet := report.EvaluationSheet{
		EmployeeName: emp.FullName,
		EmployeeCode: emp.EmployeeCode,
		CycleName:    e.CycleName,
		Status:       string(e.Status.Normalize()),
		TotalScore:   e.TotalScore,
		AverageScore: e.AverageScore,
		IEScore:      e.IEScore,
		Rank:         e.Rank,
		FinalScore:   e.FinalScore,
		GeneratedAt:  s.now(),
	}
	for _, o := range e.Objectives {
		sheet.Objectives = append(sheet.Objectives, report.SheetObjective{
			Code:            o.Code,
			Description:     o.Description,
			Target:          o.Target,
			Weight:          o.Weight,
			SelfScore:       o.SelfScore,
			SupervisorScore: o.SupervisorScore,
		})
	}
	if e.SelfReview != nil {
		sheet.Reviews = append(sheet.Reviews, report.SheetReview{Stage: "self", Score: e.SelfReview.Score, Comment: e.SelfReview.Comment})
	}
	for _, st := range approval.Stages {
		if r := e.StageReview(st); r != nil {
			sheet.Reviews = append(sheet.Reviews, report.SheetReview{Stage: string(st), Score: r.Score, Comment: r.Comment})
		}
	}
	if e.EmployeeFeedback != nil {
		sheet.EmployeeFeedback = *e.EmployeeFeedback
	}
	return sheet
}

// safeName keeps letters, digits and dashes so the name is usable as a storage key.
func safeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		case r == ' ' || r == '_':
			b.WriteByte('-')
		}
	}
	if b.Len() == 0 {
		return "cycle"
	}
	return b.String()
}
