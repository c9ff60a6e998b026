package evaluation

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/approval"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/evaluation"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/notification"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/reviewcycle"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/user"
	approvalsvc "github.com/cmlabs-hris/kpi-backend-go/internal/service/approval"
	"github.com/cmlabs-hris/kpi-backend-go/internal/service/servicetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 4, 2, 9, 30, 0, 0, time.UTC)

type evalFixture struct {
	org         *servicetest.Org
	cycles      *servicetest.ReviewCycleRepository
	evaluations *servicetest.EvaluationRepository
	storage     *servicetest.Storage
	notifier    *servicetest.Notifier
	auditor     *servicetest.Auditor
	service     *EvaluationServiceImpl
	cycle       reviewcycle.ReviewCycle
}

func newEvalFixture(t *testing.T) *evalFixture {
	t.Helper()
	f := &evalFixture{
		org:      servicetest.NewOrg(),
		cycles:   servicetest.NewReviewCycleRepository(),
		storage:  servicetest.NewStorage(),
		notifier: servicetest.NewNotifier(),
		auditor:  &servicetest.Auditor{},
	}
	f.evaluations = servicetest.NewEvaluationRepository(f.org.Employees, f.cycles)

	var err error
	f.cycle, err = f.cycles.Create(context.Background(), reviewcycle.ReviewCycle{
		Name:      "Q1 2025",
		StartDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	tmpl, err := evaluation.DefaultTemplate()
	require.NoError(t, err)

	dispatcher := approvalsvc.NewDispatcher(f.org.Employees, f.org.Users, f.notifier, f.auditor, "http://app.test")
	f.service = NewEvaluationService(&servicetest.Transactor{}, f.evaluations, f.org.Employees, f.cycles, f.storage, dispatcher, tmpl)
	f.service.now = func() time.Time { return fixedNow }
	return f
}

func (f *evalFixture) create(t *testing.T, actor user.Actor, employeeID string) evaluation.EvaluationResponse {
	t.Helper()
	supervisor := f.org.SectionHead.ID
	resp, err := f.service.Create(context.Background(), actor, evaluation.CreateEvaluationRequest{
		EmployeeID:    employeeID,
		ReviewCycleID: f.cycle.ID,
		SupervisorID:  &supervisor,
	})
	require.NoError(t, err)
	return resp
}

func (f *evalFixture) review(t *testing.T, actor user.Actor, id string, stage approval.Stage, score float64) evaluation.EvaluationResponse {
	t.Helper()
	resp, err := f.service.SubmitStageReview(context.Background(), actor, evaluation.StageReviewRequest{
		ID: id, Stage: stage, Score: score, Comment: "reviewed",
	})
	require.NoError(t, err)
	return resp
}

func ptr[T any](v T) *T { return &v }

func TestEvaluationService_Create(t *testing.T) {
	f := newEvalFixture(t)
	ctx := context.Background()

	e := f.create(t, f.org.SectionHead.Actor(), f.org.Staff.ID)
	assert.Equal(t, string(approval.StatusDraft), e.Status)
	assert.Len(t, e.Objectives, len(evaluation.ObjectiveCodes))
	assert.Equal(t, "separate", e.ScoringMode)
	assert.Equal(t, "Q1 2025", e.CycleName)
	assert.Equal(t, []string{"create"}, f.auditor.Actions())

	_, err := f.service.Create(ctx, f.org.Staff.Actor(), evaluation.CreateEvaluationRequest{EmployeeID: f.org.Staff.ID, ReviewCycleID: f.cycle.ID})
	assert.ErrorIs(t, err, evaluation.ErrEvaluationExists)

	// a plain employee cannot open someone else's evaluation
	_, err = f.service.Create(ctx, f.org.Staff.Actor(), evaluation.CreateEvaluationRequest{EmployeeID: f.org.Colleague.ID, ReviewCycleID: f.cycle.ID})
	assert.ErrorIs(t, err, user.ErrInsufficientPermissions)

	// nor can a section head outside their section
	_, err = f.service.Create(ctx, f.org.SectionHead.Actor(), evaluation.CreateEvaluationRequest{EmployeeID: f.org.Colleague.ID, ReviewCycleID: f.cycle.ID})
	assert.ErrorIs(t, err, user.ErrInsufficientPermissions)

	_, err = f.service.Create(ctx, f.org.Colleague.Actor(), evaluation.CreateEvaluationRequest{EmployeeID: f.org.Colleague.ID, ReviewCycleID: "0b8f1c5e-1111-4a2b-9c3d-000000000000"})
	assert.ErrorIs(t, err, reviewcycle.ErrReviewCycleNotFound)
}

func TestEvaluationService_UpdateObjectives(t *testing.T) {
	f := newEvalFixture(t)
	ctx := context.Background()
	e := f.create(t, f.org.SectionHead.Actor(), f.org.Staff.ID)

	// the default catalogue already uses the full budget
	_, err := f.service.UpdateObjectives(ctx, f.org.Staff.Actor(), evaluation.UpdateObjectivesRequest{
		ID:         e.ID,
		Objectives: []evaluation.ObjectiveInput{{Code: "A1", Weight: ptr(25.0)}},
	})
	assert.ErrorIs(t, err, evaluation.ErrWeightBudgetExceeded)

	updated, err := f.service.UpdateObjectives(ctx, f.org.Staff.Actor(), evaluation.UpdateObjectivesRequest{
		ID: e.ID,
		Objectives: []evaluation.ObjectiveInput{
			{Code: "A1", Description: ptr("  Close 40 tickets  "), Target: ptr("40"), SelfScore: ptr(75.0), Weight: ptr(15.0)},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Close 40 tickets", updated.Objectives[0].Description)
	assert.Equal(t, 15.0, updated.Objectives[0].Weight)
	require.NotNil(t, updated.Objectives[0].SelfScore)
	assert.Equal(t, 75.0, *updated.Objectives[0].SelfScore)

	_, err = f.service.UpdateObjectives(ctx, f.org.Colleague.Actor(), evaluation.UpdateObjectivesRequest{
		ID:         e.ID,
		Objectives: []evaluation.ObjectiveInput{{Code: "A2", Target: ptr("x")}},
	})
	assert.ErrorIs(t, err, user.ErrInsufficientPermissions)

	_, err = f.service.Submit(ctx, f.org.Staff.Actor(), e.ID)
	require.NoError(t, err)

	_, err = f.service.UpdateObjectives(ctx, f.org.Staff.Actor(), evaluation.UpdateObjectivesRequest{
		ID:         e.ID,
		Objectives: []evaluation.ObjectiveInput{{Code: "A2", Target: ptr("x")}},
	})
	assert.ErrorIs(t, err, evaluation.ErrObjectivesLocked)
}

func TestEvaluationService_FullReview(t *testing.T) {
	f := newEvalFixture(t)
	ctx := context.Background()
	e := f.create(t, f.org.SectionHead.Actor(), f.org.Staff.ID)

	_, err := f.service.SubmitSelfReview(ctx, f.org.Staff.Actor(), evaluation.SelfReviewRequest{ID: e.ID, Score: 70, Comment: "solid quarter"})
	require.NoError(t, err)

	_, err = f.service.Submit(ctx, f.org.SectionHead.Actor(), e.ID)
	assert.ErrorIs(t, err, user.ErrNotOwner)

	submitted, err := f.service.Submit(ctx, f.org.Staff.Actor(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, string(approval.StatusPendingSectionApproval), submitted.Status)
	require.Len(t, f.notifier.Sent(notification.TypeApprovalRequested), 1)
	assert.Equal(t, f.org.SectionHead.UserID, f.notifier.Sent(notification.TypeApprovalRequested)[0].RecipientID)

	_, err = f.service.SubmitStageReview(ctx, f.org.DeptHead.Actor(), evaluation.StageReviewRequest{ID: e.ID, Stage: approval.StageSection, Score: 80})
	assert.ErrorIs(t, err, user.ErrForbiddenStage)

	got, err := f.service.SubmitStageReview(ctx, f.org.SectionHead.Actor(), evaluation.StageReviewRequest{
		ID: e.ID, Stage: approval.StageSection, Score: 80, Comment: "good",
		ObjectiveScores: []evaluation.ObjectiveScoreInput{{Code: "A1", SupervisorScore: 80}},
	})
	require.NoError(t, err)
	assert.Equal(t, string(approval.StatusPendingDeptApproval), got.Status)
	require.NotNil(t, got.SectionReview)
	assert.Equal(t, f.org.SectionHead.UserID, got.SectionReview.ReviewerID)
	assert.Greater(t, got.TotalScore, 0.0)

	// a stage review freezes the self review
	_, err = f.service.SubmitSelfReview(ctx, f.org.Staff.Actor(), evaluation.SelfReviewRequest{ID: e.ID, Score: 95})
	assert.ErrorIs(t, err, approval.ErrPreconditionViolation)

	f.review(t, f.org.DeptHead.Actor(), e.ID, approval.StageDepartment, 90)
	approved := f.review(t, f.org.Manager.Actor(), e.ID, approval.StageManager, 85)
	assert.Equal(t, string(approval.StatusApproved), approved.Status)
	assert.Nil(t, approved.FinalScore)

	_, err = f.service.CompleteReview(ctx, f.org.SectionHead.Actor(), e.ID)
	assert.ErrorIs(t, err, user.ErrForbiddenStage)

	completed, err := f.service.CompleteReview(ctx, f.org.Manager.Actor(), e.ID)
	require.NoError(t, err)
	require.NotNil(t, completed.FinalScore)
	// self 0, section 30, department 30, manager 40
	assert.Equal(t, 85.0, *completed.FinalScore)
	require.NotNil(t, completed.CompletedAt)
	assert.Equal(t, fixedNow.Format(time.RFC3339), *completed.CompletedAt)
	assert.Len(t, f.notifier.Sent(notification.TypeEvaluationComplete), 1)

	_, err = f.service.CompleteReview(ctx, f.org.Manager.Actor(), e.ID)
	assert.ErrorIs(t, err, approval.ErrPreconditionViolation)

	withFeedback, err := f.service.SubmitEmployeeFeedback(ctx, f.org.Staff.Actor(), evaluation.FeedbackRequest{ID: e.ID, Feedback: "Thanks, agreed."})
	require.NoError(t, err)
	require.NotNil(t, withFeedback.EmployeeFeedback)
	feedback := f.notifier.Sent(notification.TypeEvaluationFeedback)
	require.Len(t, feedback, 3)
	var recipients []string
	for _, n := range feedback {
		recipients = append(recipients, n.RecipientID)
	}
	assert.ElementsMatch(t, []string{f.org.SectionHead.UserID, f.org.DeptHead.UserID, f.org.Manager.UserID}, recipients)

	_, err = f.service.Confirm(ctx, f.org.Colleague.Actor(), e.ID)
	assert.ErrorIs(t, err, evaluation.ErrConfirmationNotAllowed)

	confirmed, err := f.service.Confirm(ctx, f.org.Staff.Actor(), e.ID)
	require.NoError(t, err)
	assert.True(t, confirmed.EmployeeConfirmed)
	assert.False(t, confirmed.SupervisorConfirmed)

	confirmed, err = f.service.Confirm(ctx, f.org.SectionHead.Actor(), e.ID)
	require.NoError(t, err)
	assert.True(t, confirmed.EmployeeConfirmed)
	assert.True(t, confirmed.SupervisorConfirmed)
}

func TestEvaluationService_RejectAndResubmit(t *testing.T) {
	f := newEvalFixture(t)
	ctx := context.Background()
	e := f.create(t, f.org.SectionHead.Actor(), f.org.Staff.ID)
	_, err := f.service.Submit(ctx, f.org.Staff.Actor(), e.ID)
	require.NoError(t, err)

	f.review(t, f.org.SectionHead.Actor(), e.ID, approval.StageSection, 60)

	_, err = f.service.RejectStage(ctx, f.org.DeptHead.Actor(), evaluation.RejectRequest{ID: e.ID, Stage: approval.StageDepartment, Reason: "  "})
	require.Error(t, err)

	rejected, err := f.service.RejectStage(ctx, f.org.DeptHead.Actor(), evaluation.RejectRequest{ID: e.ID, Stage: approval.StageDepartment, Reason: "targets are vague"})
	require.NoError(t, err)
	assert.Equal(t, string(approval.StatusRejectedByDept), rejected.Status)
	require.NotNil(t, rejected.RejectionReason)
	assert.Equal(t, "targets are vague", *rejected.RejectionReason)

	sent := f.notifier.Sent(notification.TypeApprovalRejected)
	require.Len(t, sent, 1)
	assert.Equal(t, f.org.Staff.UserID, sent[0].RecipientID)

	// rejected evaluations can be corrected again
	_, err = f.service.UpdateObjectives(ctx, f.org.Staff.Actor(), evaluation.UpdateObjectivesRequest{
		ID:         e.ID,
		Objectives: []evaluation.ObjectiveInput{{Code: "B1", Target: ptr("Mentor one junior")}},
	})
	require.NoError(t, err)

	_, err = f.service.Resubmit(ctx, f.org.Colleague.Actor(), e.ID)
	assert.ErrorIs(t, err, user.ErrNotOwner)

	resubmitted, err := f.service.Resubmit(ctx, f.org.Staff.Actor(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, string(approval.StatusPendingSectionApproval), resubmitted.Status)
	assert.Nil(t, resubmitted.SectionReview)
	assert.Nil(t, resubmitted.RejectionReason)
}

func TestEvaluationService_Export(t *testing.T) {
	f := newEvalFixture(t)
	ctx := context.Background()
	e := f.create(t, f.org.SectionHead.Actor(), f.org.Staff.ID)

	_, err := f.service.Export(ctx, f.org.Colleague.Actor(), e.ID)
	assert.ErrorIs(t, err, user.ErrInsufficientPermissions)

	out, err := f.service.Export(ctx, f.org.Staff.Actor(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, "evaluation-EMP-001-Q1-2025.pdf", out.FileName)

	key := "evaluations/" + e.ID + "/" + out.FileName
	assert.Equal(t, "http://files.test/"+key, out.URL)
	require.Contains(t, f.storage.Files, key)
	assert.Equal(t, "application/pdf", f.storage.Types[key])
	assert.True(t, strings.HasPrefix(string(f.storage.Files[key]), "%PDF"))
}

func TestEvaluationService_ListScoping(t *testing.T) {
	f := newEvalFixture(t)
	ctx := context.Background()
	f.create(t, f.org.SectionHead.Actor(), f.org.Staff.ID)
	f.create(t, f.org.Manager.Actor(), f.org.Colleague.ID)

	mine, err := f.service.List(ctx, f.org.Staff.Actor(), evaluation.EvaluationFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), mine.TotalCount)

	section, err := f.service.List(ctx, f.org.SectionHead.Actor(), evaluation.EvaluationFilter{})
	require.NoError(t, err)
	require.Len(t, section.Evaluations, 1)
	assert.Equal(t, f.org.Staff.ID, section.Evaluations[0].EmployeeID)

	all, err := f.service.List(ctx, f.org.Manager.Actor(), evaluation.EvaluationFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), all.TotalCount)
	assert.Equal(t, "1-2 of 2", all.Showing)

	_, err = f.service.Get(ctx, f.org.Colleague.Actor(), section.Evaluations[0].ID)
	assert.ErrorIs(t, err, user.ErrInsufficientPermissions)
}
