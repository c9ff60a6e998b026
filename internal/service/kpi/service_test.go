package kpi

import (
	"context"
	"testing"
	"time"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/approval"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/kpi"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/notification"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/reviewcycle"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/user"
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/validator"
	approvalsvc "github.com/cmlabs-hris/kpi-backend-go/internal/service/approval"
	"github.com/cmlabs-hris/kpi-backend-go/internal/service/servicetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

type valueFixture struct {
	org      *servicetest.Org
	kpis     *servicetest.KpiRepository
	values   *servicetest.ValueRepository
	cycles   *servicetest.ReviewCycleRepository
	notifier *servicetest.Notifier
	auditor  *servicetest.Auditor
	service  *ValueServiceImpl
	sales    kpi.Kpi
	cycle    reviewcycle.ReviewCycle
}

func newValueFixture(t *testing.T) *valueFixture {
	t.Helper()
	ctx := context.Background()
	f := &valueFixture{
		org:      servicetest.NewOrg(),
		kpis:     servicetest.NewKpiRepository(),
		cycles:   servicetest.NewReviewCycleRepository(),
		notifier: servicetest.NewNotifier(),
		auditor:  &servicetest.Auditor{},
	}
	f.values = servicetest.NewValueRepository(f.org.Employees, f.kpis)

	target := 100.0
	var err error
	f.sales, err = f.kpis.Create(ctx, kpi.Kpi{Name: "Sales", Unit: "IDR", DefaultTarget: &target, Frequency: kpi.FrequencyMonthly, IsActive: true})
	require.NoError(t, err)
	f.cycle, err = f.cycles.Create(ctx, reviewcycle.ReviewCycle{
		Name:      "Q1-2025",
		StartDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	dispatcher := approvalsvc.NewDispatcher(f.org.Employees, f.org.Users, f.notifier, f.auditor, "http://app.test")
	f.service = NewValueService(&servicetest.Transactor{}, f.values, f.kpis, f.cycles, dispatcher, 160)
	f.service.now = func() time.Time { return fixedNow }
	return f
}

func (f *valueFixture) submit(t *testing.T, owner user.Actor, weight float64) kpi.ValueResponse {
	t.Helper()
	resp, err := f.service.Submit(context.Background(), owner, kpi.SubmitValueRequest{
		KpiID:         f.sales.ID,
		ReviewCycleID: f.cycle.ID,
		ActualValue:   85,
		Weight:        weight,
	})
	require.NoError(t, err)
	return resp
}

func TestValueService_FullChain(t *testing.T) {
	f := newValueFixture(t)
	ctx := context.Background()

	v := f.submit(t, f.org.Staff.Actor(), 40)
	assert.Equal(t, string(approval.StatusPendingSectionApproval), v.Status)
	assert.Equal(t, 100.0, v.TargetValue, "falls back to the kpi default target")
	requested := f.notifier.Sent(notification.TypeApprovalRequested)
	require.Len(t, requested, 1)
	assert.Equal(t, f.org.SectionHead.UserID, requested[0].RecipientID)

	chain := []struct {
		stage  approval.Stage
		actor  user.Actor
		status approval.Status
		next   string
	}{
		{approval.StageSection, f.org.SectionHead.Actor(), approval.StatusPendingDeptApproval, f.org.DeptHead.UserID},
		{approval.StageDepartment, f.org.DeptHead.Actor(), approval.StatusPendingManagerApproval, f.org.Manager.UserID},
		{approval.StageManager, f.org.Manager.Actor(), approval.StatusApproved, ""},
	}
	for _, step := range chain {
		f.notifier.Reset()
		got, err := f.service.Approve(ctx, step.actor, kpi.ApproveValueRequest{ID: v.ID, Stage: step.stage})
		require.NoError(t, err, step.stage)
		assert.Equal(t, string(step.status), got.Status)

		if step.next != "" {
			sent := f.notifier.Sent(notification.TypeApprovalRequested)
			require.Len(t, sent, 1, step.stage)
			assert.Equal(t, step.next, sent[0].RecipientID)
		}
	}

	approved := f.notifier.Sent(notification.TypeApprovalApproved)
	require.Len(t, approved, 1)
	assert.Equal(t, f.org.Staff.UserID, approved[0].RecipientID)

	final, err := f.service.Get(ctx, f.org.Staff.Actor(), v.ID)
	require.NoError(t, err)
	require.NotNil(t, final.SectionApprovedBy)
	assert.Equal(t, f.org.SectionHead.UserID, *final.SectionApprovedBy)
	assert.Equal(t, f.org.Manager.UserID, *final.ManagerApprovedBy)
	assert.Equal(t, fixedNow.Format(time.RFC3339), *final.ManagerApprovedAt)

	assert.Equal(t, []string{"submit", "approve_section", "approve_department", "approve_manager"}, f.auditor.Actions())
}

func TestValueService_StageScoping(t *testing.T) {
	f := newValueFixture(t)
	ctx := context.Background()
	colleagueValue := f.submit(t, f.org.Colleague.Actor(), 40)

	// section head of another section
	_, err := f.service.Approve(ctx, f.org.SectionHead.Actor(), kpi.ApproveValueRequest{ID: colleagueValue.ID, Stage: approval.StageSection})
	assert.ErrorIs(t, err, user.ErrForbiddenStage)

	// right scope, wrong role for the stage
	_, err = f.service.Approve(ctx, f.org.DeptHead.Actor(), kpi.ApproveValueRequest{ID: colleagueValue.ID, Stage: approval.StageSection})
	assert.ErrorIs(t, err, user.ErrForbiddenStage)

	// nobody approves their own value, not even an admin
	adminValue := f.submit(t, f.org.Admin.Actor(), 40)
	_, err = f.service.Approve(ctx, f.org.Admin.Actor(), kpi.ApproveValueRequest{ID: adminValue.ID, Stage: approval.StageSection})
	assert.ErrorIs(t, err, user.ErrForbiddenStage)

	// admin may act at any stage for others
	v, err := f.service.Approve(ctx, f.org.Admin.Actor(), kpi.ApproveValueRequest{ID: colleagueValue.ID, Stage: approval.StageSection})
	require.NoError(t, err)
	assert.Equal(t, string(approval.StatusPendingDeptApproval), v.Status)

	_, err = f.service.Approve(ctx, f.org.Manager.Actor(), kpi.ApproveValueRequest{ID: colleagueValue.ID, Stage: "hr"})
	assert.ErrorIs(t, err, approval.ErrInvalidStage)
}

func TestValueService_WrongStageLeavesStatus(t *testing.T) {
	f := newValueFixture(t)
	ctx := context.Background()
	v := f.submit(t, f.org.Staff.Actor(), 40)

	_, err := f.service.Approve(ctx, f.org.Manager.Actor(), kpi.ApproveValueRequest{ID: v.ID, Stage: approval.StageManager})
	assert.ErrorIs(t, err, approval.ErrInvalidTransition)

	stored, err := f.values.GetByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, approval.StatusPendingSectionApproval, stored.Status)
	assert.Nil(t, stored.ManagerApprovedBy)
}

func TestValueService_RejectAndResubmit(t *testing.T) {
	f := newValueFixture(t)
	ctx := context.Background()
	v := f.submit(t, f.org.Staff.Actor(), 40)
	_, err := f.service.Approve(ctx, f.org.SectionHead.Actor(), kpi.ApproveValueRequest{ID: v.ID, Stage: approval.StageSection})
	require.NoError(t, err)

	_, err = f.service.Reject(ctx, f.org.DeptHead.Actor(), kpi.RejectValueRequest{ID: v.ID, Stage: approval.StageDepartment, Reason: "   "})
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)

	f.notifier.Reset()
	rejected, err := f.service.Reject(ctx, f.org.DeptHead.Actor(), kpi.RejectValueRequest{ID: v.ID, Stage: approval.StageDepartment, Reason: "incomplete data"})
	require.NoError(t, err)
	assert.Equal(t, string(approval.StatusRejectedByDept), rejected.Status)
	require.NotNil(t, rejected.RejectionReason)
	assert.Equal(t, "incomplete data", *rejected.RejectionReason)

	sent := f.notifier.Sent(notification.TypeApprovalRejected)
	require.Len(t, sent, 1)
	assert.Equal(t, f.org.Staff.UserID, sent[0].RecipientID)
	assert.Equal(t, "incomplete data", sent[0].Data["reason"])

	actual := 92.5
	_, err = f.service.Resubmit(ctx, f.org.SectionHead.Actor(), kpi.ResubmitValueRequest{ID: v.ID, ActualValue: &actual})
	assert.ErrorIs(t, err, user.ErrNotOwner)

	resubmitted, err := f.service.Resubmit(ctx, f.org.Staff.Actor(), kpi.ResubmitValueRequest{ID: v.ID, ActualValue: &actual})
	require.NoError(t, err)
	assert.Equal(t, string(approval.StatusPendingSectionApproval), resubmitted.Status)
	assert.Equal(t, 92.5, resubmitted.ActualValue)
	assert.Nil(t, resubmitted.RejectionReason)
	assert.Nil(t, resubmitted.SectionApprovedBy)

	// a pending value cannot be resubmitted
	_, err = f.service.Resubmit(ctx, f.org.Staff.Actor(), kpi.ResubmitValueRequest{ID: v.ID})
	assert.ErrorIs(t, err, approval.ErrInvalidTransition)
}

func TestValueService_WeightBudget(t *testing.T) {
	f := newValueFixture(t)
	ctx := context.Background()
	first := f.submit(t, f.org.Staff.Actor(), 90)

	other, err := f.kpis.Create(ctx, kpi.Kpi{Name: "Retention", Unit: "%", IsActive: true})
	require.NoError(t, err)

	req := kpi.SubmitValueRequest{KpiID: other.ID, ReviewCycleID: f.cycle.ID, ActualValue: 90, Weight: 71}
	_, err = f.service.Submit(ctx, f.org.Staff.Actor(), req)
	assert.ErrorIs(t, err, kpi.ErrWeightBudgetExceeded)

	req.Weight = 70
	second, err := f.service.Submit(ctx, f.org.Staff.Actor(), req)
	require.NoError(t, err)
	assert.Equal(t, 0.0, second.TargetValue)

	// raising a weight on resubmit is checked against the siblings
	_, err = f.service.Reject(ctx, f.org.SectionHead.Actor(), kpi.RejectValueRequest{ID: first.ID, Stage: approval.StageSection, Reason: "too heavy"})
	require.NoError(t, err)
	heavier := 95.0
	_, err = f.service.Resubmit(ctx, f.org.Staff.Actor(), kpi.ResubmitValueRequest{ID: first.ID, Weight: &heavier})
	assert.ErrorIs(t, err, kpi.ErrWeightBudgetExceeded)

	stored, err := f.values.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, approval.StatusRejectedBySection, stored.Status)

	// every budget check locks the employee's cycle first
	budget := f.org.Staff.ID + "/" + f.cycle.ID
	assert.Equal(t, []string{budget, budget, budget, budget}, f.values.BudgetLocks)
}

func TestValueService_SubmitGuards(t *testing.T) {
	f := newValueFixture(t)
	ctx := context.Background()

	inactive, err := f.kpis.Create(ctx, kpi.Kpi{Name: "Legacy", Unit: "x", IsActive: false})
	require.NoError(t, err)
	_, err = f.service.Submit(ctx, f.org.Staff.Actor(), kpi.SubmitValueRequest{KpiID: inactive.ID, ReviewCycleID: f.cycle.ID, Weight: 10})
	assert.ErrorIs(t, err, kpi.ErrKpiInactive)

	_, err = f.service.Submit(ctx, user.Actor{UserID: "u", Role: user.RoleAdmin}, kpi.SubmitValueRequest{KpiID: f.sales.ID, ReviewCycleID: f.cycle.ID, Weight: 10})
	assert.ErrorIs(t, err, user.ErrEmployeeProfileRequired)

	f.submit(t, f.org.Staff.Actor(), 10)
	_, err = f.service.Submit(ctx, f.org.Staff.Actor(), kpi.SubmitValueRequest{KpiID: f.sales.ID, ReviewCycleID: f.cycle.ID, Weight: 10})
	assert.ErrorIs(t, err, kpi.ErrKpiValueExists)
}

func TestValueService_DraftThenSubmit(t *testing.T) {
	f := newValueFixture(t)
	ctx := context.Background()

	draft, err := f.service.Submit(ctx, f.org.Staff.Actor(), kpi.SubmitValueRequest{KpiID: f.sales.ID, ReviewCycleID: f.cycle.ID, ActualValue: 50, Weight: 20, Draft: true})
	require.NoError(t, err)
	assert.Equal(t, string(approval.StatusDraft), draft.Status)
	assert.Empty(t, f.notifier.Queued)

	_, err = f.service.SubmitDraft(ctx, f.org.Colleague.Actor(), draft.ID)
	assert.ErrorIs(t, err, user.ErrNotOwner)

	submitted, err := f.service.SubmitDraft(ctx, f.org.Staff.Actor(), draft.ID)
	require.NoError(t, err)
	assert.Equal(t, string(approval.StatusPendingSectionApproval), submitted.Status)
	assert.Len(t, f.notifier.Sent(notification.TypeApprovalRequested), 1)

	_, err = f.service.SubmitDraft(ctx, f.org.Staff.Actor(), draft.ID)
	assert.ErrorIs(t, err, approval.ErrInvalidTransition)
}

// racingValues flips the stored status right after the row is read, the way a
// concurrent writer would without the row lock.
type racingValues struct {
	*servicetest.ValueRepository
}

func (r racingValues) GetByIDForUpdate(ctx context.Context, id string) (kpi.Value, error) {
	v, err := r.ValueRepository.GetByIDForUpdate(ctx, id)
	stored := r.Values[id]
	stored.Status = approval.StatusRejectedBySection
	r.Values[id] = stored
	return v, err
}

func TestValueService_StatusMovedUnderneath(t *testing.T) {
	f := newValueFixture(t)
	ctx := context.Background()
	v := f.submit(t, f.org.Staff.Actor(), 40)

	svc := NewValueService(&servicetest.Transactor{}, racingValues{f.values}, f.kpis, f.cycles, nil, 160)
	_, err := svc.Approve(ctx, f.org.SectionHead.Actor(), kpi.ApproveValueRequest{ID: v.ID, Stage: approval.StageSection})
	assert.ErrorIs(t, err, approval.ErrPreconditionViolation)
	assert.Equal(t, 1, f.values.Locks)
}

func TestValueService_ListScoping(t *testing.T) {
	f := newValueFixture(t)
	ctx := context.Background()
	f.submit(t, f.org.Staff.Actor(), 40)
	f.submit(t, f.org.Colleague.Actor(), 40)

	all, err := f.service.List(ctx, f.org.Manager.Actor(), kpi.ValueFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, all.TotalCount)

	section, err := f.service.List(ctx, f.org.SectionHead.Actor(), kpi.ValueFilter{})
	require.NoError(t, err)
	require.EqualValues(t, 1, section.TotalCount)
	assert.Equal(t, f.org.Staff.ID, section.Values[0].EmployeeID)
	assert.Equal(t, "Sales", section.Values[0].KpiName)

	own, err := f.service.List(ctx, f.org.Colleague.Actor(), kpi.ValueFilter{})
	require.NoError(t, err)
	require.EqualValues(t, 1, own.TotalCount)
	assert.Equal(t, f.org.Colleague.ID, own.Values[0].EmployeeID)

	mine, err := f.service.ListMine(ctx, f.org.Staff.Actor(), kpi.ValueFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, mine.TotalCount)

	status := "bogus"
	_, err = f.service.List(ctx, f.org.Manager.Actor(), kpi.ValueFilter{Status: &status})
	assert.Error(t, err)

	_, err = f.service.Get(ctx, f.org.Colleague.Actor(), mine.Values[0].ID)
	assert.ErrorIs(t, err, user.ErrInsufficientPermissions)
}

func TestKpiService_CRUD(t *testing.T) {
	kpis := servicetest.NewKpiRepository()
	values := servicetest.NewValueRepository(nil, kpis)
	auditor := &servicetest.Auditor{}
	svc := NewKpiService(kpis, values, servicetest.NewDepartmentRepository(), auditor)
	ctx := context.Background()

	created, err := svc.Create(ctx, kpi.CreateKpiRequest{Name: "Revenue", Unit: "IDR"})
	require.NoError(t, err)
	assert.True(t, created.IsActive)
	assert.Equal(t, "monthly", created.Frequency)

	_, err = svc.Create(ctx, kpi.CreateKpiRequest{Name: "revenue", Unit: "IDR"})
	assert.ErrorIs(t, err, kpi.ErrKpiNameExists)

	dept := servicetest.DepartmentID
	_, err = svc.Create(ctx, kpi.CreateKpiRequest{Name: "Churn", Unit: "%", DepartmentID: &dept})
	assert.Error(t, err, "department must exist")

	inactive := false
	updated, err := svc.Update(ctx, kpi.UpdateKpiRequest{ID: created.ID, IsActive: &inactive})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)

	list, err := svc.List(ctx, kpi.KpiFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, list.TotalCount)

	_, err = values.Create(ctx, kpi.Value{KpiID: created.ID, EmployeeID: "e1", ReviewCycleID: "c1"})
	require.NoError(t, err)
	assert.ErrorIs(t, svc.Delete(ctx, created.ID), kpi.ErrKpiInUse)

	spare, err := svc.Create(ctx, kpi.CreateKpiRequest{Name: "Spare", Unit: "x"})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, spare.ID))
	_, err = svc.Get(ctx, spare.ID)
	assert.ErrorIs(t, err, kpi.ErrKpiNotFound)

	assert.Equal(t, []string{"create", "update", "create", "delete"}, auditor.Actions())
}
