package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/approval"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/dashboard"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/evaluation"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/kpi"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/user"
	"github.com/cmlabs-hris/kpi-backend-go/internal/service/servicetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dashboardFixture struct {
	org     *servicetest.Org
	values  *servicetest.ValueRepository
	evals   *servicetest.EvaluationRepository
	kpiID   string
	service *DashboardServiceImpl
}

func newDashboardFixture(t *testing.T) *dashboardFixture {
	t.Helper()
	org := servicetest.NewOrg()
	kpis := servicetest.NewKpiRepository()
	values := servicetest.NewValueRepository(org.Employees, kpis)
	evals := servicetest.NewEvaluationRepository(org.Employees, servicetest.NewReviewCycleRepository())

	k, err := kpis.Create(context.Background(), kpi.Kpi{Name: "Sales", Unit: "IDR", IsActive: true})
	require.NoError(t, err)

	svc := NewDashboardService(servicetest.NewDashboardRepository(values, evals)).(*DashboardServiceImpl)
	svc.now = func() time.Time { return time.Date(2025, 4, 10, 8, 0, 0, 0, time.UTC) }
	return &dashboardFixture{org: org, values: values, evals: evals, kpiID: k.ID, service: svc}
}

func (f *dashboardFixture) value(t *testing.T, employeeID, cycleID string, status approval.Status) {
	t.Helper()
	_, err := f.values.Create(context.Background(), kpi.Value{
		KpiID: f.kpiID, EmployeeID: employeeID, ReviewCycleID: cycleID,
		Workflow: approval.Workflow{Status: status},
	})
	require.NoError(t, err)
}

func (f *dashboardFixture) evaluation(t *testing.T, employeeID, cycleID string, status approval.Status, final *float64, rank string) {
	t.Helper()
	e := evaluation.Evaluation{
		EmployeeID: employeeID, ReviewCycleID: cycleID,
		Workflow:   approval.Workflow{Status: status},
		FinalScore: final,
		Rank:       rank,
	}
	if final != nil {
		done := time.Now()
		e.CompletedAt = &done
	}
	_, err := f.evals.Create(context.Background(), e)
	require.NoError(t, err)
}

func score(v float64) *float64 { return &v }

func TestGetDashboard_ScopeFollowsRole(t *testing.T) {
	f := newDashboardFixture(t)
	f.value(t, f.org.Staff.ID, "c1", approval.StatusPendingSectionApproval)
	f.value(t, f.org.Colleague.ID, "c1", approval.StatusApproved)
	f.value(t, f.org.SectionHead.ID, "c1", approval.StatusDraft)

	tests := []struct {
		name      string
		actor     user.Actor
		wantScope string
		wantTotal int64
	}{
		{"employee sees own", f.org.Staff.Actor(), dashboard.ScopeOwn, 1},
		{"section head sees section", f.org.SectionHead.Actor(), dashboard.ScopeSection, 2},
		{"department head sees department", f.org.DeptHead.Actor(), dashboard.ScopeDepartment, 3},
		{"manager sees organisation", f.org.Manager.Actor(), dashboard.ScopeOrganisation, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := f.service.GetDashboard(context.Background(), tt.actor, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.wantScope, resp.Scope)
			assert.Equal(t, tt.wantTotal, resp.KpiValues.Total)
			assert.Equal(t, "2025-04-10T08:00:00Z", resp.UpdatedAt)
		})
	}
}

func TestGetDashboard_StatusBuckets(t *testing.T) {
	f := newDashboardFixture(t)
	f.value(t, f.org.Staff.ID, "c1", approval.StatusSubmitted)
	f.value(t, f.org.Staff.ID, "c2", approval.StatusRejectedByDept)
	f.value(t, f.org.Staff.ID, "c3", approval.StatusApproved)
	f.value(t, f.org.Staff.ID, "c4", approval.StatusDraft)

	resp, err := f.service.GetDashboard(context.Background(), f.org.Staff.Actor(), nil)
	require.NoError(t, err)

	assert.Equal(t, int64(4), resp.KpiValues.Total)
	assert.Equal(t, int64(1), resp.KpiValues.Pending)
	assert.Equal(t, int64(1), resp.KpiValues.Rejected)
	assert.Equal(t, int64(1), resp.KpiValues.Approved)
	assert.Equal(t, int64(1), resp.KpiValues.Draft)
	// legacy submitted rows count as waiting on the section
	assert.Equal(t, int64(1), resp.KpiValues.ByStatus[string(approval.StatusPendingSectionApproval)])
	assert.Zero(t, resp.ApprovalQueue.Total)
}

func TestGetDashboard_FiltersByCycle(t *testing.T) {
	f := newDashboardFixture(t)
	f.value(t, f.org.Staff.ID, "c1", approval.StatusApproved)
	f.value(t, f.org.Staff.ID, "c2", approval.StatusApproved)

	cycle := "c2"
	resp, err := f.service.GetDashboard(context.Background(), f.org.Manager.Actor(), &cycle)
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.KpiValues.Total)
	require.NotNil(t, resp.ReviewCycleID)
	assert.Equal(t, "c2", *resp.ReviewCycleID)
}

func TestGetDashboard_ScoreSummary(t *testing.T) {
	f := newDashboardFixture(t)
	f.evaluation(t, f.org.Staff.ID, "c1", approval.StatusApproved, score(4.5), "A")
	f.evaluation(t, f.org.Colleague.ID, "c1", approval.StatusApproved, score(3.5), "B")
	f.evaluation(t, f.org.SectionHead.ID, "c1", approval.StatusPendingManagerApproval, nil, "")

	resp, err := f.service.GetDashboard(context.Background(), f.org.Manager.Actor(), nil)
	require.NoError(t, err)

	assert.Equal(t, int64(3), resp.Evaluations.Total)
	assert.Equal(t, int64(2), resp.Scores.Completed)
	assert.InDelta(t, 4.0, resp.Scores.AverageFinalScore, 0.001)
	assert.Equal(t, map[string]int64{"A": 1, "B": 1}, resp.Scores.RankDistribution)
}

func TestGetDashboard_RequiresEmployeeProfile(t *testing.T) {
	f := newDashboardFixture(t)

	_, err := f.service.GetDashboard(context.Background(), user.Actor{UserID: "u1", Role: user.RoleEmployee}, nil)
	assert.ErrorIs(t, err, user.ErrEmployeeProfileRequired)
}

func TestGetApprovalQueue(t *testing.T) {
	f := newDashboardFixture(t)
	f.value(t, f.org.Staff.ID, "c1", approval.StatusPendingSectionApproval)
	f.value(t, f.org.Staff.ID, "c2", approval.StatusPendingDeptApproval)
	f.value(t, f.org.Colleague.ID, "c1", approval.StatusPendingDeptApproval)
	f.evaluation(t, f.org.Staff.ID, "c1", approval.StatusPendingManagerApproval, nil, "")
	// heads never approve their own records
	f.value(t, f.org.SectionHead.ID, "c1", approval.StatusPendingSectionApproval)
	f.value(t, f.org.DeptHead.ID, "c1", approval.StatusPendingDeptApproval)

	tests := []struct {
		name      string
		actor     user.Actor
		wantTotal int64
		wantStage map[string]int64
	}{
		{"employee", f.org.Staff.Actor(), 0, map[string]int64{}},
		{"section head", f.org.SectionHead.Actor(), 1, map[string]int64{"section": 1}},
		{"department head", f.org.DeptHead.Actor(), 2, map[string]int64{"department": 2}},
		{"manager", f.org.Manager.Actor(), 1, map[string]int64{"manager": 1}},
		{"admin", f.org.Admin.Actor(), 6, map[string]int64{"section": 2, "department": 3, "manager": 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			queue, err := f.service.GetApprovalQueue(context.Background(), tt.actor, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, queue.Total)
			assert.Equal(t, tt.wantStage, queue.ByStage)
		})
	}
}

type failingRepo struct{ *servicetest.DashboardRepository }

func (failingRepo) GetScoreStats(context.Context, dashboard.Scope) (*dashboard.ScoreStats, error) {
	return nil, errors.New("db down")
}

func TestGetDashboard_PropagatesQueryError(t *testing.T) {
	org := servicetest.NewOrg()
	svc := NewDashboardService(failingRepo{&servicetest.DashboardRepository{}})

	_, err := svc.GetDashboard(context.Background(), org.Manager.Actor(), nil)
	assert.EqualError(t, err, "db down")
}
