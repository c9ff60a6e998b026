package report

import (
	"context"
	"testing"
	"time"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/approval"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/evaluation"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/kpi"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/report"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/reviewcycle"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/user"
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/validator"
	"github.com/cmlabs-hris/kpi-backend-go/internal/service/servicetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reportFixture struct {
	org     *servicetest.Org
	kpis    *servicetest.KpiRepository
	values  *servicetest.ValueRepository
	evals   *servicetest.EvaluationRepository
	cycle   reviewcycle.ReviewCycle
	service report.ReportService
}

func newReportFixture(t *testing.T) *reportFixture {
	t.Helper()
	org := servicetest.NewOrg()
	kpis := servicetest.NewKpiRepository()
	cycles := servicetest.NewReviewCycleRepository()
	values := servicetest.NewValueRepository(org.Employees, kpis)
	evals := servicetest.NewEvaluationRepository(org.Employees, cycles)

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cycle, err := cycles.Create(context.Background(), reviewcycle.ReviewCycle{Name: "Q1 2025", StartDate: start, EndDate: start.AddDate(0, 3, -1)})
	require.NoError(t, err)

	svc := NewReportService(servicetest.NewReportRepository(values, evals), cycles).(*ReportServiceImpl)
	svc.now = func() time.Time { return time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC) }
	return &reportFixture{org: org, kpis: kpis, values: values, evals: evals, cycle: cycle, service: svc}
}

func (f *reportFixture) value(t *testing.T, employeeID, kpiName string, target, actual, weight float64, status approval.Status) {
	t.Helper()
	k, err := f.kpis.Create(context.Background(), kpi.Kpi{Name: kpiName + "-" + employeeID, Unit: "%", IsActive: true})
	require.NoError(t, err)
	_, err = f.values.Create(context.Background(), kpi.Value{
		KpiID: k.ID, EmployeeID: employeeID, ReviewCycleID: f.cycle.ID,
		TargetValue: target, ActualValue: actual, Weight: weight,
		Workflow: approval.Workflow{Status: status},
	})
	require.NoError(t, err)
}

func TestGenerateKpiAchievementReport(t *testing.T) {
	f := newReportFixture(t)
	f.value(t, f.org.Staff.ID, "sales", 100, 120, 60, approval.StatusApproved)
	f.value(t, f.org.Staff.ID, "delivery", 50, 40, 40, approval.StatusApproved)
	f.value(t, f.org.Staff.ID, "retention", 10, 10, 20, approval.StatusPendingDeptApproval)
	f.value(t, f.org.Colleague.ID, "sales", 100, 50, 50, approval.StatusRejectedBySection)

	result, err := f.service.GenerateKpiAchievementReport(context.Background(), f.org.Manager.Actor(), report.CycleReportRequest{ReviewCycleID: f.cycle.ID})
	require.NoError(t, err)

	assert.Equal(t, "Q1 2025", result.CycleName)
	assert.Equal(t, "2025-04-01T09:00:00Z", result.GeneratedAt)
	require.Len(t, result.Rows, 2)

	colleague, staff := result.Rows[0], result.Rows[1]
	assert.Equal(t, f.org.Staff.ID, staff.EmployeeID)
	assert.Equal(t, "EMP-001", staff.EmployeeCode)
	assert.Equal(t, 3, staff.TotalValues)
	assert.Equal(t, 2, staff.ApprovedValues)
	assert.Equal(t, 1, staff.PendingValues)
	assert.Equal(t, 120.0, staff.TotalWeight)
	// (60×1.2 + 40×0.8) / 100
	assert.InDelta(t, 104.0, staff.Achievement, 0.001)

	assert.Equal(t, 1, colleague.RejectedValues)
	assert.Zero(t, colleague.Achievement)

	// only scored employees count towards the average
	assert.InDelta(t, 104.0, result.AverageAchievement, 0.001)
}

func TestGenerateKpiAchievementReport_Scope(t *testing.T) {
	f := newReportFixture(t)
	f.value(t, f.org.Staff.ID, "sales", 100, 100, 50, approval.StatusApproved)
	f.value(t, f.org.Colleague.ID, "sales", 100, 100, 50, approval.StatusApproved)

	result, err := f.service.GenerateKpiAchievementReport(context.Background(), f.org.SectionHead.Actor(), report.CycleReportRequest{ReviewCycleID: f.cycle.ID})
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, f.org.Staff.ID, result.Rows[0].EmployeeID)

	other := servicetest.OtherSectionID
	_, err = f.service.GenerateKpiAchievementReport(context.Background(), f.org.SectionHead.Actor(), report.CycleReportRequest{ReviewCycleID: f.cycle.ID, SectionID: &other})
	assert.ErrorIs(t, err, user.ErrInsufficientPermissions)

	result, err = f.service.GenerateKpiAchievementReport(context.Background(), f.org.Admin.Actor(), report.CycleReportRequest{ReviewCycleID: f.cycle.ID, SectionID: &other})
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, f.org.Colleague.ID, result.Rows[0].EmployeeID)

	result, err = f.service.GenerateKpiAchievementReport(context.Background(), f.org.Staff.Actor(), report.CycleReportRequest{ReviewCycleID: f.cycle.ID})
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, f.org.Staff.ID, result.Rows[0].EmployeeID)
}

func TestGenerateReport_Validation(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()

	_, err := f.service.GenerateKpiAchievementReport(ctx, f.org.Manager.Actor(), report.CycleReportRequest{})
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "review_cycle_id", verrs[0].Field)

	_, err = f.service.GenerateEvaluationResultReport(ctx, f.org.Manager.Actor(), report.CycleReportRequest{ReviewCycleID: "00000000-0000-0000-0000-000000000000"})
	assert.ErrorIs(t, err, reviewcycle.ErrReviewCycleNotFound)
}

func TestGenerateEvaluationResultReport(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()
	done := time.Date(2025, 3, 30, 0, 0, 0, 0, time.UTC)

	add := func(employeeID string, status approval.Status, final *float64, rank string) {
		e := evaluation.Evaluation{
			EmployeeID: employeeID, ReviewCycleID: f.cycle.ID,
			Workflow: approval.Workflow{Status: status}, FinalScore: final, Rank: rank,
		}
		if final != nil {
			e.CompletedAt = &done
		}
		_, err := f.evals.Create(ctx, e)
		require.NoError(t, err)
	}
	high, low := 4.6, 3.1
	add(f.org.Staff.ID, approval.StatusApproved, &high, "A")
	add(f.org.Colleague.ID, approval.StatusApproved, &low, "C")
	add(f.org.SectionHead.ID, approval.StatusSubmitted, nil, "")

	result, err := f.service.GenerateEvaluationResultReport(ctx, f.org.DeptHead.Actor(), report.CycleReportRequest{ReviewCycleID: f.cycle.ID})
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalEmployees)
	assert.Equal(t, 2, result.Completed)
	assert.InDelta(t, 3.85, result.AverageFinalScore, 0.001)
	assert.Equal(t, map[string]int64{"A": 1, "C": 1}, result.RankDistribution)

	var pending report.EvaluationResultRow
	for _, row := range result.Rows {
		if row.EmployeeID == f.org.SectionHead.ID {
			pending = row
		}
	}
	assert.Equal(t, "pending_section_approval", pending.Status)
	assert.Nil(t, pending.CompletedAt)
}
