package servicetest

import (
	"context"
	"sort"
	"time"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/approval"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/report"
)

// ReportRepository aggregates over the value and evaluation fakes. Unit names
// are left empty.
type ReportRepository struct {
	Values      *ValueRepository
	Evaluations *EvaluationRepository
}

func NewReportRepository(values *ValueRepository, evaluations *EvaluationRepository) *ReportRepository {
	return &ReportRepository{Values: values, Evaluations: evaluations}
}

func matchesReport(f report.Filter, cycleID, employeeID, sectionID, departmentID string) bool {
	match := func(want *string, got string) bool { return want == nil || *want == got }
	return f.ReviewCycleID == cycleID &&
		match(f.EmployeeID, employeeID) &&
		match(f.SectionID, sectionID) &&
		match(f.DepartmentID, departmentID)
}

func (r *ReportRepository) employeeCode(employees *EmployeeRepository, id string) string {
	if employees == nil {
		return ""
	}
	e, err := employees.GetByID(context.Background(), id)
	if err != nil {
		return ""
	}
	return e.EmployeeCode
}

func (r *ReportRepository) GetKpiAchievement(ctx context.Context, f report.Filter) ([]report.KpiAchievementRow, error) {
	r.Values.mu.Lock()
	defer r.Values.mu.Unlock()

	byEmployee := map[string]*report.KpiAchievementRow{}
	for _, v := range r.Values.Values {
		v = r.Values.join(v)
		if !matchesReport(f, v.ReviewCycleID, v.EmployeeID, v.SectionID, v.DepartmentID) {
			continue
		}
		row, ok := byEmployee[v.EmployeeID]
		if !ok {
			row = &report.KpiAchievementRow{
				EmployeeID:   v.EmployeeID,
				EmployeeName: v.EmployeeName,
				EmployeeCode: r.employeeCode(r.Values.Employees, v.EmployeeID),
			}
			byEmployee[v.EmployeeID] = row
		}

		row.TotalValues++
		row.TotalWeight += v.Weight
		status := v.Status.Normalize()
		switch {
		case status == approval.StatusApproved:
			row.ApprovedValues++
			row.ApprovedWeight += v.Weight
			if v.TargetValue > 0 {
				row.WeightedAttainment += v.Weight * v.ActualValue / v.TargetValue
				row.AttainmentWeight += v.Weight
			}
		case status == approval.StatusDraft:
			row.DraftValues++
		case status.IsRejected():
			row.RejectedValues++
		case status.IsPending():
			row.PendingValues++
		}
	}

	rows := make([]report.KpiAchievementRow, 0, len(byEmployee))
	for _, row := range byEmployee {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].EmployeeName < rows[j].EmployeeName })
	return rows, nil
}

func (r *ReportRepository) GetEvaluationResults(ctx context.Context, f report.Filter) ([]report.EvaluationResultRow, error) {
	r.Evaluations.mu.Lock()
	defer r.Evaluations.mu.Unlock()

	var rows []report.EvaluationResultRow
	for _, e := range r.Evaluations.Evaluations {
		e = r.Evaluations.join(e)
		if !matchesReport(f, e.ReviewCycleID, e.EmployeeID, e.SectionID, e.DepartmentID) {
			continue
		}
		row := report.EvaluationResultRow{
			EvaluationID: e.ID,
			EmployeeID:   e.EmployeeID,
			EmployeeName: e.EmployeeName,
			EmployeeCode: r.employeeCode(r.Evaluations.Employees, e.EmployeeID),
			Status:       string(e.Status.Normalize()),
			Rank:         e.Rank,
			AverageScore: e.AverageScore,
			FinalScore:   e.FinalScore,
		}
		if e.CompletedAt != nil {
			at := e.CompletedAt.Format(time.RFC3339)
			row.CompletedAt = &at
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].EmployeeName < rows[j].EmployeeName })
	return rows, nil
}

var _ report.ReportRepository = (*ReportRepository)(nil)
