package report

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/evaluation"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/report"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/reviewcycle"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/user"
)

type ReportServiceImpl struct {
	reportRepo report.ReportRepository
	cycleRepo  reviewcycle.ReviewCycleRepository
	now        func() time.Time
}

func NewReportService(reportRepo report.ReportRepository, cycleRepo reviewcycle.ReviewCycleRepository) report.ReportService {
	return &ReportServiceImpl{
		reportRepo: reportRepo,
		cycleRepo:  cycleRepo,
		now:        time.Now,
	}
}

// filterFor pins the report to the actor's unit. Asking for a unit outside it is refused
// rather than silently returning nothing.
func filterFor(actor user.Actor, req report.CycleReportRequest) (report.Filter, error) {
	f := report.Filter{
		ReviewCycleID: req.ReviewCycleID,
		SectionID:     req.SectionID,
		DepartmentID:  req.DepartmentID,
	}

	switch actor.Role {
	case user.RoleAdmin, user.RoleManager:
		return f, nil
	case user.RoleDepartmentHead:
		if actor.DepartmentID != "" {
			if req.DepartmentID != nil && *req.DepartmentID != actor.DepartmentID {
				return report.Filter{}, user.ErrInsufficientPermissions
			}
			f.DepartmentID = &actor.DepartmentID
			return f, nil
		}
	case user.RoleSectionHead:
		if actor.SectionID != "" {
			if req.SectionID != nil && *req.SectionID != actor.SectionID {
				return report.Filter{}, user.ErrInsufficientPermissions
			}
			f.SectionID = &actor.SectionID
			return f, nil
		}
	}

	if actor.EmployeeID == "" {
		return report.Filter{}, user.ErrEmployeeProfileRequired
	}
	f.EmployeeID = &actor.EmployeeID
	return f, nil
}

func (s *ReportServiceImpl) prepare(ctx context.Context, actor user.Actor, req report.CycleReportRequest) (report.Filter, reviewcycle.ReviewCycle, error) {
	if err := req.Validate(); err != nil {
		return report.Filter{}, reviewcycle.ReviewCycle{}, err
	}
	filter, err := filterFor(actor, req)
	if err != nil {
		return report.Filter{}, reviewcycle.ReviewCycle{}, err
	}
	cycle, err := s.cycleRepo.GetByID(ctx, req.ReviewCycleID)
	if err != nil {
		return report.Filter{}, reviewcycle.ReviewCycle{}, err
	}
	return filter, cycle, nil
}

// GenerateKpiAchievementReport generates the KPI achievement report
func (s *ReportServiceImpl) GenerateKpiAchievementReport(ctx context.Context, actor user.Actor, req report.CycleReportRequest) (report.KpiAchievementReport, error) {
	filter, cycle, err := s.prepare(ctx, actor, req)
	if err != nil {
		return report.KpiAchievementReport{}, err
	}

	rows, err := s.reportRepo.GetKpiAchievement(ctx, filter)
	if err != nil {
		return report.KpiAchievementReport{}, fmt.Errorf("failed to get kpi achievement data: %w", err)
	}

	var sum float64
	var scored int
	for i := range rows {
		if rows[i].AttainmentWeight > 0 {
			rows[i].Achievement = evaluation.Round2(rows[i].WeightedAttainment / rows[i].AttainmentWeight * 100)
			sum += rows[i].Achievement
			scored++
		}
	}

	result := report.KpiAchievementReport{
		ReviewCycleID:  cycle.ID,
		CycleName:      cycle.Name,
		GeneratedAt:    s.now().Format(time.RFC3339),
		TotalEmployees: len(rows),
		Rows:           rows,
	}
	if scored > 0 {
		result.AverageAchievement = evaluation.Round2(sum / float64(scored))
	}
	if result.Rows == nil {
		result.Rows = []report.KpiAchievementRow{}
	}
	return result, nil
}

// GenerateEvaluationResultReport generates the evaluation result report
func (s *ReportServiceImpl) GenerateEvaluationResultReport(ctx context.Context, actor user.Actor, req report.CycleReportRequest) (report.EvaluationResultReport, error) {
	filter, cycle, err := s.prepare(ctx, actor, req)
	if err != nil {
		return report.EvaluationResultReport{}, err
	}

	rows, err := s.reportRepo.GetEvaluationResults(ctx, filter)
	if err != nil {
		return report.EvaluationResultReport{}, fmt.Errorf("failed to get evaluation data: %w", err)
	}

	result := report.EvaluationResultReport{
		ReviewCycleID:    cycle.ID,
		CycleName:        cycle.Name,
		GeneratedAt:      s.now().Format(time.RFC3339),
		TotalEmployees:   len(rows),
		RankDistribution: map[string]int64{},
		Rows:             rows,
	}

	var sum float64
	for _, row := range rows {
		if row.CompletedAt == nil {
			continue
		}
		result.Completed++
		result.RankDistribution[row.Rank]++
		if row.FinalScore != nil {
			sum += *row.FinalScore
		}
	}
	if result.Completed > 0 {
		result.AverageFinalScore = evaluation.Round2(sum / float64(result.Completed))
	}
	if result.Rows == nil {
		result.Rows = []report.EvaluationResultRow{}
	}
	return result, nil
}
