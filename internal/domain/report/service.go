package report

import (
	"context"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/user"
)

// ReportService defines the interface for report generation
type ReportService interface {
	// KPI achievement per employee for one cycle
	GenerateKpiAchievementReport(ctx context.Context, actor user.Actor, req CycleReportRequest) (KpiAchievementReport, error)

	// Evaluation ranks and final scores for one cycle
	GenerateEvaluationResultReport(ctx context.Context, actor user.Actor, req CycleReportRequest) (EvaluationResultReport, error)
}
