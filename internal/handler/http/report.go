package http

import (
	"net/http"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/report"
	"github.com/cmlabs-hris/kpi-backend-go/internal/handler/http/response"
)

type ReportHandler interface {
	// KPI achievement per employee for a cycle
	GetKpiAchievementReport(w http.ResponseWriter, r *http.Request)

	// Evaluation ranks and final scores for a cycle
	GetEvaluationResultReport(w http.ResponseWriter, r *http.Request)
}

type reportHandlerImpl struct {
	reportService report.ReportService
}

func NewReportHandler(reportService report.ReportService) ReportHandler {
	return &reportHandlerImpl{
		reportService: reportService,
	}
}

func cycleReportRequest(r *http.Request) report.CycleReportRequest {
	return report.CycleReportRequest{
		ReviewCycleID: r.URL.Query().Get("review_cycle_id"),
		DepartmentID:  queryPtr(r, "department_id"),
		SectionID:     queryPtr(r, "section_id"),
	}
}

// GetKpiAchievementReport handles GET /reports/kpi-achievement?review_cycle_id=
func (h *reportHandlerImpl) GetKpiAchievementReport(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	result, err := h.reportService.GenerateKpiAchievementReport(r.Context(), actor, cycleReportRequest(r))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// GetEvaluationResultReport handles GET /reports/evaluation-results?review_cycle_id=
func (h *reportHandlerImpl) GetEvaluationResultReport(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	result, err := h.reportService.GenerateEvaluationResultReport(r.Context(), actor, cycleReportRequest(r))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}
