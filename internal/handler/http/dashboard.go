package http

import (
	"net/http"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/dashboard"
	"github.com/cmlabs-hris/kpi-backend-go/internal/handler/http/response"
)

type DashboardHandler interface {
	// GetDashboard returns combined dashboard data
	GetDashboard(w http.ResponseWriter, r *http.Request)
	// GetApprovalQueue returns what is waiting on the caller
	GetApprovalQueue(w http.ResponseWriter, r *http.Request)
}

type dashboardHandlerImpl struct {
	dashboardService dashboard.DashboardService
}

func NewDashboardHandler(dashboardService dashboard.DashboardService) DashboardHandler {
	return &dashboardHandlerImpl{dashboardService: dashboardService}
}

// GetDashboard handles GET /dashboard?review_cycle_id=
func (h *dashboardHandlerImpl) GetDashboard(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	result, err := h.dashboardService.GetDashboard(r.Context(), actor, queryPtr(r, "review_cycle_id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, result)
}

// GetApprovalQueue handles GET /dashboard/approval-queue?review_cycle_id=
func (h *dashboardHandlerImpl) GetApprovalQueue(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	result, err := h.dashboardService.GetApprovalQueue(r.Context(), actor, queryPtr(r, "review_cycle_id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, result)
}
