package http

import (
	"net/http"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/approval"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/kpi"
	"github.com/cmlabs-hris/kpi-backend-go/internal/handler/http/response"
	"github.com/go-chi/chi/v5"
)

type KpiHandler interface {
	// Definitions
	Create(w http.ResponseWriter, r *http.Request)
	Get(w http.ResponseWriter, r *http.Request)
	List(w http.ResponseWriter, r *http.Request)
	Update(w http.ResponseWriter, r *http.Request)
	Delete(w http.ResponseWriter, r *http.Request)

	// Values
	SubmitValue(w http.ResponseWriter, r *http.Request)
	SubmitDraft(w http.ResponseWriter, r *http.Request)
	GetValue(w http.ResponseWriter, r *http.Request)
	ListValues(w http.ResponseWriter, r *http.Request)
	ListMyValues(w http.ResponseWriter, r *http.Request)
	ApproveValue(w http.ResponseWriter, r *http.Request)
	RejectValue(w http.ResponseWriter, r *http.Request)
	ResubmitValue(w http.ResponseWriter, r *http.Request)
}

type kpiHandlerImpl struct {
	kpiService   kpi.KpiService
	valueService kpi.ValueService
}

func NewKpiHandler(kpiService kpi.KpiService, valueService kpi.ValueService) KpiHandler {
	return &kpiHandlerImpl{kpiService: kpiService, valueService: valueService}
}

func (h *kpiHandlerImpl) Create(w http.ResponseWriter, r *http.Request) {
	var req kpi.CreateKpiRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.kpiService.Create(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Created(w, "KPI created successfully", result)
}

func (h *kpiHandlerImpl) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	result, err := h.kpiService.Get(r.Context(), id)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, result)
}

func (h *kpiHandlerImpl) List(w http.ResponseWriter, r *http.Request) {
	filter := kpi.KpiFilter{
		DepartmentID: queryPtr(r, "department_id"),
		Search:       queryPtr(r, "search"),
		Page:         getIntQueryParam(r, "page", 1),
		Limit:        getIntQueryParam(r, "limit", 20),
	}
	if r.URL.Query().Has("is_active") {
		active := getBoolQueryParam(r, "is_active", true)
		filter.IsActive = &active
	}

	result, err := h.kpiService.List(r.Context(), filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, result)
}

func (h *kpiHandlerImpl) Update(w http.ResponseWriter, r *http.Request) {
	var req kpi.UpdateKpiRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	req.ID = id

	result, err := h.kpiService.Update(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "KPI updated successfully", result)
}

func (h *kpiHandlerImpl) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.kpiService.Delete(r.Context(), id); err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "KPI deleted successfully", nil)
}

// SubmitValue records a value for the caller. With draft=true it is saved
// without entering the approval chain.
func (h *kpiHandlerImpl) SubmitValue(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req kpi.SubmitValueRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.valueService.Submit(r.Context(), actor, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Created(w, "KPI value submitted successfully", result)
}

func (h *kpiHandlerImpl) SubmitDraft(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	id, ok := pathID(w, r)
	if !ok {
		return
	}
	result, err := h.valueService.SubmitDraft(r.Context(), actor, id)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "KPI value submitted successfully", result)
}

func (h *kpiHandlerImpl) GetValue(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	id, ok := pathID(w, r)
	if !ok {
		return
	}
	result, err := h.valueService.Get(r.Context(), actor, id)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, result)
}

func valueFilterFrom(r *http.Request) kpi.ValueFilter {
	return kpi.ValueFilter{
		EmployeeID:    queryPtr(r, "employee_id"),
		KpiID:         queryPtr(r, "kpi_id"),
		ReviewCycleID: queryPtr(r, "review_cycle_id"),
		Status:        queryPtr(r, "status"),
		SectionID:     queryPtr(r, "section_id"),
		DepartmentID:  queryPtr(r, "department_id"),
		Page:          getIntQueryParam(r, "page", 1),
		Limit:         getIntQueryParam(r, "limit", 20),
	}
}

func (h *kpiHandlerImpl) ListValues(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	result, err := h.valueService.List(r.Context(), actor, valueFilterFrom(r))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, result)
}

func (h *kpiHandlerImpl) ListMyValues(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	result, err := h.valueService.ListMine(r.Context(), actor, valueFilterFrom(r))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, result)
}

func (h *kpiHandlerImpl) ApproveValue(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	stage, err := approval.ParseStage(chi.URLParam(r, "stage"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	id, ok := pathID(w, r)
	if !ok {
		return
	}
	result, err := h.valueService.Approve(r.Context(), actor, kpi.ApproveValueRequest{
		ID:    id,
		Stage: stage,
	})
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "KPI value approved", result)
}

func (h *kpiHandlerImpl) RejectValue(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	stage, err := approval.ParseStage(chi.URLParam(r, "stage"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	var req kpi.RejectValueRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	req.ID = id
	req.Stage = stage

	result, err := h.valueService.Reject(r.Context(), actor, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "KPI value rejected", result)
}

// ResubmitValue accepts an empty body when nothing needs correcting.
func (h *kpiHandlerImpl) ResubmitValue(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req kpi.ResubmitValueRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	req.ID = id

	result, err := h.valueService.Resubmit(r.Context(), actor, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "KPI value resubmitted", result)
}
