package http

import (
	"net/http"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/reviewcycle"
	"github.com/cmlabs-hris/kpi-backend-go/internal/handler/http/response"
)

type ReviewCycleHandler interface {
	Create(w http.ResponseWriter, r *http.Request)
	Get(w http.ResponseWriter, r *http.Request)
	List(w http.ResponseWriter, r *http.Request)
	Update(w http.ResponseWriter, r *http.Request)
}

type reviewCycleHandlerImpl struct {
	service reviewcycle.ReviewCycleService
}

func NewReviewCycleHandler(service reviewcycle.ReviewCycleService) ReviewCycleHandler {
	return &reviewCycleHandlerImpl{service: service}
}

func (h *reviewCycleHandlerImpl) Create(w http.ResponseWriter, r *http.Request) {
	var req reviewcycle.CreateReviewCycleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.Create(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Created(w, "Review cycle created successfully", result)
}

func (h *reviewCycleHandlerImpl) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	result, err := h.service.Get(r.Context(), id)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, result)
}

func (h *reviewCycleHandlerImpl) List(w http.ResponseWriter, r *http.Request) {
	results, err := h.service.List(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, results)
}

// Update allows only a rename once values or evaluations reference the cycle.
func (h *reviewCycleHandlerImpl) Update(w http.ResponseWriter, r *http.Request) {
	var req reviewcycle.UpdateReviewCycleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	req.ID = id

	result, err := h.service.Update(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Review cycle updated successfully", result)
}
