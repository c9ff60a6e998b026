package http

import (
	"net/http"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/approval"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/evaluation"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/user"
	"github.com/cmlabs-hris/kpi-backend-go/internal/handler/http/response"
	"github.com/go-chi/chi/v5"
)

type EvaluationHandler interface {
	Create(w http.ResponseWriter, r *http.Request)
	Get(w http.ResponseWriter, r *http.Request)
	List(w http.ResponseWriter, r *http.Request)
	UpdateObjectives(w http.ResponseWriter, r *http.Request)
	Submit(w http.ResponseWriter, r *http.Request)
	SubmitSelfReview(w http.ResponseWriter, r *http.Request)
	SubmitStageReview(w http.ResponseWriter, r *http.Request)
	RejectStage(w http.ResponseWriter, r *http.Request)
	Resubmit(w http.ResponseWriter, r *http.Request)
	CompleteReview(w http.ResponseWriter, r *http.Request)
	SubmitFeedback(w http.ResponseWriter, r *http.Request)
	Confirm(w http.ResponseWriter, r *http.Request)
	Export(w http.ResponseWriter, r *http.Request)
}

type evaluationHandlerImpl struct {
	service evaluation.EvaluationService
}

func NewEvaluationHandler(service evaluation.EvaluationService) EvaluationHandler {
	return &evaluationHandlerImpl{service: service}
}

// byID runs an action that needs nothing beyond the evaluation id.
func (h *evaluationHandlerImpl) byID(
	w http.ResponseWriter,
	r *http.Request,
	message string,
	action func(user.Actor, string) (evaluation.EvaluationResponse, error),
) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	id, ok := pathID(w, r)
	if !ok {
		return
	}
	result, err := action(actor, id)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	if message == "" {
		response.Success(w, result)
		return
	}
	response.SuccessWithMessage(w, message, result)
}

func (h *evaluationHandlerImpl) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req evaluation.CreateEvaluationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.Create(r.Context(), actor, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Created(w, "Evaluation created successfully", result)
}

func (h *evaluationHandlerImpl) Get(w http.ResponseWriter, r *http.Request) {
	h.byID(w, r, "", func(actor user.Actor, id string) (evaluation.EvaluationResponse, error) {
		return h.service.Get(r.Context(), actor, id)
	})
}

func (h *evaluationHandlerImpl) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	filter := evaluation.EvaluationFilter{
		EmployeeID:    queryPtr(r, "employee_id"),
		ReviewCycleID: queryPtr(r, "review_cycle_id"),
		Status:        queryPtr(r, "status"),
		SectionID:     queryPtr(r, "section_id"),
		DepartmentID:  queryPtr(r, "department_id"),
		Page:          getIntQueryParam(r, "page", 1),
		Limit:         getIntQueryParam(r, "limit", 20),
	}

	result, err := h.service.List(r.Context(), actor, filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, result)
}

func (h *evaluationHandlerImpl) UpdateObjectives(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req evaluation.UpdateObjectivesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	req.ID = id

	result, err := h.service.UpdateObjectives(r.Context(), actor, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Objectives updated", result)
}

func (h *evaluationHandlerImpl) Submit(w http.ResponseWriter, r *http.Request) {
	h.byID(w, r, "Evaluation submitted", func(actor user.Actor, id string) (evaluation.EvaluationResponse, error) {
		return h.service.Submit(r.Context(), actor, id)
	})
}

func (h *evaluationHandlerImpl) SubmitSelfReview(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req evaluation.SelfReviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	req.ID = id

	result, err := h.service.SubmitSelfReview(r.Context(), actor, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Self review submitted", result)
}

func (h *evaluationHandlerImpl) SubmitStageReview(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	stage, err := approval.ParseStage(chi.URLParam(r, "stage"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	var req evaluation.StageReviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	req.ID = id
	req.Stage = stage

	result, err := h.service.SubmitStageReview(r.Context(), actor, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Review submitted", result)
}

func (h *evaluationHandlerImpl) RejectStage(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	stage, err := approval.ParseStage(chi.URLParam(r, "stage"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	var req evaluation.RejectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	req.ID = id
	req.Stage = stage

	result, err := h.service.RejectStage(r.Context(), actor, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Evaluation rejected", result)
}

func (h *evaluationHandlerImpl) Resubmit(w http.ResponseWriter, r *http.Request) {
	h.byID(w, r, "Evaluation resubmitted", func(actor user.Actor, id string) (evaluation.EvaluationResponse, error) {
		return h.service.Resubmit(r.Context(), actor, id)
	})
}

func (h *evaluationHandlerImpl) CompleteReview(w http.ResponseWriter, r *http.Request) {
	h.byID(w, r, "Review completed", func(actor user.Actor, id string) (evaluation.EvaluationResponse, error) {
		return h.service.CompleteReview(r.Context(), actor, id)
	})
}

func (h *evaluationHandlerImpl) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req evaluation.FeedbackRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	req.ID = id

	result, err := h.service.SubmitEmployeeFeedback(r.Context(), actor, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Feedback submitted", result)
}

func (h *evaluationHandlerImpl) Confirm(w http.ResponseWriter, r *http.Request) {
	h.byID(w, r, "Evaluation confirmed", func(actor user.Actor, id string) (evaluation.EvaluationResponse, error) {
		return h.service.Confirm(r.Context(), actor, id)
	})
}

// Export renders the PDF, stores it and returns a short-lived download URL.
func (h *evaluationHandlerImpl) Export(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	id, ok := pathID(w, r)
	if !ok {
		return
	}
	result, err := h.service.Export(r.Context(), actor, id)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, result)
}
