package http

import (
	"net/http"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/audit"
	"github.com/cmlabs-hris/kpi-backend-go/internal/handler/http/response"
	"github.com/go-chi/chi/v5"
)

type AuditHandler interface {
	List(w http.ResponseWriter, r *http.Request)
	ListForEntity(w http.ResponseWriter, r *http.Request)
}

type auditHandlerImpl struct {
	service audit.Service
}

func NewAuditHandler(service audit.Service) AuditHandler {
	return &auditHandlerImpl{service: service}
}

func (h *auditHandlerImpl) list(w http.ResponseWriter, r *http.Request, filter audit.Filter) {
	filter.Page = getIntQueryParam(r, "page", 1)
	filter.Limit = getIntQueryParam(r, "limit", 20)

	result, err := h.service.List(r.Context(), filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, result)
}

func (h *auditHandlerImpl) List(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, audit.Filter{
		Action:      queryPtr(r, "action"),
		EntityType:  queryPtr(r, "entity_type"),
		EntityID:    queryPtr(r, "entity_id"),
		ActorUserID: queryPtr(r, "actor_user_id"),
	})
}

// ListForEntity returns the change history of one record, newest first.
func (h *auditHandlerImpl) ListForEntity(w http.ResponseWriter, r *http.Request) {
	entityType, entityID := chi.URLParam(r, "entity_type"), chi.URLParam(r, "entity_id")
	h.list(w, r, audit.Filter{EntityType: &entityType, EntityID: &entityID})
}
