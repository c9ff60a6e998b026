package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/audit"
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/pagination"
	"github.com/google/uuid"
)

type auditServiceImpl struct {
	repo audit.Repository
	now  func() time.Time
}

func NewAuditService(repo audit.Repository) audit.Service {
	return &auditServiceImpl{repo: repo, now: time.Now}
}

// Record appends an entry. Failures are logged and swallowed so the change that
// triggered the record is never undone by the audit trail.
func (s *auditServiceImpl) Record(ctx context.Context, req audit.RecordRequest) {
	meta := audit.RequestMetaFrom(ctx)
	if req.RequestID == "" {
		req.RequestID = meta.RequestID
	}
	if req.IP == "" {
		req.IP = meta.IP
	}

	entry := audit.Entry{
		ID:         uuid.NewString(),
		Action:     req.Action,
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
		RequestID:  req.RequestID,
		IP:         req.IP,
		CreatedAt:  s.now(),
	}
	if req.ActorUserID != "" {
		actor := req.ActorUserID
		entry.ActorUserID = &actor
	}

	var err error
	if entry.Before, err = marshalState(req.Before); err != nil {
		slog.Error("audit: marshal before state", "action", req.Action, "entity_id", req.EntityID, "error", err)
	}
	if entry.After, err = marshalState(req.After); err != nil {
		slog.Error("audit: marshal after state", "action", req.Action, "entity_id", req.EntityID, "error", err)
	}

	if err := s.repo.Create(context.WithoutCancel(ctx), entry); err != nil {
		slog.Error("audit: record failed",
			"action", req.Action,
			"entity_type", req.EntityType,
			"entity_id", req.EntityID,
			"error", err,
		)
	}
}

func (s *auditServiceImpl) List(ctx context.Context, filter audit.Filter) (audit.ListEntryResponse, error) {
	if err := filter.Validate(); err != nil {
		return audit.ListEntryResponse{}, err
	}

	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return audit.ListEntryResponse{}, fmt.Errorf("failed to list audit entries: %w", err)
	}

	responses := make([]audit.EntryResponse, 0, len(entries))
	for _, e := range entries {
		responses = append(responses, audit.EntryResponse{
			ID:          e.ID,
			ActorUserID: e.ActorUserID,
			Action:      e.Action,
			EntityType:  e.EntityType,
			EntityID:    e.EntityID,
			Before:      e.Before,
			After:       e.After,
			RequestID:   e.RequestID,
			IP:          e.IP,
			CreatedAt:   e.CreatedAt.Format(time.RFC3339),
		})
	}

	totalPages, showing := pagination.Meta(total, filter.Page, filter.Limit)
	return audit.ListEntryResponse{
		TotalCount: total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: totalPages,
		Showing:    showing,
		Entries:    responses,
	}, nil
}

func marshalState(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(v)
}
