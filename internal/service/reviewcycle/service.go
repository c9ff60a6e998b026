package reviewcycle

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/audit"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/reviewcycle"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/user"
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/database"
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/validator"
)

type ReviewCycleServiceImpl struct {
	tx    database.Transactor
	repo  reviewcycle.ReviewCycleRepository
	audit audit.Service
}

func NewReviewCycleService(tx database.Transactor, repo reviewcycle.ReviewCycleRepository, auditService audit.Service) reviewcycle.ReviewCycleService {
	return &ReviewCycleServiceImpl{tx: tx, repo: repo, audit: auditService}
}

func toResponse(c reviewcycle.ReviewCycle) reviewcycle.ReviewCycleResponse {
	return reviewcycle.ReviewCycleResponse{
		ID:         c.ID,
		Name:       c.Name,
		StartDate:  c.StartDate.Format(time.DateOnly),
		EndDate:    c.EndDate.Format(time.DateOnly),
		Referenced: c.Referenced,
		CreatedAt:  c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  c.UpdatedAt.Format(time.RFC3339),
	}
}

func (s *ReviewCycleServiceImpl) record(ctx context.Context, action, id string, before, after any) {
	if s.audit == nil {
		return
	}
	actor, _ := user.ActorFrom(ctx)
	s.audit.Record(ctx, audit.RecordRequest{
		ActorUserID: actor.UserID,
		Action:      action,
		EntityType:  audit.EntityReviewCycle,
		EntityID:    id,
		Before:      before,
		After:       after,
	})
}

func (s *ReviewCycleServiceImpl) Create(ctx context.Context, req reviewcycle.CreateReviewCycleRequest) (reviewcycle.ReviewCycleResponse, error) {
	if err := req.Validate(); err != nil {
		return reviewcycle.ReviewCycleResponse{}, err
	}
	start, _ := time.Parse(time.DateOnly, req.StartDate)
	end, _ := time.Parse(time.DateOnly, req.EndDate)

	created, err := s.repo.Create(ctx, reviewcycle.ReviewCycle{Name: req.Name, StartDate: start, EndDate: end})
	if err != nil {
		return reviewcycle.ReviewCycleResponse{}, fmt.Errorf("failed to create review cycle: %w", err)
	}

	resp := toResponse(created)
	s.record(ctx, "create", created.ID, nil, resp)
	return resp, nil
}

func (s *ReviewCycleServiceImpl) Get(ctx context.Context, id string) (reviewcycle.ReviewCycleResponse, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return reviewcycle.ReviewCycleResponse{}, err
	}
	return toResponse(c), nil
}

func (s *ReviewCycleServiceImpl) List(ctx context.Context) ([]reviewcycle.ReviewCycleResponse, error) {
	cycles, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list review cycles: %w", err)
	}
	out := make([]reviewcycle.ReviewCycleResponse, 0, len(cycles))
	for _, c := range cycles {
		out = append(out, toResponse(c))
	}
	return out, nil
}

// Update renames a cycle at any time. Its dates are frozen once a KPI value or
// evaluation references it.
func (s *ReviewCycleServiceImpl) Update(ctx context.Context, req reviewcycle.UpdateReviewCycleRequest) (reviewcycle.ReviewCycleResponse, error) {
	if err := req.Validate(); err != nil {
		return reviewcycle.ReviewCycleResponse{}, err
	}

	var before, updated reviewcycle.ReviewCycle
	err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		current, err := s.repo.GetByID(txCtx, req.ID)
		if err != nil {
			return err
		}
		before = current

		if req.ChangesDates(current) {
			referenced, err := s.repo.IsReferenced(txCtx, req.ID)
			if err != nil {
				return fmt.Errorf("failed to check review cycle references: %w", err)
			}
			if referenced {
				return reviewcycle.ErrReviewCycleLocked
			}
		}

		updated = current
		if req.Name != nil {
			updated.Name = *req.Name
		}
		if req.StartDate != nil {
			updated.StartDate, _ = time.Parse(time.DateOnly, *req.StartDate)
		}
		if req.EndDate != nil {
			updated.EndDate, _ = time.Parse(time.DateOnly, *req.EndDate)
		}
		if updated.EndDate.Before(updated.StartDate) {
			return validator.ValidationErrors{{Field: "end_date", Message: "end_date must not be before start_date"}}
		}

		if err := s.repo.Update(txCtx, updated); err != nil {
			return fmt.Errorf("failed to update review cycle: %w", err)
		}
		return nil
	})
	if err != nil {
		return reviewcycle.ReviewCycleResponse{}, err
	}

	fresh, err := s.repo.GetByID(ctx, req.ID)
	if err != nil {
		return reviewcycle.ReviewCycleResponse{}, err
	}
	resp := toResponse(fresh)
	s.record(ctx, "update", req.ID, toResponse(before), resp)
	return resp, nil
}
