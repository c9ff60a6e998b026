package kpi

import (
	"context"
	"time"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/approval"
)

type KpiRepository interface {
	Create(ctx context.Context, k Kpi) (Kpi, error)
	GetByID(ctx context.Context, id string) (Kpi, error)
	List(ctx context.Context, filter KpiFilter) ([]Kpi, int64, error)
	Update(ctx context.Context, req UpdateKpiRequest) error
	Delete(ctx context.Context, id string) error
}

type ValueRepository interface {
	Create(ctx context.Context, v Value) (Value, error)
	GetByID(ctx context.Context, id string) (Value, error)
	// GetByIDForUpdate locks the row until the surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id string) (Value, error)
	List(ctx context.Context, filter ValueFilter) ([]Value, int64, error)
	// Update writes v only if the stored status still equals expected, otherwise it
	// returns a *approval.PreconditionError.
	Update(ctx context.Context, v Value, expected approval.Status) error
	// LockWeightBudget serializes weight changes for one employee and cycle until
	// the surrounding transaction ends. Call it before SumWeight.
	LockWeightBudget(ctx context.Context, employeeID, reviewCycleID string) error
	// SumWeight totals the weights of an employee's values in a cycle, skipping excludeID.
	SumWeight(ctx context.Context, employeeID, reviewCycleID, excludeID string) (float64, error)
	CountByKpi(ctx context.Context, kpiID string) (int64, error)
	ListPendingSince(ctx context.Context, before time.Time) ([]Value, error)
	UpdateEvidence(ctx context.Context, id, path string) error
}
