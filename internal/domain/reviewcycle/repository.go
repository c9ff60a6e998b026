package reviewcycle

import "context"

type ReviewCycleRepository interface {
	Create(ctx context.Context, c ReviewCycle) (ReviewCycle, error)
	GetByID(ctx context.Context, id string) (ReviewCycle, error)
	List(ctx context.Context) ([]ReviewCycle, error)
	Update(ctx context.Context, c ReviewCycle) error
	IsReferenced(ctx context.Context, id string) (bool, error)
}
