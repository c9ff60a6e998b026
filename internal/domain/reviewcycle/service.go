package reviewcycle

import "context"

type ReviewCycleService interface {
	Create(ctx context.Context, req CreateReviewCycleRequest) (ReviewCycleResponse, error)
	Get(ctx context.Context, id string) (ReviewCycleResponse, error)
	List(ctx context.Context) ([]ReviewCycleResponse, error)
	Update(ctx context.Context, req UpdateReviewCycleRequest) (ReviewCycleResponse, error)
}
