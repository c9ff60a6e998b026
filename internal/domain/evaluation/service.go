package evaluation

import (
	"context"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/user"
)

type EvaluationService interface {
	Create(ctx context.Context, actor user.Actor, req CreateEvaluationRequest) (EvaluationResponse, error)
	Get(ctx context.Context, actor user.Actor, id string) (EvaluationResponse, error)
	List(ctx context.Context, actor user.Actor, filter EvaluationFilter) (ListEvaluationResponse, error)
	UpdateObjectives(ctx context.Context, actor user.Actor, req UpdateObjectivesRequest) (EvaluationResponse, error)
	Submit(ctx context.Context, actor user.Actor, id string) (EvaluationResponse, error)
	SubmitSelfReview(ctx context.Context, actor user.Actor, req SelfReviewRequest) (EvaluationResponse, error)
	SubmitStageReview(ctx context.Context, actor user.Actor, req StageReviewRequest) (EvaluationResponse, error)
	RejectStage(ctx context.Context, actor user.Actor, req RejectRequest) (EvaluationResponse, error)
	Resubmit(ctx context.Context, actor user.Actor, id string) (EvaluationResponse, error)
	CompleteReview(ctx context.Context, actor user.Actor, id string) (EvaluationResponse, error)
	SubmitEmployeeFeedback(ctx context.Context, actor user.Actor, req FeedbackRequest) (EvaluationResponse, error)
	Confirm(ctx context.Context, actor user.Actor, id string) (EvaluationResponse, error)
	Export(ctx context.Context, actor user.Actor, id string) (ExportResponse, error)
}
