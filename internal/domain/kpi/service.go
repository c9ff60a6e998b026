package kpi

import (
	"context"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/user"
)

type KpiService interface {
	Create(ctx context.Context, req CreateKpiRequest) (KpiResponse, error)
	Get(ctx context.Context, id string) (KpiResponse, error)
	List(ctx context.Context, filter KpiFilter) (ListKpiResponse, error)
	Update(ctx context.Context, req UpdateKpiRequest) (KpiResponse, error)
	Delete(ctx context.Context, id string) error
}

type ValueService interface {
	Submit(ctx context.Context, actor user.Actor, req SubmitValueRequest) (ValueResponse, error)
	SubmitDraft(ctx context.Context, actor user.Actor, id string) (ValueResponse, error)
	Get(ctx context.Context, actor user.Actor, id string) (ValueResponse, error)
	List(ctx context.Context, actor user.Actor, filter ValueFilter) (ListValueResponse, error)
	ListMine(ctx context.Context, actor user.Actor, filter ValueFilter) (ListValueResponse, error)
	Approve(ctx context.Context, actor user.Actor, req ApproveValueRequest) (ValueResponse, error)
	Reject(ctx context.Context, actor user.Actor, req RejectValueRequest) (ValueResponse, error)
	Resubmit(ctx context.Context, actor user.Actor, req ResubmitValueRequest) (ValueResponse, error)
}
