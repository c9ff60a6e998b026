package dashboard

import (
	"context"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/user"
)

type DashboardService interface {
	// GetDashboard returns combined dashboard data for what the actor may see
	GetDashboard(ctx context.Context, actor user.Actor, reviewCycleID *string) (*DashboardResponse, error)

	// GetApprovalQueue counts records waiting at the actor's approval stage
	GetApprovalQueue(ctx context.Context, actor user.Actor, reviewCycleID *string) (*ApprovalQueueResponse, error)
}
