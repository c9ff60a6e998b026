package dashboard

import (
	"context"
	"time"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/approval"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/dashboard"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/user"
	"golang.org/x/sync/errgroup"
)

type DashboardServiceImpl struct {
	dashboard.DashboardRepository
	now func() time.Time
}

func NewDashboardService(repo dashboard.DashboardRepository) dashboard.DashboardService {
	return &DashboardServiceImpl{
		DashboardRepository: repo,
		now:                 time.Now,
	}
}

// scopeFor mirrors user.CanView: heads see their unit, managers and admins everything,
// everyone else only their own records.
func scopeFor(actor user.Actor, reviewCycleID *string) (dashboard.Scope, string) {
	scope := dashboard.Scope{ReviewCycleID: reviewCycleID}
	switch actor.Role {
	case user.RoleAdmin, user.RoleManager:
		return scope, dashboard.ScopeOrganisation
	case user.RoleDepartmentHead:
		if actor.DepartmentID != "" {
			scope.DepartmentID = &actor.DepartmentID
			return scope, dashboard.ScopeDepartment
		}
	case user.RoleSectionHead:
		if actor.SectionID != "" {
			scope.SectionID = &actor.SectionID
			return scope, dashboard.ScopeSection
		}
	}
	scope.EmployeeID = &actor.EmployeeID
	return scope, dashboard.ScopeOwn
}

// queueStages lists the stages whose pending records count as the actor's work.
func queueStages(role user.Role) []approval.Stage {
	if role == user.RoleAdmin {
		return approval.Stages
	}
	var stages []approval.Stage
	for _, stage := range approval.Stages {
		if user.StageRoles[stage] == role {
			stages = append(stages, stage)
		}
	}
	return stages
}

func summarize(counts dashboard.StatusCounts) dashboard.StatusSummary {
	summary := dashboard.StatusSummary{ByStatus: make(map[string]int64, len(counts))}
	for status, n := range counts {
		summary.Total += n
		summary.ByStatus[string(status)] += n
		switch {
		case status == approval.StatusDraft:
			summary.Draft += n
		case status == approval.StatusApproved:
			summary.Approved += n
		case status.IsRejected():
			summary.Rejected += n
		case status.IsPending():
			summary.Pending += n
		}
	}
	return summary
}

// GetDashboard runs its four independent queries in parallel.
func (s *DashboardServiceImpl) GetDashboard(ctx context.Context, actor user.Actor, reviewCycleID *string) (*dashboard.DashboardResponse, error) {
	scope, scopeName := scopeFor(actor, reviewCycleID)
	if scopeName == dashboard.ScopeOwn && actor.EmployeeID == "" {
		return nil, user.ErrEmployeeProfileRequired
	}

	var (
		values      dashboard.StatusSummary
		evaluations dashboard.StatusSummary
		scores      dashboard.ScoreSummary
		queue       *dashboard.ApprovalQueueResponse
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		counts, err := s.CountValuesByStatus(gCtx, scope)
		if err != nil {
			return err
		}
		values = summarize(counts)
		return nil
	})

	g.Go(func() error {
		counts, err := s.CountEvaluationsByStatus(gCtx, scope)
		if err != nil {
			return err
		}
		evaluations = summarize(counts)
		return nil
	})

	g.Go(func() error {
		stats, err := s.GetScoreStats(gCtx, scope)
		if err != nil {
			return err
		}
		scores = dashboard.ScoreSummary{
			Completed:         stats.Completed,
			AverageFinalScore: stats.AverageFinal,
			RankDistribution:  stats.Ranks,
		}
		if scores.RankDistribution == nil {
			scores.RankDistribution = map[string]int64{}
		}
		return nil
	})

	g.Go(func() error {
		var err error
		queue, err = s.GetApprovalQueue(gCtx, actor, reviewCycleID)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &dashboard.DashboardResponse{
		ReviewCycleID: reviewCycleID,
		Scope:         scopeName,
		KpiValues:     values,
		Evaluations:   evaluations,
		Scores:        scores,
		ApprovalQueue: *queue,
		UpdatedAt:     s.now().UTC().Format(time.RFC3339),
	}, nil
}

// GetApprovalQueue counts pending records in the actor's scope, leaving out the
// actor's own. Employees without an approval role get an empty queue.
func (s *DashboardServiceImpl) GetApprovalQueue(ctx context.Context, actor user.Actor, reviewCycleID *string) (*dashboard.ApprovalQueueResponse, error) {
	queue := &dashboard.ApprovalQueueResponse{ByStage: map[string]int64{}}

	stages := queueStages(actor.Role)
	if len(stages) == 0 {
		return queue, nil
	}

	scope, scopeName := scopeFor(actor, reviewCycleID)
	if scopeName == dashboard.ScopeOwn {
		return queue, nil
	}
	if actor.EmployeeID != "" {
		scope.ExcludeEmployeeID = &actor.EmployeeID
	}

	var valueCounts, evaluationCounts dashboard.StatusCounts
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		valueCounts, err = s.CountValuesByStatus(gCtx, scope)
		return err
	})
	g.Go(func() error {
		var err error
		evaluationCounts, err = s.CountEvaluationsByStatus(gCtx, scope)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, stage := range stages {
		pending := stage.Pending()
		v, e := valueCounts[pending], evaluationCounts[pending]
		queue.KpiValues += v
		queue.Evaluations += e
		queue.ByStage[string(stage)] = v + e
	}
	queue.Total = queue.KpiValues + queue.Evaluations
	return queue, nil
}
