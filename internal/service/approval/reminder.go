package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/approval"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/employee"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/evaluation"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/kpi"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/notification"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/user"
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/cron"
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/email"
)

const ReminderJobName = "approval-reminder"

type ReminderConfig struct {
	Interval time.Duration
	After    time.Duration
	// Repeat is how long an item stays quiet after it was reminded.
	Repeat      time.Duration
	FrontendURL string
}

// Reminder nudges approvers about records that have waited on their stage longer
// than the configured window.
type Reminder struct {
	values      kpi.ValueRepository
	evaluations evaluation.EvaluationRepository
	employees   employee.EmployeeRepository
	notifier    notification.Service
	mailer      email.EmailService
	config      ReminderConfig
	now         func() time.Time

	mu sync.Mutex
	// reminded maps an item key to when it was last included in a digest. Keys
	// carry the transition time, so re-entering a stage starts over.
	reminded map[string]time.Time
}

func NewReminder(values kpi.ValueRepository, evaluations evaluation.EvaluationRepository, employees employee.EmployeeRepository, notifier notification.Service, mailer email.EmailService, cfg ReminderConfig) *Reminder {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.After <= 0 {
		cfg.After = 72 * time.Hour
	}
	if cfg.Repeat <= 0 {
		cfg.Repeat = 24 * time.Hour
	}
	return &Reminder{
		values:      values,
		evaluations: evaluations,
		employees:   employees,
		notifier:    notifier,
		mailer:      mailer,
		config:      cfg,
		now:         time.Now,
		reminded:    make(map[string]time.Time),
	}
}

// RegisterJobs adds the reminder to s.
func (r *Reminder) RegisterJobs(s *cron.Scheduler) error {
	return s.AddJob(cron.Job{
		Name:     ReminderJobName,
		Interval: r.config.Interval,
		Timeout:  5 * time.Minute,
		Fn:       r.Run,
	})
}

type pendingItem struct {
	key   string
	stage approval.Stage
	owner user.Owner
	item  email.ReminderItem
}

type approverDigest struct {
	approver employee.Employee
	items    []email.ReminderItem
	keys     []string
}

// Run sends one digest per approver covering everything overdue on their stage
// that was not already reminded within the repeat window.
func (r *Reminder) Run(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	before := now.Add(-r.config.After)

	values, err := r.values.ListPendingSince(ctx, before)
	if err != nil {
		return fmt.Errorf("failed to list pending kpi values: %w", err)
	}
	evaluations, err := r.evaluations.ListPendingSince(ctx, before)
	if err != nil {
		return fmt.Errorf("failed to list pending evaluations: %w", err)
	}

	var pending []pendingItem
	for _, v := range values {
		if p, ok := r.pendingFor("kpi_value:"+v.ID, v.Workflow, user.Owner{EmployeeID: v.EmployeeID, SectionID: v.SectionID, DepartmentID: v.DepartmentID},
			fmt.Sprintf("KPI value %s of %s", v.KpiName, v.EmployeeName)); ok {
			pending = append(pending, p)
		}
	}
	for _, e := range evaluations {
		if p, ok := r.pendingFor("evaluation:"+e.ID, e.Workflow, user.Owner{EmployeeID: e.EmployeeID, SectionID: e.SectionID, DepartmentID: e.DepartmentID},
			fmt.Sprintf("Evaluation %s of %s", e.CycleName, e.EmployeeName)); ok {
			pending = append(pending, p)
		}
	}
	due := r.due(pending, now)
	if len(due) == 0 {
		return nil
	}

	digests, err := r.group(ctx, due)
	if err != nil {
		return err
	}

	var errs []error
	for _, d := range digests {
		if err := r.remind(ctx, d); err != nil {
			errs = append(errs, err)
			continue
		}
		for _, k := range d.keys {
			r.reminded[k] = now
		}
	}

	slog.Info("approval reminders sent", "pending", len(pending), "due", len(due), "approvers", len(digests), "failed", len(errs))
	return errors.Join(errs...)
}

// due drops items reminded less than Repeat ago and forgets items no longer pending.
func (r *Reminder) due(pending []pendingItem, now time.Time) []pendingItem {
	current := make(map[string]bool, len(pending))
	var out []pendingItem
	for _, p := range pending {
		current[p.key] = true
		if last, ok := r.reminded[p.key]; ok && now.Sub(last) < r.config.Repeat {
			continue
		}
		out = append(out, p)
	}
	for k := range r.reminded {
		if !current[k] {
			delete(r.reminded, k)
		}
	}
	return out
}

func (r *Reminder) pendingFor(id string, w approval.Workflow, owner user.Owner, label string) (pendingItem, bool) {
	stage, ok := w.Status.PendingStage()
	if !ok {
		return pendingItem{}, false
	}
	since := ""
	entered := ""
	if w.TransitionedAt != nil {
		since = w.TransitionedAt.Format("2006-01-02 15:04")
		entered = w.TransitionedAt.UTC().Format(time.RFC3339Nano)
	}
	return pendingItem{
		key:   id + ":" + string(stage) + ":" + entered,
		stage: stage,
		owner: owner,
		item:  email.ReminderItem{Label: label, Stage: string(stage), Since: since},
	}, true
}

// group resolves approvers once per stage and unit and collects their items.
func (r *Reminder) group(ctx context.Context, pending []pendingItem) ([]*approverDigest, error) {
	type scope struct {
		stage      approval.Stage
		section    string
		department string
	}
	approversByScope := make(map[scope][]employee.Employee)
	digests := make(map[string]*approverDigest)
	var order []string

	for _, p := range pending {
		key := scope{stage: p.stage}
		switch p.stage {
		case approval.StageSection:
			key.section = p.owner.SectionID
		case approval.StageDepartment:
			key.department = p.owner.DepartmentID
		}

		approvers, ok := approversByScope[key]
		if !ok {
			var err error
			approvers, err = r.employees.FindApprovers(ctx, p.stage, p.owner)
			if err != nil {
				return nil, fmt.Errorf("failed to find %s approvers: %w", p.stage, err)
			}
			approversByScope[key] = approvers
		}

		for _, a := range approvers {
			if a.ID == p.owner.EmployeeID {
				continue
			}
			d, ok := digests[a.ID]
			if !ok {
				d = &approverDigest{approver: a}
				digests[a.ID] = d
				order = append(order, a.ID)
			}
			d.items = append(d.items, p.item)
			d.keys = append(d.keys, p.key)
		}
	}

	out := make([]*approverDigest, 0, len(order))
	for _, id := range order {
		out = append(out, digests[id])
	}
	return out, nil
}

func (r *Reminder) remind(ctx context.Context, d *approverDigest) error {
	link := r.config.FrontendURL + "/approvals"

	if r.notifier != nil {
		err := r.notifier.QueueNotification(ctx, notification.CreateNotificationRequest{
			RecipientID:   d.approver.UserID,
			RecipientName: d.approver.FullName,
			Type:          notification.TypeApprovalReminder,
			Title:         "Pending approvals",
			Message:       fmt.Sprintf("%d item(s) have been waiting for your approval", len(d.items)),
			Data:          map[string]interface{}{"count": len(d.items), "link": link},
		})
		if err != nil {
			return fmt.Errorf("failed to queue reminder for %s: %w", d.approver.ID, err)
		}
	}

	if r.mailer == nil || d.approver.Email == "" || !r.wantsEmail(ctx, d.approver.UserID) {
		return nil
	}
	if err := r.mailer.SendReminder(ctx, d.approver.Email, d.items, link); err != nil {
		return fmt.Errorf("failed to email reminder to %s: %w", d.approver.ID, err)
	}
	return nil
}

func (r *Reminder) wantsEmail(ctx context.Context, userID string) bool {
	if r.notifier == nil {
		return true
	}
	prefs, err := r.notifier.GetPreferences(ctx, userID)
	if err != nil {
		slog.Warn("approval: reading reminder preference failed, sending anyway", "user_id", userID, "error", err)
		return true
	}
	for _, p := range prefs {
		if p.NotificationType == notification.TypeApprovalReminder {
			return p.EmailEnabled
		}
	}
	return true
}
