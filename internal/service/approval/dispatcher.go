package approval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/approval"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/audit"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/employee"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/notification"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/user"
)

// Notify selects who hears about an event.
type Notify int

const (
	// NotifyNone only records the audit entry.
	NotifyNone Notify = iota
	// NotifyWorkflow routes by the status reached: approvers of a pending stage,
	// or the owner once the record is approved or rejected.
	NotifyWorkflow
	// NotifyCompleted tells the owner the evaluation score was frozen.
	NotifyCompleted
	// NotifyReviewers tells Recipients the employee left feedback.
	NotifyReviewers
)

// Event describes a committed change to an approvable record.
type Event struct {
	Action          string
	EntityType      string
	EntityID        string
	Label           string
	OwnerEmployeeID string
	Actor           user.Actor
	Status          approval.Status
	Reason          string
	Before          any
	After           any

	Notify     Notify
	Recipients []string // user IDs, for NotifyReviewers
}

// Dispatcher records audit entries and fans out notifications after a workflow
// change has been committed. It never fails the caller.
type Dispatcher struct {
	employees   employee.EmployeeRepository
	users       user.UserRepository
	notifier    notification.Publisher
	audit       audit.Service
	frontendURL string
}

func NewDispatcher(employees employee.EmployeeRepository, users user.UserRepository, notifier notification.Publisher, auditService audit.Service, frontendURL string) *Dispatcher {
	return &Dispatcher{
		employees:   employees,
		users:       users,
		notifier:    notifier,
		audit:       auditService,
		frontendURL: frontendURL,
	}
}

// Dispatch must be called after the transaction that produced ev has committed.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) {
	ctx = context.WithoutCancel(ctx)

	if d.audit != nil {
		d.audit.Record(ctx, audit.RecordRequest{
			ActorUserID: ev.Actor.UserID,
			Action:      ev.Action,
			EntityType:  ev.EntityType,
			EntityID:    ev.EntityID,
			Before:      ev.Before,
			After:       ev.After,
		})
	}

	if d.notifier == nil || ev.Notify == NotifyNone {
		return
	}

	reqs, err := d.notifications(ctx, ev)
	if err != nil {
		slog.Error("approval: resolve notification recipients failed",
			"action", ev.Action,
			"entity_type", ev.EntityType,
			"entity_id", ev.EntityID,
			"error", err,
		)
		return
	}
	if len(reqs) == 0 {
		return
	}
	if err := d.notifier.QueueBulkNotification(ctx, reqs); err != nil {
		slog.Error("approval: queue notifications failed", "action", ev.Action, "entity_id", ev.EntityID, "error", err)
	}
}

func (d *Dispatcher) notifications(ctx context.Context, ev Event) ([]notification.CreateNotificationRequest, error) {
	owner, err := d.employees.GetByID(ctx, ev.OwnerEmployeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get owner employee: %w", err)
	}

	data := map[string]interface{}{
		"entity_type": ev.EntityType,
		"entity_id":   ev.EntityID,
		"status":      string(ev.Status),
		"link":        d.Link(ev.EntityType, ev.EntityID),
	}

	switch ev.Notify {
	case NotifyWorkflow:
		if stage, ok := ev.Status.PendingStage(); ok {
			approvers, err := d.employees.FindApprovers(ctx, stage, owner.Owner())
			if err != nil {
				return nil, fmt.Errorf("failed to find %s approvers: %w", stage, err)
			}
			data["stage"] = string(stage)
			var reqs []notification.CreateNotificationRequest
			for _, a := range approvers {
				if a.UserID == ev.Actor.UserID {
					continue
				}
				reqs = append(reqs, d.request(ev, a.UserID, a.Email, a.FullName, notification.TypeApprovalRequested,
					"Approval requested",
					fmt.Sprintf("%s from %s is waiting for your %s approval", ev.Label, owner.FullName, stage),
					data))
			}
			return reqs, nil
		}

		if stage, ok := ev.Status.RejectedStage(); ok {
			data["stage"] = string(stage)
			data["reason"] = ev.Reason
			return d.toOwner(ev, owner, notification.TypeApprovalRejected,
				"Rejected",
				fmt.Sprintf("%s was rejected at the %s stage", ev.Label, stage),
				data), nil
		}

		if ev.Status == approval.StatusApproved {
			return d.toOwner(ev, owner, notification.TypeApprovalApproved,
				"Approved",
				fmt.Sprintf("%s has passed every approval stage", ev.Label),
				data), nil
		}
		return nil, nil

	case NotifyCompleted:
		return d.toOwner(ev, owner, notification.TypeEvaluationComplete,
			"Evaluation completed",
			fmt.Sprintf("%s has been completed and your final score is available", ev.Label),
			data), nil

	case NotifyReviewers:
		var reqs []notification.CreateNotificationRequest
		seen := make(map[string]bool, len(ev.Recipients))
		for _, userID := range ev.Recipients {
			if userID == "" || seen[userID] || userID == ev.Actor.UserID {
				continue
			}
			seen[userID] = true
			u, err := d.users.GetByID(ctx, userID)
			if err != nil {
				slog.Warn("approval: skipping unknown reviewer", "user_id", userID, "error", err)
				continue
			}
			reqs = append(reqs, d.request(ev, u.ID, u.Email, "", notification.TypeEvaluationFeedback,
				"Employee feedback",
				fmt.Sprintf("%s responded to %s", owner.FullName, ev.Label),
				data))
		}
		return reqs, nil
	}
	return nil, nil
}

func (d *Dispatcher) toOwner(ev Event, owner employee.Employee, t notification.NotificationType, title, message string, data map[string]interface{}) []notification.CreateNotificationRequest {
	if owner.UserID == ev.Actor.UserID {
		return nil
	}
	return []notification.CreateNotificationRequest{
		d.request(ev, owner.UserID, owner.Email, owner.FullName, t, title, message, data),
	}
}

func (d *Dispatcher) request(ev Event, userID, email, name string, t notification.NotificationType, title, message string, data map[string]interface{}) notification.CreateNotificationRequest {
	req := notification.CreateNotificationRequest{
		RecipientID:    userID,
		RecipientEmail: email,
		RecipientName:  name,
		Type:           t,
		Title:          title,
		Message:        message,
		Data:           data,
	}
	if ev.Actor.UserID != "" {
		sender := ev.Actor.UserID
		req.SenderID = &sender
	}
	return req
}

// Link returns the frontend page of an entity.
func (d *Dispatcher) Link(entityType, entityID string) string {
	switch entityType {
	case audit.EntityKpiValue:
		return d.frontendURL + "/kpi-values/" + entityID
	case audit.EntityEvaluation:
		return d.frontendURL + "/evaluations/" + entityID
	}
	return d.frontendURL
}
