package notification

import (
	"time"
)

// NotificationType represents the type of notification
type NotificationType string

const (
	TypeApprovalRequested  NotificationType = "approval_requested"  // an item waits on the recipient's stage
	TypeApprovalApproved   NotificationType = "approval_approved"   // the owner's item passed its final stage
	TypeApprovalRejected   NotificationType = "approval_rejected"   // the owner's item was rejected with a reason
	TypeApprovalReminder   NotificationType = "approval_reminder"   // an item has waited longer than the reminder window
	TypeEvaluationComplete NotificationType = "evaluation_complete" // the final score was frozen
	TypeEvaluationFeedback NotificationType = "evaluation_feedback" // the employee responded to a completed review
)

// AllNotificationTypes returns all available notification types
func AllNotificationTypes() []NotificationType {
	return []NotificationType{
		TypeApprovalRequested,
		TypeApprovalApproved,
		TypeApprovalRejected,
		TypeApprovalReminder,
		TypeEvaluationComplete,
		TypeEvaluationFeedback,
	}
}

// IsValid reports whether t is a known notification type
func (t NotificationType) IsValid() bool {
	for _, known := range AllNotificationTypes() {
		if known == t {
			return true
		}
	}
	return false
}

// Notification represents a notification entity
type Notification struct {
	ID          string
	RecipientID string
	SenderID    *string
	Type        NotificationType
	Title       string
	Message     string
	Data        map[string]interface{}
	IsRead      bool
	ReadAt      *time.Time
	CreatedAt   time.Time
}

// NotificationPreference represents user preference for a notification type
type NotificationPreference struct {
	ID               string
	UserID           string
	NotificationType NotificationType
	EmailEnabled     bool
	PushEnabled      bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
