package notification

import "context"

// Store persists in-app notifications. Every read and write is scoped to the recipient.
type Store interface {
	Create(ctx context.Context, notification *Notification) error
	// CreateBatch is used by the delivery workers to flush a whole batch in one round trip.
	CreateBatch(ctx context.Context, notifications []*Notification) error
	GetByID(ctx context.Context, id string) (*Notification, error)
	GetByUserID(ctx context.Context, userID string, page, pageSize int, unreadOnly bool) ([]*Notification, int, error)
	GetUnreadCount(ctx context.Context, userID string) (int, error)
	MarkAsRead(ctx context.Context, ids []string, userID string) error
	MarkAllAsRead(ctx context.Context, userID string) error
	Delete(ctx context.Context, id string, userID string) error
}

// PreferenceStore keeps per-type channel overrides. Types without a row use the defaults.
type PreferenceStore interface {
	GetPreferences(ctx context.Context, userID string) ([]*NotificationPreference, error)
	// GetPreference returns ErrPreferenceNotFound when the user kept the defaults.
	GetPreference(ctx context.Context, userID string, notifType NotificationType) (*NotificationPreference, error)
	UpsertPreference(ctx context.Context, pref *NotificationPreference) error
}

type Repository interface {
	Store
	PreferenceStore
}
