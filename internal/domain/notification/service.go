package notification

import "context"

// Publisher hands notifications to the delivery workers.
type Publisher interface {
	QueueNotification(ctx context.Context, req CreateNotificationRequest) error
	QueueBulkNotification(ctx context.Context, reqs []CreateNotificationRequest) error
}

// Inbox reads and updates one user's notifications and channel preferences.
type Inbox interface {
	GetNotifications(ctx context.Context, userID string, page, pageSize int, unreadOnly bool) (*NotificationListResponse, error)
	GetUnreadCount(ctx context.Context, userID string) (int, error)
	MarkAsRead(ctx context.Context, userID string, req MarkAsReadRequest) error
	MarkAllAsRead(ctx context.Context, userID string) error
	Delete(ctx context.Context, userID string, notificationID string) error

	GetPreferences(ctx context.Context, userID string) ([]PreferenceResponse, error)
	UpdatePreference(ctx context.Context, userID string, req UpdatePreferenceRequest) error
}

type Service interface {
	Publisher
	Inbox

	// Subscribe streams pushed events for userID until the returned func is called.
	Subscribe(ctx context.Context, userID string) (<-chan SSEEvent, func())

	// Stop flushes pending batches and waits for the workers to exit.
	Stop()
}
