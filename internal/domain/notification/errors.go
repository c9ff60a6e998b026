package notification

import "errors"

var (
	ErrNotificationNotFound    = errors.New("notification not found")
	ErrInvalidNotificationType = errors.New("notification type is not a known workflow event")
	ErrRecipientRequired       = errors.New("notification has no recipient")

	// ErrPreferenceNotFound means the user never changed the defaults for a type.
	ErrPreferenceNotFound = errors.New("notification preference not found")
)
