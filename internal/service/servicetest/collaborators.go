package servicetest

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/audit"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/auth"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/notification"
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/email"
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/storage"
)

// Notifier records queued notifications instead of delivering them.
type Notifier struct {
	mu          sync.Mutex
	Queued      []notification.CreateNotificationRequest
	Preferences map[string][]notification.PreferenceResponse
}

func NewNotifier() *Notifier {
	return &Notifier{Preferences: make(map[string][]notification.PreferenceResponse)}
}

func (n *Notifier) QueueNotification(ctx context.Context, req notification.CreateNotificationRequest) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Queued = append(n.Queued, req)
	return nil
}

func (n *Notifier) QueueBulkNotification(ctx context.Context, reqs []notification.CreateNotificationRequest) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Queued = append(n.Queued, reqs...)
	return nil
}

// Sent returns the queued notifications of type t.
func (n *Notifier) Sent(t notification.NotificationType) []notification.CreateNotificationRequest {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notification.CreateNotificationRequest
	for _, r := range n.Queued {
		if r.Type == t {
			out = append(out, r)
		}
	}
	return out
}

func (n *Notifier) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Queued = nil
}

func (n *Notifier) GetNotifications(ctx context.Context, userID string, page, pageSize int, unreadOnly bool) (*notification.NotificationListResponse, error) {
	return &notification.NotificationListResponse{Page: page, PageSize: pageSize}, nil
}

func (n *Notifier) GetUnreadCount(ctx context.Context, userID string) (int, error) { return 0, nil }

func (n *Notifier) MarkAsRead(ctx context.Context, userID string, req notification.MarkAsReadRequest) error {
	return nil
}

func (n *Notifier) MarkAllAsRead(ctx context.Context, userID string) error { return nil }

func (n *Notifier) Delete(ctx context.Context, userID string, notificationID string) error {
	return nil
}

func (n *Notifier) GetPreferences(ctx context.Context, userID string) ([]notification.PreferenceResponse, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.Preferences[userID], nil
}

func (n *Notifier) UpdatePreference(ctx context.Context, userID string, req notification.UpdatePreferenceRequest) error {
	return nil
}

func (n *Notifier) Subscribe(ctx context.Context, userID string) (<-chan notification.SSEEvent, func()) {
	ch := make(chan notification.SSEEvent)
	return ch, func() {}
}

func (n *Notifier) Stop() {}

// Auditor records audit requests.
type Auditor struct {
	mu      sync.Mutex
	Records []audit.RecordRequest
}

func (a *Auditor) Record(ctx context.Context, req audit.RecordRequest) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Records = append(a.Records, req)
}

func (a *Auditor) List(ctx context.Context, filter audit.Filter) (audit.ListEntryResponse, error) {
	return audit.ListEntryResponse{Page: filter.Page, Limit: filter.Limit}, nil
}

// Actions returns the recorded actions in order.
func (a *Auditor) Actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.Records))
	for i, r := range a.Records {
		out[i] = r.Action
	}
	return out
}

// Mailer records sent mail.
type Mailer struct {
	mu            sync.Mutex
	Notifications []email.Message
	Reminders     map[string][]email.ReminderItem
}

func NewMailer() *Mailer {
	return &Mailer{Reminders: make(map[string][]email.ReminderItem)}
}

func (m *Mailer) SendNotification(ctx context.Context, msg email.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Notifications = append(m.Notifications, msg)
	return nil
}

func (m *Mailer) SendReminder(ctx context.Context, to string, items []email.ReminderItem, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reminders[to] = append(m.Reminders[to], items...)
	return nil
}

// Storage keeps uploaded files in memory.
type Storage struct {
	mu    sync.Mutex
	Files map[string][]byte
	Types map[string]string
}

func NewStorage() *Storage {
	return &Storage{Files: make(map[string][]byte), Types: make(map[string]string)}
}

func (s *Storage) Upload(ctx context.Context, file io.Reader, size int64, path string, contentType string) (string, error) {
	if path == "" || strings.Contains(path, "..") {
		return "", storage.ErrInvalidPath
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Files[path] = data
	s.Types[path] = contentType
	return path, nil
}

func (s *Storage) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.Files[path]
	if !ok {
		return nil, storage.ErrFileNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *Storage) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.Files, path)
	return nil
}

func (s *Storage) GetURL(ctx context.Context, path string, expiry time.Duration) (string, error) {
	return "http://files.test/" + path, nil
}

func (s *Storage) Exists(ctx context.Context, path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.Files[path]
	return ok, nil
}

// RefreshTokens stores refresh tokens in memory.
type RefreshTokens struct {
	mu      sync.Mutex
	Tokens  map[string]string // token -> user id
	Revoked map[string]bool
}

func NewRefreshTokens() *RefreshTokens {
	return &RefreshTokens{Tokens: make(map[string]string), Revoked: make(map[string]bool)}
}

func (r *RefreshTokens) CreateRefreshToken(ctx context.Context, userID string, token string, expiresAt int64, session auth.SessionTrackingRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Tokens[token] = userID
	return nil
}

func (r *RefreshTokens) IsRefreshTokenRevoked(ctx context.Context, token string) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	userID, ok := r.Tokens[token]
	if !ok {
		return "", true, nil
	}
	return userID, r.Revoked[token], nil
}

func (r *RefreshTokens) RevokeRefreshToken(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Revoked[token] = true
	return nil
}
