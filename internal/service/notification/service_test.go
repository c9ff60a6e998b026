package notification

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/notification"
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/email"
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/sse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	mu    sync.Mutex
	rows  []*notification.Notification
	prefs map[string]*notification.NotificationPreference
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{prefs: make(map[string]*notification.NotificationPreference)}
}

func prefKey(userID string, t notification.NotificationType) string { return userID + "/" + string(t) }

func (f *fakeRepo) Create(ctx context.Context, n *notification.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, n)
	return nil
}

func (f *fakeRepo) CreateBatch(ctx context.Context, ns []*notification.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, ns...)
	return nil
}

func (f *fakeRepo) GetByID(ctx context.Context, id string) (*notification.Notification, error) {
	return nil, notification.ErrNotificationNotFound
}

func (f *fakeRepo) GetByUserID(ctx context.Context, userID string, page, pageSize int, unreadOnly bool) ([]*notification.Notification, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*notification.Notification
	for _, n := range f.rows {
		if n.RecipientID == userID {
			out = append(out, n)
		}
	}
	return out, len(out), nil
}

func (f *fakeRepo) GetUnreadCount(ctx context.Context, userID string) (int, error) {
	n, _, _ := f.GetByUserID(ctx, userID, 1, 100, true)
	return len(n), nil
}

func (f *fakeRepo) MarkAsRead(ctx context.Context, ids []string, userID string) error { return nil }
func (f *fakeRepo) MarkAllAsRead(ctx context.Context, userID string) error            { return nil }
func (f *fakeRepo) Delete(ctx context.Context, id string, userID string) error        { return nil }

func (f *fakeRepo) GetPreferences(ctx context.Context, userID string) ([]*notification.NotificationPreference, error) {
	var out []*notification.NotificationPreference
	for _, p := range f.prefs {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetPreference(ctx context.Context, userID string, t notification.NotificationType) (*notification.NotificationPreference, error) {
	p, ok := f.prefs[prefKey(userID, t)]
	if !ok {
		return nil, notification.ErrPreferenceNotFound
	}
	return p, nil
}

func (f *fakeRepo) UpsertPreference(ctx context.Context, p *notification.NotificationPreference) error {
	f.prefs[prefKey(p.UserID, p.NotificationType)] = p
	return nil
}

func (f *fakeRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []email.Message
}

func (m *fakeMailer) SendNotification(ctx context.Context, msg email.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) SendReminder(ctx context.Context, to string, items []email.ReminderItem, link string) error {
	return nil
}

func rejected(recipient string) notification.CreateNotificationRequest {
	return notification.CreateNotificationRequest{
		RecipientID:    recipient,
		RecipientEmail: recipient + "@test",
		Type:           notification.TypeApprovalRejected,
		Title:          "KPI value rejected",
		Message:        "rejected at section",
		Data:           map[string]interface{}{"reason": "missing evidence"},
	}
}

func TestQueue_FlushedOnStop(t *testing.T) {
	repo := newFakeRepo()
	mailer := &fakeMailer{}
	svc := NewNotificationService(repo, sse.NewHub(4), mailer, Config{BatchSize: 10, FlushInterval: time.Hour, WorkerCount: 1})

	require.NoError(t, svc.QueueNotification(context.Background(), rejected("u1")))
	require.NoError(t, svc.QueueNotification(context.Background(), rejected("u2")))
	svc.Stop()

	assert.Equal(t, 2, repo.count())
	require.Len(t, mailer.sent, 2)
	assert.Equal(t, "missing evidence", mailer.sent[0].Reason)

	// stopping twice is harmless
	svc.Stop()
}

func TestQueue_RespectsPreferences(t *testing.T) {
	repo := newFakeRepo()
	mailer := &fakeMailer{}
	repo.prefs[prefKey("u1", notification.TypeApprovalRejected)] = &notification.NotificationPreference{
		UserID: "u1", NotificationType: notification.TypeApprovalRejected, PushEnabled: false, EmailEnabled: true,
	}
	repo.prefs[prefKey("u2", notification.TypeApprovalRejected)] = &notification.NotificationPreference{
		UserID: "u2", NotificationType: notification.TypeApprovalRejected, PushEnabled: false, EmailEnabled: false,
	}
	svc := NewNotificationService(repo, sse.NewHub(4), mailer, Config{BatchSize: 10, FlushInterval: time.Hour, WorkerCount: 1})

	require.NoError(t, svc.QueueBulkNotification(context.Background(), []notification.CreateNotificationRequest{rejected("u1"), rejected("u2")}))
	svc.Stop()

	assert.Equal(t, 0, repo.count())
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "u1@test", mailer.sent[0].To)
}

func TestQueue_PublishesToSSE(t *testing.T) {
	repo := newFakeRepo()
	hub := sse.NewHub(4)
	svc := NewNotificationService(repo, hub, nil, Config{BatchSize: 1, FlushInterval: time.Hour, WorkerCount: 1})
	defer svc.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, cleanup := svc.Subscribe(ctx, "u1")
	defer cleanup()

	require.NoError(t, svc.QueueNotification(context.Background(), rejected("u1")))

	select {
	case ev := <-events:
		assert.Equal(t, "notification", ev.Event)
		assert.Equal(t, notification.TypeApprovalRejected, ev.Data.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no sse event")
	}
}

func TestQueue_InvalidType(t *testing.T) {
	svc := newService(newFakeRepo(), sse.NewHub(1), nil, Config{})
	err := svc.QueueNotification(context.Background(), notification.CreateNotificationRequest{RecipientID: "u1", Type: "bogus"})
	assert.ErrorIs(t, err, notification.ErrInvalidNotificationType)

	req := rejected("u1")
	req.RecipientID = ""
	assert.ErrorIs(t, svc.QueueNotification(context.Background(), req), notification.ErrRecipientRequired)
}

func TestQueue_AfterStopDeliversInline(t *testing.T) {
	repo := newFakeRepo()
	svc := NewNotificationService(repo, sse.NewHub(1), nil, Config{WorkerCount: 1})
	svc.Stop()

	require.NoError(t, svc.QueueNotification(context.Background(), rejected("u1")))
	assert.Equal(t, 1, repo.count())
}

func TestGetPreferences_Defaults(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo, sse.NewHub(1), nil, Config{})

	require.NoError(t, svc.UpdatePreference(context.Background(), "u1", notification.UpdatePreferenceRequest{
		NotificationType: notification.TypeApprovalReminder, EmailEnabled: false, PushEnabled: true,
	}))

	prefs, err := svc.GetPreferences(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, prefs, len(notification.AllNotificationTypes()))
	for _, p := range prefs {
		if p.NotificationType == notification.TypeApprovalReminder {
			assert.False(t, p.EmailEnabled)
		} else {
			assert.True(t, p.EmailEnabled)
		}
		assert.True(t, p.PushEnabled)
	}

	err = svc.UpdatePreference(context.Background(), "u1", notification.UpdatePreferenceRequest{NotificationType: "nope"})
	assert.Error(t, err)
}
