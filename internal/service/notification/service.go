package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/notification"
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/email"
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/sse"
	"github.com/google/uuid"
)

// Config holds notification service configuration
type Config struct {
	BatchSize     int           // default: 100
	FlushInterval time.Duration // default: 5 seconds
	WorkerCount   int           // default: 2
	QueueSize     int           // default: 1000
}

// queued is a request plus the channels the recipient wants it on.
type queued struct {
	req   notification.CreateNotificationRequest
	push  bool
	email bool
}

type service struct {
	repo   notification.Repository
	hub    *sse.Hub
	mailer email.EmailService
	config Config
	now    func() time.Time

	queue    chan queued
	wg       sync.WaitGroup
	stopCh   chan struct{}
	stopOnce sync.Once
	stopped  atomic.Bool
}

// NewNotificationService creates a new notification service with background workers.
// mailer may be nil, in which case no email copies are sent.
func NewNotificationService(repo notification.Repository, hub *sse.Hub, mailer email.EmailService, cfg Config) notification.Service {
	s := newService(repo, hub, mailer, cfg)
	s.start()
	return s
}

func newService(repo notification.Repository, hub *sse.Hub, mailer email.EmailService, cfg Config) *service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}

	return &service{
		repo:   repo,
		hub:    hub,
		mailer: mailer,
		config: cfg,
		now:    time.Now,
		queue:  make(chan queued, cfg.QueueSize),
		stopCh: make(chan struct{}),
	}
}

func (s *service) start() {
	for i := 0; i < s.config.WorkerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	slog.Info("Notification service started",
		"workers", s.config.WorkerCount,
		"batch_size", s.config.BatchSize,
		"flush_interval", s.config.FlushInterval,
	)
}

// worker drains the queue, inserting in batches of BatchSize or every FlushInterval.
func (s *service) worker(id int) {
	defer s.wg.Done()

	batch := make([]queued, 0, s.config.BatchSize)
	ticker := time.NewTicker(s.config.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		s.deliver(ctx, id, batch)
		batch = batch[:0]
	}

	for {
		select {
		case item := <-s.queue:
			batch = append(batch, item)
			if len(batch) >= s.config.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-s.stopCh:
			// take whatever is still queued before exiting
			for {
				select {
				case item := <-s.queue:
					batch = append(batch, item)
				default:
					flush()
					return
				}
			}
		}
	}
}

// deliver stores the push notifications of items, publishes them to SSE and sends
// the email copies.
func (s *service) deliver(ctx context.Context, workerID int, items []queued) {
	var inApp []*notification.Notification
	for _, item := range items {
		if item.push {
			inApp = append(inApp, s.newEntity(item.req))
		}
	}

	if len(inApp) > 0 {
		if err := s.repo.CreateBatch(ctx, inApp); err != nil {
			slog.Error("notification batch insert failed", "worker", workerID, "count", len(inApp), "error", err)
		} else {
			slog.Debug("notifications inserted", "worker", workerID, "count", len(inApp))
			for _, n := range inApp {
				s.publish(n)
			}
		}
	}

	for _, item := range items {
		if item.email {
			s.sendEmail(ctx, item.req)
		}
	}
}

func (s *service) newEntity(req notification.CreateNotificationRequest) *notification.Notification {
	return &notification.Notification{
		ID:          uuid.NewString(),
		RecipientID: req.RecipientID,
		SenderID:    req.SenderID,
		Type:        req.Type,
		Title:       req.Title,
		Message:     req.Message,
		Data:        req.Data,
		IsRead:      false,
		CreatedAt:   s.now(),
	}
}

func (s *service) publish(n *notification.Notification) {
	if s.hub == nil {
		return
	}
	s.hub.Publish(n.RecipientID, sse.Event{
		Event: "notification",
		Data:  toResponse(n),
	})
}

func (s *service) sendEmail(ctx context.Context, req notification.CreateNotificationRequest) {
	if s.mailer == nil || req.RecipientEmail == "" {
		return
	}
	msg := email.Message{
		To:            req.RecipientEmail,
		RecipientName: req.RecipientName,
		Title:         req.Title,
		Body:          req.Message,
	}
	if reason, ok := req.Data["reason"].(string); ok {
		msg.Reason = reason
	}
	if link, ok := req.Data["link"].(string); ok {
		msg.Link = link
	}
	if err := s.mailer.SendNotification(ctx, msg); err != nil {
		slog.Error("notification email failed", "recipient_id", req.RecipientID, "type", req.Type, "error", err)
	}
}

// channels resolves the recipient's preference for t. Missing preferences mean both on.
func (s *service) channels(ctx context.Context, userID string, t notification.NotificationType) (push, mail bool, err error) {
	pref, err := s.repo.GetPreference(ctx, userID, t)
	if err != nil {
		if errors.Is(err, notification.ErrPreferenceNotFound) {
			return true, true, nil
		}
		return false, false, err
	}
	return pref.PushEnabled, pref.EmailEnabled, nil
}

// QueueNotification queues a notification for async processing
func (s *service) QueueNotification(ctx context.Context, req notification.CreateNotificationRequest) error {
	if !req.Type.IsValid() {
		return notification.ErrInvalidNotificationType
	}
	if req.RecipientID == "" {
		return notification.ErrRecipientRequired
	}

	push, mail, err := s.channels(ctx, req.RecipientID, req.Type)
	if err != nil {
		return fmt.Errorf("failed to read notification preference: %w", err)
	}
	if !push && !mail {
		return nil
	}
	item := queued{req: req, push: push, email: mail && req.RecipientEmail != ""}

	if s.stopped.Load() {
		s.deliver(ctx, -1, []queued{item})
		return nil
	}

	select {
	case s.queue <- item:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		// queue full, deliver inline
		slog.Warn("notification queue full, delivering inline", "recipient_id", req.RecipientID)
		return s.directInsert(ctx, item)
	}
}

// QueueBulkNotification queues multiple notifications for async processing
func (s *service) QueueBulkNotification(ctx context.Context, reqs []notification.CreateNotificationRequest) error {
	var errs []error
	for _, req := range reqs {
		if err := s.QueueNotification(ctx, req); err != nil {
			slog.Error("failed to queue notification", "recipient_id", req.RecipientID, "type", req.Type, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// directInsert writes one notification synchronously.
func (s *service) directInsert(ctx context.Context, item queued) error {
	if item.push {
		n := s.newEntity(item.req)
		if err := s.repo.Create(ctx, n); err != nil {
			return err
		}
		s.publish(n)
	}
	if item.email {
		s.sendEmail(ctx, item.req)
	}
	return nil
}

func toResponse(n *notification.Notification) notification.NotificationResponse {
	return notification.NotificationResponse{
		ID:        n.ID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Data:      n.Data,
		IsRead:    n.IsRead,
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
	}
}

// GetNotifications retrieves paginated notifications for a user
func (s *service) GetNotifications(ctx context.Context, userID string, page, pageSize int, unreadOnly bool) (*notification.NotificationListResponse, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	notifications, total, err := s.repo.GetByUserID(ctx, userID, page, pageSize, unreadOnly)
	if err != nil {
		return nil, err
	}

	unreadCount, err := s.repo.GetUnreadCount(ctx, userID)
	if err != nil {
		return nil, err
	}

	responses := make([]notification.NotificationResponse, len(notifications))
	for i, n := range notifications {
		responses[i] = toResponse(n)
	}

	return &notification.NotificationListResponse{
		Notifications: responses,
		Total:         total,
		UnreadCount:   unreadCount,
		Page:          page,
		PageSize:      pageSize,
	}, nil
}

func (s *service) GetUnreadCount(ctx context.Context, userID string) (int, error) {
	return s.repo.GetUnreadCount(ctx, userID)
}

func (s *service) MarkAsRead(ctx context.Context, userID string, req notification.MarkAsReadRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	return s.repo.MarkAsRead(ctx, req.NotificationIDs, userID)
}

func (s *service) MarkAllAsRead(ctx context.Context, userID string) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}

// Delete removes one of the user's notifications
func (s *service) Delete(ctx context.Context, userID string, notificationID string) error {
	return s.repo.Delete(ctx, notificationID, userID)
}

// GetPreferences returns a preference for every notification type, defaults included
func (s *service) GetPreferences(ctx context.Context, userID string) ([]notification.PreferenceResponse, error) {
	prefs, err := s.repo.GetPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}

	prefMap := make(map[notification.NotificationType]*notification.NotificationPreference, len(prefs))
	for _, p := range prefs {
		prefMap[p.NotificationType] = p
	}

	allTypes := notification.AllNotificationTypes()
	responses := make([]notification.PreferenceResponse, len(allTypes))
	for i, t := range allTypes {
		responses[i] = notification.PreferenceResponse{NotificationType: t, EmailEnabled: true, PushEnabled: true}
		if p, ok := prefMap[t]; ok {
			responses[i].EmailEnabled = p.EmailEnabled
			responses[i].PushEnabled = p.PushEnabled
		}
	}

	return responses, nil
}

func (s *service) UpdatePreference(ctx context.Context, userID string, req notification.UpdatePreferenceRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	return s.repo.UpsertPreference(ctx, &notification.NotificationPreference{
		UserID:           userID,
		NotificationType: req.NotificationType,
		EmailEnabled:     req.EmailEnabled,
		PushEnabled:      req.PushEnabled,
		UpdatedAt:        s.now(),
	})
}

// Subscribe opens an SSE stream for a user. The returned channel closes when ctx
// ends or the hub shuts down.
func (s *service) Subscribe(ctx context.Context, userID string) (<-chan notification.SSEEvent, func()) {
	ch, cleanup := s.hub.Subscribe(userID)

	out := make(chan notification.SSEEvent, 10)
	go func() {
		defer close(out)
		for {
			select {
			case event, ok := <-ch:
				if !ok {
					return
				}
				resp, ok := event.Data.(notification.NotificationResponse)
				if !ok {
					continue
				}
				select {
				case out <- notification.SSEEvent{Event: event.Event, Data: resp}:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, cleanup
}

// Stop flushes queued notifications and waits for the workers to exit.
func (s *service) Stop() {
	s.stopOnce.Do(func() {
		s.stopped.Store(true)
		close(s.stopCh)
		s.wg.Wait()
		slog.Info("Notification service stopped")
	})
}
