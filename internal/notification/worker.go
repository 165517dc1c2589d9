package notification

import (
	"context"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"libreserve-backend/internal/metrics"
	"libreserve-backend/internal/model"
)

// Kind is the reason a notice is sent.
type Kind string

const (
	KindBlacklisted Kind = "blacklisted"
	KindKickedOut   Kind = "kicked_out"
	KindOvertime    Kind = "overtime"
)

var messages = map[Kind]string{
	KindBlacklisted: "Your library account has been blacklisted. Please contact the library desk.",
	KindKickedOut:   "You have been signed out of the library by a librarian.",
	KindOvertime:    "Your library session time is up. Please check out at the desk.",
}

// Contact identifies who a notice is for.
type Contact struct {
	OwnerID string
	Email   string
}

// Notice is one queued delivery.
type Notice struct {
	Kind    Kind
	Contact Contact
}

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size    int
	jobs    chan Notice
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
	logger  *zap.Logger
}

// NewWorkerPool creates a new worker pool. The dispatch queue holds queueSize
// notices; anything beyond that is dropped.
func NewWorkerPool(size, queueSize int, db *gorm.DB, webpushOptions *webpush.Options, logger *zap.Logger) *WorkerPool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Notice, queueSize),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		logger:  logger,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.logger.Debug("notification worker started", zap.Int("worker_id", id))
	for {
		select {
		case n := <-wp.jobs:
			wp.deliver(ctx, n)
		case <-ctx.Done():
			wp.logger.Debug("notification worker shutting down", zap.Int("worker_id", id))
			return
		}
	}
}

// Notify queues a notice without blocking. Delivery is best-effort: a full
// queue drops the notice and the caller never learns about it.
func (wp *WorkerPool) Notify(kind Kind, contact Contact) {
	select {
	case wp.jobs <- Notice{Kind: kind, Contact: contact}:
	default:
		metrics.NotificationsDropped.Inc()
		wp.logger.Warn("notification queue full, dropping notice",
			zap.String("kind", string(kind)), zap.String("owner_id", contact.OwnerID))
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan Notice {
	return wp.jobs
}

// deliver pushes the notice to every subscription the owner registered.
func (wp *WorkerPool) deliver(ctx context.Context, n Notice) {
	var subscriptions []model.PushSubscription
	if err := wp.db.WithContext(ctx).Where("owner_id = ?", n.Contact.OwnerID).Find(&subscriptions).Error; err != nil {
		wp.logger.Warn("failed to fetch push subscriptions",
			zap.String("owner_id", n.Contact.OwnerID), zap.Error(err))
		return
	}
	if len(subscriptions) == 0 {
		wp.logger.Debug("no push subscriptions for owner",
			zap.String("owner_id", n.Contact.OwnerID), zap.String("kind", string(n.Kind)))
		return
	}

	payload := []byte(messages[n.Kind])
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.logger.Warn("failed to send push notification", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		wp.logger.Info("push subscription expired, deleting", zap.String("endpoint", sub.Endpoint))
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			wp.logger.Warn("failed to delete expired subscription", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		}
	}
}
