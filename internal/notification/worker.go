package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"venue-booking-backend/internal/model"
	"venue-booking-backend/pkg/logger"
	"venue-booking-backend/pkg/metrics"
)

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

// AlarmJob is one due reminder alarm.
type AlarmJob struct {
	AlarmID         int64
	EventID         string
	ReservationID   string
	UserID          string
	Title           string
	Notes           string
	ReservationTime time.Time
}

// Payload is the JSON body delivered to the browser.
type Payload struct {
	Title           string    `json:"title"`
	Body            string    `json:"body"`
	ReservationID   string    `json:"reservationId"`
	ReservationTime time.Time `json:"reservationTime"`
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size    int
	jobs    chan AlarmJob
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
	loc     *time.Location
	log     logger.Logger
	metrics *metrics.Metrics
}

// NewWorkerPool creates a new worker pool. Reservation times in message bodies are
// rendered in loc.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options, loc *time.Location, log logger.Logger, m *metrics.Metrics) *WorkerPool {
	if loc == nil {
		loc = time.Local
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan AlarmJob, size), // Buffered channel
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{}, // Use the real sender by default
		loc:     loc,
		log:     log,
		metrics: m,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.log.Debug("push worker started", "worker", id)
	for {
		select {
		case job := <-wp.jobs:
			wp.sendAlarm(ctx, job)
		case <-ctx.Done():
			wp.log.Debug("push worker shutting down", "worker", id)
			return
		}
	}
}

// Dispatch sends a job to the worker pool, blocking until a worker has room or ctx ends.
func (wp *WorkerPool) Dispatch(ctx context.Context, job AlarmJob) error {
	select {
	case wp.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan AlarmJob {
	return wp.jobs
}

// sendAlarm pushes one alarm to every subscription of the reservation's user.
func (wp *WorkerPool) sendAlarm(ctx context.Context, job AlarmJob) {
	log := wp.log.With("alarmId", job.AlarmID, "reservationId", job.ReservationID)

	var subscriptions []model.PushSubscription
	if err := wp.db.WithContext(ctx).Where("user_id = ?", job.UserID).Find(&subscriptions).Error; err != nil {
		log.Error("failed to fetch subscriptions", "error", err)
		return
	}
	if len(subscriptions) == 0 {
		log.Info("no push subscription left for reminder", "userId", job.UserID)
		return
	}

	payload, err := json.Marshal(wp.buildPayload(job))
	if err != nil {
		log.Error("failed to encode payload", "error", err)
		return
	}

	delivered := 0
	for _, sub := range subscriptions {
		if wp.sendNotification(ctx, log, sub, payload) {
			delivered++
		}
	}
	wp.metrics.PushesSent.Add(float64(delivered))
	log.Info("reminder pushed", "delivered", delivered, "subscriptions", len(subscriptions))
}

func (wp *WorkerPool) buildPayload(job AlarmJob) Payload {
	body := fmt.Sprintf("Rezervasyonunuz saat %s", job.ReservationTime.In(wp.loc).Format("15:04"))
	if job.Notes != "" {
		body += " · " + job.Notes
	}
	return Payload{
		Title:           job.Title,
		Body:            body,
		ReservationID:   job.ReservationID,
		ReservationTime: job.ReservationTime,
	}
}

// sendNotification sends a single web push notification and reports whether the push
// service accepted it.
func (wp *WorkerPool) sendNotification(ctx context.Context, log logger.Logger, sub model.PushSubscription, payload []byte) bool {
	// Manually construct the webpush.Subscription object
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Warn("failed to send notification", "endpoint", sub.Endpoint, "error", err)
		return false
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		log.Info("subscription expired, deleting", "endpoint", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Error("failed to delete expired subscription", "endpoint", sub.Endpoint, "error", err)
		}
		return false
	}
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
