package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"venue-booking-backend/internal/clock"
	"venue-booking-backend/internal/model"
	"venue-booking-backend/pkg/logger"
	"venue-booking-backend/pkg/metrics"
)

const scanBatch = 200

// Dispatcher periodically claims due alarms and hands them to the worker pool. An alarm is
// claimed by setting sent_at before it is dispatched, so each alarm is pushed at most once.
// Alarms found more than grace after their fire time are claimed but not pushed.
type Dispatcher struct {
	db      *gorm.DB
	pool    *WorkerPool
	clock   clock.Clock
	grace   time.Duration
	log     logger.Logger
	metrics *metrics.Metrics
	cron    *cron.Cron
}

type dueAlarm struct {
	ID            int64
	EventID       string
	FireAt        time.Time
	ReservationID string
	UserID        string
	Title         string
	Notes         string
	EndsAt        time.Time
}

func NewDispatcher(db *gorm.DB, pool *WorkerPool, clk clock.Clock, grace time.Duration, log logger.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		db:      db,
		pool:    pool,
		clock:   clk,
		grace:   grace,
		log:     log,
		metrics: m,
	}
}

// Start runs Scan on the cron spec, e.g. "@every 30s".
func (d *Dispatcher) Start(ctx context.Context, spec string) error {
	d.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := d.cron.AddFunc(spec, func() {
		if _, err := d.Scan(ctx); err != nil {
			d.log.Error("alarm scan failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid dispatch spec %q: %w", spec, err)
	}
	d.cron.Start()
	d.log.Info("alarm dispatcher started", "spec", spec)
	return nil
}

// Stop halts the schedule and waits for a running scan.
func (d *Dispatcher) Stop() {
	if d.cron != nil {
		<-d.cron.Stop().Done()
	}
}

// Scan claims every due alarm and returns how many were dispatched.
func (d *Dispatcher) Scan(ctx context.Context) (int, error) {
	now := d.clock.Now().UTC()

	var rows []dueAlarm
	err := d.db.WithContext(ctx).
		Table("reminder_alarms AS a").
		Select("a.id, a.event_id, a.fire_at, e.reservation_id, e.user_id, e.title, e.notes, e.ends_at").
		Joins("JOIN reminder_events e ON e.id = a.event_id").
		Where("a.sent_at IS NULL AND a.fire_at <= ?", now).
		Order("a.fire_at").
		Limit(scanBatch).
		Scan(&rows).Error
	if err != nil {
		return 0, fmt.Errorf("failed to query due alarms: %w", err)
	}

	dispatched := 0
	for _, row := range rows {
		claimed, err := d.claim(ctx, row.ID, now)
		if err != nil {
			d.log.Error("failed to claim alarm", "alarmId", row.ID, "error", err)
			continue
		}
		if !claimed {
			continue
		}
		if now.Sub(row.FireAt) > d.grace {
			d.log.Info("skipping stale alarm", "alarmId", row.ID, "fireAt", row.FireAt)
			d.metrics.AlarmsExpired.Inc()
			continue
		}

		job := AlarmJob{
			AlarmID:         row.ID,
			EventID:         row.EventID,
			ReservationID:   row.ReservationID,
			UserID:          row.UserID,
			Title:           row.Title,
			Notes:           row.Notes,
			ReservationTime: row.EndsAt,
		}
		if err := d.pool.Dispatch(ctx, job); err != nil {
			return dispatched, err
		}
		dispatched++
		d.metrics.AlarmsDispatched.Inc()
	}
	return dispatched, nil
}

func (d *Dispatcher) claim(ctx context.Context, alarmID int64, now time.Time) (bool, error) {
	res := d.db.WithContext(ctx).
		Model(&model.ReminderAlarm{}).
		Where("id = ? AND sent_at IS NULL", alarmID).
		Update("sent_at", now)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
