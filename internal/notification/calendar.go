// Package notification stores reservation reminders as calendar events and delivers their
// alarms as web push notifications.
package notification

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"venue-booking-backend/internal/model"
	"venue-booking-backend/internal/reminder"
)

// Calendar is the reminder destination backed by the reminder_events and reminder_alarms
// tables. A user can receive reminders once they have at least one push subscription.
type Calendar struct {
	db    *gorm.DB
	newID func() string
}

var _ reminder.Store = (*Calendar)(nil)

func NewCalendar(db *gorm.DB) *Calendar {
	return &Calendar{db: db, newID: uuid.NewString}
}

func (c *Calendar) RequestPermission(ctx context.Context, userID string) (bool, error) {
	var count int64
	if err := c.db.WithContext(ctx).
		Model(&model.PushSubscription{}).
		Where("user_id = ?", userID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to count subscriptions of user %s: %w", userID, err)
	}
	return count > 0, nil
}

// CreateReminder stores the event with one alarm per window instant. An invalid window
// creates nothing.
func (c *Calendar) CreateReminder(ctx context.Context, w reminder.Window, meta reminder.Metadata) (string, error) {
	if !w.Valid {
		return "", nil
	}

	event := model.ReminderEvent{
		ID:            c.newID(),
		ReservationID: meta.ReservationID,
		UserID:        meta.UserID,
		Title:         meta.Title,
		Notes:         meta.Notes,
		StartsAt:      w.Start.UTC(),
		EndsAt:        w.End.UTC(),
	}
	for _, at := range w.Alarms {
		event.Alarms = append(event.Alarms, model.ReminderAlarm{FireAt: at.UTC()})
	}

	if err := c.db.WithContext(ctx).Create(&event).Error; err != nil {
		return "", fmt.Errorf("failed to create reminder for reservation %s: %w", meta.ReservationID, err)
	}
	return event.ID, nil
}

func (c *Calendar) DeleteReminder(ctx context.Context, handle string) (bool, error) {
	var existed bool
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("event_id = ?", handle).Delete(&model.ReminderAlarm{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", handle).Delete(&model.ReminderEvent{})
		if res.Error != nil {
			return res.Error
		}
		existed = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete reminder %s: %w", handle, err)
	}
	return existed, nil
}
