package model

import "time"

// ReminderEvent is a calendar entry created ahead of an approved reservation.
type ReminderEvent struct {
	ID            string    `gorm:"primaryKey;size:36"`
	ReservationID string    `gorm:"index;size:64;not null"`
	UserID        string    `gorm:"index;size:64;not null"`
	Title         string    `gorm:"size:256;not null"`
	Notes         string    `gorm:"size:1024"`
	StartsAt      time.Time `gorm:"not null"`
	EndsAt        time.Time `gorm:"not null"`
	CreatedAt     time.Time `gorm:"not null"`

	// Associations
	Alarms []ReminderAlarm `gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE"`
}

// ReminderAlarm is one notification instant of a ReminderEvent.
type ReminderAlarm struct {
	ID      int64      `gorm:"primaryKey;autoIncrement"`
	EventID string     `gorm:"index;size:36;not null"`
	FireAt  time.Time  `gorm:"index;not null"`
	SentAt  *time.Time `gorm:"index"`
}
