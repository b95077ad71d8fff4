package model

import "time"

// Reservation mirrors a reservation of the upstream API.
type Reservation struct {
	ID              string    `gorm:"primaryKey;size:64"` // Upstream ID
	PlaceID         string    `gorm:"index;size:64;not null"`
	UserID          string    `gorm:"index;size:64;not null"`
	ReservationTime time.Time `gorm:"not null"`
	NumberOfPeople  int       `gorm:"not null"`
	Note            string    `gorm:"size:1024"`
	Status          string    `gorm:"size:16;not null;index"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ReminderRecord maps "eventId_<reservation id>" to the handle of its reminder.
type ReminderRecord struct {
	Key       string    `gorm:"primaryKey;size:128"`
	Value     string    `gorm:"size:128;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}
