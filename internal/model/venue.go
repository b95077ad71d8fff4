package model

import "time"

// Venue is a place that takes table reservations, as mirrored from the upstream API.
type Venue struct {
	ID           string `gorm:"primaryKey;size:64"` // Upstream ID
	Name         string `gorm:"size:256;not null"`
	WorkingDays  string `gorm:"size:256"`
	WorkingHours string `gorm:"size:64"`
	MaxPeople    int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
