package reminder

import (
	"context"
	"time"
)

// KeyPrefix namespaces reminder handles in the key-value store.
const KeyPrefix = "eventId_"

// Key returns the key-value key holding the reminder handle of a reservation.
func Key(reservationID string) string { return KeyPrefix + reservationID }

// Metadata describes the reservation a reminder is created for.
type Metadata struct {
	ReservationID   string
	UserID          string
	PlaceID         string
	ReservationTime time.Time
	NumberOfPeople  int
	Title           string
	Notes           string
}

// Store is the external reminder destination, e.g. a calendar.
type Store interface {
	// RequestPermission reports whether reminders may be written for the user and a
	// writable destination exists.
	RequestPermission(ctx context.Context, userID string) (bool, error)
	// CreateReminder returns an opaque handle, or "" when nothing was created.
	CreateReminder(ctx context.Context, w Window, meta Metadata) (string, error)
	// DeleteReminder reports whether a reminder with the handle existed.
	DeleteReminder(ctx context.Context, handle string) (bool, error)
}

// KeyValue is the durable map from Key(reservationID) to reminder handle.
type KeyValue interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}
