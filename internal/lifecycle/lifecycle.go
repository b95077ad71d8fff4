// Package lifecycle validates reservation status transitions and derives the display
// status of a reservation. It performs no side effects; callers persist the returned
// reservation and hand the change to the reminder scheduler.
package lifecycle

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Status is the stored status of a reservation.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusCancelled Status = "CANCELLED"
)

// MaxNoteLength bounds the free-text note in runes.
const MaxNoteLength = 250

// ParseStatus accepts a status name in any case.
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StatusPending, StatusApproved, StatusRejected, StatusCancelled:
		return st, true
	}
	return "", false
}

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusCancelled
}

// Reservation is a table reservation as handed over by the reservation API.
type Reservation struct {
	ID              string    `json:"id"`
	PlaceID         string    `json:"placeId"`
	UserID          string    `json:"userId"`
	ReservationTime time.Time `json:"reservationTime"`
	NumberOfPeople  int       `json:"numberOfPeople"`
	Note            string    `json:"note,omitempty"`
	Status          Status    `json:"status"`
}

var (
	ErrInvalidTransition = errors.New("invalid reservation status transition")
	ErrInvalidPartySize  = errors.New("number of people out of range")
	ErrNoteTooLong       = errors.New("note too long")
)

// InvalidTransitionError carries the rejected edge. It matches ErrInvalidTransition.
type InvalidTransitionError struct {
	ReservationID string
	From, To      Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("reservation %s: cannot move from %s to %s", e.ReservationID, e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }

var transitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved: {StatusCancelled},
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition returns r moved to the requested status, or an *InvalidTransitionError.
func Transition(r Reservation, to Status) (Reservation, error) {
	if !CanTransition(r.Status, to) {
		return r, &InvalidTransitionError{ReservationID: r.ID, From: r.Status, To: to}
	}
	r.Status = to
	return r, nil
}

// Validate checks the user supplied fields of a new reservation. maxPeople <= 0 disables
// the upper bound.
func (r Reservation) Validate(maxPeople int) error {
	if r.NumberOfPeople < 1 || (maxPeople > 0 && r.NumberOfPeople > maxPeople) {
		return fmt.Errorf("%w: %d", ErrInvalidPartySize, r.NumberOfPeople)
	}
	if utf8.RuneCountInString(r.Note) > MaxNoteLength {
		return ErrNoteTooLong
	}
	return nil
}
