// Package availability derives open/closed status, selectable dates and bookable time
// slots from a venue's weekly schedule. Every function is pure: the result depends only on
// the arguments, "now" included.
package availability

import (
	"time"

	"venue-booking-backend/internal/schedule"
)

// Label is the coarse status shown on a venue badge.
type Label string

const (
	LabelOpen    Label = "OPEN"
	LabelClosed  Label = "CLOSED"
	LabelUnknown Label = "UNKNOWN"
)

// Text returns the localized badge text.
func (l Label) Text() string {
	switch l {
	case LabelOpen:
		return "Açık"
	case LabelClosed:
		return "Kapalı"
	default:
		return "Bilgi Yok"
	}
}

// Status is the result of GetStatus.
type Status struct {
	IsOpen bool   `json:"isOpen"`
	Label  Label  `json:"label"`
	Text   string `json:"text"`
}

func newStatus(l Label) Status {
	return Status{IsOpen: l == LabelOpen, Label: l, Text: l.Text()}
}

// GetStatus reports whether the venue is open on now's weekday. Opening hours are not
// considered for the badge; they only gate slot selection. A nil schedule is UNKNOWN.
func GetStatus(s *schedule.WeeklySchedule, now time.Time) Status {
	if s == nil {
		return newStatus(LabelUnknown)
	}
	if s.Days.Has(now.Weekday()) {
		return newStatus(LabelOpen)
	}
	return newStatus(LabelClosed)
}

// IsDaySelectable reports whether date falls on one of the schedule's open weekdays.
func IsDaySelectable(s *schedule.WeeklySchedule, date time.Time) bool {
	if s == nil {
		return false
	}
	return s.Days.Has(date.Weekday())
}

// DayOption is one entry of a date picker.
type DayOption struct {
	Date       time.Time `json:"date"`
	Weekday    int       `json:"weekday"`
	Selectable bool      `json:"selectable"`
}

// SelectableDays lists n consecutive dates starting at from's calendar day. Disabled dates
// are still listed so the picker can render them inert.
func SelectableDays(s *schedule.WeeklySchedule, from time.Time, n int) []DayOption {
	start := StartOfDay(from)
	out := make([]DayOption, 0, n)
	for i := 0; i < n; i++ {
		d := start.AddDate(0, 0, i)
		out = append(out, DayOption{
			Date:       d,
			Weekday:    int(d.Weekday()),
			Selectable: IsDaySelectable(s, d),
		})
	}
	return out
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameDate reports whether a and b share a calendar date, a being viewed in b's location.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.In(b.Location()).Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
