package availability

import (
	"time"

	"venue-booking-backend/internal/schedule"
)

// DefaultSlotStep is the spacing of the canonical slot menu.
const DefaultSlotStep = 30 * time.Minute

// Reason explains why a slot is disabled.
type Reason string

const (
	ReasonNone         Reason = "NONE"
	ReasonOutsideHours Reason = "OUTSIDE_HOURS"
	ReasonPast         Reason = "PAST"
)

// TimeSlot is a candidate reservation time on a candidate date.
type TimeSlot struct {
	Date     time.Time          `json:"date"`
	Time     schedule.TimeOfDay `json:"time"`
	Label    string             `json:"label"`
	Disabled bool               `json:"disabled"`
	Reason   Reason             `json:"reason"`
}

// At returns the absolute instant of the slot in the date's location.
func (s TimeSlot) At() time.Time {
	y, m, d := s.Date.Date()
	return time.Date(y, m, d, s.Time.Hour, s.Time.Minute, 0, 0, s.Date.Location())
}

// SlotMenu returns the canonical times of day from 00:00 spaced by step. A non-positive
// step falls back to DefaultSlotStep.
func SlotMenu(step time.Duration) []schedule.TimeOfDay {
	mins := int(step / time.Minute)
	if mins <= 0 {
		mins = int(DefaultSlotStep / time.Minute)
	}
	out := make([]schedule.TimeOfDay, 0, 24*60/mins)
	for m := 0; m < 24*60; m += mins {
		out = append(out, schedule.FromMinutes(m))
	}
	return out
}

// ClassifySlot decides whether tod on date can be booked. A slot outside the opening window
// is OUTSIDE_HOURS; otherwise a slot on now's date at or before now's minute is PAST. When
// both hold OUTSIDE_HOURS is reported. A nil schedule disables every slot as OUTSIDE_HOURS.
func ClassifySlot(s *schedule.WeeklySchedule, date time.Time, tod schedule.TimeOfDay, now time.Time) TimeSlot {
	slot := TimeSlot{
		Date:   StartOfDay(date),
		Time:   tod,
		Label:  tod.String(),
		Reason: ReasonNone,
	}

	m := tod.Minutes()
	switch {
	case s == nil || !s.Hours.Contains(m):
		slot.Reason = ReasonOutsideHours
	case SameDate(date, now) && m <= schedule.TimeOfDayOf(now).Minutes():
		slot.Reason = ReasonPast
	}
	slot.Disabled = slot.Reason != ReasonNone
	return slot
}

// Slots classifies every entry of the slot menu for date.
func Slots(s *schedule.WeeklySchedule, date time.Time, now time.Time, step time.Duration) []TimeSlot {
	menu := SlotMenu(step)
	out := make([]TimeSlot, 0, len(menu))
	for _, tod := range menu {
		out = append(out, ClassifySlot(s, date, tod, now))
	}
	return out
}
