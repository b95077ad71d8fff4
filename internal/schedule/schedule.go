// Package schedule turns the free-text working days and working hours entered for a
// venue into a normalized weekly schedule.
package schedule

import (
	"fmt"
	"math/bits"
	"strings"
	"time"
)

// DaySet is a set of weekdays stored as a bitmask, bit 0 being Sunday.
type DaySet uint8

// EveryDay contains all seven weekdays.
const EveryDay DaySet = 1<<7 - 1

// NewDaySet builds a set from the given weekdays.
func NewDaySet(days ...time.Weekday) DaySet {
	var s DaySet
	for _, d := range days {
		s = s.Add(d)
	}
	return s
}

// Add returns a copy of the set with d included. Out of range values are ignored.
func (s DaySet) Add(d time.Weekday) DaySet {
	if d < time.Sunday || d > time.Saturday {
		return s
	}
	return s | 1<<uint(d)
}

// Has reports whether d is in the set.
func (s DaySet) Has(d time.Weekday) bool {
	if d < time.Sunday || d > time.Saturday {
		return false
	}
	return s&(1<<uint(d)) != 0
}

// Len returns the number of weekdays in the set.
func (s DaySet) Len() int { return bits.OnesCount8(uint8(s)) }

// IsEmpty reports whether the set has no weekdays.
func (s DaySet) IsEmpty() bool { return s == 0 }

// Days lists the members in index order, Sunday first.
func (s DaySet) Days() []time.Weekday {
	out := make([]time.Weekday, 0, s.Len())
	for d := time.Sunday; d <= time.Saturday; d++ {
		if s.Has(d) {
			out = append(out, d)
		}
	}
	return out
}

func (s DaySet) String() string {
	names := make([]string, 0, s.Len())
	for _, d := range s.Days() {
		names = append(names, d.String()[:3])
	}
	return "{" + strings.Join(names, ",") + "}"
}

// TimeOfDay is a wall clock time without a date.
type TimeOfDay struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// Minutes returns the minutes elapsed since midnight.
func (t TimeOfDay) Minutes() int { return t.Hour*60 + t.Minute }

func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute) }

// TimeOfDayOf extracts the wall clock time of ts in its own location.
func TimeOfDayOf(ts time.Time) TimeOfDay {
	return TimeOfDay{Hour: ts.Hour(), Minute: ts.Minute()}
}

// FromMinutes is the inverse of Minutes.
func FromMinutes(m int) TimeOfDay {
	return TimeOfDay{Hour: m / 60, Minute: m % 60}
}

// Hours is a single daily opening window.
type Hours struct {
	Open  TimeOfDay `json:"open"`
	Close TimeOfDay `json:"close"`
}

// WrapsMidnight reports whether the window closes on the following day, e.g. 20:00-02:00.
func (h Hours) WrapsMidnight() bool {
	return h.Close.Minutes() < h.Open.Minutes()
}

// Contains reports whether minutes-since-midnight m falls within the window, bounds included.
func (h Hours) Contains(m int) bool {
	open, closing := h.Open.Minutes(), h.Close.Minutes()
	if h.WrapsMidnight() {
		return m >= open || m <= closing
	}
	return m >= open && m <= closing
}

func (h Hours) String() string { return h.Open.String() + "-" + h.Close.String() }

// WeeklySchedule is the normalized opening schedule of a venue. It is rebuilt whenever the
// venue record is refreshed and never mutated.
type WeeklySchedule struct {
	Days  DaySet `json:"days"`
	Hours Hours  `json:"hours"`
	// HoursDefaulted is set when the hours text could not be parsed and DefaultHours was used.
	HoursDefaulted bool `json:"hoursDefaulted"`
}

// Build parses both source fields of a venue. It returns nil when the working days field is
// missing, which callers report as an unknown status rather than closed.
func Build(daysText, hoursText string) *WeeklySchedule {
	if strings.TrimSpace(daysText) == "" {
		return nil
	}
	hours, ok := ParseOpeningHours(hoursText)
	return &WeeklySchedule{
		Days:           ParseWorkingDays(daysText),
		Hours:          hours,
		HoursDefaulted: !ok,
	}
}
