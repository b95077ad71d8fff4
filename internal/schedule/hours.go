package schedule

import (
	"strconv"
	"strings"
)

// DefaultHours is used when a venue's opening hours cannot be parsed.
var DefaultHours = Hours{
	Open:  TimeOfDay{Hour: 9, Minute: 0},
	Close: TimeOfDay{Hour: 22, Minute: 0},
}

// ParseOpeningHours parses "HH:MM-HH:MM". Missing or malformed input returns DefaultHours
// and ok=false. A closing time earlier than the opening time is kept as is and means the
// window runs past midnight.
func ParseOpeningHours(text string) (Hours, bool) {
	s := strings.ReplaceAll(dashes.Replace(text), " ", "")
	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return DefaultHours, false
	}
	open, ok := parseClock(parts[0])
	if !ok {
		return DefaultHours, false
	}
	closing, ok := parseClock(parts[1])
	if !ok {
		return DefaultHours, false
	}
	return Hours{Open: open, Close: closing}, true
}

// ParseTimeOfDay parses a single "HH:MM" time within one day. 24:00 is only valid as a
// closing bound and is rejected here.
func ParseTimeOfDay(text string) (TimeOfDay, bool) {
	t, ok := parseClock(strings.TrimSpace(text))
	if !ok || t.Hour == 24 {
		return TimeOfDay{}, false
	}
	return t, true
}

func parseClock(s string) (TimeOfDay, bool) {
	hm := strings.Split(s, ":")
	if len(hm) != 2 {
		return TimeOfDay{}, false
	}
	h, err := strconv.Atoi(hm[0])
	if err != nil {
		return TimeOfDay{}, false
	}
	m, err := strconv.Atoi(hm[1])
	if err != nil {
		return TimeOfDay{}, false
	}
	// 24:00 is accepted as the end of the day.
	if h == 24 && m == 0 {
		return TimeOfDay{Hour: 24}, true
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return TimeOfDay{}, false
	}
	return TimeOfDay{Hour: h, Minute: m}, true
}
