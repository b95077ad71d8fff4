// Package reminder keeps calendar-style reminders in sync with reservation status changes.
package reminder

import "time"

const (
	// MinLeadTime is the shortest time before a reservation for which a reminder is still
	// worth creating.
	MinLeadTime = 30 * time.Minute
	// EarlyAlarm is used when the reservation is at least this far away.
	EarlyAlarm = 2 * time.Hour
	// LateAlarm is always set when a reminder is created.
	LateAlarm = 30 * time.Minute
)

// Window is the event span and alarm instants of a reminder.
type Window struct {
	Valid bool `json:"valid"`
	// StartOffset is how long before the reservation the event starts.
	StartOffset time.Duration `json:"startOffset"`
	Start       time.Time     `json:"start"`
	End         time.Time     `json:"end"`
	Alarms      []time.Time   `json:"alarms"`
}

// ComputeWindow decides the reminder for a reservation at reservationTime seen from now.
// Under MinLeadTime the window is invalid. From EarlyAlarm on there are two alarms, 2h and
// 30min before; in between only the 30min alarm is set. The event always ends at the
// reservation time and starts at the earliest alarm.
func ComputeWindow(reservationTime, now time.Time) Window {
	until := reservationTime.Sub(now)
	if until < MinLeadTime {
		return Window{}
	}

	if until >= EarlyAlarm {
		return Window{
			Valid:       true,
			StartOffset: EarlyAlarm,
			Start:       reservationTime.Add(-EarlyAlarm),
			End:         reservationTime,
			Alarms:      []time.Time{reservationTime.Add(-EarlyAlarm), reservationTime.Add(-LateAlarm)},
		}
	}
	return Window{
		Valid:       true,
		StartOffset: LateAlarm,
		Start:       reservationTime.Add(-LateAlarm),
		End:         reservationTime,
		Alarms:      []time.Time{reservationTime.Add(-LateAlarm)},
	}
}
