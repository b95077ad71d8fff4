package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venue-booking-backend/internal/schedule"
)

// 2024-05-16 is a Thursday.
var thursday = time.Date(2024, time.May, 16, 10, 15, 0, 0, time.UTC)

func TestGetStatus(t *testing.T) {
	weekdays := schedule.Build("Pazartesi-Cuma", "09:00-18:00")
	require.NotNil(t, weekdays)

	testCases := []struct {
		name     string
		schedule *schedule.WeeklySchedule
		now      time.Time
		expected Label
	}{
		{name: "Open weekday", schedule: weekdays, now: thursday, expected: LabelOpen},
		{name: "Open weekday outside hours stays open", schedule: weekdays, now: thursday.Add(12 * time.Hour), expected: LabelOpen},
		{name: "Closed weekend", schedule: weekdays, now: thursday.AddDate(0, 0, 2), expected: LabelClosed},
		{name: "Unparseable days", schedule: schedule.Build("whenever", "09:00-18:00"), now: thursday, expected: LabelClosed},
		{name: "Missing schedule", schedule: nil, now: thursday, expected: LabelUnknown},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			status := GetStatus(tc.schedule, tc.now)
			assert.Equal(t, tc.expected, status.Label)
			assert.Equal(t, tc.expected == LabelOpen, status.IsOpen)
			assert.Equal(t, tc.expected.Text(), status.Text)
		})
	}
}

func TestGetStatus_EmptyDaysNeverOpen(t *testing.T) {
	s := schedule.Build("", "")
	for i := 0; i < 7; i++ {
		assert.False(t, GetStatus(s, thursday.AddDate(0, 0, i)).IsOpen)
	}
	s = &schedule.WeeklySchedule{Hours: schedule.DefaultHours}
	for i := 0; i < 7; i++ {
		assert.Equal(t, LabelClosed, GetStatus(s, thursday.AddDate(0, 0, i)).Label)
	}
}

func TestEndToEnd_ListScheduleOnThursday(t *testing.T) {
	s := schedule.Build("PAZARTESİ,SALI,ÇARŞAMBA", "09:00-18:00")
	require.NotNil(t, s)

	monday := thursday.AddDate(0, 0, -3)
	tuesday := thursday.AddDate(0, 0, -2)
	wednesday := thursday.AddDate(0, 0, -1)

	assert.False(t, IsDaySelectable(s, thursday))
	assert.True(t, IsDaySelectable(s, monday))
	assert.True(t, IsDaySelectable(s, tuesday))
	assert.True(t, IsDaySelectable(s, wednesday))

	earlierThatWednesday := time.Date(2024, time.May, 15, 8, 0, 0, 0, time.UTC)
	slot := ClassifySlot(s, wednesday, schedule.TimeOfDay{Hour: 17, Minute: 30}, earlierThatWednesday)
	assert.False(t, slot.Disabled)
	assert.Equal(t, ReasonNone, slot.Reason)

	slot = ClassifySlot(s, wednesday, schedule.TimeOfDay{Hour: 18, Minute: 30}, earlierThatWednesday)
	assert.True(t, slot.Disabled)
	assert.Equal(t, ReasonOutsideHours, slot.Reason)
}

func TestClassifySlot(t *testing.T) {
	s := schedule.Build("Her gün", "09:00-18:00")
	require.NotNil(t, s)
	now := time.Date(2024, time.May, 16, 12, 0, 0, 0, time.UTC)
	tomorrow := now.AddDate(0, 0, 1)

	testCases := []struct {
		name     string
		date     time.Time
		tod      schedule.TimeOfDay
		expected Reason
	}{
		{name: "Future slot today", date: now, tod: schedule.TimeOfDay{Hour: 12, Minute: 30}, expected: ReasonNone},
		{name: "Boundary minute is past", date: now, tod: schedule.TimeOfDay{Hour: 12}, expected: ReasonPast},
		{name: "Earlier today", date: now, tod: schedule.TimeOfDay{Hour: 9}, expected: ReasonPast},
		{name: "Same time tomorrow", date: tomorrow, tod: schedule.TimeOfDay{Hour: 12}, expected: ReasonNone},
		{name: "Opening minute", date: tomorrow, tod: schedule.TimeOfDay{Hour: 9}, expected: ReasonNone},
		{name: "Closing minute", date: tomorrow, tod: schedule.TimeOfDay{Hour: 18}, expected: ReasonNone},
		{name: "After closing", date: tomorrow, tod: schedule.TimeOfDay{Hour: 18, Minute: 30}, expected: ReasonOutsideHours},
		{name: "Past and outside hours", date: now, tod: schedule.TimeOfDay{Hour: 8}, expected: ReasonOutsideHours},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			slot := ClassifySlot(s, tc.date, tc.tod, now)
			assert.Equal(t, tc.expected, slot.Reason)
			assert.Equal(t, tc.expected != ReasonNone, slot.Disabled)
			assert.Equal(t, slot, ClassifySlot(s, tc.date, tc.tod, now), "classification must be deterministic")
		})
	}
}

func TestClassifySlot_NilSchedule(t *testing.T) {
	slot := ClassifySlot(nil, thursday.AddDate(0, 0, 1), schedule.TimeOfDay{Hour: 12}, thursday)
	assert.Equal(t, ReasonOutsideHours, slot.Reason)
}

func TestClassifySlot_Overnight(t *testing.T) {
	s := schedule.Build("Cuma-Pazar", "20:00-02:00")
	require.NotNil(t, s)
	date := thursday.AddDate(0, 0, 1)

	assert.Equal(t, ReasonNone, ClassifySlot(s, date, schedule.TimeOfDay{Hour: 23, Minute: 30}, thursday).Reason)
	assert.Equal(t, ReasonNone, ClassifySlot(s, date, schedule.TimeOfDay{Hour: 1}, thursday).Reason)
	assert.Equal(t, ReasonOutsideHours, ClassifySlot(s, date, schedule.TimeOfDay{Hour: 15}, thursday).Reason)
}

func TestSlots(t *testing.T) {
	s := schedule.Build("Her gün", "09:00-18:00")
	slots := Slots(s, thursday, thursday, DefaultSlotStep)
	require.Len(t, slots, 48)
	assert.Equal(t, "00:00", slots[0].Label)
	assert.Equal(t, "23:30", slots[47].Label)

	var bookable []string
	for _, slot := range slots {
		if !slot.Disabled {
			bookable = append(bookable, slot.Label)
		}
	}
	// now is 10:15, so 10:30 through 18:00 remain.
	assert.Equal(t, "10:30", bookable[0])
	assert.Equal(t, "18:00", bookable[len(bookable)-1])
	assert.Len(t, bookable, 16)

	at := slots[21].At()
	assert.Equal(t, time.Date(2024, time.May, 16, 10, 30, 0, 0, time.UTC), at)
}

func TestSlotMenu(t *testing.T) {
	assert.Len(t, SlotMenu(time.Hour), 24)
	assert.Len(t, SlotMenu(0), 48)
	assert.Len(t, SlotMenu(15*time.Minute), 96)
}

func TestSelectableDays(t *testing.T) {
	s := schedule.Build("Pazartesi-Cuma", "09:00-18:00")
	days := SelectableDays(s, thursday, 7)
	require.Len(t, days, 7)

	assert.Equal(t, time.Date(2024, time.May, 16, 0, 0, 0, 0, time.UTC), days[0].Date)
	var selectable int
	for _, d := range days {
		if d.Selectable {
			selectable++
		}
	}
	assert.Equal(t, 5, selectable)
	assert.False(t, days[2].Selectable) // Saturday
	assert.False(t, days[3].Selectable) // Sunday
	assert.True(t, days[4].Selectable)  // Monday

	for _, d := range SelectableDays(nil, thursday, 3) {
		assert.False(t, d.Selectable)
	}
}
