package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"venue-booking-backend/internal/availability"
	"venue-booking-backend/internal/schedule"
)

const dateLayout = "2006-01-02"

func newScheduleCmd() *cobra.Command {
	var (
		date string
		tz   string
		step time.Duration
	)
	cmd := &cobra.Command{
		Use:   "schedule <working-days> <working-hours>",
		Short: "Parse a venue schedule and print its status and open slots",
		Example: `  bookingd schedule "PAZARTESİ-CUMA" "09:00-18:00" --date 2024-05-20
  bookingd schedule "Hafta içi" "22:00-02:00"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := time.LoadLocation(tz)
			if err != nil {
				return fmt.Errorf("invalid timezone %q: %w", tz, err)
			}
			now := time.Now().In(loc)
			day := now
			if date != "" {
				day, err = time.ParseInLocation(dateLayout, date, loc)
				if err != nil {
					return fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", date, err)
				}
			}
			printSchedule(cmd, schedule.Build(args[0], args[1]), day, now, step)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "date to list slots for (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&tz, "tz", "Europe/Istanbul", "venue timezone")
	cmd.Flags().DurationVar(&step, "step", availability.DefaultSlotStep, "slot spacing")
	return cmd
}

func printSchedule(cmd *cobra.Command, s *schedule.WeeklySchedule, day, now time.Time, step time.Duration) {
	out := cmd.OutOrStdout()
	if s == nil {
		fmt.Fprintln(out, "days:   (none)")
	} else {
		fmt.Fprintf(out, "days:   %s\n", s.Days)
		hours := s.Hours.String()
		if s.HoursDefaulted {
			hours += " (default)"
		}
		fmt.Fprintf(out, "hours:  %s\n", hours)
	}

	status := availability.GetStatus(s, now)
	fmt.Fprintf(out, "status: %s (%s)\n", status.Label, status.Text)

	if !availability.IsDaySelectable(s, day) {
		fmt.Fprintf(out, "%s: not selectable\n", day.Format(dateLayout))
		return
	}
	var open []string
	for _, slot := range availability.Slots(s, day, now, step) {
		if !slot.Disabled {
			open = append(open, slot.Label)
		}
	}
	fmt.Fprintf(out, "%s: %d open slots\n", day.Format(dateLayout), len(open))
	for _, label := range open {
		fmt.Fprintf(out, "  %s\n", label)
	}
}
