package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"venue-booking-backend/internal/reminder"
)

func newWindowCmd() *cobra.Command {
	var now string
	cmd := &cobra.Command{
		Use:   "window <reservation-time>",
		Short: "Print the reminder window for a reservation time (RFC3339)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			at, err := time.Parse(time.RFC3339, args[0])
			if err != nil {
				return fmt.Errorf("invalid reservation time: %w", err)
			}
			ref := time.Now().In(at.Location())
			if now != "" {
				ref, err = time.Parse(time.RFC3339, now)
				if err != nil {
					return fmt.Errorf("invalid --now: %w", err)
				}
			}
			printWindow(cmd, reminder.ComputeWindow(at, ref))
			return nil
		},
	}
	cmd.Flags().StringVar(&now, "now", "", "reference instant (RFC3339, default current time)")
	return cmd
}

func printWindow(cmd *cobra.Command, w reminder.Window) {
	out := cmd.OutOrStdout()
	if !w.Valid {
		fmt.Fprintln(out, "no reminder: reservation is too close or already past")
		return
	}
	fmt.Fprintf(out, "event:  %s - %s\n", w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
	for _, alarm := range w.Alarms {
		fmt.Fprintf(out, "alarm:  %s (%s before)\n", alarm.Format(time.RFC3339), w.End.Sub(alarm))
	}
}
