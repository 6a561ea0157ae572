package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tdopierre/book-better-activities/internal/better"
)

func newBookingsCmd() *cobra.Command {
	var filter string

	c := &cobra.Command{
		Use:   "bookings",
		Short: "List the account's own bookings",
		RunE: func(cmd *cobra.Command, args []string) error {
			username, password, err := envCredentials()
			if err != nil {
				return err
			}
			if filter != "future" && filter != "past" && filter != "all" {
				return fmt.Errorf("invalid --filter %q (want future, past or all)", filter)
			}

			client := better.New(username, password)
			bookings, err := client.MyBookings(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if len(bookings) == 0 {
				fmt.Printf("no %s bookings found\n", filter)
				return nil
			}
			for _, b := range bookings {
				cancel := "no"
				if b.CanCancel {
					cancel = "yes"
				}
				fmt.Printf("booking %d: %s at %s (%s) on %s %s, %s, status=%s, cancellable=%s\n",
					b.ID, b.Activity, b.Venue, b.Location, b.Date, b.Time, b.Price, b.Status, cancel)
			}
			return nil
		},
	}

	c.Flags().StringVar(&filter, "filter", "future", "future, past or all")
	return c
}
