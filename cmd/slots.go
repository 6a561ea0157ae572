package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tdopierre/book-better-activities/internal/better"
)

func envCredentials() (string, string, error) {
	username := os.Getenv("BETTER_USERNAME")
	password := os.Getenv("BETTER_PASSWORD")
	if username == "" || password == "" {
		return "", "", fmt.Errorf("BETTER_USERNAME and BETTER_PASSWORD must be set")
	}
	return username, password, nil
}

func newSlotsCmd() *cobra.Command {
	var (
		venue    string
		activity string
		dateStr  string
	)

	c := &cobra.Command{
		Use:   "slots",
		Short: "List available times for a venue/activity/date",
		RunE: func(cmd *cobra.Command, args []string) error {
			username, password, err := envCredentials()
			if err != nil {
				return err
			}
			date, err := time.Parse("2006-01-02", dateStr)
			if err != nil {
				return fmt.Errorf("invalid --date (want YYYY-MM-DD): %w", err)
			}

			client := better.New(username, password)
			times, err := client.AvailableTimes(cmd.Context(), venue, activity, date)
			if err != nil {
				return err
			}
			if len(times) == 0 {
				fmt.Println("no available times")
				return nil
			}
			for _, t := range times {
				fmt.Printf("%s  %-30s spaces=%d price=%s duration=%dmin\n",
					t, t.Name, t.Spaces, t.Price, t.DurationMins)
			}
			return nil
		},
	}

	c.Flags().StringVar(&venue, "venue", "", "venue slug, e.g. hackney-britannia-leisure-centre")
	c.Flags().StringVar(&activity, "activity", "", "activity slug, e.g. badminton-40min")
	c.Flags().StringVar(&dateStr, "date", "", "date YYYY-MM-DD")
	_ = c.MarkFlagRequired("venue")
	_ = c.MarkFlagRequired("activity")
	_ = c.MarkFlagRequired("date")
	return c
}
