package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/tdopierre/book-better-activities/internal/better"
	"github.com/tdopierre/book-better-activities/internal/booking"
	"github.com/tdopierre/book-better-activities/internal/config"
	"github.com/tdopierre/book-better-activities/internal/notify"
)

func newBookCmd() *cobra.Command {
	var (
		configPath string
		jobName    string
		dateStr    string
	)

	c := &cobra.Command{
		Use:   "book",
		Short: "Run one configured job's booking attempts immediately",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := slog.Default()
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			var job *config.Job
			for i := range cfg.Jobs {
				if cfg.Jobs[i].Name == jobName {
					job = &cfg.Jobs[i]
					break
				}
			}
			if job == nil {
				return fmt.Errorf("no job named %q in %s", jobName, configPath)
			}

			loc, err := time.LoadLocation(cfg.Timezone)
			if err != nil {
				return fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
			}
			date := time.Now().In(loc).AddDate(0, 0, job.DaysAhead)
			if dateStr != "" {
				date, err = time.ParseInLocation("2006-01-02", dateStr, loc)
				if err != nil {
					return fmt.Errorf("invalid --date (want YYYY-MM-DD): %w", err)
				}
			}

			orch := booking.Orchestrator{
				Exec:     booking.AttemptExecutor{NewClient: better.Factory(), Log: log},
				Notifier: &notify.DiscordWebhook{URL: job.WebhookURL, Log: log},
				Log:      log,
			}
			orderID, err := orch.RunJob(cmd.Context(), job.Name, job.Attempts, date)
			if err != nil {
				return err
			}
			fmt.Printf("booked! order id %s for %s\n", orderID, date.Format("2006-01-02"))
			return nil
		},
	}

	c.Flags().StringVar(&configPath, "config", "config.yaml", "path to YAML config file")
	c.Flags().StringVar(&jobName, "job", "", "job name from the config file")
	c.Flags().StringVar(&dateStr, "date", "", "booking date YYYY-MM-DD (default: today + the job's days_ahead)")
	_ = c.MarkFlagRequired("job")
	return c
}
