package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tdopierre/book-better-activities/internal/better"
	"github.com/tdopierre/book-better-activities/internal/booking"
	"github.com/tdopierre/book-better-activities/internal/config"
	"github.com/tdopierre/book-better-activities/internal/db"
	"github.com/tdopierre/book-better-activities/internal/history"
	"github.com/tdopierre/book-better-activities/internal/notify"
	"github.com/tdopierre/book-better-activities/internal/schedule"
)

func newRunCmd() *cobra.Command {
	var configPath string

	c := &cobra.Command{
		Use:   "run",
		Short: "Validate credentials, schedule all configured jobs and run until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := slog.Default()
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if len(cfg.Jobs) == 0 {
				return fmt.Errorf("no bookings configured")
			}
			loc, err := time.LoadLocation(cfg.Timezone)
			if err != nil {
				return fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
			}

			ctx := cmd.Context()
			factory := better.Factory()

			attemptLists := make([][]booking.Attempt, len(cfg.Jobs))
			for i, j := range cfg.Jobs {
				attemptLists[i] = j.Attempts
			}
			if err := booking.ValidateCredentials(ctx, factory, log, attemptLists...); err != nil {
				return err
			}

			var recorder booking.Recorder
			if cfg.DatabaseURL != "" {
				d, err := db.Open(ctx, cfg.DatabaseURL)
				if err != nil {
					return err
				}
				defer d.Close()
				if err := history.Migrate(ctx, d); err != nil {
					return err
				}
				recorder = history.NewLedger(d)
			}

			runner := schedule.NewRunner(loc, log)
			for _, job := range cfg.Jobs {
				trig, err := schedule.ParseCronExpression(job.Schedule)
				if err != nil {
					return fmt.Errorf("job %q: %w", job.Name, err)
				}

				orch := booking.Orchestrator{
					Exec:     booking.AttemptExecutor{NewClient: factory, Log: log},
					Notifier: &notify.DiscordWebhook{URL: job.WebhookURL, Log: log},
					Recorder: recorder,
					Log:      log,
				}
				name, attempts := job.Name, job.Attempts
				next, err := runner.AddJob(name, trig, job.DaysAhead, func(date time.Time) {
					// errors are already logged, notified and recorded
					_, _ = orch.RunJob(context.Background(), name, attempts, date)
				})
				if err != nil {
					return fmt.Errorf("job %q: %w", job.Name, err)
				}
				log.Info("scheduled job", "job", job.Name, "next_run", next,
					"booking_for", schedule.ResolveBookingDate(next, job.DaysAhead).Format("2006-01-02"))
			}

			runner.Start()
			log.Info("scheduler started", "jobs", len(cfg.Jobs), "timezone", cfg.Timezone)

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			<-stop
			log.Info("shutting down")
			runner.Stop()
			return nil
		},
	}

	c.Flags().StringVar(&configPath, "config", "config.yaml", "path to YAML config file")
	return c
}
