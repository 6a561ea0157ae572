package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tdopierre/book-better-activities/internal/config"
	"github.com/tdopierre/book-better-activities/internal/db"
	"github.com/tdopierre/book-better-activities/internal/history"
)

func newHistoryCmd() *cobra.Command {
	var (
		configPath string
		limit      int
	)

	c := &cobra.Command{
		Use:   "history",
		Short: "Show recent job firings from the attempt ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("no database_url configured; the ledger is disabled")
			}

			ctx := cmd.Context()
			d, err := db.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer d.Close()
			if err := history.Migrate(ctx, d); err != nil {
				return err
			}

			runs, err := history.NewLedger(d).RecentRuns(ctx, limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("no recorded runs")
				return nil
			}
			for _, r := range runs {
				status := "FAILED"
				if r.Succeeded {
					status = "order " + r.OrderID
				}
				fmt.Printf("%s  %-20s for %s: %s (%d failed attempt(s))\n",
					r.CreatedAt.Format("2006-01-02 15:04"), r.Job,
					r.ActivityDate.Format("2006-01-02"), status, r.FailedTries)
			}
			return nil
		},
	}

	c.Flags().StringVar(&configPath, "config", "config.yaml", "path to YAML config file")
	c.Flags().IntVar(&limit, "limit", 20, "max runs to show")
	return c
}
