package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tdopierre/book-better-activities/internal/better"
	"github.com/tdopierre/book-better-activities/internal/booking"
	"github.com/tdopierre/book-better-activities/internal/config"
)

func newValidateCmd() *cobra.Command {
	var configPath string

	c := &cobra.Command{
		Use:   "validate",
		Short: "Check the config file and log in with every configured credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			attemptLists := make([][]booking.Attempt, len(cfg.Jobs))
			for i, j := range cfg.Jobs {
				attemptLists[i] = j.Attempts
			}
			if err := booking.ValidateCredentials(cmd.Context(), better.Factory(), slog.Default(), attemptLists...); err != nil {
				return err
			}
			fmt.Printf("config ok: %d job(s), all credentials valid\n", len(cfg.Jobs))
			return nil
		},
	}

	c.Flags().StringVar(&configPath, "config", "config.yaml", "path to YAML config file")
	return c
}
