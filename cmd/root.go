package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

var logJSON bool

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "bookbetter",
		Short: "Books scarce Better leisure-centre activity slots on a cron schedule, with fallback attempts",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogger()
		},
	}
	root.PersistentFlags().BoolVar(&logJSON, "log-json", false, "emit JSON logs instead of text")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newKeysCmd())
	root.AddCommand(newRunCmd())
	root.AddCommand(newBookCmd())
	root.AddCommand(newSlotsCmd())
	root.AddCommand(newBookingsCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newHistoryCmd())

	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogger() {
	var h slog.Handler
	if logJSON {
		h = slog.NewJSONHandler(os.Stdout, nil)
	} else {
		h = slog.NewTextHandler(os.Stdout, nil)
	}
	slog.SetDefault(slog.New(h))
}
