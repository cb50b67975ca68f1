// Package cmd provides the spendctl commands.
package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vnmchuo/vendor-spend/config"
	"github.com/vnmchuo/vendor-spend/internal/logging"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "spendctl",
	Short: "Operate the vendor spend service from the command line",
	Long: `spendctl runs migrations, triggers a batch refresh of every configured
vendor cost series and produces forecasts offline.

Examples:
  spendctl migrate
  spendctl sync
  spendctl forecast --file history.json --months 6
  spendctl local --db spend.db --vendor datadog`,
	SilenceUsage: true,
}

// Execute runs the command tree. An interrupt cancels the running command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(forecastCmd)
	rootCmd.AddCommand(localCmd)
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := logging.New(cfg, "cli")
	if verbose {
		logger = logger.Level(zerolog.DebugLevel)
	}
	return logger
}
