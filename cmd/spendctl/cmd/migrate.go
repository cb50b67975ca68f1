package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vnmchuo/vendor-spend/config"
	"github.com/vnmchuo/vendor-spend/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Parse()
		if err != nil {
			return err
		}
		if cfg.PostgresDSN == "" {
			return errors.New("POSTGRES_DSN is required")
		}
		logger := newLogger(cfg)

		applied, err := db.RunMigrations(cmd.Context(), cfg.PostgresDSN)
		if err != nil {
			return err
		}
		for _, name := range applied {
			logger.Info().Str("migration", name).Msg("migration applied")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d migration(s) applied\n", len(applied))
		return nil
	},
}
