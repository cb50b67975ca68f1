package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/vnmchuo/vendor-spend/config"
	"github.com/vnmchuo/vendor-spend/internal/app"
	"github.com/vnmchuo/vendor-spend/internal/telemetry"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Refresh every configured vendor cost series once",
	Long: `Runs one batch update over all users and configurations and prints the
success and failure messages as JSON. Individual failures do not change the
exit code.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger := newLogger(cfg)
		ctx := cmd.Context()

		shutdownTracer, err := telemetry.InitTracer(ctx, cfg)
		if err != nil {
			return err
		}
		defer shutdownTracer()

		a, err := app.New(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		res := a.Coordinator.RunAll(ctx)
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}
