package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vnmchuo/vendor-spend/config"
	"github.com/vnmchuo/vendor-spend/internal/costs"
	"github.com/vnmchuo/vendor-spend/internal/db"
	"github.com/vnmchuo/vendor-spend/internal/forecast"
	"github.com/vnmchuo/vendor-spend/internal/reconcile"
	"github.com/vnmchuo/vendor-spend/internal/vendors"
	"github.com/vnmchuo/vendor-spend/internal/vendors/aws"
	"github.com/vnmchuo/vendor-spend/internal/vendors/datadog"
)

var (
	localDB         string
	localVendor     string
	localIdentifier string
	localForecast   bool
)

var localCmd = &cobra.Command{
	Use:   "local",
	Short: "Reconcile one vendor series into a local SQLite cache",
	Long: `Runs the same reconciliation as the API against a SQLite file, using
credentials from the environment instead of stored secrets:

  datadog: DD_API_KEY, DD_APP_KEY
  aws:     AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY

Repeated runs only fetch missing or stale months.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Parse()
		if err != nil {
			return err
		}
		logger := newLogger(cfg)
		ctx := cmd.Context()

		sqlDB, err := db.OpenSQLite(ctx, localDB)
		if err != nil {
			return err
		}
		defer sqlDB.Close()

		registry := vendor.NewRegistry(envCredentials{},
			datadog.New(cfg.DatadogBaseURL),
			aws.New(cfg.AWSCostRegion),
		)
		r := reconcile.New(costs.NewSQLiteStore(sqlDB), registry,
			reconcile.WithFetchTimeout(cfg.VendorFetchTimeout),
			reconcile.WithStaleness(cfg.StalenessWindow),
			reconcile.WithLogger(logger),
		)

		points, err := r.Reconcile(ctx, 0, localVendor, localIdentifier)
		if err != nil {
			return err
		}

		out := map[string]any{"data": points}
		if localForecast {
			out["forecast"] = forecast.Predict(points, forecast.DefaultHorizon)
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	localCmd.Flags().StringVar(&localDB, "db", "spend.db", "SQLite database file")
	localCmd.Flags().StringVar(&localVendor, "vendor", vendor.Datadog, "vendor tag (aws or datadog)")
	localCmd.Flags().StringVar(&localIdentifier, "identifier", costs.DefaultIdentifier, "configuration identifier stored with the records")
	localCmd.Flags().BoolVar(&localForecast, "forecast", false, "also print a forecast")
}

// envCredentials resolves vendor credentials from environment variables.
type envCredentials struct{}

var envNames = map[string]map[string]string{
	vendor.Datadog: {
		datadog.CredAPIKey: "DD_API_KEY",
		datadog.CredAppKey: "DD_APP_KEY",
	},
	vendor.AWS: {
		aws.CredAccessKeyID:     "AWS_ACCESS_KEY_ID",
		aws.CredSecretAccessKey: "AWS_SECRET_ACCESS_KEY",
	},
}

func (envCredentials) Resolve(_ context.Context, key costs.Key) (vendor.Credentials, error) {
	names, ok := envNames[key.Vendor]
	if !ok {
		return nil, vendor.UnsupportedVendor(key.Vendor)
	}
	creds := make(vendor.Credentials, len(names))
	for cred, env := range names {
		v := os.Getenv(env)
		if v == "" {
			return nil, fmt.Errorf("%w: %s is not set", vendor.ErrConfigurationNotFound, env)
		}
		creds[cred] = v
	}
	return creds, nil
}
