package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/vnmchuo/vendor-spend/internal/costs"
	"github.com/vnmchuo/vendor-spend/internal/forecast"
)

var (
	historyFile    string
	forecastMonths int
)

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Forecast a cost series read from a JSON file",
	Long: `Reads a monthly cost history and prints the trend, best case and worst
case projection. The file holds either a list of {"month": "MM-YYYY",
"cost": 12.5} objects or the {"data": [...]} body returned by
GET /v1/vendors-metrics/{vendor}. Use "-" to read from stdin.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var r io.Reader = cmd.InOrStdin()
		if historyFile != "-" {
			f, err := os.Open(historyFile)
			if err != nil {
				return err
			}
			defer f.Close()
			r = f
		}

		history, err := readHistory(r)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(forecast.Predict(history, forecastMonths))
	},
}

func init() {
	forecastCmd.Flags().StringVarP(&historyFile, "file", "f", "", "history JSON file, or - for stdin")
	forecastCmd.Flags().IntVarP(&forecastMonths, "months", "m", forecast.DefaultHorizon, "months to project")
	_ = forecastCmd.MarkFlagRequired("file")
}

func readHistory(r io.Reader) ([]costs.Point, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, errors.New("empty history")
	}

	var points []costs.Point
	if raw[0] == '{' {
		var wrapped struct {
			Data []costs.Point `json:"data"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, fmt.Errorf("parse history: %w", err)
		}
		points = wrapped.Data
	} else if err := json.Unmarshal(raw, &points); err != nil {
		return nil, fmt.Errorf("parse history: %w", err)
	}
	return points, nil
}
