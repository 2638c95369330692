package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/health-atlas/atlas-cli/internal/monitoring"
)

var monitorSend bool

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Collect pipeline health metrics and evaluate alerts",
	Long:  "Computes a metrics snapshot from the store, evaluates alert thresholds (RED-path rate, review backlog), and optionally posts firing alerts to the configured webhook.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		snap, err := monitoring.NewCollector(st).Collect(ctx)
		if err != nil {
			return eris.Wrap(err, "collect metrics")
		}

		alerter := monitoring.NewAlerter(cfg.Monitor)
		alerts := alerter.Evaluate(snap)

		if len(alerts) > 0 {
			zap.L().Warn("alerts firing", zap.Int("count", len(alerts)))
			if monitorSend {
				if err := alerter.Send(ctx, alerts); err != nil {
					return eris.Wrap(err, "send alerts")
				}
			}
		}

		out := struct {
			Snapshot *monitoring.MetricsSnapshot `json:"snapshot"`
			Alerts   []monitoring.Alert          `json:"alerts,omitempty"`
		}{snap, alerts}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	monitorCmd.Flags().BoolVar(&monitorSend, "send", false, "post firing alerts to the configured webhook")
	rootCmd.AddCommand(monitorCmd)
}
