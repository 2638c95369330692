package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/health-atlas/atlas-cli/internal/model"
	"github.com/health-atlas/atlas-cli/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect stored validation records",
	Long:  "Commands for listing and viewing persisted validation outcomes.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List validation records",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		path, _ := cmd.Flags().GetString("path")
		tier, _ := cmd.Flags().GetString("tier")
		state, _ := cmd.Flags().GetString("state")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := store.RecordFilter{
			Path:  model.Path(path),
			Tier:  model.Tier(tier),
			State: state,
			Limit: limit,
		}
		if review, _ := cmd.Flags().GetBool("needs-review"); review {
			filter.RequiresReview = &review
		}

		records, err := st.ListValidations(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(records) == 0 {
			fmt.Fprintln(os.Stderr, "No validation records found.")
			return nil
		}

		formatRecordsList(os.Stdout, records)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <record-id>",
	Short: "Show the full outcome of a validation record",
	Args:  cobra.ExactArgs(1),
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

		record, err := st.GetValidation(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}
		if record == nil {
			return eris.Errorf("validation record %s not found", args[0])
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(record)
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate validation statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		stats, err := st.DashboardStats(ctx)
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}

		formatStats(os.Stdout, stats)
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("path", "", "filter by path (GREEN, YELLOW, RED, ERROR)")
	runsListCmd.Flags().String("tier", "", "filter by tier (PLATINUM, GOLD, QUESTIONABLE)")
	runsListCmd.Flags().String("state", "", "filter by practice state code")
	runsListCmd.Flags().Bool("needs-review", false, "only records flagged for human review")
	runsListCmd.Flags().Int("limit", 50, "max number of records to display")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsStatsCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRecordsList writes a tabular list of validation records to w.
func formatRecordsList(out io.Writer, records []model.ValidationRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tPROVIDER\tNPI\tSCORE\tTIER\tPATH\tREVIEW\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t--------\t---\t-----\t----\t----\t------\t-------")

	for _, r := range records {
		name := r.ProviderName
		if len(name) > 28 {
			name = name[:25] + "..."
		}
		review := ""
		if r.RequiresReview {
			review = "yes"
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID),
			name,
			r.NPI,
			r.ConfidenceScore,
			r.Tier,
			r.Path,
			review,
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// formatStats writes aggregate stats to w.
func formatStats(out io.Writer, s *store.Stats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total validated:\t%d\n", s.TotalValidated)
	_, _ = fmt.Fprintf(w, "Needs review:\t%d\n", s.NeedsReview)
	_, _ = fmt.Fprintf(w, "Fraud detected:\t%d\n", s.FraudDetected)
	_, _ = fmt.Fprintf(w, "Avg confidence:\t%.3f\n", s.AvgConfidence)
	for _, path := range []string{"GREEN", "YELLOW", "RED", "ERROR"} {
		if n, ok := s.PathCounts[path]; ok {
			_, _ = fmt.Fprintf(w, "  %s:\t%d\n", path, n)
		}
	}
	for _, tier := range []string{"PLATINUM", "GOLD", "QUESTIONABLE"} {
		if n, ok := s.TierCounts[tier]; ok {
			_, _ = fmt.Fprintf(w, "  %s:\t%d\n", tier, n)
		}
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
