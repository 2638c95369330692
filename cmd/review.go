package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/health-atlas/atlas-cli/internal/model"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Manage the human review queue",
}

// -- review list --

var reviewListCmd = &cobra.Command{
	Use:   "list",
	Short: "List review queue entries",
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

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		entries, err := st.ListReviewQueue(ctx, model.ReviewStatus(status), limit)
		if err != nil {
			return eris.Wrap(err, "review list")
		}

		if len(entries) == 0 {
			fmt.Fprintln(os.Stderr, "Review queue is empty.")
			return nil
		}

		formatReviewList(os.Stdout, entries)
		return nil
	},
}

// -- review resolve --

var reviewResolveCmd = &cobra.Command{
	Use:   "resolve <review-id>",
	Short: "Mark a review queue entry as resolved",
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

		if err := st.ResolveReview(ctx, args[0]); err != nil {
			return eris.Wrap(err, "review resolve")
		}

		fmt.Printf("Resolved review %s\n", args[0])
		return nil
	},
}

func init() {
	reviewListCmd.Flags().String("status", string(model.ReviewPending), "filter by status (PENDING, RESOLVED)")
	reviewListCmd.Flags().Int("limit", 50, "max number of entries to display")

	reviewCmd.AddCommand(reviewListCmd)
	reviewCmd.AddCommand(reviewResolveCmd)
	rootCmd.AddCommand(reviewCmd)
}

// formatReviewList writes a tabular list of review entries to w.
func formatReviewList(out io.Writer, entries []model.ReviewEntry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tRECORD\tSTATUS\tREASON\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t------\t------\t------\t-------")

	for _, e := range entries {
		reason := e.Reason
		if len(reason) > 60 {
			reason = reason[:57] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			truncateID(e.ID),
			truncateID(e.RecordID),
			e.Status,
			reason,
			e.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}
