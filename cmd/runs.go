package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/flood-cli/internal/model"
	"github.com/sells-group/flood-cli/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect sweep run history",
	Long:  "Commands for listing sweep runs and viewing their combinations.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sweep runs",
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
		method, _ := cmd.Flags().GetString("method")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status: model.RunStatus(status),
			Method: method,
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a run and its combinations",
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

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "runs show %s", args[0])
		}
		combos, err := st.ListCombinations(ctx, run.ID)
		if err != nil {
			return eris.Wrapf(err, "runs show %s", args[0])
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				*model.Run
				Combinations []model.CombinationResult `json:"combinations"`
			}{run, combos})
		}

		formatRunDetail(os.Stdout, run, combos)
		return nil
	},
}

func formatRunsList(w io.Writer, runs []model.Run) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tMETHOD\tSELECTION\tSTATUS\tAUC\tBEST\tCREATED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.4f\t%s\t%s\n",
			r.ID, r.Method, r.Selection, r.Status, r.AUC, bestLabel(r.Best),
			r.CreatedAt.Format(time.DateTime))
	}
	tw.Flush() //nolint:errcheck
}

func formatRunDetail(w io.Writer, r *model.Run, combos []model.CombinationResult) {
	fmt.Fprintf(w, "Run:       %s\n", r.ID)
	fmt.Fprintf(w, "Method:    %s\n", r.Method)
	fmt.Fprintf(w, "Selection: %s\n", r.Selection)
	fmt.Fprintf(w, "Status:    %s\n", r.Status)
	fmt.Fprintf(w, "AUC:       %.4f\n", r.AUC)
	fmt.Fprintf(w, "Best:      %s\n", bestLabel(r.Best))
	fmt.Fprintf(w, "Created:   %s\n", r.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Updated:   %s\n", r.UpdatedAt.Format(time.RFC3339))
	if len(combos) == 0 {
		return
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "IDX\tKEY\tTP\tFP\tFN\tTN\tTPR\tFPR")
	for _, c := range combos {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\t%d\t%.4f\t%.4f\n",
			c.Index, c.Params.SweepKey(r.Method),
			c.Counts.TP, c.Counts.FP, c.Counts.FN, c.Counts.TN, c.TPR, c.FPR)
	}
	tw.Flush() //nolint:errcheck
}

func bestLabel(best *int) string {
	if best == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *best)
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by status (running, complete, failed)")
	runsListCmd.Flags().String("method", "", "filter by scoring method (cells, polygons)")
	runsListCmd.Flags().Int("limit", 20, "maximum number of runs to show")

	runsShowCmd.Flags().Bool("json", false, "print the run as JSON")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}
