package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/flood-cli/internal/export"
	"github.com/sells-group/flood-cli/internal/groundtruth"
	"github.com/sells-group/flood-cli/internal/model"
)

var truthExport bool

var truthCmd = &cobra.Command{
	Use:   "truth",
	Short: "Load, rasterise and filter the ground truth",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("truth"); err != nil {
			return err
		}

		truth, err := initTruth(ctx)
		if err != nil {
			return err
		}
		formatTruth(os.Stdout, truth)

		if !truthExport {
			return nil
		}
		sinks, err := export.NewSinks(cfg.Export.Dir, cfg.Export.Formats)
		if err != nil {
			return err
		}
		meta := export.Meta{Key: "truth", Selection: model.PeriodKey{}, Params: cfg.Params()}
		return export.WriteAll(ctx, sinks, truth.Regions, meta)
	},
}

func formatTruth(w io.Writer, t *groundtruth.Truth) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "features\t%d\n", len(t.Features))
	fmt.Fprintf(tw, "truth cells\t%d\n", t.Mask.Count())
	fmt.Fprintf(tw, "regions\t%d\n", t.Regions.Len())
	fmt.Fprintf(tw, "area_m2\t%.0f\n", t.Regions.TotalArea())
	tw.Flush() //nolint:errcheck
}

func init() {
	truthCmd.Flags().BoolVar(&truthExport, "export", false, "export the filtered truth regions")
	rootCmd.AddCommand(truthCmd)
}
