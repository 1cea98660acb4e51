package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/flood-cli/internal/evaluate"
	"github.com/sells-group/flood-cli/internal/export"
	"github.com/sells-group/flood-cli/internal/model"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Classify and export every configured year and period",
	Long: "Runs the classification for each (year, period) in batch.years x batch.periods. " +
		"Selections with no data are skipped; composites are shared across the whole batch.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("batch"); err != nil {
			return err
		}

		src, closer, err := initSource(ctx)
		if err != nil {
			return err
		}
		defer closer.Close() //nolint:errcheck

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		sinks, err := initSinks(st)
		if err != nil {
			return err
		}

		done, skipped, err := runBatch(ctx, initPipeline(src), sinks, cfg.Params(), cfg.Batch.Years, cfg.Batch.Periods)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "exported %d selections, skipped %d\n", done, skipped)
		return nil
	},
}

// runBatch classifies years x periods in order and exports each result.
// Selections without data are counted as skipped; any other error stops the
// batch.
func runBatch(ctx context.Context, cls evaluate.Classifier, sinks []export.Sink, params model.Params, years, periods []int) (done, skipped int, err error) {
	for _, year := range years {
		for _, idx := range periods {
			sel := model.PeriodKey{Year: year, Index: idx}
			log := zap.L().With(zap.String("selection", sel.String()))

			res, err := cls.Run(ctx, params, sel)
			if errors.Is(err, model.ErrSelectionNotFound) {
				log.Warn("batch: selection skipped", zap.Error(err))
				skipped++
				continue
			}
			if err != nil {
				return done, skipped, err
			}
			if err := export.WriteAll(ctx, sinks, res.Regions, export.MetaFor(res)); err != nil {
				return done, skipped, err
			}
			log.Info("batch: selection exported", zap.Int("regions", res.Regions.Len()))
			done++
		}
	}
	return done, skipped, nil
}

func init() {
	rootCmd.AddCommand(batchCmd)
}
