package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/flood-cli/internal/evaluate"
	"github.com/sells-group/flood-cli/internal/export"
	"github.com/sells-group/flood-cli/internal/groundtruth"
	"github.com/sells-group/flood-cli/internal/model"
	"github.com/sells-group/flood-cli/internal/store"
)

var (
	sweepMethod string
	sweepNoPlot bool
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Sweep classification thresholds against ground truth",
	Long: "Evaluates every combination of the configured threshold lists for one selection, " +
		"records each confusion matrix in the run store, and writes the ROC report.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if sweepMethod != "" {
			cfg.Sweep.Method = sweepMethod
		}
		if err := cfg.Validate("sweep"); err != nil {
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

		truth, err := initTruth(ctx)
		if err != nil {
			return err
		}

		sel := cfg.SweepSelection()
		run, err := st.CreateRun(ctx, cfg.Sweep.Method, sel)
		if err != nil {
			return err
		}
		log := zap.L().With(zap.String("run_id", run.ID))

		rep, err := runSweep(ctx, st, run.ID, initPipeline(src), scorerFor(truth))
		if err != nil {
			if uerr := st.UpdateRunStatus(ctx, run.ID, model.RunStatusFailed); uerr != nil {
				log.Error("sweep: mark run failed", zap.Error(uerr))
			}
			return err
		}

		var best *int
		if rep.Best != nil {
			best = &rep.Best.Index
		}
		if err := st.CompleteRun(ctx, run.ID, rep.AUC, best); err != nil {
			return err
		}

		stem := sel.ExportKey() + "_" + cfg.Sweep.Method
		files, err := export.WriteReport(cfg.Export.Dir, stem, run.ID, rep, cfg.Export.Formats)
		if err != nil {
			return err
		}
		if !sweepNoPlot && len(rep.Results) > 0 {
			png := outPath(stem + "_roc.png")
			if err := evaluate.SaveROC(rep, png); err != nil {
				return err
			}
			files = append(files, png)
		}

		fmt.Fprintf(os.Stdout, "run %s: %d combinations, %d skipped, AUC %.4f\n",
			run.ID, len(rep.Results), len(rep.Skipped), rep.AUC)
		if rep.Best != nil {
			fmt.Fprintf(os.Stdout, "best %s (TPR %.4f, FPR %.4f)\n",
				rep.Best.Params.SweepKey(cfg.Sweep.Method), rep.Best.TPR, rep.Best.FPR)
		}
		for _, f := range files {
			fmt.Fprintln(os.Stdout, f)
		}
		return nil
	},
}

// runSweep evaluates the configured space, saving each combination as it is
// scored.
func runSweep(ctx context.Context, st store.Store, runID string, cls evaluate.Classifier, scorer evaluate.Scorer) (*evaluate.Report, error) {
	sw := &evaluate.Sweep{
		Classifier: cls,
		Scorer:     scorer,
		Selection:  cfg.SweepSelection(),
		Method:     cfg.Sweep.Method,
		OnResult: func(ctx context.Context, r model.CombinationResult) error {
			return st.SaveCombinations(ctx, runID, r)
		},
	}
	rep, err := sw.Run(ctx, cfg.Space().Combinations(cfg.Params()))
	if err != nil {
		return nil, eris.Wrap(err, "sweep")
	}
	return rep, nil
}

// scorerFor returns the scorer of the configured method.
func scorerFor(truth *groundtruth.Truth) evaluate.Scorer {
	if cfg.Sweep.Method == evaluate.MethodPolygons {
		s := evaluate.NewPolygonScorer(truth.Regions)
		if cfg.Sweep.PredOverlap > 0 {
			s.PredOverlap = cfg.Sweep.PredOverlap
		}
		if cfg.Sweep.TruthOverlap > 0 {
			s.TruthOverlap = cfg.Sweep.TruthOverlap
		}
		if cfg.Sweep.PseudoNegativeFactor > 0 {
			s.PseudoNegativeFactor = cfg.Sweep.PseudoNegativeFactor
		}
		return s
	}
	return evaluate.CellScorer{Truth: truth.Mask}
}

func init() {
	sweepCmd.Flags().StringVar(&sweepMethod, "method", "", "scoring method: cells or polygons (default from config)")
	sweepCmd.Flags().BoolVar(&sweepNoPlot, "no-plot", false, "skip the ROC chart")
	rootCmd.AddCommand(sweepCmd)
}
