package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/flood-cli/internal/enrich"
	"github.com/sells-group/flood-cli/internal/groundtruth"
	"github.com/sells-group/flood-cli/internal/matcher"
)

var enrichOut string

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Sample labelled truth polygons and attach the nearest radar and optical bands",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("enrich"); err != nil {
			return err
		}

		src, closer, err := initSource(ctx)
		if err != nil {
			return err
		}
		defer closer.Close() //nolint:errcheck

		truth, err := initTruth(ctx)
		if err != nil {
			return err
		}
		if len(truth.Features) == 0 {
			return eris.New("enrich: ground truth has no labelled polygons")
		}

		sampler := enrich.NewSampler(cfg.Matcher.Seed)
		if cfg.Matcher.SamplesPerPolygon > 0 {
			sampler.PerPolygon = cfg.Matcher.SamplesPerPolygon
		}
		samples, err := sampler.Samples(groundtruth.Polygons(cfg.Grid, truth.Features))
		if err != nil {
			return err
		}

		radar, optical := cfg.Sensors()
		e := &enrich.Enricher{
			Matcher:     &matcher.Matcher{Source: src},
			Grid:        cfg.Grid,
			Radar:       radar,
			Optical:     optical,
			Concurrency: cfg.Source.MaxConcurrent,
		}
		rows, err := e.Enrich(ctx, samples)
		if err != nil {
			return err
		}

		out := enrichOut
		if out == "" {
			out = outPath("samples.csv")
		}
		if err := os.MkdirAll(cfg.Export.Dir, 0o755); err != nil {
			return eris.Wrap(err, "enrich: create export dir")
		}
		f, err := os.Create(out)
		if err != nil {
			return eris.Wrap(err, "enrich: create output")
		}
		defer f.Close() //nolint:errcheck
		if err := enrich.WriteCSV(f, rows); err != nil {
			return err
		}

		zap.L().Info("enrich complete",
			zap.Int("polygons", len(truth.Features)),
			zap.Int("samples", len(rows)),
			zap.String("output", out),
		)
		return nil
	},
}

func init() {
	enrichCmd.Flags().StringVar(&enrichOut, "out", "", "output CSV path (default {export.dir}/samples.csv)")
	rootCmd.AddCommand(enrichCmd)
}
