package main

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/flood-cli/internal/export"
	"github.com/sells-group/flood-cli/internal/fetcher"
	"github.com/sells-group/flood-cli/internal/groundtruth"
	"github.com/sells-group/flood-cli/internal/pipeline"
	"github.com/sells-group/flood-cli/internal/season"
	"github.com/sells-group/flood-cli/internal/source"
	"github.com/sells-group/flood-cli/internal/store"
)

// initStore opens the configured run store.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "flood.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initSource opens the configured observation backend. The returned closer
// releases backend resources and is never nil.
func initSource(ctx context.Context) (source.Source, io.Closer, error) {
	switch cfg.Source.Driver {
	case "csv":
		src, err := source.OpenCSV(ctx, cfg.Source.Path, cfg.Grid)
		return src, nopCloser{}, err
	case "sqlite":
		src, err := source.OpenSQLite(ctx, cfg.Source.Path, cfg.Grid)
		if err != nil {
			return nil, nil, err
		}
		return src, src, nil
	case "http":
		src, err := source.NewHTTPSource(cfg.HTTPSourceOptions())
		return src, nopCloser{}, err
	default:
		return nil, nil, eris.Errorf("unsupported source driver: %s", cfg.Source.Driver)
	}
}

// initPipeline builds the classification pipeline over the configured years.
func initPipeline(src source.Source) *pipeline.Pipeline {
	composer := &season.Composer{
		Source:      src,
		Region:      cfg.Grid,
		Season:      cfg.SeasonWindow(),
		Filter:      cfg.Filter(),
		Band:        cfg.Classify.Band,
		Concurrency: cfg.Source.MaxConcurrent,
	}
	return pipeline.New(composer, cfg.Season.Years, pipeline.WithRegionOptions(cfg.RegionOptions()))
}

// initTruth fetches and preprocesses the configured ground truth.
func initTruth(ctx context.Context) (*groundtruth.Truth, error) {
	opts := cfg.TruthOptions()
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, eris.Wrap(err, "create truth dir")
		}
	}
	return groundtruth.Load(ctx, fetcher.NewResolver(), cfg.Grid, opts)
}

// initSinks returns the configured file sinks plus a table sink when the
// run store is Postgres.
func initSinks(st store.Store) ([]export.Sink, error) {
	sinks, err := export.NewSinks(cfg.Export.Dir, cfg.Export.Formats)
	if err != nil {
		return nil, err
	}
	if pg, ok := st.(*store.PostgresStore); ok {
		sinks = append(sinks, &export.PostgresSink{Pool: pg.Pool()})
	}
	return sinks, nil
}

func outPath(name string) string {
	return filepath.Join(cfg.Export.Dir, name)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
