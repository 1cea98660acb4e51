package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/flood-cli/internal/config"
	"github.com/sells-group/flood-cli/internal/export"
	"github.com/sells-group/flood-cli/internal/model"
	"github.com/sells-group/flood-cli/internal/raster"
	"github.com/sells-group/flood-cli/internal/source"
)

func TestInitStore_SQLite(t *testing.T) {
	withConfig(t, &config.Config{Store: config.StoreConfig{
		Driver:      "sqlite",
		DatabaseURL: filepath.Join(t.TempDir(), "runs.db"),
	}})

	st, err := initStore(context.Background())
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	assert.NoError(t, st.Migrate(context.Background()))
}

func TestInitStore_UnknownDriver(t *testing.T) {
	withConfig(t, &config.Config{Store: config.StoreConfig{Driver: "mysql"}})

	_, err := initStore(context.Background())
	assert.ErrorContains(t, err, "unsupported store driver")
}

func TestInitSource_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "obs.csv")
	body := "sensor,timestamp,row,col,band,value\n" +
		"S1,2019-07-03T00:00:00Z,0,0,VV,-20\n" +
		"S1,2019-07-03T00:00:00Z,0,1,VV,-10\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	grid := raster.Grid{CellSize: 10, Width: 2, Height: 1}
	withConfig(t, &config.Config{
		Grid:   grid,
		Source: config.SourceConfig{Driver: "csv", Path: path},
	})

	src, closer, err := initSource(context.Background())
	require.NoError(t, err)
	defer closer.Close() //nolint:errcheck

	_, ok := src.(*source.CSVSource)
	assert.True(t, ok)
}

func TestInitSource_UnknownDriver(t *testing.T) {
	withConfig(t, &config.Config{Source: config.SourceConfig{Driver: "s3"}})

	_, _, err := initSource(context.Background())
	assert.ErrorContains(t, err, "unsupported source driver")
}

func TestInitSinks_SQLiteStoreHasNoTableSink(t *testing.T) {
	withConfig(t, &config.Config{Export: config.ExportConfig{
		Dir:     t.TempDir(),
		Formats: []string{export.FormatCSV, export.FormatEWKB},
	}})

	sinks, err := initSinks(newTestStore(t))
	require.NoError(t, err)
	require.Len(t, sinks, 2)
	for _, s := range sinks {
		assert.NotEqual(t, "postgres", s.Name())
	}
}

func TestInitPipeline_UsesConfiguredGrid(t *testing.T) {
	grid := raster.Grid{CellSize: 10, Width: 3, Height: 3}
	withConfig(t, &config.Config{Grid: grid, Season: config.SeasonConfig{Years: []int{2017, 2018}}})

	p := initPipeline(source.NewMemorySource())
	assert.Equal(t, grid, p.Grid())
}

func TestSummaryClassesCoverOutputLabels(t *testing.T) {
	assert.NotContains(t, summaryClasses, model.ClassMasked)
	assert.Len(t, summaryClasses, 5)
}
