// Package source defines the Observation Source contract and its backends:
// in-memory fixtures, CSV files, a SQLite catalog, and a remote batch backend.
package source

import (
	"context"
	"sort"
	"time"

	"github.com/sells-group/flood-cli/internal/model"
	"github.com/sells-group/flood-cli/internal/raster"
)

// Observation is one acquisition: a timestamp and per-cell values per band.
type Observation struct {
	ID     string                  `json:"id"`
	Sensor string                  `json:"sensor"`
	Time   time.Time               `json:"time"`
	Bands  map[string]raster.Field `json:"-"`
}

// Band returns the named band, if present.
func (o Observation) Band(name string) (raster.Field, bool) {
	f, ok := o.Bands[name]
	return f, ok
}

// Filter restricts a query to one sensor and the bands it must carry.
type Filter struct {
	Sensor string   `json:"sensor"`
	Bands  []string `json:"bands"`
}

// Matches reports whether o satisfies the filter.
func (f Filter) Matches(o Observation) bool {
	if f.Sensor != "" && o.Sensor != f.Sensor {
		return false
	}
	for _, b := range f.Bands {
		if _, ok := o.Bands[b]; !ok {
			return false
		}
	}
	return true
}

// Source returns the observations covering region inside window. An empty
// result is not an error; callers decide how to represent the gap.
type Source interface {
	Query(ctx context.Context, region raster.Grid, window model.Window, filter Filter) ([]Observation, error)
}

// sortObservations orders by time, then id, so backends return a stable order.
func sortObservations(obs []Observation) {
	sort.SliceStable(obs, func(i, j int) bool {
		if !obs[i].Time.Equal(obs[j].Time) {
			return obs[i].Time.Before(obs[j].Time)
		}
		return obs[i].ID < obs[j].ID
	})
}
