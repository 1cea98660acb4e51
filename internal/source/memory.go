package source

import (
	"context"
	"sync"

	"github.com/sells-group/flood-cli/internal/model"
	"github.com/sells-group/flood-cli/internal/raster"
)

// MemorySource serves observations held in memory.
type MemorySource struct {
	mu  sync.RWMutex
	obs []Observation
}

// NewMemorySource returns a source holding obs.
func NewMemorySource(obs ...Observation) *MemorySource {
	return &MemorySource{obs: append([]Observation(nil), obs...)}
}

// Add appends observations.
func (m *MemorySource) Add(obs ...Observation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.obs = append(m.obs, obs...)
}

// Query implements Source.
func (m *MemorySource) Query(_ context.Context, region raster.Grid, window model.Window, filter Filter) ([]Observation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Observation
	for _, o := range m.obs {
		if !window.Contains(o.Time) || !filter.Matches(o) {
			continue
		}
		if !coversRegion(o, region) {
			continue
		}
		out = append(out, o)
	}
	sortObservations(out)
	return out, nil
}

// coversRegion reports whether every band of o lies on region's grid.
func coversRegion(o Observation, region raster.Grid) bool {
	for _, f := range o.Bands {
		if !f.Grid.Aligned(region) {
			return false
		}
	}
	return true
}
