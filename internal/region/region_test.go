package region

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"

	"github.com/sells-group/flood-cli/internal/model"
	"github.com/sells-group/flood-cli/internal/raster"
	"github.com/sells-group/flood-cli/internal/water"
)

func paint(m raster.Mask, r0, c0, r1, c1 int) {
	for r := r0; r <= r1; r++ {
		for c := c0; c <= c1; c++ {
			m.Bits[m.Grid.Index(raster.Cell{Row: r, Col: c})] = true
		}
	}
}

// 100 m cells: one cell is 10,000 m2.
var hectareGrid = raster.Grid{OriginX: 500000, OriginY: 1000000, CellSize: 100, Width: 12, Height: 6, SRID: 32643}

func TestExtractAreaFilterScenario(t *testing.T) {
	m := raster.NewMask(hectareGrid)
	paint(m, 0, 0, 2, 2) // 9 cells = 90,000 m2
	paint(m, 0, 5, 2, 9) // 15 cells = 150,000 m2

	set, err := ExtractMask(m, Options{MinAreaSqm: 100000, Connectivity: 4})
	require.NoError(t, err)
	require.Equal(t, 1, set.Len())
	assert.InDelta(t, 150000, set.Regions[0].Area, 1e-6)
}

func TestExtractEmptyMask(t *testing.T) {
	set, err := ExtractMask(raster.NewMask(hectareGrid), Options{DilationM: 250, MinAreaSqm: 0})
	require.NoError(t, err)
	assert.Equal(t, 0, set.Len())
	assert.Equal(t, 0.0, set.TotalArea())
}

func TestFilterIdempotent(t *testing.T) {
	m := raster.NewMask(hectareGrid)
	paint(m, 0, 0, 0, 0)
	paint(m, 2, 2, 3, 3)
	paint(m, 5, 8, 5, 11)

	all := Label(m, 8)
	once := all.Filter(40000)
	twice := once.Filter(40000)
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Fatalf("filter is not idempotent (-once +twice):\n%s", diff)
	}
	assert.Equal(t, 2, once.Len())
	assert.Equal(t, 3, all.Len(), "filtering must not mutate the source set")
}

func TestDilationMergesNearRegions(t *testing.T) {
	g := raster.Grid{OriginX: 0, OriginY: 100, CellSize: 10, Width: 10, Height: 1}
	m := raster.NewMask(g)
	m.Bits[2] = true
	m.Bits[4] = true

	assert.Equal(t, 2, Label(m, 4).Len())

	d := Dilate(m, 10)
	assert.Equal(t, []bool{false, true, true, true, true, true, false, false, false, false}, d.Bits)
	assert.Equal(t, 1, Label(d, 4).Len())

	// radius below one cell leaves the mask unchanged
	assert.Equal(t, m.Bits, Dilate(m, 5).Bits)
}

func TestDilationIsCircular(t *testing.T) {
	g := raster.Grid{OriginX: 0, OriginY: 50, CellSize: 10, Width: 5, Height: 5}
	m := raster.NewMask(g)
	m.Bits[g.Index(raster.Cell{Row: 2, Col: 2})] = true

	d := Dilate(m, 20)
	// 20 m radius on 10 m cells: a 13-cell diamond-ish disc, corners excluded
	assert.Equal(t, 13, d.Count())
	assert.False(t, d.Bits[g.Index(raster.Cell{Row: 0, Col: 0})])
	assert.True(t, d.Bits[g.Index(raster.Cell{Row: 0, Col: 2})])
}

func TestLabelConnectivity(t *testing.T) {
	g := raster.Grid{OriginX: 0, OriginY: 20, CellSize: 10, Width: 2, Height: 2}
	m := raster.NewMask(g)
	m.Bits[0] = true
	m.Bits[3] = true

	assert.Equal(t, 2, Label(m, 4).Len())
	assert.Equal(t, 1, Label(m, 8).Len())
}

func TestExtractRejectsBadConnectivity(t *testing.T) {
	m := raster.NewMask(hectareGrid)
	paint(m, 0, 0, 0, 0)
	_, err := ExtractMask(m, Options{Connectivity: 6})
	assert.Error(t, err)
}

func TestExtractAtCoarserScale(t *testing.T) {
	g := raster.Grid{OriginX: 0, OriginY: 60, CellSize: 10, Width: 6, Height: 6}
	m := raster.NewMask(g)
	paint(m, 0, 0, 2, 2)

	set, err := ExtractMask(m, Options{ScaleM: 30})
	require.NoError(t, err)
	require.Equal(t, 1, set.Len())
	assert.InDelta(t, 30, set.Grid.CellSize, 1e-9)
	assert.InDelta(t, 900, set.Regions[0].Area, 1e-9)

	_, err = ExtractMask(m, Options{ScaleM: 25})
	assert.Error(t, err)
}

func TestExtractFromClassification(t *testing.T) {
	g := raster.Grid{OriginX: 0, OriginY: 10, CellSize: 10, Width: 5, Height: 1}
	c := water.Classification{Grid: g, Classes: []model.Class{
		model.ClassSeasonal, model.ClassFlood, model.ClassPerennial, model.ClassFlood, model.ClassMasked,
	}}
	set, err := Extract(c, []model.Class{model.ClassSeasonal, model.ClassFlood}, Options{Connectivity: 4})
	require.NoError(t, err)
	require.Equal(t, 2, set.Len())
	assert.Len(t, set.Regions[0].Cells, 2)
	assert.Len(t, set.Regions[1].Cells, 1)
}

func TestPolygonAreaMatchesRegion(t *testing.T) {
	m := raster.NewMask(hectareGrid)
	paint(m, 1, 1, 1, 4)
	paint(m, 2, 2, 3, 2)
	paint(m, 2, 4, 2, 4)

	set := Label(m, 4)
	require.Equal(t, 1, set.Len())
	poly, err := set.Polygon(set.Regions[0])
	require.NoError(t, err)
	assert.InDelta(t, set.Regions[0].Area, poly.Area(), 1e-6)
	require.Equal(t, 1, poly.NumPolygons())
	require.Equal(t, 1, poly.Polygon(0).NumLinearRings())
	assert.True(t, xy.IsRingCounterClockwise(geom.XY, poly.Polygon(0).LinearRing(0).FlatCoords()))
	assert.Equal(t, 32643, poly.SRID())
}

func TestPolygonRectangleHasFourCorners(t *testing.T) {
	m := raster.NewMask(hectareGrid)
	paint(m, 1, 2, 2, 4)

	set := Label(m, 4)
	poly, err := set.Polygon(set.Regions[0])
	require.NoError(t, err)
	require.Equal(t, 1, poly.NumPolygons())
	want := []float64{
		500200, 999900, 500200, 999700, 500500, 999700, 500500, 999900, 500200, 999900,
	}
	assert.Equal(t, want, poly.Polygon(0).LinearRing(0).FlatCoords())
	assert.InDelta(t, 60000.0, poly.Area(), 1e-6)
}

func TestPolygonKeepsHole(t *testing.T) {
	m := raster.NewMask(hectareGrid)
	paint(m, 1, 1, 3, 3)
	m.Bits[m.Grid.Index(raster.Cell{Row: 2, Col: 2})] = false

	set := Label(m, 4)
	require.Equal(t, 1, set.Len())
	poly, err := set.Polygon(set.Regions[0])
	require.NoError(t, err)
	require.Equal(t, 1, poly.NumPolygons())
	p := poly.Polygon(0)
	require.Equal(t, 2, p.NumLinearRings())
	assert.True(t, xy.IsRingCounterClockwise(geom.XY, p.LinearRing(0).FlatCoords()))
	assert.False(t, xy.IsRingCounterClockwise(geom.XY, p.LinearRing(1).FlatCoords()))
	assert.Equal(t, 5, p.LinearRing(1).NumCoords())
	assert.InDelta(t, 80000.0, poly.Area(), 1e-6)
	assert.InDelta(t, set.Regions[0].Area, poly.Area(), 1e-6)
}

func TestPolygonSplitsCornerTouch(t *testing.T) {
	set := Set{Grid: hectareGrid, Regions: []Region{{
		ID:    1,
		Cells: []raster.Cell{{Row: 1, Col: 1}, {Row: 2, Col: 2}},
		Area:  20000,
	}}}
	poly, err := set.Polygon(set.Regions[0])
	require.NoError(t, err)
	require.Equal(t, 2, poly.NumPolygons())
	for i := 0; i < poly.NumPolygons(); i++ {
		assert.Equal(t, 1, poly.Polygon(i).NumLinearRings())
		assert.Equal(t, 5, poly.Polygon(i).LinearRing(0).NumCoords())
	}
	assert.InDelta(t, 20000.0, poly.Area(), 1e-6)
}

func TestPolygonIslandInsideHole(t *testing.T) {
	m := raster.NewMask(hectareGrid)
	paint(m, 0, 0, 4, 4)
	for r := 1; r <= 3; r++ {
		for c := 1; c <= 3; c++ {
			m.Bits[m.Grid.Index(raster.Cell{Row: r, Col: c})] = r == 2 && c == 2
		}
	}

	set := Label(m, 4)
	require.Equal(t, 2, set.Len())
	for _, r := range set.Regions {
		poly, err := set.Polygon(r)
		require.NoError(t, err)
		require.Equal(t, 1, poly.NumPolygons())
		assert.InDelta(t, r.Area, poly.Area(), 1e-6)
		if len(r.Cells) == 16 {
			assert.Equal(t, 2, poly.Polygon(0).NumLinearRings())
		} else {
			assert.Equal(t, 1, poly.Polygon(0).NumLinearRings())
		}
	}
}

func TestRasterizeOntoTruthGrid(t *testing.T) {
	m := raster.NewMask(hectareGrid)
	paint(m, 0, 0, 1, 1)
	set := Label(m, 8)

	same := set.Rasterize(hectareGrid)
	assert.Equal(t, 4, same.Count())

	fine := raster.Grid{OriginX: hectareGrid.OriginX, OriginY: hectareGrid.OriginY, CellSize: 50, Width: 24, Height: 12}
	assert.Equal(t, 16, set.Rasterize(fine).Count())
}
