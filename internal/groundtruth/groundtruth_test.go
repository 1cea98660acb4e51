package groundtruth

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/flood-cli/internal/fetcher"
	"github.com/sells-group/flood-cli/internal/raster"
)

var testGrid = raster.Grid{OriginX: 0, OriginY: 1000, CellSize: 100, Width: 10, Height: 10}

func square(x0, y0, x1, y1 float64) []shp.Point {
	return []shp.Point{{X: x0, Y: y0}, {X: x0, Y: y1}, {X: x1, Y: y1}, {X: x1, Y: y0}, {X: x0, Y: y0}}
}

func writeShapefile(t *testing.T, names []string, parts [][][]shp.Point) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "truth.shp")
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	w.SetFields([]shp.Field{shp.StringField("NAME", 32)})
	for i, p := range parts {
		poly := shp.Polygon(*shp.NewPolyLine(p))
		row := int(w.Write(&poly))
		w.WriteAttribute(row, 0, names[i])
	}
	w.Close()
	return path
}

func flat(pts []shp.Point) []float64 {
	out := make([]float64, 0, 2*len(pts))
	for _, p := range pts {
		out = append(out, p.X, p.Y)
	}
	return out
}

func TestReadShapefile(t *testing.T) {
	path := writeShapefile(t,
		[]string{"1W05082019", "2NW05082019"},
		[][][]shp.Point{
			{square(200, 300, 700, 800)},
			{square(0, 0, 100, 100)},
		})

	features, err := ReadShapefile(path, "name", 32643)
	require.NoError(t, err)
	require.Len(t, features, 2)
	assert.Equal(t, "1W05082019", features[0].Name)
	assert.Equal(t, "2NW05082019", features[1].Attrs["NAME"])
	assert.Equal(t, 32643, features[0].Geometry.SRID())
	assert.Equal(t, 1, features[0].Geometry.NumPolygons())
	assert.InDelta(t, 250000, features[0].Geometry.Area(), 1e-6)
}

func TestReadShapefileMissing(t *testing.T) {
	_, err := ReadShapefile(filepath.Join(t.TempDir(), "nope.shp"), "", 0)
	require.Error(t, err)
}

func TestRasterizeCellCentres(t *testing.T) {
	mp := geom.NewMultiPolygon(geom.XY)
	pts := flat(square(200, 300, 700, 800))
	require.NoError(t, mp.Push(geom.NewPolygonFlat(geom.XY, pts, []int{len(pts)})))

	m := Rasterize(testGrid, mp)
	assert.Equal(t, 25, m.Count())
	assert.True(t, m.Bits[testGrid.Index(raster.Cell{Row: 2, Col: 2})])
	assert.True(t, m.Bits[testGrid.Index(raster.Cell{Row: 6, Col: 6})])
	assert.False(t, m.Bits[testGrid.Index(raster.Cell{Row: 7, Col: 2})])
	assert.False(t, m.Bits[testGrid.Index(raster.Cell{Row: 2, Col: 1})])
}

func TestRasterizeHole(t *testing.T) {
	outer := flat(square(0, 0, 1000, 1000))
	// holes wind counter-clockwise
	hole := []float64{400, 400, 600, 400, 600, 600, 400, 600, 400, 400}
	rings := append(append([]float64{}, outer...), hole...)
	mp := geom.NewMultiPolygon(geom.XY)
	require.NoError(t, mp.Push(geom.NewPolygonFlat(geom.XY, rings, []int{len(outer), len(rings)})))

	m := Rasterize(testGrid, mp)
	assert.Equal(t, 96, m.Count())
	assert.False(t, m.Bits[testGrid.Index(raster.Cell{Row: 4, Col: 4})])
	assert.True(t, m.Bits[testGrid.Index(raster.Cell{Row: 3, Col: 3})])
	assert.InDelta(t, 1000000-40000, mp.Area(), 1e-6)
}

func TestReadShapefileAssignsHolesToOuterRing(t *testing.T) {
	hole := []shp.Point{{X: 400, Y: 400}, {X: 600, Y: 400}, {X: 600, Y: 600}, {X: 400, Y: 600}, {X: 400, Y: 400}}
	path := writeShapefile(t,
		[]string{"1W05082019"},
		[][][]shp.Point{{square(0, 0, 1000, 1000), hole, square(2000, 2000, 2100, 2100)}})

	features, err := ReadShapefile(path, "NAME", 0)
	require.NoError(t, err)
	require.Len(t, features, 1)

	mp := features[0].Geometry
	require.Equal(t, 2, mp.NumPolygons())
	assert.Equal(t, 2, mp.Polygon(0).NumLinearRings())
	assert.Equal(t, 1, mp.Polygon(1).NumLinearRings())
	assert.InDelta(t, 1000000-40000+10000, mp.Area(), 1e-6)

	m := Rasterize(testGrid, mp)
	assert.Equal(t, 96, m.Count())
	assert.False(t, m.Bits[testGrid.Index(raster.Cell{Row: 5, Col: 5})])
}

func TestRasterizeOutsideGrid(t *testing.T) {
	mp := geom.NewMultiPolygon(geom.XY)
	pts := flat(square(5000, 5000, 6000, 6000))
	require.NoError(t, mp.Push(geom.NewPolygonFlat(geom.XY, pts, []int{len(pts)})))
	assert.True(t, Rasterize(testGrid, mp).Empty())
	assert.True(t, Rasterize(testGrid, nil).Empty())
}

func TestReadGridCSV(t *testing.T) {
	g := raster.Grid{OriginX: 0, OriginY: 300, CellSize: 100, Width: 3, Height: 3}
	in := "# truth\n1,0,1\n0,,1\nnan,1,0\n"

	m, err := ReadGridCSV(context.Background(), strings.NewReader(in), g, 1)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, true, false, false, true, false, true, false}, m.Bits)
}

func TestReadGridCSVShape(t *testing.T) {
	g := raster.Grid{OriginX: 0, OriginY: 200, CellSize: 100, Width: 2, Height: 2}
	tests := []struct {
		name string
		in   string
	}{
		{"short row", "1,0\n1\n"},
		{"too many rows", "1,0\n0,1\n1,1\n"},
		{"too few rows", "1,0\n"},
		{"not numeric", "1,x\n0,1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadGridCSV(context.Background(), strings.NewReader(tt.in), g, 1)
			require.Error(t, err)
		})
	}
}

func TestPrepareFiltersSmallRegions(t *testing.T) {
	m := raster.NewMask(testGrid)
	// 3x3 block = 90,000 m2
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			m.Bits[testGrid.Index(raster.Cell{Row: r, Col: c})] = true
		}
	}
	// 4x4 block = 160,000 m2
	for r := 5; r < 9; r++ {
		for c := 5; c < 9; c++ {
			m.Bits[testGrid.Index(raster.Cell{Row: r, Col: c})] = true
		}
	}

	tr, err := Prepare(m, 100000)
	require.NoError(t, err)
	assert.Equal(t, 1, tr.Regions.Len())
	assert.InDelta(t, 160000, tr.Regions.TotalArea(), 1e-6)
	assert.Equal(t, 16, tr.Mask.Count())
	assert.False(t, tr.Mask.Bits[0])

	tr, err = Prepare(m, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, tr.Regions.Len())
	assert.True(t, tr.Mask.Empty())
}

func TestLoadShapefile(t *testing.T) {
	path := writeShapefile(t, []string{"1W05082019"}, [][][]shp.Point{{square(200, 300, 700, 800)}})

	tr, err := Load(context.Background(), fetcher.NewResolver(), testGrid, Options{Path: path, MinAreaSqm: 200000, NameField: "NAME"})
	require.NoError(t, err)
	assert.Equal(t, 25, tr.Mask.Count())
	assert.Equal(t, 1, tr.Regions.Len())
	require.Len(t, tr.Features, 1)

	polys := Polygons(testGrid, tr.Features)
	require.Len(t, polys, 1)
	assert.Equal(t, "1W05082019", polys[0].Name)
	assert.InDelta(t, 250000, polys[0].AreaM2, 1e-6)
	assert.Equal(t, 25, polys[0].Mask.Count())
}

func TestLoadCSVGrid(t *testing.T) {
	g := raster.Grid{OriginX: 0, OriginY: 200, CellSize: 100, Width: 2, Height: 2}
	path := filepath.Join(t.TempDir(), "truth.csv")
	require.NoError(t, os.WriteFile(path, []byte("2,2\n0,2\n"), 0o600))

	tr, err := Load(context.Background(), fetcher.NewResolver(), g, Options{Path: path, Value: 2, MinAreaSqm: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, tr.Mask.Count())
	assert.Empty(t, tr.Features)
}

func TestLoadUnsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "truth.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	_, err := Load(context.Background(), fetcher.NewResolver(), testGrid, Options{Path: path})
	require.Error(t, err)

	_, err = Load(context.Background(), fetcher.NewResolver(), testGrid, Options{})
	require.Error(t, err)
}
