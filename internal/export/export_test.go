package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/roadfeat/internal/road"
)

func sampleAggregates() []road.Aggregate {
	slope := 2.5
	return []road.Aggregate{
		{
			City: "Naga", Name: "Magsaysay Avenue", SourceID: 20, Class: road.Primary,
			Lanes: "4", MaxSpeed: "60", Surface: "asphalt",
			Flags:  road.Flags{Bridge: true, Oneway: true},
			Length: 150, Width: 20.5, Curvature: 0.0125, Slope: &slope, Segments: 2,
			Lines: []*geom.LineString{
				geom.NewLineStringFlat(geom.XY, []float64{0, 0, 100, 0}),
				geom.NewLineStringFlat(geom.XY, []float64{100, 0, 150, 10, 160, 30}),
			},
		},
		{
			City: "Naga", Name: "Elias Angeles Street", SourceID: 10, Class: road.Residential,
			Lanes: "2", MaxSpeed: "30", Surface: "concrete",
			Length: 80, Width: 19, Curvature: 0.002, Segments: 1,
			Lines: []*geom.LineString{geom.NewLineStringFlat(geom.XY, []float64{5, 5, 50, 60})},
		},
	}
}

func TestHeader(t *testing.T) {
	assert.Len(t, Header(Options{}), 16)
	assert.Equal(t, "mean_curvature", Header(Options{})[15])

	h := Header(Options{IncludeSlope: true})
	assert.Len(t, h, 17)
	assert.Equal(t, SlopeColumn, h[16])
	assert.Len(t, Columns, 16, "Header must not alias Columns")
}

func TestRow(t *testing.T) {
	aggs := sampleAggregates()
	row := Row(aggs[0], Options{IncludeSlope: true})
	assert.Equal(t, []string{
		"Naga", "20", "Magsaysay Avenue", "primary", "4", "60", "asphalt",
		"1", "0", "0", "0", "1", "0", "150", "20.5", "0.0125", "2.5",
	}, row)

	row = Row(aggs[1], Options{IncludeSlope: true})
	assert.Equal(t, "", row[16], "unknown slope is empty")
	assert.Len(t, Row(aggs[1], Options{}), 16)
}

func TestWrite_CSVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "roads.csv")
	require.NoError(t, Write(path, sampleAggregates(), Options{}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Join(Columns, ","), lines[0])

	tbl, err := ReadTable(path)
	require.NoError(t, err)
	assert.Equal(t, Columns, tbl.Header)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, "Elias Angeles Street", tbl.Get(1, "name"))
	assert.Equal(t, "1", tbl.Get(0, "bridge"))
}

func TestWrite_EmptyStillHasHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, Write(path, nil, Options{IncludeSlope: true}))

	tbl, err := ReadTable(path)
	require.NoError(t, err)
	assert.Equal(t, Header(Options{IncludeSlope: true}), tbl.Header)
	assert.Empty(t, tbl.Rows)
}

func TestWrite_XLSXRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roads.xlsx")
	require.NoError(t, Write(path, sampleAggregates(), Options{IncludeSlope: true}))

	tbl, err := ReadTable(path)
	require.NoError(t, err)
	assert.Equal(t, Header(Options{IncludeSlope: true}), tbl.Header)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, "2.5", tbl.Get(0, "mean_slope"))
	assert.Equal(t, "residential", tbl.Get(1, "highway"))
}

func TestWrite_Shapefile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roads.shp")
	require.NoError(t, Write(path, sampleAggregates(), Options{IncludeSlope: true}))

	dir := filepath.Dir(path)
	assert.FileExists(t, filepath.Join(dir, "roads.dbf"))
	assert.NoFileExists(t, filepath.Join(dir, "roadsdbf"))

	r, err := shp.Open(path)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	var names []string
	for _, f := range r.Fields() {
		name := strings.TrimRight(f.String(), "\x00")
		assert.LessOrEqual(t, len(name), 10)
		names = append(names, name)
	}
	assert.Contains(t, names, "seg_length")
	assert.Contains(t, names, "mean_curv")
	assert.Contains(t, names, "mean_slope")

	require.True(t, r.Next())
	_, shape := r.Shape()
	pl, ok := shape.(*shp.PolyLine)
	require.True(t, ok)
	assert.Equal(t, int32(2), pl.NumParts)
	assert.Len(t, pl.Points, 5)
	assert.Equal(t, "Magsaysay Avenue", strings.TrimSpace(r.Attribute(2)))

	require.True(t, r.Next())
	assert.False(t, r.Next())
}

func TestWrite_UnsupportedFormat(t *testing.T) {
	err := Write(filepath.Join(t.TempDir(), "roads.parquet"), nil, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}

func TestReadTable_CSVWithBOMAndRaggedRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crashes.csv")
	require.NoError(t, os.WriteFile(path, []byte("\ufeffcity,city_total_crashes\nNaga,12\nCebu\n"), 0o644))

	tbl, err := ReadTable(path)
	require.NoError(t, err)
	assert.Equal(t, 0, tbl.Index("CITY"))
	assert.Equal(t, "12", tbl.Get(0, "city_total_crashes"))
	assert.Equal(t, "", tbl.Get(1, "city_total_crashes"))
	assert.Equal(t, "", tbl.Get(5, "city"))
	assert.Equal(t, -1, tbl.Index("missing"))
}

func TestReadTable_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := ReadTable(filepath.Join(dir, "x.json"))
	assert.Error(t, err)

	_, err = ReadTable(filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.csv")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = ReadTable(empty)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is empty")
}

func TestTable_SetColumn(t *testing.T) {
	tbl := &Table{Header: []string{"city"}, Rows: [][]string{{"Naga"}, {"Cebu"}}}

	require.NoError(t, tbl.SetColumn("is_urban", []string{"1", "0"}))
	assert.Equal(t, []string{"city", "is_urban"}, tbl.Header)
	assert.Equal(t, "0", tbl.Get(1, "is_urban"))

	require.NoError(t, tbl.SetColumn("IS_URBAN", []string{"0", "1"}))
	assert.Len(t, tbl.Header, 2, "existing column is replaced")
	assert.Equal(t, "0", tbl.Get(0, "is_urban"))

	assert.Error(t, tbl.SetColumn("x", []string{"1"}))
}
