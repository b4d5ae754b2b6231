package export

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"

	"github.com/sells-group/roadfeat/internal/road"
)

// dbfNames maps output columns to DBF field names, which are limited to ten
// characters.
var dbfNames = map[string]string{
	"segment_length": "seg_length",
	"segment_width":  "seg_width",
	"mean_curvature": "mean_curv",
}

func dbfName(col string) string {
	if n, ok := dbfNames[col]; ok {
		return n
	}
	return col
}

func dbfField(col string) shp.Field {
	switch col {
	case "osm_id":
		return shp.NumberField(dbfName(col), 18)
	case "segment_length", "segment_width", "mean_curvature", SlopeColumn:
		return shp.FloatField(dbfName(col), 24, 10)
	case "bridge", "tunnel", "lit", "sidewalk", "oneway", "cycleway":
		return shp.NumberField(dbfName(col), 1)
	case "name":
		return shp.StringField(dbfName(col), 254)
	default:
		return shp.StringField(dbfName(col), 64)
	}
}

// writeShapefile writes aggregates as a polyline shapefile, one multi-part
// record per aggregate. Coordinates are in the aggregate's CRS.
func writeShapefile(path string, aggs []road.Aggregate, opts Options) error {
	w, err := shp.Create(path, shp.POLYLINE)
	if err != nil {
		return eris.Wrapf(err, "shapefile: create %s", path)
	}
	err = writeRecords(w, aggs, opts)
	w.Close()
	if err != nil {
		return err
	}
	return fixDBFName(path)
}

func writeRecords(w *shp.Writer, aggs []road.Aggregate, opts Options) error {
	header := Header(opts)
	fields := make([]shp.Field, len(header))
	for i, col := range header {
		fields[i] = dbfField(col)
	}
	if err := w.SetFields(fields); err != nil {
		return eris.Wrap(err, "shapefile: set fields")
	}

	for _, a := range aggs {
		row := int(w.Write(polyLine(a)))
		for i, v := range Row(a, opts) {
			if err := w.WriteAttribute(row, i, v); err != nil {
				return eris.Wrapf(err, "shapefile: write %s", header[i])
			}
		}
	}
	return nil
}

// fixDBFName moves the attribute table next to the .shp. go-shp strips the
// extension from the create path and appends "dbf" without a dot.
func fixDBFName(path string) error {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	if err := os.Rename(base+"dbf", base+".dbf"); err != nil {
		return eris.Wrapf(err, "shapefile: rename %sdbf", base)
	}
	return nil
}

// polyLine converts an aggregate's lines to one shapefile record. Lines with
// fewer than two vertices are dropped; an aggregate with none left becomes a
// null shape.
func polyLine(a road.Aggregate) shp.Shape {
	mls := a.MultiLine()
	if mls == nil || mls.NumLineStrings() == 0 {
		return &shp.Null{}
	}
	parts := make([][]shp.Point, 0, mls.NumLineStrings())
	for i := 0; i < mls.NumLineStrings(); i++ {
		ls := mls.LineString(i)
		pts := make([]shp.Point, ls.NumCoords())
		for j := range pts {
			c := ls.Coord(j)
			pts[j] = shp.Point{X: c[0], Y: c[1]}
		}
		parts = append(parts, pts)
	}
	return shp.NewPolyLine(parts)
}
