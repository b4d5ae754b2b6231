// Package export writes road aggregates as CSV, XLSX or ESRI Shapefile tables
// and reads generic header-keyed tables back for joins.
package export

import (
	"strconv"

	"github.com/sells-group/roadfeat/internal/road"
)

// Columns are the output columns, in order.
var Columns = []string{
	"city",
	"osm_id",
	"name",
	"highway",
	"lanes",
	"maxspeed",
	"surface",
	"bridge",
	"tunnel",
	"lit",
	"sidewalk",
	"oneway",
	"cycleway",
	"segment_length",
	"segment_width",
	"mean_curvature",
}

// SlopeColumn is appended when Options.IncludeSlope is set.
const SlopeColumn = "mean_slope"

// Options controls the output schema.
type Options struct {
	IncludeSlope bool
}

// Header returns the column names for opts.
func Header(opts Options) []string {
	h := append([]string(nil), Columns...)
	if opts.IncludeSlope {
		h = append(h, SlopeColumn)
	}
	return h
}

// Row renders one aggregate in Header order. Unknown slope is empty.
func Row(a road.Aggregate, opts Options) []string {
	row := []string{
		a.City,
		strconv.FormatInt(a.SourceID, 10),
		a.Name,
		string(a.Class),
		a.Lanes,
		a.MaxSpeed,
		a.Surface,
		flag(a.Bridge),
		flag(a.Tunnel),
		flag(a.Lit),
		flag(a.Sidewalk),
		flag(a.Oneway),
		flag(a.Cycleway),
		formatFloat(a.Length),
		formatFloat(a.Width),
		formatFloat(a.Curvature),
	}
	if opts.IncludeSlope {
		s := ""
		if a.Slope != nil {
			s = formatFloat(*a.Slope)
		}
		row = append(row, s)
	}
	return row
}

// ToTable renders aggregates as a table.
func ToTable(aggs []road.Aggregate, opts Options) *Table {
	t := &Table{Header: Header(opts), Rows: make([][]string, 0, len(aggs))}
	for _, a := range aggs {
		t.Rows = append(t.Rows, Row(a, opts))
	}
	return t
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
