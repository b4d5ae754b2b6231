package store

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/roadfeat/internal/road"
)

// aggregateColumns is the road_aggregates column order used by both drivers.
var aggregateColumns = []string{
	"run_id", "city", "osm_id", "name", "highway", "lanes", "maxspeed", "surface",
	"bridge", "tunnel", "lit", "sidewalk", "oneway", "cycleway",
	"segment_length", "segment_width", "mean_curvature", "mean_slope",
	"segments", "geom",
}

// aggregateRow returns the values for one aggregate in aggregateColumns order.
func aggregateRow(runID string, a *road.Aggregate, srid int) ([]any, error) {
	g, err := encodeGeometry(a, srid)
	if err != nil {
		return nil, eris.Wrapf(err, "store: aggregate %s/%s", a.City, a.Name)
	}
	var slope any
	if a.Slope != nil {
		slope = *a.Slope
	}
	return []any{
		runID, a.City, a.SourceID, a.Name, string(a.Class), a.Lanes, a.MaxSpeed, a.Surface,
		a.Bridge, a.Tunnel, a.Lit, a.Sidewalk, a.Oneway, a.Cycleway,
		a.Length, a.Width, a.Curvature, slope,
		a.Segments, g,
	}, nil
}

// encodeGeometry returns the aggregate's lines as an EWKB MultiLineString
// with srid, or nil when it has no usable line.
func encodeGeometry(a *road.Aggregate, srid int) ([]byte, error) {
	mls := a.MultiLine()
	if mls == nil || mls.NumLineStrings() == 0 {
		return nil, nil
	}
	data, err := ewkb.Marshal(mls.SetSRID(srid), ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "store: encode EWKB")
	}
	return data, nil
}
