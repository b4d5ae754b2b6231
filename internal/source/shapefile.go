package source

import (
	"context"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/roadfeat/internal/road"
	"github.com/sells-group/roadfeat/pkg/geocode"
)

// tagFields are the DBF columns copied into the tag map as is.
var tagFields = []string{"highway", "name", "lanes", "maxspeed", "surface"}

// flagFields are DBF columns holding 0/1 style values.
var flagFields = []string{"bridge", "tunnel", "lit", "sidewalk", "oneway", "cycleway"}

// Shapefile reads road segments from a lon/lat polyline shapefile. Rows whose
// city column is present and differs from the requested city are skipped, as
// are lines entirely outside the box.
type Shapefile struct {
	Path string
}

// Segments implements Source.
func (s *Shapefile) Segments(ctx context.Context, city string, box geocode.BBox) ([]road.Segment, error) {
	reader, err := shp.Open(s.Path)
	if err != nil {
		return nil, eris.Wrapf(err, "shapefile: open %s", s.Path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	idx := make(map[string]int, len(fields))
	for i, f := range fields {
		idx[strings.ToLower(strings.TrimRight(f.String(), "\x00"))] = i
	}
	attr := func(name string) string {
		i, ok := idx[name]
		if !ok {
			return ""
		}
		return strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
	}

	var segs []road.Segment
	var skipped int
	for reader.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, shape := reader.Shape()
		pl, ok := shape.(*shp.PolyLine)
		if !ok || pl == nil {
			skipped++
			continue
		}
		if c := attr("city"); c != "" && !strings.EqualFold(c, city) {
			continue
		}
		if !overlaps(pl.BBox(), box) {
			continue
		}

		tags := make(map[string]string, len(tagFields)+len(flagFields))
		for _, f := range tagFields {
			if v := attr(f); v != "" {
				tags[f] = v
			}
		}
		for _, f := range flagFields {
			if truthy(attr(f)) {
				tags[f] = "yes"
			}
		}
		id, err := strconv.ParseInt(attr("osm_id"), 10, 64)
		if err != nil {
			id = int64(row)
		}

		for _, part := range polyLineParts(pl) {
			if seg, ok := road.FromTags(city, id, tags, part); ok {
				segs = append(segs, seg)
			}
		}
	}

	if skipped > 0 {
		zap.L().Debug("shapefile: skipped non-polyline records", zap.Int("skipped", skipped))
	}
	zap.L().Info("shapefile: segments read",
		zap.String("city", city),
		zap.String("path", s.Path),
		zap.Int("segments", len(segs)),
	)
	return segs, nil
}

// polyLineParts splits a polyline into the coordinates of each part.
func polyLineParts(pl *shp.PolyLine) [][]geom.Coord {
	parts := make([][]geom.Coord, 0, pl.NumParts)
	for i := int32(0); i < pl.NumParts; i++ {
		start := pl.Parts[i]
		end := int32(len(pl.Points))
		if i+1 < pl.NumParts {
			end = pl.Parts[i+1]
		}
		coords := make([]geom.Coord, 0, end-start)
		for j := start; j < end; j++ {
			coords = append(coords, geom.Coord{pl.Points[j].X, pl.Points[j].Y})
		}
		parts = append(parts, coords)
	}
	return parts
}

func overlaps(b shp.Box, box geocode.BBox) bool {
	return b.MinX <= box.East && b.MaxX >= box.West && b.MinY <= box.North && b.MaxY >= box.South
}

func truthy(v string) bool {
	switch strings.ToLower(v) {
	case "", "0", "no", "false", "f", "n":
		return false
	}
	return true
}
