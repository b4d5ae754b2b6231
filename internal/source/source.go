// Package source fetches raw road segments for a city, in WGS84 lon/lat.
package source

import (
	"context"

	"github.com/sells-group/roadfeat/internal/road"
	"github.com/sells-group/roadfeat/pkg/geocode"
)

// Source yields the road segments of one city inside box. Coordinates are
// lon/lat; only accepted highway classes are returned.
type Source interface {
	Segments(ctx context.Context, city string, box geocode.BBox) ([]road.Segment, error)
}
