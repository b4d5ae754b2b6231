package road

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/roadfeat/internal/raster"
)

// Extractor computes length, curvature, width and slope for projected segments.
type Extractor struct {
	// Radius is the buffer radius in metres. Zero means DefaultBufferRadius.
	Radius float64
	// Concurrency bounds the worker count. Zero means runtime.NumCPU.
	Concurrency int
	// Grid is the projected elevation model. Nil skips slope sampling.
	Grid *raster.Grid
}

// ExtractStats summarises one extraction pass.
type ExtractStats struct {
	Segments     int `json:"segments"`
	SlopeKnown   int `json:"slope_known"`
	SlopeUnknown int `json:"slope_unknown"`
	Recovered    int `json:"recovered"`
}

// Extract fills the derived fields of every segment in place. Each worker
// touches only its own element. A failure on one segment leaves that segment
// with zero geometry features and unknown slope.
func (e *Extractor) Extract(ctx context.Context, segs []Segment) (ExtractStats, error) {
	radius := e.Radius
	if radius <= 0 {
		radius = DefaultBufferRadius
	}
	limit := e.Concurrency
	if limit <= 0 {
		limit = runtime.NumCPU()
	}

	var known, unknown, recovered atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := range segs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if !e.extractOne(&segs[i], radius) {
				recovered.Add(1)
			}
			if segs[i].Slope != nil {
				known.Add(1)
			} else {
				unknown.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ExtractStats{}, eris.Wrap(err, "road: extract")
	}

	stats := ExtractStats{
		Segments:     len(segs),
		SlopeKnown:   int(known.Load()),
		SlopeUnknown: int(unknown.Load()),
		Recovered:    int(recovered.Load()),
	}
	zap.L().Info("road: features extracted",
		zap.Int("segments", stats.Segments),
		zap.Int("slope_known", stats.SlopeKnown),
		zap.Int("slope_unknown", stats.SlopeUnknown),
		zap.Int("recovered", stats.Recovered),
	)
	return stats, nil
}

// extractOne returns false when it had to recover from a panic.
func (e *Extractor) extractOne(s *Segment, radius float64) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Warn("road: segment extraction failed",
				zap.String("city", s.City),
				zap.Int64("osm_id", s.SourceID),
				zap.String("panic", fmt.Sprint(r)),
			)
			s.Length, s.Curvature, s.Width, s.Slope = 0, 0, 0, nil
			ok = false
		}
	}()

	s.Slope = nil
	if s.Line == nil {
		s.Length, s.Curvature, s.Width = 0, 0, 0
		return true
	}
	s.Length = s.Line.Length()
	s.Curvature = Curvature(s.Line.Coords())
	buf := NewBuffer(s.Line, radius)
	if s.Length > 0 {
		s.Width = buf.Area() / s.Length
	} else {
		s.Width = 0
	}

	if e.Grid != nil {
		if v, known := raster.SampleSlope(buf, e.Grid); known && !math.IsNaN(v) {
			s.Slope = &v
		}
	}
	return true
}
