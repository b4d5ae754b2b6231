package road

import (
	"math"

	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// Aggregate is one named road within a city.
type Aggregate struct {
	City     string `json:"city"`
	Name     string `json:"name"`
	SourceID int64  `json:"osm_id"`
	Class    Class  `json:"highway"`
	Lanes    string `json:"lanes"`
	MaxSpeed string `json:"maxspeed"`
	Surface  string `json:"surface"`
	Flags

	Length    float64  `json:"segment_length"`
	Width     float64  `json:"segment_width"`
	Curvature float64  `json:"mean_curvature"`
	Slope     *float64 `json:"mean_slope,omitempty"`
	Segments  int      `json:"segments"`

	Lines []*geom.LineString `json:"-"`
}

// ReduceStats counts the segments and groups Reduce discarded.
type ReduceStats struct {
	Unnamed    int `json:"unnamed"`
	Groups     int `json:"groups"`
	Degenerate int `json:"degenerate"`
}

type groupKey struct{ city, name string }

type accumulator struct {
	agg        *Aggregate
	widthSum   float64
	curvSum    float64
	slopeSum   float64
	slopeCount int
}

// Reduce groups named segments by (city, name) in first-seen order.
// Categorical attributes come from the first member, flags are OR-ed,
// lengths summed, and width, curvature and known slopes averaged. Groups whose
// mean curvature is zero or NaN are dropped.
func Reduce(segs []Segment) ([]Aggregate, ReduceStats) {
	var stats ReduceStats
	index := make(map[groupKey]int)
	var accs []*accumulator

	for i := range segs {
		s := &segs[i]
		if s.Name == "" {
			stats.Unnamed++
			continue
		}
		k := groupKey{s.City, s.Name}
		pos, ok := index[k]
		if !ok {
			pos = len(accs)
			index[k] = pos
			accs = append(accs, &accumulator{agg: &Aggregate{
				City:     s.City,
				Name:     s.Name,
				SourceID: s.SourceID,
				Class:    s.Class,
				Lanes:    s.Lanes,
				MaxSpeed: s.MaxSpeed,
				Surface:  s.Surface,
			}})
		}
		a := accs[pos]
		a.agg.Flags = a.agg.Flags.Or(s.Flags)
		a.agg.Length += s.Length
		a.agg.Segments++
		a.widthSum += s.Width
		a.curvSum += s.Curvature
		if s.Slope != nil && !math.IsNaN(*s.Slope) {
			a.slopeSum += *s.Slope
			a.slopeCount++
		}
		if s.Line != nil {
			a.agg.Lines = append(a.agg.Lines, s.Line)
		}
	}
	stats.Groups = len(accs)

	out := make([]Aggregate, 0, len(accs))
	for _, a := range accs {
		n := float64(a.agg.Segments)
		a.agg.Width = a.widthSum / n
		a.agg.Curvature = a.curvSum / n
		if a.slopeCount > 0 {
			v := a.slopeSum / float64(a.slopeCount)
			a.agg.Slope = &v
		}
		if a.agg.Curvature == 0 || math.IsNaN(a.agg.Curvature) {
			stats.Degenerate++
			continue
		}
		out = append(out, *a.agg)
	}

	zap.L().Info("road: segments aggregated",
		zap.Int("segments", len(segs)),
		zap.Int("unnamed", stats.Unnamed),
		zap.Int("groups", stats.Groups),
		zap.Int("dropped_degenerate", stats.Degenerate),
		zap.Int("kept", len(out)),
	)
	return out, stats
}

// MultiLine joins the member geometries into one multi-line string.
func (a *Aggregate) MultiLine() *geom.MultiLineString {
	mls := geom.NewMultiLineString(geom.XY)
	for i, l := range a.Lines {
		if l == nil || l.NumCoords() < 2 {
			continue
		}
		if err := mls.Push(l); err != nil {
			zap.L().Debug("road: skipping malformed line", zap.Int("part", i), zap.Error(err))
		}
	}
	return mls
}
