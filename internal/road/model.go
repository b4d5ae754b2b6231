// Package road derives per-segment geometric features and reduces segments
// into one record per named road.
package road

import (
	"strings"

	"github.com/twpayne/go-geom"

	"github.com/sells-group/roadfeat/internal/proj"
)

// Class is an OSM highway class accepted by the pipeline.
type Class string

// Accepted highway classes.
const (
	Primary     Class = "primary"
	Secondary   Class = "secondary"
	Tertiary    Class = "tertiary"
	Residential Class = "residential"
	Trunk       Class = "trunk"
)

// fallbackMaxSpeed applies to any class without an entry in defaultMaxSpeed.
const fallbackMaxSpeed = 30

var defaultMaxSpeed = map[Class]int{
	Primary:     80,
	Secondary:   60,
	Tertiary:    40,
	Residential: 30,
	Trunk:       90,
}

// Classes lists the accepted classes in a stable order.
func Classes() []Class {
	return []Class{Primary, Secondary, Tertiary, Residential, Trunk}
}

// ParseClass reports whether s names an accepted class.
func ParseClass(s string) (Class, bool) {
	c := Class(strings.ToLower(strings.TrimSpace(s)))
	_, ok := defaultMaxSpeed[c]
	return c, ok
}

// DefaultMaxSpeed returns the speed limit assumed when a segment carries none.
func (c Class) DefaultMaxSpeed() int {
	if v, ok := defaultMaxSpeed[c]; ok {
		return v
	}
	return fallbackMaxSpeed
}

// Flags are the presence-based boolean tags of a segment.
type Flags struct {
	Bridge   bool `json:"bridge"`
	Tunnel   bool `json:"tunnel"`
	Lit      bool `json:"lit"`
	Sidewalk bool `json:"sidewalk"`
	Oneway   bool `json:"oneway"`
	Cycleway bool `json:"cycleway"`
}

// FlagsFromTags sets each flag when its tag key is present, whatever its value.
func FlagsFromTags(tags map[string]string) Flags {
	has := func(k string) bool {
		_, ok := tags[k]
		return ok
	}
	return Flags{
		Bridge:   has("bridge"),
		Tunnel:   has("tunnel"),
		Lit:      has("lit"),
		Sidewalk: has("sidewalk"),
		Oneway:   has("oneway"),
		Cycleway: has("cycleway"),
	}
}

// Or combines two flag sets with logical OR.
func (f Flags) Or(o Flags) Flags {
	return Flags{
		Bridge:   f.Bridge || o.Bridge,
		Tunnel:   f.Tunnel || o.Tunnel,
		Lit:      f.Lit || o.Lit,
		Sidewalk: f.Sidewalk || o.Sidewalk,
		Oneway:   f.Oneway || o.Oneway,
		Cycleway: f.Cycleway || o.Cycleway,
	}
}

// Segment is one raw polyline and the features derived from it. Sources emit
// Line in geographic coordinates; the pipeline projects it before extraction.
type Segment struct {
	City     string `json:"city"`
	SourceID int64  `json:"osm_id"`
	Name     string `json:"name,omitempty"`
	Class    Class  `json:"highway"`
	Lanes    string `json:"lanes,omitempty"`
	MaxSpeed string `json:"maxspeed,omitempty"`
	Surface  string `json:"surface,omitempty"`
	Flags

	Line *geom.LineString `json:"-"`

	Length    float64  `json:"segment_length"`
	Curvature float64  `json:"mean_curvature"`
	Width     float64  `json:"segment_width"`
	Slope     *float64 `json:"mean_slope,omitempty"`
}

// FromTags builds a segment from an OSM way's tags and lon/lat coordinates.
// ok is false when the highway class is not accepted.
func FromTags(city string, id int64, tags map[string]string, coords []geom.Coord) (Segment, bool) {
	class, ok := ParseClass(tags["highway"])
	if !ok {
		return Segment{}, false
	}
	return Segment{
		City:     city,
		SourceID: id,
		Name:     strings.TrimSpace(tags["name"]),
		Class:    class,
		Lanes:    strings.TrimSpace(tags["lanes"]),
		MaxSpeed: strings.TrimSpace(tags["maxspeed"]),
		Surface:  strings.TrimSpace(tags["surface"]),
		Flags:    FlagsFromTags(tags),
		Line:     NewLine(coords),
	}, true
}

// NewLine builds an XY line string from coordinate pairs.
func NewLine(coords []geom.Coord) *geom.LineString {
	flat := make([]float64, 0, len(coords)*2)
	for _, c := range coords {
		flat = append(flat, c[0], c[1])
	}
	return geom.NewLineStringFlat(geom.XY, flat)
}

// ProjectLine maps every vertex of line through fn.
func ProjectLine(line *geom.LineString, fn proj.Func) *geom.LineString {
	if line == nil {
		return nil
	}
	stride := line.Stride()
	in := line.FlatCoords()
	out := make([]float64, 0, len(in)/stride*2)
	for i := 0; i+1 < len(in); i += stride {
		x, y := fn(in[i], in[i+1])
		out = append(out, x, y)
	}
	return geom.NewLineStringFlat(geom.XY, out)
}
