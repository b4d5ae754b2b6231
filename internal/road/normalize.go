package road

import (
	"strconv"
)

// Fill-in values used when no segment in the run supplies one.
const (
	FallbackSurface = "asphalt"
	DefaultLanes    = "2"
)

// NormalizeStats counts the attributes filled by Normalize.
type NormalizeStats struct {
	Surface  int    `json:"surface"`
	Lanes    int    `json:"lanes"`
	MaxSpeed int    `json:"maxspeed"`
	Mode     string `json:"surface_mode"`
}

// Normalize fills missing surface, lane count and speed limit in place.
// Surface gets the run-wide most frequent value, ties going to the
// lexicographically smallest. Lanes default to 2 and speed limits to the
// class default. Running it again on its own output changes nothing.
func Normalize(segs []Segment) NormalizeStats {
	stats := NormalizeStats{Mode: SurfaceMode(segs)}
	for i := range segs {
		s := &segs[i]
		if s.Surface == "" {
			s.Surface = stats.Mode
			stats.Surface++
		}
		if s.Lanes == "" {
			s.Lanes = DefaultLanes
			stats.Lanes++
		}
		if s.MaxSpeed == "" {
			s.MaxSpeed = strconv.Itoa(s.Class.DefaultMaxSpeed())
			stats.MaxSpeed++
		}
	}
	return stats
}

// SurfaceMode returns the most frequent non-empty surface, or FallbackSurface.
func SurfaceMode(segs []Segment) string {
	counts := make(map[string]int)
	for _, s := range segs {
		if s.Surface != "" {
			counts[s.Surface]++
		}
	}
	mode, best := FallbackSurface, 0
	for v, n := range counts {
		if n > best || (n == best && v < mode) {
			mode, best = v, n
		}
	}
	return mode
}
