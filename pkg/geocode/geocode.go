// Package geocode resolves city names to bounding boxes via Nominatim, with an
// optional persistent cache.
package geocode

import (
	"context"
	"fmt"
	"strings"
)

// BBox is a WGS84 bounding box in degrees.
type BBox struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

// Valid reports whether the box has positive extent in both axes.
func (b BBox) Valid() bool {
	return b.West < b.East && b.South < b.North &&
		b.South >= -90 && b.North <= 90 && b.West >= -180 && b.East <= 180
}

// Center returns the box centre as lon, lat.
func (b BBox) Center() (float64, float64) {
	return (b.West + b.East) / 2, (b.South + b.North) / 2
}

// String formats the box as west,south,east,north.
func (b BBox) String() string {
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", b.West, b.South, b.East, b.North)
}

// Resolver looks up the bounding box of a place.
type Resolver interface {
	// Resolve returns nil with no error when the place is unknown.
	Resolve(ctx context.Context, query string) (*BBox, error)
}

// NormalizeQuery lowercases a query and collapses its whitespace, so equal
// places share one cache entry.
func NormalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}
