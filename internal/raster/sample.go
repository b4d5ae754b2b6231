package raster

import (
	"fmt"
	"math"

	"go.uber.org/zap"
)

// minSampleCells is the smallest window side that yields a usable gradient.
const minSampleCells = 3

// Region is a planar footprint in the grid's coordinate system.
type Region interface {
	Bounds() (minX, minY, maxX, maxY float64)
	Contains(x, y float64) bool
}

// SampleSlope returns the mean slope, in degrees, of the cells of g whose
// centres fall inside region. ok is false when the region's window is smaller
// than 3x3 cells, no cell centre lies inside the region, or every covered cell
// is missing. Failures inside the sampler are reported the same way and never
// propagate to the caller.
func SampleSlope(region Region, g *Grid) (mean float64, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Debug("raster: slope sample failed", zap.String("panic", fmt.Sprint(r)))
			mean, ok = 0, false
		}
	}()

	minX, minY, maxX, maxY := region.Bounds()
	for _, v := range [4]float64{minX, minY, maxX, maxY} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
	}

	w := g.WindowFor(minX, minY, maxX, maxY)
	if w.Rows() < minSampleCells || w.Cols() < minSampleCells {
		return 0, false
	}

	local := g.Sub(w)
	slope := Slope(local)
	mask := Mask(region, local)

	var sum float64
	var n int
	for i, v := range slope.Data {
		if !mask[i] || math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// Mask rasterizes region over g: true where the cell centre lies inside.
func Mask(region Region, g *Grid) []bool {
	mask := make([]bool, g.Rows*g.Cols)
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			x, y := g.Transform.Forward(float64(c)+0.5, float64(r)+0.5)
			mask[r*g.Cols+c] = region.Contains(x, y)
		}
	}
	return mask
}
