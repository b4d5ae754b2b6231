// Package raster loads, reprojects and samples digital elevation models.
package raster

import (
	"math"
)

// SRTMNoData is the "no data" sentinel written by SRTM-derived DEM products.
const SRTMNoData = -32768

// Transform is a north-up affine mapping from pixel (col, row) indices to
// coordinates. PixelHeight is negative when rows run southward.
type Transform struct {
	OriginX     float64 `json:"origin_x"`
	OriginY     float64 `json:"origin_y"`
	PixelWidth  float64 `json:"pixel_width"`
	PixelHeight float64 `json:"pixel_height"`
}

// Forward maps fractional pixel indices to coordinates.
func (t Transform) Forward(col, row float64) (x, y float64) {
	return t.OriginX + col*t.PixelWidth, t.OriginY + row*t.PixelHeight
}

// Inverse maps coordinates to fractional pixel indices.
func (t Transform) Inverse(x, y float64) (col, row float64) {
	return (x - t.OriginX) / t.PixelWidth, (y - t.OriginY) / t.PixelHeight
}

// Invertible reports whether both pixel sizes are finite and non-zero.
func (t Transform) Invertible() bool {
	return t.PixelWidth != 0 && t.PixelHeight != 0 &&
		!math.IsNaN(t.PixelWidth) && !math.IsNaN(t.PixelHeight) &&
		!math.IsInf(t.PixelWidth, 0) && !math.IsInf(t.PixelHeight, 0)
}

// Shift returns the transform of a sub-window whose top-left pixel is (col, row).
func (t Transform) Shift(col, row int) Transform {
	x, y := t.Forward(float64(col), float64(row))
	return Transform{OriginX: x, OriginY: y, PixelWidth: t.PixelWidth, PixelHeight: t.PixelHeight}
}

// Grid is an in-memory single-band elevation raster. Missing cells hold NaN.
type Grid struct {
	Rows      int
	Cols      int
	Data      []float64
	Transform Transform
	CRS       string
}

// NewGrid allocates a grid with every cell missing.
func NewGrid(rows, cols int, t Transform, crs string) *Grid {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = math.NaN()
	}
	return &Grid{Rows: rows, Cols: cols, Data: data, Transform: t, CRS: crs}
}

// At returns the value at row, col.
func (g *Grid) At(row, col int) float64 { return g.Data[row*g.Cols+col] }

// Set stores v at row, col.
func (g *Grid) Set(row, col int, v float64) { g.Data[row*g.Cols+col] = v }

// Bounds returns the outer pixel-edge extent of the grid.
func (g *Grid) Bounds() (minX, minY, maxX, maxY float64) {
	x0, y0 := g.Transform.Forward(0, 0)
	x1, y1 := g.Transform.Forward(float64(g.Cols), float64(g.Rows))
	return math.Min(x0, x1), math.Min(y0, y1), math.Max(x0, x1), math.Max(y0, y1)
}

// Center returns the coordinates of the grid centre.
func (g *Grid) Center() (x, y float64) {
	return g.Transform.Forward(float64(g.Cols)/2, float64(g.Rows)/2)
}

// FillNoData rewrites every cell equal to one of the sentinels to NaN and
// returns the number of cells rewritten.
func (g *Grid) FillNoData(sentinels ...float64) int {
	var n int
	for i, v := range g.Data {
		for _, s := range sentinels {
			if v == s {
				g.Data[i] = math.NaN()
				n++
				break
			}
		}
	}
	return n
}

// ValidCount returns the number of non-missing cells.
func (g *Grid) ValidCount() int {
	var n int
	for _, v := range g.Data {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}

// Window is a half-open block of pixel indices [Row0, Row1) x [Col0, Col1).
type Window struct {
	Row0, Row1 int
	Col0, Col1 int
}

// Rows returns the window height, zero when empty.
func (w Window) Rows() int { return max(w.Row1-w.Row0, 0) }

// Cols returns the window width, zero when empty.
func (w Window) Cols() int { return max(w.Col1-w.Col0, 0) }

// WindowFor returns the minimal pixel window covering the box, clipped to the grid.
func (g *Grid) WindowFor(minX, minY, maxX, maxY float64) Window {
	c0, r0 := g.Transform.Inverse(minX, maxY)
	c1, r1 := g.Transform.Inverse(maxX, minY)
	if c0 > c1 {
		c0, c1 = c1, c0
	}
	if r0 > r1 {
		r0, r1 = r1, r0
	}
	return Window{
		Row0: clampIndex(math.Floor(r0), g.Rows),
		Row1: clampIndex(math.Ceil(r1), g.Rows),
		Col0: clampIndex(math.Floor(c0), g.Cols),
		Col1: clampIndex(math.Ceil(c1), g.Cols),
	}
}

func clampIndex(v float64, limit int) int {
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	if v >= float64(limit) {
		return limit
	}
	return int(v)
}

// Sub copies the cells of w into a new grid carrying the local transform.
func (g *Grid) Sub(w Window) *Grid {
	rows, cols := w.Rows(), w.Cols()
	out := &Grid{
		Rows:      rows,
		Cols:      cols,
		Data:      make([]float64, rows*cols),
		Transform: g.Transform.Shift(w.Col0, w.Row0),
		CRS:       g.CRS,
	}
	for r := 0; r < rows; r++ {
		copy(out.Data[r*cols:(r+1)*cols], g.Data[(w.Row0+r)*g.Cols+w.Col0:(w.Row0+r)*g.Cols+w.Col1])
	}
	return out
}
