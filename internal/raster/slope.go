package raster

import "math"

// Slope returns a grid of slope angles in degrees, derived from the
// finite-difference elevation gradient of g. Interior cells use central
// differences, edge cells one-sided differences. Cells whose stencil touches a
// missing value are missing. Grids narrower than two cells in either direction
// have no defined gradient and come back all missing.
func Slope(g *Grid) *Grid {
	out := NewGrid(g.Rows, g.Cols, g.Transform, g.CRS)
	if g.Rows < 2 || g.Cols < 2 {
		return out
	}
	dzdx, dzdy := gradient(g)
	for i := range out.Data {
		out.Data[i] = math.Atan(math.Hypot(dzdx[i], dzdy[i])) * 180 / math.Pi
	}
	return out
}

// gradient returns dz/dx (east) and dz/dy (north). Rows run along
// PixelHeight, so with a north-up transform a row step of one is a northing
// step of PixelHeight (negative) and the quotient already points north.
func gradient(g *Grid) (dzdx, dzdy []float64) {
	n := g.Rows * g.Cols
	dzdx = make([]float64, n)
	dzdy = make([]float64, n)
	dx, dy := g.Transform.PixelWidth, g.Transform.PixelHeight

	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			i := r*g.Cols + c
			switch c {
			case 0:
				dzdx[i] = (g.At(r, 1) - g.At(r, 0)) / dx
			case g.Cols - 1:
				dzdx[i] = (g.At(r, c) - g.At(r, c-1)) / dx
			default:
				dzdx[i] = (g.At(r, c+1) - g.At(r, c-1)) / (2 * dx)
			}
			switch r {
			case 0:
				dzdy[i] = (g.At(1, c) - g.At(0, c)) / dy
			case g.Rows - 1:
				dzdy[i] = (g.At(r, c) - g.At(r-1, c)) / dy
			default:
				dzdy[i] = (g.At(r+1, c) - g.At(r-1, c)) / (2 * dy)
			}
		}
	}
	return dzdx, dzdy
}
