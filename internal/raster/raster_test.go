package raster

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rectRegion struct{ minX, minY, maxX, maxY float64 }

func (r rectRegion) Bounds() (float64, float64, float64, float64) {
	return r.minX, r.minY, r.maxX, r.maxY
}

func (r rectRegion) Contains(x, y float64) bool {
	return x >= r.minX && x <= r.maxX && y >= r.minY && y <= r.maxY
}

type panicRegion struct{ rectRegion }

type hollowRegion struct{ rectRegion }

func (hollowRegion) Contains(float64, float64) bool { return false }

func (panicRegion) Contains(float64, float64) bool { panic("boom") }

// planeGrid builds a north-up grid with z = ax*x + ay*y sampled at cell centres.
func planeGrid(rows, cols int, cell, ax, ay float64) *Grid {
	g := NewGrid(rows, cols, Transform{OriginX: 0, OriginY: float64(rows) * cell, PixelWidth: cell, PixelHeight: -cell}, "EPSG:32651")
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			x, y := g.Transform.Forward(float64(c)+0.5, float64(r)+0.5)
			g.Set(r, c, ax*x+ay*y)
		}
	}
	return g
}

func TestTransform_ForwardInverse(t *testing.T) {
	tr := Transform{OriginX: 100, OriginY: 50, PixelWidth: 2, PixelHeight: -4}
	x, y := tr.Forward(3, 2)
	assert.Equal(t, 106.0, x)
	assert.Equal(t, 42.0, y)

	c, r := tr.Inverse(x, y)
	assert.InDelta(t, 3, c, 1e-12)
	assert.InDelta(t, 2, r, 1e-12)
	assert.True(t, tr.Invertible())
	assert.False(t, Transform{PixelWidth: 0, PixelHeight: -1}.Invertible())
}

func TestGrid_FillNoData(t *testing.T) {
	g := NewGrid(1, 4, Transform{PixelWidth: 1, PixelHeight: -1}, "")
	copy(g.Data, []float64{SRTMNoData, -9999, 12, 0})

	n := g.FillNoData(-9999, SRTMNoData)
	assert.Equal(t, 2, n)
	assert.True(t, math.IsNaN(g.At(0, 0)))
	assert.True(t, math.IsNaN(g.At(0, 1)))
	assert.Equal(t, 2, g.ValidCount())
}

func TestGrid_WindowForClips(t *testing.T) {
	g := planeGrid(10, 10, 10, 0, 0)

	w := g.WindowFor(-50, 15, 25, 200)
	assert.Equal(t, Window{Row0: 0, Row1: 9, Col0: 0, Col1: 3}, w)

	outside := g.WindowFor(500, 500, 600, 600)
	assert.Equal(t, 0, outside.Rows())
	assert.Equal(t, 0, outside.Cols())
}

func TestGrid_SubKeepsGeoreference(t *testing.T) {
	g := planeGrid(6, 6, 10, 1, 0)
	sub := g.Sub(Window{Row0: 2, Row1: 5, Col0: 1, Col1: 4})

	assert.Equal(t, 3, sub.Rows)
	assert.Equal(t, 3, sub.Cols)
	x, y := sub.Transform.Forward(0.5, 0.5)
	gx, gy := g.Transform.Forward(1.5, 2.5)
	assert.InDelta(t, gx, x, 1e-9)
	assert.InDelta(t, gy, y, 1e-9)
	assert.Equal(t, g.At(2, 1), sub.At(0, 0))
}

func TestSlope_EastPlane(t *testing.T) {
	g := planeGrid(5, 5, 10, 0.1, 0)
	s := Slope(g)
	want := math.Atan(0.1) * 180 / math.Pi
	for _, v := range s.Data {
		assert.InDelta(t, want, v, 1e-9)
	}
}

func TestSlope_DiagonalPlane(t *testing.T) {
	g := planeGrid(6, 4, 30, 0.3, 0.4)
	s := Slope(g)
	want := math.Atan(0.5) * 180 / math.Pi
	for _, v := range s.Data {
		assert.InDelta(t, want, v, 1e-9)
	}
}

func TestGradient_NorthPositive(t *testing.T) {
	g := planeGrid(5, 5, 10, 0, 0.2)
	dzdx, dzdy := gradient(g)
	for i := range dzdy {
		assert.InDelta(t, 0, dzdx[i], 1e-12)
		assert.InDelta(t, 0.2, dzdy[i], 1e-12, "elevation rising northward must give a positive gradient")
	}
}

func TestSlope_MissingPropagates(t *testing.T) {
	g := planeGrid(5, 5, 10, 0.1, 0)
	g.Set(2, 2, math.NaN())
	s := Slope(g)
	assert.True(t, math.IsNaN(s.At(2, 1)))
	assert.True(t, math.IsNaN(s.At(1, 2)))
	assert.False(t, math.IsNaN(s.At(0, 0)))
}

func TestSlope_TooNarrow(t *testing.T) {
	g := planeGrid(1, 5, 10, 0.1, 0)
	for _, v := range Slope(g).Data {
		assert.True(t, math.IsNaN(v))
	}
}

func TestSampleSlope(t *testing.T) {
	g := planeGrid(20, 20, 10, 0.1, 0)
	want := math.Atan(0.1) * 180 / math.Pi

	mean, ok := SampleSlope(rectRegion{40, 40, 120, 120}, g)
	require.True(t, ok)
	assert.InDelta(t, want, mean, 1e-9)
}

func TestSampleSlope_Unknown(t *testing.T) {
	g := planeGrid(20, 20, 10, 0.1, 0)

	tests := []struct {
		name   string
		region Region
	}{
		{"outside raster", rectRegion{1000, 1000, 1100, 1100}},
		{"window narrower than three cells", rectRegion{40, 40, 55, 120}},
		{"no cell centre inside", hollowRegion{rectRegion{40, 40, 120, 120}}},
		{"non-finite bounds", rectRegion{math.NaN(), 0, 10, 10}},
		{"sampler failure", panicRegion{rectRegion{40, 40, 120, 120}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := SampleSlope(tt.region, g)
			assert.False(t, ok)
		})
	}
}

func TestSampleSlope_AllMissing(t *testing.T) {
	g := NewGrid(10, 10, Transform{OriginY: 100, PixelWidth: 10, PixelHeight: -10}, "EPSG:32651")
	_, ok := SampleSlope(rectRegion{0, 0, 100, 100}, g)
	assert.False(t, ok)
}

func TestMask_CellCentres(t *testing.T) {
	g := planeGrid(3, 3, 10, 0, 0)
	mask := Mask(rectRegion{0, 0, 16, 30}, g)
	assert.Equal(t, []bool{
		true, true, false,
		true, true, false,
		true, true, false,
	}, mask)
}

func TestBilinear(t *testing.T) {
	g := NewGrid(2, 2, Transform{PixelWidth: 1, PixelHeight: -1}, "")
	copy(g.Data, []float64{0, 10, 20, 30})
	assert.InDelta(t, 15, g.bilinear(0.5, 0.5), 1e-12)
	assert.InDelta(t, 0, g.bilinear(0, 0), 1e-12)
	assert.True(t, math.IsNaN(g.bilinear(-0.6, 0)))
	assert.True(t, math.IsNaN(g.bilinear(0, 1.6)))

	g.Set(0, 1, math.NaN())
	assert.InDelta(t, 50.0/3, g.bilinear(0.5, 0.5), 1e-12, "missing neighbour is excluded, not blended")
	assert.True(t, math.IsNaN(g.bilinear(1, 0)))
}

func geographicGrid(rows, cols int, value float64) *Grid {
	g := NewGrid(rows, cols, Transform{OriginX: 122.9, OriginY: 0.1, PixelWidth: 0.2 / float64(cols), PixelHeight: -0.2 / float64(rows)}, "EPSG:4326")
	for i := range g.Data {
		g.Data[i] = value
	}
	return g
}

func TestReproject_ToUTM(t *testing.T) {
	src := geographicGrid(40, 40, 100)

	dst, err := Reproject(context.Background(), src, "utm", 1)
	require.NoError(t, err)
	assert.Equal(t, "EPSG:32651", dst.CRS)

	// 0.2 degrees at the equator is roughly 22 km.
	minX, minY, maxX, maxY := dst.Bounds()
	assert.InDelta(t, 22200, maxX-minX, 600)
	assert.InDelta(t, 22200, maxY-minY, 600)
	assert.InDelta(t, 0, (minY+maxY)/2, 300)

	require.Positive(t, dst.ValidCount())
	for _, v := range dst.Data {
		if !math.IsNaN(v) {
			assert.InDelta(t, 100, v, 1e-9)
		}
	}
}

func TestReproject_ScalePreservesExtent(t *testing.T) {
	src := geographicGrid(40, 40, 100)

	full, err := Reproject(context.Background(), src, "EPSG:32651", 1)
	require.NoError(t, err)
	half, err := Reproject(context.Background(), src, "EPSG:32651", 0.5)
	require.NoError(t, err)

	assert.Equal(t, full.Cols/2, half.Cols)
	assert.Equal(t, full.Rows/2, half.Rows)

	fx0, fy0, fx1, fy1 := full.Bounds()
	hx0, hy0, hx1, hy1 := half.Bounds()
	assert.InDelta(t, fx0, hx0, 1e-6)
	assert.InDelta(t, fy0, hy0, 1e-6)
	assert.InDelta(t, fx1, hx1, 1e-6)
	assert.InDelta(t, fy1, hy1, 1e-6)
}

func TestReproject_MissingStaysMissing(t *testing.T) {
	src := geographicGrid(20, 20, 50)
	for r := 0; r < 20; r++ {
		for c := 0; c < 10; c++ {
			src.Set(r, c, math.NaN())
		}
	}
	dst, err := Reproject(context.Background(), src, "EPSG:32651", 1)
	require.NoError(t, err)
	for _, v := range dst.Data {
		if !math.IsNaN(v) {
			assert.InDelta(t, 50, v, 1e-9)
		}
	}
}

func TestReproject_InvalidScale(t *testing.T) {
	src := geographicGrid(4, 4, 1)
	for _, s := range []float64{0, -1, 1.5} {
		_, err := Reproject(context.Background(), src, "utm", s)
		assert.Error(t, err)
	}
}

func TestReproject_UnknownCRS(t *testing.T) {
	src := geographicGrid(4, 4, 1)
	src.CRS = "EPSG:3857"
	_, err := Reproject(context.Background(), src, "utm", 1)
	assert.Error(t, err)
}

func TestReproject_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Reproject(ctx, geographicGrid(10, 10, 1), "utm", 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSampleSlope_ReprojectedOutside(t *testing.T) {
	dst, err := Reproject(context.Background(), geographicGrid(20, 20, 10), "utm", 1)
	require.NoError(t, err)
	_, ok := SampleSlope(rectRegion{0, 5e6, 100, 5e6 + 100}, dst)
	assert.False(t, ok)
}
