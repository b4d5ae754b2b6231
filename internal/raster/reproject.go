package raster

import (
	"context"
	"math"
	"runtime"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/roadfeat/internal/proj"
)

// edgeSamples is the number of points sampled along each source edge when
// estimating the destination extent.
const edgeSamples = 21

// Reproject resamples src into dstCRS with a bilinear kernel. The default
// destination resolution preserves the source pixel count along the diagonal;
// scale then shrinks both output dimensions while keeping the extent.
// dstCRS may be "utm" to pick the zone around the raster centre.
func Reproject(ctx context.Context, src *Grid, dstCRS string, scale float64) (*Grid, error) {
	if scale <= 0 || scale > 1 {
		return nil, eris.Errorf("raster: scale %v outside (0, 1]", scale)
	}
	from, err := proj.Parse(src.CRS)
	if err != nil {
		return nil, eris.Wrap(err, "raster: source crs")
	}

	toGeo, err := proj.New(from, proj.WGS84)
	if err != nil {
		return nil, eris.Wrap(err, "raster: source to geographic")
	}
	cLon, cLat := toGeo(src.Center())
	to, err := proj.Resolve(dstCRS, cLon, cLat)
	if err != nil {
		return nil, eris.Wrap(err, "raster: destination crs")
	}

	fwd, err := proj.New(from, to)
	if err != nil {
		return nil, eris.Wrap(err, "raster: forward transform")
	}
	inv, err := proj.New(to, from)
	if err != nil {
		return nil, eris.Wrap(err, "raster: inverse transform")
	}

	t, fullWidth, fullHeight := DefaultTransform(src, fwd)
	width := max(int(float64(fullWidth)*scale), 1)
	height := max(int(float64(fullHeight)*scale), 1)
	t.PixelWidth *= float64(fullWidth) / float64(width)
	t.PixelHeight *= float64(fullHeight) / float64(height)

	dst := NewGrid(height, width, t, to.String())

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for row := 0; row < height; row++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for col := 0; col < width; col++ {
				x, y := t.Forward(float64(col)+0.5, float64(row)+0.5)
				sx, sy := inv(x, y)
				fc, fr := src.Transform.Inverse(sx, sy)
				dst.Set(row, col, src.bilinear(fc-0.5, fr-0.5))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "raster: reproject")
	}

	zap.L().Info("raster: reprojected",
		zap.String("from", from.String()),
		zap.String("to", to.String()),
		zap.Int("rows", height),
		zap.Int("cols", width),
		zap.Float64("pixel_width", t.PixelWidth),
		zap.Float64("pixel_height", t.PixelHeight),
	)
	return dst, nil
}

// DefaultTransform computes the destination transform and dimensions for src
// under fwd. Source edges are densified so curved projected edges are covered.
func DefaultTransform(src *Grid, fwd proj.Func) (Transform, int, int) {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	visit := func(col, row float64) {
		x, y := fwd(src.Transform.Forward(col, row))
		if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
			return
		}
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}
	cols, rows := float64(src.Cols), float64(src.Rows)
	for i := 0; i < edgeSamples; i++ {
		f := float64(i) / float64(edgeSamples-1)
		visit(f*cols, 0)
		visit(f*cols, rows)
		visit(0, f*rows)
		visit(cols, f*rows)
	}

	dw, dh := maxX-minX, maxY-minY
	res := math.Hypot(dw, dh) / math.Hypot(cols, rows)
	width := max(int(math.Round(dw/res)), 1)
	height := max(int(math.Round(dh/res)), 1)

	return Transform{OriginX: minX, OriginY: maxY, PixelWidth: res, PixelHeight: -res}, width, height
}

// bilinear interpolates at fractional cell-centre indices (fc, fr). Missing
// neighbours are excluded and the remaining weights renormalised, so a real
// elevation is never blended with a missing one.
func (g *Grid) bilinear(fc, fr float64) float64 {
	if math.IsNaN(fc) || math.IsNaN(fr) ||
		fc < -0.5 || fr < -0.5 || fc > float64(g.Cols)-0.5 || fr > float64(g.Rows)-0.5 {
		return math.NaN()
	}
	c0, r0 := int(math.Floor(fc)), int(math.Floor(fr))
	dc, dr := fc-float64(c0), fr-float64(r0)

	var sum, wsum float64
	for _, n := range [4]struct {
		r, c int
		w    float64
	}{
		{r0, c0, (1 - dr) * (1 - dc)},
		{r0, c0 + 1, (1 - dr) * dc},
		{r0 + 1, c0, dr * (1 - dc)},
		{r0 + 1, c0 + 1, dr * dc},
	} {
		if n.w == 0 {
			continue
		}
		r := min(max(n.r, 0), g.Rows-1)
		c := min(max(n.c, 0), g.Cols-1)
		v := g.At(r, c)
		if math.IsNaN(v) {
			continue
		}
		sum += v * n.w
		wsum += n.w
	}
	if wsum == 0 {
		return math.NaN()
	}
	return sum / wsum
}
