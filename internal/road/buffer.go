package road

import (
	"math"
	"sort"

	"github.com/twpayne/go-geom"
)

// ScanStep is the spacing, in coordinate units, of the horizontal scanlines
// used to integrate buffer area. Scanlines sit at (k+0.5)*ScanStep for integer
// k, so every buffer of the same line is measured on the same lines.
const ScanStep = 0.25

// DefaultBufferRadius is the offset distance used for width and slope sampling.
const DefaultBufferRadius = 10.0

// Buffer is the set of points within Radius of a polyline.
type Buffer struct {
	coords []geom.Coord
	Radius float64
}

// NewBuffer buffers line by radius.
func NewBuffer(line *geom.LineString, radius float64) *Buffer {
	b := &Buffer{Radius: radius}
	if line != nil {
		b.coords = line.Coords()
	}
	return b
}

// Bounds returns the bounding box of the buffer.
func (b *Buffer) Bounds() (minX, minY, maxX, maxY float64) {
	if len(b.coords) == 0 {
		return math.NaN(), math.NaN(), math.NaN(), math.NaN()
	}
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, c := range b.coords {
		minX, maxX = math.Min(minX, c[0]), math.Max(maxX, c[0])
		minY, maxY = math.Min(minY, c[1]), math.Max(maxY, c[1])
	}
	return minX - b.Radius, minY - b.Radius, maxX + b.Radius, maxY + b.Radius
}

// Contains reports whether (x, y) lies within Radius of the line.
func (b *Buffer) Contains(x, y float64) bool {
	switch len(b.coords) {
	case 0:
		return false
	case 1:
		return math.Hypot(x-b.coords[0][0], y-b.coords[0][1]) <= b.Radius
	}
	for i := 0; i+1 < len(b.coords); i++ {
		if segmentDistance(x, y, b.coords[i], b.coords[i+1]) <= b.Radius {
			return true
		}
	}
	return false
}

// Area integrates the buffer's area over fixed scanlines. Each edge
// contributes the interval where the scanline crosses its stadium; the
// intervals of one scanline are merged before measuring, so overlaps between
// neighbouring edges are counted once.
func (b *Buffer) Area() float64 {
	if len(b.coords) == 0 || !(b.Radius > 0) {
		return 0
	}
	_, minY, _, maxY := b.Bounds()
	if math.IsNaN(minY) || math.IsInf(minY, 0) || math.IsNaN(maxY) || math.IsInf(maxY, 0) {
		return 0
	}
	k0 := int64(math.Floor(minY / ScanStep))
	k1 := int64(math.Ceil(maxY / ScanStep))
	n := int(k1 - k0 + 1)
	strips := make([][]interval, n)

	edges := len(b.coords) - 1
	if edges == 0 {
		edges = 1
	}
	for e := 0; e < edges; e++ {
		p := b.coords[e]
		q := p
		if e+1 < len(b.coords) {
			q = b.coords[e+1]
		}
		lo := int64(math.Floor((math.Min(p[1], q[1])-b.Radius)/ScanStep)) - k0
		hi := int64(math.Ceil((math.Max(p[1], q[1])+b.Radius)/ScanStep)) - k0
		for k := max(lo, 0); k <= hi && k < int64(n); k++ {
			y := (float64(k+k0) + 0.5) * ScanStep
			if iv, ok := stadiumSlice(p, q, b.Radius, y); ok {
				strips[k] = append(strips[k], iv)
			}
		}
	}

	var area float64
	for _, ivs := range strips {
		area += unionLength(ivs) * ScanStep
	}
	return area
}

type interval struct{ lo, hi float64 }

// stadiumSlice returns the x-interval where the horizontal line at y meets
// the radius-r stadium around segment pq.
func stadiumSlice(p, q geom.Coord, r, y float64) (interval, bool) {
	iv := interval{lo: math.Inf(1), hi: math.Inf(-1)}
	add := func(lo, hi float64) {
		iv.lo = math.Min(iv.lo, lo)
		iv.hi = math.Max(iv.hi, hi)
	}
	for _, c := range [2]geom.Coord{p, q} {
		if dy := y - c[1]; math.Abs(dy) <= r {
			h := math.Sqrt(r*r - dy*dy)
			add(c[0]-h, c[0]+h)
		}
	}

	dx, dy := q[0]-p[0], q[1]-p[1]
	length := math.Hypot(dx, dy)
	if length > 0 {
		ux, uy := dx/length, dy/length
		// Rectangle: 0 <= (X-p).u <= length and |(X-p).n| <= r, n = (-uy, ux).
		a0, a1, ok := slab(ux, (y-p[1])*uy-p[0]*ux, 0, length)
		if ok {
			b0, b1, ok2 := slab(-uy, (y-p[1])*ux+p[0]*uy, -r, r)
			if ok2 {
				lo, hi := math.Max(a0, b0), math.Min(a1, b1)
				if lo <= hi {
					add(lo, hi)
				}
			}
		}
	}
	return iv, iv.lo <= iv.hi
}

// slab solves lo <= a*x + c <= hi for x.
func slab(a, c, lo, hi float64) (float64, float64, bool) {
	if math.Abs(a) < 1e-12 {
		if c >= lo && c <= hi {
			return math.Inf(-1), math.Inf(1), true
		}
		return 0, 0, false
	}
	x0, x1 := (lo-c)/a, (hi-c)/a
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	return x0, x1, true
}

func unionLength(ivs []interval) float64 {
	if len(ivs) == 0 {
		return 0
	}
	sort.Slice(ivs, func(i, j int) bool { return ivs[i].lo < ivs[j].lo })
	var total float64
	cur := ivs[0]
	for _, iv := range ivs[1:] {
		if iv.lo > cur.hi {
			total += cur.hi - cur.lo
			cur = iv
			continue
		}
		cur.hi = math.Max(cur.hi, iv.hi)
	}
	return total + cur.hi - cur.lo
}

// segmentDistance is the distance from (x, y) to segment pq.
func segmentDistance(x, y float64, p, q geom.Coord) float64 {
	dx, dy := q[0]-p[0], q[1]-p[1]
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return math.Hypot(x-p[0], y-p[1])
	}
	t := ((x-p[0])*dx + (y-p[1])*dy) / l2
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(x-(p[0]+t*dx), y-(p[1]+t*dy))
}
