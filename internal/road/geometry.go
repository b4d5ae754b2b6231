package road

import (
	"math"

	"github.com/twpayne/go-geom"
)

// Curvature returns the mean turning angle, in radians, at the interior
// vertices divided by the mean step length. Vertices next to a zero-length
// step contribute no angle, but every step counts toward the mean length.
// Lines with fewer than three points have curvature 0.
func Curvature(coords []geom.Coord) float64 {
	if len(coords) < 3 {
		return 0
	}

	var angleSum float64
	var angles int
	for i := 1; i < len(coords)-1; i++ {
		ax, ay := coords[i][0]-coords[i-1][0], coords[i][1]-coords[i-1][1]
		bx, by := coords[i+1][0]-coords[i][0], coords[i+1][1]-coords[i][1]
		na, nb := math.Hypot(ax, ay), math.Hypot(bx, by)
		if na == 0 || nb == 0 {
			continue
		}
		cos := (ax*bx + ay*by) / (na * nb)
		angleSum += math.Acos(math.Max(-1, math.Min(1, cos)))
		angles++
	}
	var meanAngle float64
	if angles > 0 {
		meanAngle = angleSum / float64(angles)
	}

	var stepSum float64
	for i := 0; i+1 < len(coords); i++ {
		stepSum += math.Hypot(coords[i+1][0]-coords[i][0], coords[i+1][1]-coords[i][1])
	}
	meanStep := stepSum / float64(len(coords)-1)
	if meanStep == 0 {
		return 0
	}
	return meanAngle / meanStep
}

// Width estimates the carriageway width as the area of the radius buffer
// divided by the line length. A zero-length line has width 0.
func Width(line *geom.LineString, radius float64) float64 {
	if line == nil {
		return 0
	}
	length := line.Length()
	if length == 0 {
		return 0
	}
	return NewBuffer(line, radius).Area() / length
}
