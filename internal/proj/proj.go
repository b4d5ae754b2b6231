// Package proj converts coordinates between WGS84 geographic and UTM reference systems.
package proj

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// EPSG codes for the systems this package understands.
const (
	EPSGWGS84     = 4326
	epsgUTMNorth  = 32600
	epsgUTMSouth  = 32700
	utmZoneCount  = 60
	autoUTMPrefix = "utm"
)

// CRS identifies a coordinate reference system. Zone is zero for the
// geographic WGS84 system.
type CRS struct {
	EPSG  int
	Zone  int
	South bool
}

// WGS84 is the geographic longitude/latitude system.
var WGS84 = CRS{EPSG: EPSGWGS84}

// Geographic reports whether c is expressed in degrees.
func (c CRS) Geographic() bool { return c.Zone == 0 }

// String returns the "EPSG:nnnn" form of c.
func (c CRS) String() string { return fmt.Sprintf("EPSG:%d", c.EPSG) }

// SRID returns the numeric EPSG code, suitable for PostGIS geometries.
func (c CRS) SRID() int { return c.EPSG }

// UTM returns the WGS84 UTM system for the given zone and hemisphere.
func UTM(zone int, south bool) (CRS, error) {
	if zone < 1 || zone > utmZoneCount {
		return CRS{}, eris.Errorf("proj: utm zone %d out of range", zone)
	}
	code := epsgUTMNorth + zone
	if south {
		code = epsgUTMSouth + zone
	}
	return CRS{EPSG: code, Zone: zone, South: south}, nil
}

// UTMFor returns the UTM system whose zone contains lon/lat.
func UTMFor(lon, lat float64) CRS {
	zone := int(math.Floor((lon+180)/6)) + 1
	if zone < 1 {
		zone = 1
	}
	if zone > utmZoneCount {
		zone = utmZoneCount
	}
	c, _ := UTM(zone, lat < 0)
	return c
}

// Parse reads "EPSG:4326", "epsg:32651" or a bare code.
func Parse(id string) (CRS, error) {
	s := strings.TrimSpace(strings.ToUpper(id))
	s = strings.TrimPrefix(s, "EPSG:")
	code, err := strconv.Atoi(s)
	if err != nil {
		return CRS{}, eris.Wrapf(err, "proj: parse crs %q", id)
	}
	return FromEPSG(code)
}

// FromEPSG maps a numeric EPSG code to a CRS.
func FromEPSG(code int) (CRS, error) {
	switch {
	case code == EPSGWGS84:
		return WGS84, nil
	case code > epsgUTMNorth && code <= epsgUTMNorth+utmZoneCount:
		return UTM(code-epsgUTMNorth, false)
	case code > epsgUTMSouth && code <= epsgUTMSouth+utmZoneCount:
		return UTM(code-epsgUTMSouth, true)
	default:
		return CRS{}, eris.Errorf("proj: unsupported crs EPSG:%d", code)
	}
}

// Resolve parses id, choosing the UTM zone around lon/lat when id is "utm".
func Resolve(id string, lon, lat float64) (CRS, error) {
	if strings.EqualFold(strings.TrimSpace(id), autoUTMPrefix) {
		return UTMFor(lon, lat), nil
	}
	return Parse(id)
}

// Func maps one coordinate pair to another.
type Func func(x, y float64) (float64, float64)

// New returns the transformation from src to dst.
func New(src, dst CRS) (Func, error) {
	switch {
	case src == dst:
		return func(x, y float64) (float64, float64) { return x, y }, nil
	case src.Geographic() && !dst.Geographic():
		return forwardFunc(dst.Zone, dst.South), nil
	case !src.Geographic() && dst.Geographic():
		return inverseFunc(src.Zone, src.South), nil
	case !src.Geographic() && !dst.Geographic():
		inv, fwd := inverseFunc(src.Zone, src.South), forwardFunc(dst.Zone, dst.South)
		return func(e, n float64) (float64, float64) {
			return fwd(inv(e, n))
		}, nil
	}
	return nil, eris.Errorf("proj: no transform from %s to %s", src, dst)
}
