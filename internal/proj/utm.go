package proj

import "github.com/wroge/wgs84"

func utmSystem(zone int, south bool) wgs84.ProjectedReferenceSystem {
	return wgs84.UTM(float64(zone), !south)
}

func forwardFunc(zone int, south bool) Func {
	f := wgs84.LonLat().To(utmSystem(zone, south))
	return func(lon, lat float64) (float64, float64) {
		e, n, _ := f(lon, lat, 0)
		return e, n
	}
}

func inverseFunc(zone int, south bool) Func {
	f := utmSystem(zone, south).To(wgs84.LonLat())
	return func(e, n float64) (float64, float64) {
		lon, lat, _ := f(e, n, 0)
		return lon, lat
	}
}

// Forward projects lon/lat degrees to UTM easting/northing metres.
func Forward(lon, lat float64, zone int, south bool) (easting, northing float64) {
	return forwardFunc(zone, south)(lon, lat)
}

// Inverse converts UTM easting/northing metres back to lon/lat degrees.
func Inverse(easting, northing float64, zone int, south bool) (lon, lat float64) {
	return inverseFunc(zone, south)(easting, northing)
}
