// Package geo holds the spherical-earth helpers shared by the route engine
// and the sentence encoder.
package geo

import "math"

// EarthRadius is the mean Earth radius in meters used by Distance.
const EarthRadius = 6371000.0

// Coordinate is a latitude/longitude pair in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// Distance returns the great-circle distance between a and b in meters
// using the Haversine formula.
func Distance(a, b Coordinate) float64 {
	lat1Rad := a.Lat * math.Pi / 180
	lat2Rad := b.Lat * math.Pi / 180
	deltaLat := (b.Lat - a.Lat) * math.Pi / 180
	deltaLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadius * c
}

// InitialBearing returns the forward azimuth from a to b in degrees, in [0, 360).
func InitialBearing(a, b Coordinate) float64 {
	lat1Rad := a.Lat * math.Pi / 180
	lat2Rad := b.Lat * math.Pi / 180
	deltaLonRad := (b.Lon - a.Lon) * math.Pi / 180

	y := math.Sin(deltaLonRad) * math.Cos(lat2Rad)
	x := math.Cos(lat1Rad)*math.Sin(lat2Rad) - math.Sin(lat1Rad)*math.Cos(lat2Rad)*math.Cos(deltaLonRad)

	bearing := math.Atan2(y, x) * 180 / math.Pi
	if bearing < 0 {
		bearing += 360
	}
	// -0 and values that round up to 360 after the shift
	if bearing >= 360 {
		bearing -= 360
	}
	return bearing
}

// Interpolate moves linearly from a to b, treating latitude and longitude
// independently. t is clamped to [0, 1]; t=0 and t=1 return a and b exactly.
func Interpolate(a, b Coordinate, t float64) Coordinate {
	t = math.Max(0, math.Min(1, t))
	return Coordinate{
		Lat: a.Lat*(1-t) + b.Lat*t,
		Lon: a.Lon*(1-t) + b.Lon*t,
	}
}
