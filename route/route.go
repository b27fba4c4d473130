// Package route models the polyline a simulated vessel follows and maps
// elapsed time onto a position along it.
package route

import (
	"fmt"
	"math"

	"github.com/landyrev/simple-nmea-simulator/geo"
)

// Route is an ordered, immutable sequence of at least two waypoints.
//
// Routes with more than two waypoints are loops: the leg from the last
// waypoint back to the first is part of the route. A route that already
// repeats its first waypoint at the end gets a zero-length closing leg, so
// the closing distance is never counted twice.
type Route struct {
	waypoints []geo.Coordinate
}

// Segment is one leg of a route.
type Segment struct {
	Index  int
	Start  geo.Coordinate
	End    geo.Coordinate
	Length float64 // meters
}

// Bearing returns the initial bearing of the segment in degrees.
func (s Segment) Bearing() float64 {
	return geo.InitialBearing(s.Start, s.End)
}

// FromWaypoints wraps an ordered list of waypoints without transforming it.
func FromWaypoints(points []geo.Coordinate) (Route, error) {
	if len(points) < 2 {
		return Route{}, fmt.Errorf("%w: at least 2 waypoints are required, got %d", ErrInvalidRouteConfig, len(points))
	}

	r := Route{waypoints: append([]geo.Coordinate(nil), points...)}
	if r.Length() == 0 {
		return Route{}, fmt.Errorf("%w: route has zero length", ErrInvalidRouteConfig)
	}
	return r, nil
}

// Line creates numPoints waypoints linearly interpolated between start and end.
func Line(startLat, startLon, endLat, endLon float64, numPoints int) (Route, error) {
	if numPoints < 2 {
		return Route{}, fmt.Errorf("%w: line route needs at least 2 points, got %d", ErrInvalidRouteConfig, numPoints)
	}

	start := geo.Coordinate{Lat: startLat, Lon: startLon}
	end := geo.Coordinate{Lat: endLat, Lon: endLon}

	points := make([]geo.Coordinate, numPoints)
	for i := range points {
		t := float64(i) / float64(numPoints-1)
		points[i] = geo.Interpolate(start, end, t)
	}
	return FromWaypoints(points)
}

// Circle creates numPoints waypoints on a circle of radiusNM nautical miles
// around the center. The longitude radius is widened by 1/cos(lat) to account
// for meridian convergence. The loop is implicit: the first point is not repeated.
func Circle(centerLat, centerLon, radiusNM float64, numPoints int) (Route, error) {
	if numPoints < 3 {
		return Route{}, fmt.Errorf("%w: circular route needs at least 3 points, got %d", ErrInvalidRouteConfig, numPoints)
	}

	// 1 nautical mile = 1/60 degree of latitude
	radiusLatDeg := radiusNM / 60.0
	radiusLonDeg := radiusNM / (60.0 * math.Cos(centerLat*math.Pi/180))

	points := make([]geo.Coordinate, numPoints)
	for i := range points {
		angle := 2 * math.Pi * float64(i) / float64(numPoints)
		points[i] = geo.Coordinate{
			Lat: centerLat + radiusLatDeg*math.Cos(angle),
			Lon: centerLon + radiusLonDeg*math.Sin(angle),
		}
	}
	return FromWaypoints(points)
}

// Rectangle creates the SW, SE, NE, NW corners of a widthNM x heightNM
// rectangle around the center, followed by the SW corner again.
func Rectangle(centerLat, centerLon, widthNM, heightNM float64) (Route, error) {
	widthDeg := widthNM / 60.0
	heightDeg := heightNM / 60.0

	sw := geo.Coordinate{Lat: centerLat - heightDeg/2, Lon: centerLon - widthDeg/2}
	se := geo.Coordinate{Lat: centerLat - heightDeg/2, Lon: centerLon + widthDeg/2}
	ne := geo.Coordinate{Lat: centerLat + heightDeg/2, Lon: centerLon + widthDeg/2}
	nw := geo.Coordinate{Lat: centerLat + heightDeg/2, Lon: centerLon - widthDeg/2}

	return FromWaypoints([]geo.Coordinate{sw, se, ne, nw, sw})
}

// Waypoints returns a copy of the route's waypoints.
func (r Route) Waypoints() []geo.Coordinate {
	return append([]geo.Coordinate(nil), r.waypoints...)
}

// Len returns the number of waypoints.
func (r Route) Len() int {
	return len(r.waypoints)
}

// IsLoop reports whether the route closes back onto its first waypoint.
func (r Route) IsLoop() bool {
	return len(r.waypoints) > 2
}

// Segments returns the legs of the route in traversal order, including the
// closing leg of a loop.
func (r Route) Segments() []Segment {
	n := len(r.waypoints)
	if n < 2 {
		return nil
	}

	count := n - 1
	if r.IsLoop() {
		count = n
	}

	segments := make([]Segment, count)
	for i := 0; i < count; i++ {
		start := r.waypoints[i]
		end := r.waypoints[(i+1)%n]
		segments[i] = Segment{
			Index:  i,
			Start:  start,
			End:    end,
			Length: geo.Distance(start, end),
		}
	}
	return segments
}

// Length returns the total route length in meters.
func (r Route) Length() float64 {
	var total float64
	for _, seg := range r.Segments() {
		total += seg.Length
	}
	return total
}
