package route

import (
	"sync"
	"testing"
	"time"

	"github.com/landyrev/simple-nmea-simulator/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

func atDistance(tr *Tracker, meters float64) time.Time {
	seconds := meters / (tr.SpeedKnots() * KnotsToMetersPerSecond)
	return testStart.Add(time.Duration(seconds * float64(time.Second)))
}

func TestNewTracker(t *testing.T) {
	r, err := Line(-33.8587, 151.2140, -33.8400, 151.2200, 2)
	require.NoError(t, err)

	tr, err := NewTracker(r, 5, testStart)
	require.NoError(t, err)
	assert.Equal(t, 5.0, tr.SpeedKnots())
	assert.InDelta(t, r.Length(), tr.TotalLength(), 1e-9)
	assert.Equal(t, testStart, tr.StartTime())

	_, err = NewTracker(r, -1, testStart)
	assert.ErrorIs(t, err, ErrInvalidSpeed)

	_, err = NewTracker(Route{}, 5, testStart)
	assert.ErrorIs(t, err, ErrInvalidRouteConfig)
}

func TestTrackerTotalLengthIncludesClosingLeg(t *testing.T) {
	points := []geo.Coordinate{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 0.01}, {Lat: 0.01, Lon: 0.01}}
	r, err := FromWaypoints(points)
	require.NoError(t, err)

	tr, err := NewTracker(r, 5, testStart)
	require.NoError(t, err)

	want := geo.Distance(points[0], points[1]) +
		geo.Distance(points[1], points[2]) +
		geo.Distance(points[2], points[0])
	assert.InDelta(t, want, tr.TotalLength(), 1e-9)
}

func TestTrackerSnapshotAtStart(t *testing.T) {
	r, err := Circle(-33.8587, 151.2140, 0.5, 8)
	require.NoError(t, err)
	tr, err := NewTracker(r, 5, testStart)
	require.NoError(t, err)

	snap, err := tr.Snapshot(testStart)
	require.NoError(t, err)
	assert.Equal(t, r.Waypoints()[0], snap.Position)
	assert.Equal(t, 0, snap.Segment)
	assert.Equal(t, 5.0, snap.SpeedKnots)
	assert.InDelta(t, r.Segments()[0].Bearing(), snap.HeadingDeg, 1e-9)
	assert.False(t, snap.Complete)

	// Queries before the start instant stay at the first waypoint.
	snap, err = tr.Snapshot(testStart.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, r.Waypoints()[0], snap.Position)
}

func TestTrackerLoopWrapsAround(t *testing.T) {
	routes := map[string]func() (Route, error){
		"circle":    func() (Route, error) { return Circle(-33.8587, 151.2140, 0.5, 8) },
		"rectangle": func() (Route, error) { return Rectangle(-33.8587, 151.2140, 0.3, 0.2) },
		"line":      func() (Route, error) { return Line(-33.8587, 151.2140, -33.8400, 151.2200, 10) },
	}

	for name, build := range routes {
		t.Run(name, func(t *testing.T) {
			r, err := build()
			require.NoError(t, err)
			tr, err := NewTracker(r, 5, testStart)
			require.NoError(t, err)

			first, err := tr.Snapshot(testStart)
			require.NoError(t, err)

			lap := testStart.Add(tr.Duration())
			wrapped, err := tr.Snapshot(lap)
			require.NoError(t, err)

			assert.InDelta(t, first.Position.Lat, wrapped.Position.Lat, 1e-6)
			assert.InDelta(t, first.Position.Lon, wrapped.Position.Lon, 1e-6)
			assert.False(t, wrapped.Complete)

			// Half a lap later on the second pass matches half a lap on the first.
			half := tr.TotalLength() / 2
			a, err := tr.Snapshot(atDistance(tr, half))
			require.NoError(t, err)
			b, err := tr.Snapshot(atDistance(tr, half+tr.TotalLength()))
			require.NoError(t, err)
			assert.InDelta(t, a.Position.Lat, b.Position.Lat, 1e-6)
			assert.InDelta(t, a.Position.Lon, b.Position.Lon, 1e-6)
		})
	}
}

func TestTrackerOpenRouteClamps(t *testing.T) {
	r, err := Line(-33.8587, 151.2140, -33.8400, 151.2200, 2)
	require.NoError(t, err)
	tr, err := NewTracker(r, 5, testStart)
	require.NoError(t, err)

	end := r.Waypoints()[1]

	assert.False(t, tr.IsRouteComplete(testStart))
	assert.False(t, tr.IsRouteComplete(testStart.Add(tr.Duration()/2)))

	for _, extra := range []time.Duration{time.Second, time.Hour, 24 * time.Hour} {
		now := testStart.Add(tr.Duration() + extra)
		assert.True(t, tr.IsRouteComplete(now))

		snap, err := tr.Snapshot(now)
		require.NoError(t, err)
		assert.Equal(t, end, snap.Position)
		assert.True(t, snap.Complete)
		assert.InDelta(t, geo.InitialBearing(r.Waypoints()[0], end), snap.HeadingDeg, 1e-9)
	}
}

func TestTrackerInterpolatesOnSegment(t *testing.T) {
	points := []geo.Coordinate{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 0.02}, {Lat: 0.02, Lon: 0.02}}
	r, err := FromWaypoints(points)
	require.NoError(t, err)
	tr, err := NewTracker(r, 10, testStart)
	require.NoError(t, err)

	segs := r.Segments()
	for _, seg := range segs {
		var before float64
		for _, s := range segs[:seg.Index] {
			before += s.Length
		}

		for i := 1; i < 10; i++ {
			progress := float64(i) / 10
			snap, err := tr.Locate(before + seg.Length*progress)
			require.NoError(t, err)
			assert.Equal(t, seg.Index, snap.Segment)

			// Point lies on the straight line between the segment endpoints.
			want := geo.Interpolate(seg.Start, seg.End, progress)
			assert.InDelta(t, want.Lat, snap.Position.Lat, 1e-9)
			assert.InDelta(t, want.Lon, snap.Position.Lon, 1e-9)
			assert.InDelta(t, seg.Bearing(), snap.HeadingDeg, 1e-9)
			assert.InDelta(t, seg.Bearing(), tr.Heading(), 1e-9)
		}
	}
}

func TestTrackerUnreachablePosition(t *testing.T) {
	r, err := Rectangle(-33.8587, 151.2140, 0.3, 0.2)
	require.NoError(t, err)
	tr, err := NewTracker(r, 5, testStart)
	require.NoError(t, err)

	snap, err := tr.Locate(tr.TotalLength() * 2)
	assert.ErrorIs(t, err, ErrUnreachablePosition)
	assert.True(t, snap.Complete)
	// The zero-length closing leg is skipped; the vessel parks on the SW corner.
	assert.Equal(t, r.Waypoints()[0], snap.Position)
	assert.Equal(t, 3, snap.Segment)
}

func TestTrackerReset(t *testing.T) {
	r, err := Circle(0, 0, 1, 6)
	require.NoError(t, err)
	tr, err := NewTracker(r, 20, testStart)
	require.NoError(t, err)

	later := testStart.Add(tr.Duration() / 2)
	snap, err := tr.Snapshot(later)
	require.NoError(t, err)
	assert.NotEqual(t, 0, snap.Segment)

	tr.Reset(later)
	assert.Equal(t, later, tr.StartTime())
	assert.InDelta(t, r.Segments()[0].Bearing(), tr.Heading(), 1e-9)

	snap, err = tr.Snapshot(later)
	require.NoError(t, err)
	assert.Equal(t, r.Waypoints()[0], snap.Position)
	assert.False(t, tr.IsRouteComplete(later))
}

func TestTrackerStationary(t *testing.T) {
	r, err := Circle(0, 0, 1, 6)
	require.NoError(t, err)
	tr, err := NewTracker(r, 0, testStart)
	require.NoError(t, err)

	snap, err := tr.Snapshot(testStart.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, r.Waypoints()[0], snap.Position)
	assert.False(t, tr.IsRouteComplete(testStart.Add(time.Hour)))
	assert.Zero(t, tr.Duration())
}

func TestTrackerConcurrentReaders(t *testing.T) {
	r, err := Circle(-33.8587, 151.2140, 0.5, 8)
	require.NoError(t, err)
	tr, err := NewTracker(r, 5, testStart)
	require.NoError(t, err)

	want, err := tr.Snapshot(testStart.Add(90 * time.Second))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				got, err := tr.Snapshot(testStart.Add(90 * time.Second))
				assert.NoError(t, err)
				assert.Equal(t, want.Position, got.Position)
			}
		}()
	}
	wg.Wait()
}
