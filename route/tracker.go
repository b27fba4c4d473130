package route

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/landyrev/simple-nmea-simulator/geo"
)

// KnotsToMetersPerSecond converts a speed in knots to meters per second.
const KnotsToMetersPerSecond = 0.514444

// Snapshot is the vessel state derived from the route at one instant.
type Snapshot struct {
	Position   geo.Coordinate `json:"position"`
	HeadingDeg float64        `json:"heading"`
	SpeedKnots float64        `json:"speed"`
	Segment    int            `json:"segment"`
	Complete   bool           `json:"complete"`
}

// Tracker moves along a Route at constant speed. Position is a pure function
// of the start instant and the query time, so any number of goroutines may
// call Snapshot concurrently.
type Tracker struct {
	route       Route
	segments    []Segment
	speedKnots  float64
	speedMPS    float64
	totalLength float64

	mu    sync.RWMutex
	start time.Time

	// segment caches the index found by the last Snapshot. It only feeds
	// Heading and tolerates racing writers.
	segment atomic.Int64
}

// NewTracker creates a tracker that starts at the first waypoint at start.
func NewTracker(r Route, speedKnots float64, start time.Time) (*Tracker, error) {
	if r.Len() < 2 {
		return nil, fmt.Errorf("%w: at least 2 waypoints are required, got %d", ErrInvalidRouteConfig, r.Len())
	}
	if speedKnots < 0 || math.IsNaN(speedKnots) {
		return nil, ErrInvalidSpeed
	}

	segments := r.Segments()
	var total float64
	for _, seg := range segments {
		total += seg.Length
	}
	if total == 0 {
		return nil, fmt.Errorf("%w: route has zero length", ErrInvalidRouteConfig)
	}

	return &Tracker{
		route:       r,
		segments:    segments,
		speedKnots:  speedKnots,
		speedMPS:    speedKnots * KnotsToMetersPerSecond,
		totalLength: total,
		start:       start,
	}, nil
}

// Route returns the route being followed.
func (t *Tracker) Route() Route {
	return t.route
}

// SpeedKnots returns the configured speed in knots.
func (t *Tracker) SpeedKnots() float64 {
	return t.speedKnots
}

// TotalLength returns the route length in meters, closing leg included.
func (t *Tracker) TotalLength() float64 {
	return t.totalLength
}

// Duration returns how long one pass over the route takes. It is zero when
// the tracker is stationary.
func (t *Tracker) Duration() time.Duration {
	if t.speedMPS == 0 {
		return 0
	}
	return time.Duration(t.totalLength / t.speedMPS * float64(time.Second))
}

// StartTime returns the instant the current pass started.
func (t *Tracker) StartTime() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.start
}

// Reset restarts the route from the first waypoint at now.
func (t *Tracker) Reset(now time.Time) {
	t.mu.Lock()
	t.start = now
	t.mu.Unlock()
	t.segment.Store(0)
}

func (t *Tracker) elapsed(now time.Time) float64 {
	t.mu.RLock()
	start := t.start
	t.mu.RUnlock()

	elapsed := now.Sub(start).Seconds()
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// IsRouteComplete reports whether one full pass over the route has elapsed.
// A stationary tracker never completes.
func (t *Tracker) IsRouteComplete(now time.Time) bool {
	if t.speedMPS == 0 {
		return false
	}
	return t.elapsed(now) >= t.totalLength/t.speedMPS
}

// Snapshot returns position, heading and speed at now.
//
// Loop routes wrap around after a full pass. Open routes stop at the final
// waypoint and report Complete. If floating point error leaves the traveled
// distance past every segment, the end of the final segment is returned
// together with ErrUnreachablePosition.
func (t *Tracker) Snapshot(now time.Time) (Snapshot, error) {
	traveled := t.elapsed(now) * t.speedMPS

	if traveled >= t.totalLength {
		if t.route.IsLoop() {
			traveled = math.Mod(traveled, t.totalLength)
		} else {
			return t.finalSnapshot(), nil
		}
	}

	return t.locate(traveled)
}

// Locate returns the snapshot at distance meters from the first waypoint,
// without wrapping or clamping.
func (t *Tracker) Locate(distance float64) (Snapshot, error) {
	return t.locate(distance)
}

func (t *Tracker) locate(traveled float64) (Snapshot, error) {
	var accumulated float64
	for _, seg := range t.segments {
		if seg.Length == 0 {
			continue
		}
		if traveled < accumulated+seg.Length {
			progress := (traveled - accumulated) / seg.Length
			t.segment.Store(int64(seg.Index))
			return Snapshot{
				Position:   geo.Interpolate(seg.Start, seg.End, progress),
				HeadingDeg: seg.Bearing(),
				SpeedKnots: t.speedKnots,
				Segment:    seg.Index,
			}, nil
		}
		accumulated += seg.Length
	}

	return t.finalSnapshot(), ErrUnreachablePosition
}

// finalSnapshot parks the vessel at the end of the last non-degenerate segment.
func (t *Tracker) finalSnapshot() Snapshot {
	last := t.lastSegment()
	t.segment.Store(int64(last.Index))
	return Snapshot{
		Position:   last.End,
		HeadingDeg: last.Bearing(),
		SpeedKnots: t.speedKnots,
		Segment:    last.Index,
		Complete:   true,
	}
}

func (t *Tracker) lastSegment() Segment {
	for i := len(t.segments) - 1; i >= 0; i-- {
		if t.segments[i].Length > 0 {
			return t.segments[i]
		}
	}
	return t.segments[len(t.segments)-1]
}

// Heading returns the bearing of the segment found by the most recent
// Snapshot.
func (t *Tracker) Heading() float64 {
	idx := int(t.segment.Load())
	if idx < 0 || idx >= len(t.segments) {
		idx = 0
	}
	return t.segments[idx].Bearing()
}
