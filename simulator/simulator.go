// Package simulator drives a route tracker and the drifting sensor
// environment, producing one batch of NMEA sentences per tick and
// broadcasting it to every attached observer.
package simulator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/landyrev/simple-nmea-simulator/route"
	"github.com/landyrev/simple-nmea-simulator/sentence"
	"github.com/rs/zerolog"
)

// Fixed navigation and receiver values reported every tick
const (
	Satellites         = 4
	HDOP               = 1.0
	Altitude           = 2.0
	PDOP               = 2.0
	VDOP               = 1.0
	TransducerOffset   = 0.3
	BearingToDest      = 0.012140
	BearingToDestMag   = 260.4
	DistanceToDestNM   = 3.573
	ClosingVelocityKts = -1.4
	AISChannel         = "A"
)

// ActiveSatellites lists the PRNs reported in GSA.
var ActiveSatellites = []int{8, 11, 15, 22}

// DefaultAISMessages are pre-encoded AIS payloads replayed every tick. Each
// inner slice is one message; multi-element messages span several fragments.
var DefaultAISMessages = [][]string{
	{"17PaewhP0gar0FkcvG4hBh>t0000"},
	{"57Paewh00001<To7;?@plD5<Tl0000000000000U1@:552R8R2TnA3QF", "@00000000000002"},
}

// Batch is the ordered output of one tick.
type Batch struct {
	Sentences   []string       `json:"sentences"`
	Snapshot    route.Snapshot `json:"snapshot"`
	Environment Environment    `json:"environment"`
	Timestamp   time.Time      `json:"timestamp"`
}

// Status represents the current simulator status
type Status struct {
	Running       bool           `json:"running"`
	StartTime     time.Time      `json:"start_time,omitempty"`
	ElapsedTime   time.Duration  `json:"elapsed_time"`
	Ticks         uint64         `json:"ticks"`
	Subscribers   int            `json:"subscribers"`
	RouteComplete bool           `json:"route_complete"`
	Snapshot      route.Snapshot `json:"snapshot"`
	Environment   Environment    `json:"environment"`
	Config        Config         `json:"config"`
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithSource sets the random source used for the environment walk and
// per-field variation. It must not be shared with other goroutines.
func WithSource(src sentence.Source) Option {
	return func(s *Simulator) { s.src = src }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Simulator) { s.log = log }
}

// WithClock replaces time.Now for the tick loop and Status.
func WithClock(now func() time.Time) Option {
	return func(s *Simulator) { s.now = now }
}

// WithAISMessages replaces DefaultAISMessages. Empty messages are ignored.
func WithAISMessages(messages [][]string) Option {
	return func(s *Simulator) { s.ais = messages }
}

// WithEnvironment sets the initial sensor readings.
func WithEnvironment(env Environment) Option {
	return func(s *Simulator) { s.env = env }
}

// Simulator represents the NMEA simulator
type Simulator struct {
	config  Config
	tracker *route.Tracker
	log     zerolog.Logger
	now     func() time.Time
	ais     [][]string

	// tickMu serializes ticks. It guards src, env, last and gpx.
	tickMu  sync.Mutex
	src     sentence.Source
	env     Environment
	last    route.Snapshot
	hasLast bool
	gpx     *route.GPXWriter

	mu        sync.RWMutex
	running   bool
	startTime time.Time
	cancel    context.CancelFunc
	done      chan struct{}
	ticks     uint64
	lastBatch Batch

	finished   chan struct{}
	finishOnce sync.Once

	subMu     sync.RWMutex
	subs      map[string]*Subscription
	callbacks []func(Batch)
}

// New creates a simulator that reports the position of tracker.
func New(config Config, tracker *route.Tracker, opts ...Option) *Simulator {
	s := &Simulator{
		config:  config,
		tracker: tracker,
		log:     zerolog.Nop(),
		now:     time.Now,
		ais:     DefaultAISMessages,
		env:     DefaultEnvironment(),
		subs:    make(map[string]*Subscription),

		finished: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.src == nil {
		seed := config.Seed
		if seed == 0 {
			seed = s.now().UnixNano()
		}
		s.src = sentence.NewSource(seed)
	}
	return s
}

// Tracker returns the route tracker.
func (s *Simulator) Tracker() *route.Tracker {
	return s.tracker
}

// Config returns the configuration the simulator was created with.
func (s *Simulator) Config() Config {
	return s.config
}

// Environment returns the current sensor readings.
func (s *Simulator) Environment() Environment {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()
	return s.env
}

// Reset restarts the route from its first waypoint.
func (s *Simulator) Reset() {
	now := s.now()
	s.tracker.Reset(now)
	s.log.Info().Time("at", now).Msg("Route reset")
}

// Tick advances the environment once and renders the full sentence batch
// for now. Sentences that fail to render are logged and left out.
func (s *Simulator) Tick(now time.Time) Batch {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	s.env.Step(s.src)
	snap := s.snapshot(now)

	if s.gpx != nil {
		if err := s.gpx.AddTrackPoint(snap.Position, now); err != nil {
			s.log.Warn().Err(err).Msg("Failed to write GPX track")
		}
	}

	sentences := s.sentences(now, snap)
	out := make([]string, 0, len(sentences))
	for _, st := range sentences {
		text, err := sentence.Render(st, s.src)
		if err != nil {
			s.log.Error().Err(err).Str("sentence", st.Kind().Address()).Msg("Failed to render sentence")
			continue
		}
		out = append(out, text)
	}

	return Batch{
		Sentences:   out,
		Snapshot:    snap,
		Environment: s.env,
		Timestamp:   now,
	}
}

// snapshot queries the tracker, falling back to the last good position when
// the segment walk fails.
func (s *Simulator) snapshot(now time.Time) route.Snapshot {
	snap, err := s.tracker.Snapshot(now)
	if err != nil {
		if errors.Is(err, route.ErrUnreachablePosition) && s.hasLast {
			s.log.Warn().Err(err).Msg("Using last known position")
			return s.last
		}
		s.log.Warn().Err(err).Msg("Using route end position")
	}
	s.last = snap
	s.hasLast = true
	return snap
}

// sentences builds the tick's sentences in broadcast order.
func (s *Simulator) sentences(now time.Time, snap route.Snapshot) []sentence.Sentence {
	pos := snap.Position
	heading := snap.HeadingDeg
	speed := snap.SpeedKnots
	env := s.env

	out := []sentence.Sentence{
		sentence.NewRMC(now, pos, speed, heading),
		sentence.NewVHW(now, speed, heading),
		sentence.NewVTG(now, heading, speed),
		sentence.NewHDT(now, heading),
		sentence.NewGLL(now, pos),
		sentence.NewGGA(now, pos, Satellites, HDOP, Altitude),
		sentence.NewGSA(now, ActiveSatellites, PDOP, HDOP, VDOP),
		sentence.NewZDA(now, s.config.ZoneHours, s.config.ZoneMinutes),
		sentence.NewVBW(now, speed),
		sentence.NewMWD(now, env.WindDirection, env.WindSpeed),
		sentence.NewMWV(now, env.WindDirection, env.WindSpeed),
		sentence.NewMTW(now, env.WaterTemp),
		sentence.NewDPT(now, env.Depth, TransducerOffset),
		sentence.NewDBT(now, env.Depth),
		sentence.NewRPM(now, "1", env.EngineRPM, env.EnginePitch),
		sentence.NewRPM(now, "2", 0, env.EnginePitch),
		sentence.NewAPB(now, BearingToDest, BearingToDestMag, heading),
		sentence.NewRMB(now, pos, BearingToDest, DistanceToDestNM, heading, ClosingVelocityKts),
	}

	for _, msg := range s.ais {
		if len(msg) == 0 {
			continue
		}
		frags := sentence.Fragments(AISChannel, msg...)
		for _, f := range frags {
			out = append(out, sentence.NewVDO(now, f))
		}
		for _, f := range frags {
			out = append(out, sentence.NewVDM(now, f))
		}
	}

	return out
}
