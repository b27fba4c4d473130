package simulator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/landyrev/simple-nmea-simulator/route"
)

// SubscriptionBuffer is the number of batches a slow subscriber may lag
// behind before batches are dropped for it.
const SubscriptionBuffer = 16

// Subscription receives every batch broadcast after it was created. C is
// closed when the subscription is removed or the simulator stops.
type Subscription struct {
	ID string
	C  <-chan Batch

	ch      chan Batch
	once    sync.Once
	dropped atomic.Uint64
}

// Dropped returns how many batches were discarded because C was full.
func (sub *Subscription) Dropped() uint64 {
	return sub.dropped.Load()
}

func (sub *Subscription) close() {
	sub.once.Do(func() { close(sub.ch) })
}

// Subscribe attaches a new observer.
func (s *Simulator) Subscribe() *Subscription {
	ch := make(chan Batch, SubscriptionBuffer)
	sub := &Subscription{ID: uuid.NewString(), C: ch, ch: ch}

	s.subMu.Lock()
	s.subs[sub.ID] = sub
	count := len(s.subs)
	s.subMu.Unlock()

	s.log.Debug().Str("subscriber", sub.ID).Int("subscribers", count).Msg("Subscriber attached")
	return sub
}

// Unsubscribe detaches the observer with id and closes its channel. Unknown
// ids are ignored.
func (s *Simulator) Unsubscribe(id string) {
	s.subMu.Lock()
	sub, ok := s.subs[id]
	delete(s.subs, id)
	count := len(s.subs)
	s.subMu.Unlock()

	if ok {
		sub.close()
		s.log.Debug().Str("subscriber", id).Int("subscribers", count).Msg("Subscriber detached")
	}
}

// Subscribers returns the number of attached observers.
func (s *Simulator) Subscribers() int {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	return len(s.subs)
}

// AddCallback adds a callback function that will be called with each batch
func (s *Simulator) AddCallback(callback func(Batch)) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.callbacks = append(s.callbacks, callback)
}

// publish fans a batch out to every observer without blocking the tick.
func (s *Simulator) publish(batch Batch) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()

	for _, sub := range s.subs {
		select {
		case sub.ch <- batch:
		default:
			sub.dropped.Add(1)
			s.log.Debug().Str("subscriber", sub.ID).Msg("Subscriber lagging, batch dropped")
		}
	}

	for _, callback := range s.callbacks {
		go callback(batch) // Call async to avoid blocking
	}
}

func (s *Simulator) closeSubscribers() {
	s.subMu.Lock()
	subs := s.subs
	s.subs = make(map[string]*Subscription)
	s.subMu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
}

// Start starts the tick loop. The route restarts from its first waypoint.
// The loop ends when ctx is cancelled, Stop is called or the configured
// Duration elapses.
func (s *Simulator) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrSimulatorAlreadyRunning
	}

	if s.config.GPXFile != "" {
		gpx, err := route.NewGPXWriter(s.config.GPXFile)
		if err != nil {
			return fmt.Errorf("failed to create GPX writer: %w", err)
		}
		s.tickMu.Lock()
		s.gpx = gpx
		s.tickMu.Unlock()
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true
	s.startTime = s.now()
	s.ticks = 0
	s.tracker.Reset(s.startTime)

	s.log.Info().
		Int("waypoints", s.tracker.Route().Len()).
		Float64("speed", s.tracker.SpeedKnots()).
		Dur("rate", s.config.OutputRate).
		Msg("Simulator started")

	go s.run(ctx, s.done)
	return nil
}

// Stop stops the tick loop and waits for it to exit.
func (s *Simulator) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSimulatorNotRunning
	}
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
	return nil
}

// Done returns a channel closed when the current run ends. It is nil before
// the first Start.
func (s *Simulator) Done() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.done
}

// Finished returns a channel closed the first time a run ends because the
// configured Duration elapsed. Runs ended by Stop or cancellation never
// close it.
func (s *Simulator) Finished() <-chan struct{} {
	return s.finished
}

// IsRunning returns whether the simulator is currently running
func (s *Simulator) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Status returns the current simulator status
func (s *Simulator) Status() Status {
	now := s.now()

	s.mu.RLock()
	running, start, ticks, last := s.running, s.startTime, s.ticks, s.lastBatch
	s.mu.RUnlock()

	var elapsed time.Duration
	if running {
		elapsed = now.Sub(start)
	}

	snap := last.Snapshot
	env := last.Environment
	if last.Timestamp.IsZero() {
		snap, _ = s.tracker.Snapshot(now)
		env = s.Environment()
	}

	return Status{
		Running:       running,
		StartTime:     start,
		ElapsedTime:   elapsed,
		Ticks:         ticks,
		Subscribers:   s.Subscribers(),
		RouteComplete: !s.tracker.Route().IsLoop() && s.tracker.IsRouteComplete(now),
		Snapshot:      snap,
		Environment:   env,
		Config:        s.config,
	}
}

// run is the main tick loop
func (s *Simulator) run(ctx context.Context, done chan struct{}) {
	ticker := time.NewTicker(s.config.OutputRate)

	var durationChan <-chan time.Time
	if s.config.Duration > 0 {
		durationTimer := time.NewTimer(s.config.Duration)
		durationChan = durationTimer.C
		defer durationTimer.Stop()
	}

	defer func() {
		ticker.Stop()

		s.tickMu.Lock()
		if s.gpx != nil {
			if err := s.gpx.Close(); err != nil {
				s.log.Warn().Err(err).Msg("Failed to close GPX track")
			}
			s.gpx = nil
		}
		s.tickMu.Unlock()

		// Subscribers attached after this point belong to the next run.
		s.closeSubscribers()

		s.mu.Lock()
		s.running = false
		s.cancel()
		s.mu.Unlock()

		s.log.Info().Msg("Simulator stopped")
		close(done)
	}()

	s.emit()
	for {
		select {
		case <-ctx.Done():
			return
		case <-durationChan:
			s.log.Info().Dur("duration", s.config.Duration).Msg("Run duration reached")
			s.finishOnce.Do(func() { close(s.finished) })
			return
		case <-ticker.C:
			s.emit()
		}
	}
}

func (s *Simulator) emit() {
	batch := s.Tick(s.now())

	s.mu.Lock()
	s.ticks++
	s.lastBatch = batch
	s.mu.Unlock()

	s.log.Debug().Int("sentences", len(batch.Sentences)).Msg("Tick")
	s.publish(batch)
}
