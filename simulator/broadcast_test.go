package simulator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/landyrev/simple-nmea-simulator/route"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.OutputRate = 10 * time.Millisecond
	return cfg
}

func receive(t *testing.T, sub *Subscription) Batch {
	t.Helper()
	select {
	case batch, ok := <-sub.C:
		require.True(t, ok, "subscription closed")
		return batch
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for batch")
		return Batch{}
	}
}

func waitClosed(t *testing.T, sub *Subscription) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-sub.C:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("subscription was not closed")
		}
	}
}

func TestStartStop(t *testing.T) {
	sim := newTestSimulator(t, fastConfig())
	assert.False(t, sim.IsRunning())
	assert.ErrorIs(t, sim.Stop(), ErrSimulatorNotRunning)

	sub := sim.Subscribe()
	require.NoError(t, sim.Start(context.Background()))
	assert.True(t, sim.IsRunning())
	assert.ErrorIs(t, sim.Start(context.Background()), ErrSimulatorAlreadyRunning)

	batch := receive(t, sub)
	assert.Len(t, batch.Sentences, 24)

	require.NoError(t, sim.Stop())
	assert.False(t, sim.IsRunning())
	waitClosed(t, sub)
	assert.Equal(t, 0, sim.Subscribers())

	assert.ErrorIs(t, sim.Stop(), ErrSimulatorNotRunning)
}

func TestStartResetsRoute(t *testing.T) {
	now := testStart.Add(3 * time.Hour)
	sim := newTestSimulator(t, fastConfig(), WithClock(func() time.Time { return now }))

	require.NoError(t, sim.Start(context.Background()))
	defer sim.Stop()

	assert.Equal(t, now, sim.Tracker().StartTime())
}

func TestBroadcastSameBatchToAllSubscribers(t *testing.T) {
	sim := newTestSimulator(t, fastConfig())
	a, b := sim.Subscribe(), sim.Subscribe()
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 2, sim.Subscribers())

	require.NoError(t, sim.Start(context.Background()))
	defer sim.Stop()

	for i := 0; i < 3; i++ {
		assert.Equal(t, receive(t, a), receive(t, b))
	}
}

func TestUnsubscribe(t *testing.T) {
	sim := newTestSimulator(t, fastConfig())
	sub := sim.Subscribe()
	other := sim.Subscribe()

	sim.Unsubscribe(sub.ID)
	sim.Unsubscribe(sub.ID)
	sim.Unsubscribe("unknown")

	waitClosed(t, sub)
	assert.Equal(t, 1, sim.Subscribers())

	require.NoError(t, sim.Start(context.Background()))
	defer sim.Stop()
	receive(t, other)
}

func TestSlowSubscriberDropsBatches(t *testing.T) {
	sim := newTestSimulator(t, fastConfig())
	slow := sim.Subscribe()

	batch := sim.Tick(testStart)
	for i := 0; i < SubscriptionBuffer+4; i++ {
		sim.publish(batch)
	}

	assert.Equal(t, uint64(4), slow.Dropped())
	assert.Len(t, slow.C, SubscriptionBuffer)
}

func TestAddCallback(t *testing.T) {
	sim := newTestSimulator(t, fastConfig())

	got := make(chan Batch, 64)
	sim.AddCallback(func(b Batch) {
		select {
		case got <- b:
		default:
		}
	})

	require.NoError(t, sim.Start(context.Background()))
	defer sim.Stop()

	select {
	case b := <-got:
		assert.NotEmpty(t, b.Sentences)
	case <-time.After(2 * time.Second):
		t.Fatal("callback not called")
	}
}

func TestContextCancelStops(t *testing.T) {
	sim := newTestSimulator(t, fastConfig())
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, sim.Start(ctx))
	cancel()

	select {
	case <-sim.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("simulator did not stop")
	}
	assert.False(t, sim.IsRunning())
}

func TestDurationStops(t *testing.T) {
	cfg := fastConfig()
	cfg.Duration = 50 * time.Millisecond
	sim := newTestSimulator(t, cfg)

	require.NoError(t, sim.Start(context.Background()))

	select {
	case <-sim.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("simulator did not stop after duration")
	}
	assert.False(t, sim.IsRunning())
	assert.Greater(t, sim.Status().Ticks, uint64(0))
}

func TestStatus(t *testing.T) {
	sim := newTestSimulator(t, fastConfig())

	status := sim.Status()
	assert.False(t, status.Running)
	assert.Equal(t, uint64(0), status.Ticks)
	assert.Equal(t, DefaultEnvironment(), status.Environment)

	sub := sim.Subscribe()
	require.NoError(t, sim.Start(context.Background()))
	defer sim.Stop()
	receive(t, sub)

	status = sim.Status()
	assert.True(t, status.Running)
	assert.GreaterOrEqual(t, status.Ticks, uint64(1))
	assert.Equal(t, 1, status.Subscribers)
	assert.Equal(t, 5.0, status.Snapshot.SpeedKnots)
	assert.False(t, status.RouteComplete)
	assert.Equal(t, fastConfig(), status.Config)
}

func TestRestartAfterStop(t *testing.T) {
	sim := newTestSimulator(t, fastConfig())

	require.NoError(t, sim.Start(context.Background()))
	require.NoError(t, sim.Stop())

	sub := sim.Subscribe()
	require.NoError(t, sim.Start(context.Background()))
	defer sim.Stop()
	receive(t, sub)
}

func TestGPXTrackRecorded(t *testing.T) {
	cfg := fastConfig()
	cfg.GPXFile = filepath.Join(t.TempDir(), "track.gpx")
	sim := newTestSimulator(t, cfg)

	sub := sim.Subscribe()
	require.NoError(t, sim.Start(context.Background()))
	receive(t, sub)
	receive(t, sub)
	require.NoError(t, sim.Stop())

	f, err := os.Open(cfg.GPXFile)
	require.NoError(t, err)
	defer f.Close()

	points, err := route.ReadGPX(f)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(points), 2)
}

func TestStartGPXError(t *testing.T) {
	cfg := fastConfig()
	cfg.GPXFile = filepath.Join(t.TempDir(), "missing", "track.gpx")
	sim := newTestSimulator(t, cfg)

	assert.Error(t, sim.Start(context.Background()))
	assert.False(t, sim.IsRunning())
}

func TestFinishedOnlyOnDuration(t *testing.T) {
	sim := newTestSimulator(t, fastConfig())

	require.NoError(t, sim.Start(context.Background()))
	require.NoError(t, sim.Stop())

	select {
	case <-sim.Finished():
		t.Fatal("finished after Stop")
	default:
	}

	cfg := fastConfig()
	cfg.Duration = 30 * time.Millisecond
	timed := newTestSimulator(t, cfg)
	require.NoError(t, timed.Start(context.Background()))

	select {
	case <-timed.Finished():
	case <-time.After(2 * time.Second):
		t.Fatal("duration did not finish the simulator")
	}
	<-timed.Done()
	assert.False(t, timed.IsRunning())
}

func TestSubscribeAfterStopSurvivesShutdown(t *testing.T) {
	sim := newTestSimulator(t, fastConfig())

	for i := 0; i < 20; i++ {
		require.NoError(t, sim.Start(context.Background()))

		stopped := make(chan error, 1)
		go func() { stopped <- sim.Stop() }()
		require.Eventually(t, func() bool { return !sim.IsRunning() }, 2*time.Second, time.Millisecond)

		// The previous run may still be finishing its shutdown here.
		sub := sim.Subscribe()
		require.NoError(t, sim.Start(context.Background()))
		receive(t, sub)

		require.NoError(t, <-stopped)
		require.NoError(t, sim.Stop())
	}
}
