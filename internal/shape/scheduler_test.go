package shape

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLatency struct {
	d  time.Duration
	ok bool
}

func (f fakeLatency) AvgResponseTime() (time.Duration, bool) { return f.d, f.ok }

// manualClock drives the scheduler's notion of time from the test.
type manualClock struct {
	t time.Time
}

func (c *manualClock) advance(d time.Duration) { c.t = c.t.Add(d) }
func (c *manualClock) now() time.Time          { return c.t }

func newTestScheduler(t *testing.T, stages []Stage, latency LatencySource, rampRate float64) (*Scheduler, *manualClock) {
	t.Helper()
	s, err := NewScheduler(stages, latency, rampRate)
	require.NoError(t, err)
	clock := &manualClock{t: time.Unix(1000, 0)}
	s.now = clock.now
	return s, clock
}

func mustStage(t *testing.T, rate float64, d time.Duration, curve float64) Stage {
	t.Helper()
	st, err := NewStage(rate, d, curve)
	require.NoError(t, err)
	return st
}

func TestNewStage_Validation(t *testing.T) {
	_, err := NewStage(-1, time.Minute, 2)
	assert.Error(t, err, "negative rate")

	_, err = NewStage(10, 0, 2)
	assert.Error(t, err, "zero duration")

	_, err = NewStage(10, time.Minute, -0.5)
	assert.Error(t, err, "negative curve")

	_, err = NewStage(0, time.Minute, 0)
	assert.NoError(t, err, "zero rate and curve are legal")
}

func TestNewScheduler_Validation(t *testing.T) {
	_, err := NewScheduler(nil, nil, 40)
	assert.Error(t, err, "empty stage list")

	_, err = NewScheduler([]Stage{{TargetRate: 1, Duration: time.Minute, Curve: 2}}, nil, 0)
	assert.Error(t, err, "non-positive ramp rate")
}

func TestTick_WarmupFallbackLatency(t *testing.T) {
	// No latency samples yet: the 0.5s warm-up default applies.
	stages := []Stage{mustStage(t, 40, 5*time.Minute, 2)}
	s, clock := newTestScheduler(t, stages, fakeLatency{}, 40)

	tick, ok := s.Tick()
	require.True(t, ok)
	assert.Equal(t, 0, tick.Users, "sin(0)^2 is 0, so the very first tick asks for no users")
	assert.Equal(t, 40.0, tick.RampRate)

	// Halfway through: maxUsers = 0.5 * 40 = 20, sin(pi/4)^2 = 0.5. The
	// exact ceiling depends on float rounding at the 10.0 boundary.
	clock.advance(150 * time.Second)
	tick, ok = s.Tick()
	require.True(t, ok)
	assert.InDelta(t, 10, tick.Users, 1)
}

func TestTick_LiveLatencyOverridesFallback(t *testing.T) {
	stages := []Stage{mustStage(t, 10, time.Minute, 0)}
	s, clock := newTestScheduler(t, stages, fakeLatency{d: 2 * time.Second, ok: true}, 40)

	clock.advance(time.Second)
	tick, ok := s.Tick()
	require.True(t, ok)
	// Step stage: users = ceil(avgLatency * targetRate) regardless of progress.
	assert.Equal(t, 20, tick.Users)
}

func TestTick_ZeroCurveIsImmediateStep(t *testing.T) {
	stages := []Stage{mustStage(t, 40, 10*time.Minute, 0)}
	s, clock := newTestScheduler(t, stages, fakeLatency{}, 40)

	// sin(progress*pi/2)^0 == 1 for every progress, including 0.
	want := 20 // ceil(0.5 * 40 * 1 + 0)
	for _, advanceBy := range []time.Duration{0, time.Second, time.Minute, 5 * time.Minute} {
		clock.advance(advanceBy)
		tick, ok := s.Tick()
		require.True(t, ok)
		assert.Equal(t, want, tick.Users, "step output must be constant across the stage")
	}
}

func TestTick_StageAdvancesExactlyOncePerCrossing(t *testing.T) {
	stages := []Stage{
		mustStage(t, 40, time.Minute, 2),
		mustStage(t, 40, time.Minute, 0),
		mustStage(t, 0, time.Minute, 4),
	}
	s, clock := newTestScheduler(t, stages, fakeLatency{}, 40)

	_, ok := s.Tick()
	require.True(t, ok)
	assert.Equal(t, 0, s.StageIndex())

	// Jump far past the first stage's end: still only one advance per tick.
	clock.advance(90 * time.Second)
	_, ok = s.Tick()
	require.True(t, ok)
	assert.Equal(t, 1, s.StageIndex())

	clock.advance(61 * time.Second)
	_, ok = s.Tick()
	require.True(t, ok)
	assert.Equal(t, 2, s.StageIndex())
}

func TestTick_TerminatesAfterLastStage(t *testing.T) {
	stages := []Stage{mustStage(t, 10, time.Minute, 2)}
	s, clock := newTestScheduler(t, stages, fakeLatency{}, 40)

	_, ok := s.Tick()
	require.True(t, ok)

	clock.advance(61 * time.Second)
	_, ok = s.Tick()
	assert.False(t, ok, "crossing past the last stage is the end-of-run signal")
	assert.True(t, s.Finished())

	// Every subsequent call stays terminal.
	for i := 0; i < 5; i++ {
		clock.advance(time.Second)
		_, ok = s.Tick()
		assert.False(t, ok)
	}
}

func TestTick_RampUpAndRampDownNeverNegative(t *testing.T) {
	stages := []Stage{
		mustStage(t, 40, time.Minute, 2),
		mustStage(t, 0, time.Minute, 2),
	}
	s, clock := newTestScheduler(t, stages, fakeLatency{d: time.Second, ok: true}, 40)

	var last int
	for i := 0; i < 119; i++ {
		tick, ok := s.Tick()
		require.True(t, ok, "tick %d", i)
		assert.GreaterOrEqual(t, tick.Users, 0, "tick %d", i)
		last = tick.Users
		clock.advance(time.Second)
	}
	// End of the down-ramp should be back near zero.
	assert.LessOrEqual(t, last, 1)
}

func TestTick_DownRampDecreases(t *testing.T) {
	stages := []Stage{
		mustStage(t, 40, time.Minute, 2),
		mustStage(t, 0, time.Minute, 2),
	}
	s, clock := newTestScheduler(t, stages, fakeLatency{d: time.Second, ok: true}, 40)

	// Run out the first stage.
	for i := 0; i < 61; i++ {
		s.Tick()
		clock.advance(time.Second)
	}
	require.Equal(t, 1, s.StageIndex())

	// Sample the down-ramp at its start and near its end.
	early, ok := s.Tick()
	require.True(t, ok)
	clock.advance(50 * time.Second)
	late, ok := s.Tick()
	require.True(t, ok)

	assert.Greater(t, early.Users, late.Users, "down-ramp must decrease the target")
}
