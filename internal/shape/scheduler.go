package shape

import (
	"errors"
	"math"
	"time"
)

// defaultAvgLatency is the assumed average response time before any samples
// exist. It is a warm-up heuristic inherited from the original stage plans;
// changing it changes the early ramp shape.
const defaultAvgLatency = 500 * time.Millisecond

// LatencySource supplies the live rolling average response time. The second
// return value is false while no samples have been recorded yet.
type LatencySource interface {
	AvgResponseTime() (time.Duration, bool)
}

// Tick is the scheduler's output for one control interval: how many virtual
// users the harness should be running, and the users/second cap it may use
// when linearly interpolating toward that count.
type Tick struct {
	Users    int
	RampRate float64
}

// Scheduler walks an ordered stage list, computing the desired user count
// from elapsed time within the current stage.
//
// Think of (time-in-stage, target-rate) as two endpoints in a time/rate
// plane: the scheduler follows a sine curve between them, with the stage's
// Curve exponent controlling concavity. User counts are derived from rate
// targets via Little's law, using the live average response time.
//
// Tick is expected to be called at roughly 1 Hz from a single control
// goroutine; the scheduler shares no state with the request pipeline.
type Scheduler struct {
	stages   []Stage
	latency  LatencySource
	rampRate float64

	index      int
	current    Stage
	previous   Stage
	stageStart time.Time
	finished   bool

	now func() time.Time
}

// NewScheduler creates a scheduler over the given stages. rampRate is the
// fixed users/second cap returned with every tick.
func NewScheduler(stages []Stage, latency LatencySource, rampRate float64) (*Scheduler, error) {
	if len(stages) == 0 {
		return nil, errors.New("at least one stage is required")
	}
	if rampRate <= 0 {
		return nil, errors.New("ramp rate must be > 0")
	}
	return &Scheduler{
		stages:   stages,
		latency:  latency,
		rampRate: rampRate,
		current:  stages[0],
		// A synthetic zero-rate stage so the first real stage ramps up
		// from nothing.
		previous: Stage{TargetRate: 0, Duration: time.Minute, Curve: 0},
		now:      time.Now,
	}, nil
}

// StageIndex returns the index of the stage currently in effect.
func (s *Scheduler) StageIndex() int { return s.index }

// StageCount returns the number of configured stages.
func (s *Scheduler) StageCount() int { return len(s.stages) }

// Finished reports whether the scheduler has run past its last stage.
func (s *Scheduler) Finished() bool { return s.finished }

// Tick computes the desired user count for this control interval. The second
// return value is false exactly once the last stage has completed; that is
// the authoritative end-of-run signal.
func (s *Scheduler) Tick() (Tick, bool) {
	if s.finished {
		return Tick{}, false
	}
	if s.stageStart.IsZero() {
		s.stageStart = s.now()
	}

	if s.progress() >= 1 {
		if !s.advance() {
			s.finished = true
			return Tick{}, false
		}
	}

	avgLatency := s.avgLatencySeconds()
	minUsers := avgLatency * s.previous.TargetRate
	maxUsers := avgLatency * (s.current.TargetRate - s.previous.TargetRate)

	// Pow(x, 0) == 1 for any x, so a zero curve is a constant multiplier:
	// an immediate step at minUsers+maxUsers rather than a smooth ramp.
	// A negative rate delta yields negative maxUsers and a decreasing
	// curve; it is deliberately not clamped here.
	curveValue := math.Pow(math.Sin(s.progress()*math.Pi/2), s.current.Curve)
	users := int(math.Ceil(maxUsers*curveValue + minUsers))

	return Tick{Users: users, RampRate: s.rampRate}, true
}

// progress is the fraction of the current stage's duration that has elapsed.
// It can exceed 1 when a tick arrives late.
func (s *Scheduler) progress() float64 {
	return float64(s.now().Sub(s.stageStart)) / float64(s.current.Duration)
}

// advance shifts to the next stage, resetting the stage clock. It returns
// false when no stage remains.
func (s *Scheduler) advance() bool {
	s.previous = s.current
	s.index++
	if s.index >= len(s.stages) {
		return false
	}
	s.current = s.stages[s.index]
	s.stageStart = s.now()
	return true
}

func (s *Scheduler) avgLatencySeconds() float64 {
	if s.latency != nil {
		if d, ok := s.latency.AvgResponseTime(); ok && d > 0 {
			return d.Seconds()
		}
	}
	return defaultAvgLatency.Seconds()
}
