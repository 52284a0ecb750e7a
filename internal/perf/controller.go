package perf

import (
	"context"
	"math"
	"time"

	"github.com/Blodie/locust-stages/internal/shape"
)

// controlInterval is the shape scheduler's tick cadence.
const controlInterval = time.Second

// Controller drives the pool from the shape scheduler. Once per second it
// asks the scheduler for the desired user count and moves the pool toward it,
// capped at the tick's ramp rate in users per second, so a zero-curve step
// stage still ramps linearly instead of spawning hundreds of VUs at once.
type Controller struct {
	scheduler *shape.Scheduler
	pool      *Pool
	interval  time.Duration

	// current tracks the interpolated user count fractionally so a ramp
	// rate below one user per tick still makes progress.
	current float64
}

// NewController creates a controller stepping pool toward scheduler's
// targets.
func NewController(scheduler *shape.Scheduler, pool *Pool) *Controller {
	return &Controller{
		scheduler: scheduler,
		pool:      pool,
		interval:  controlInterval,
	}
}

// Run ticks until the scheduler signals end of run or ctx is cancelled. A
// completed stage plan returns nil; cancellation returns the context error.
func (c *Controller) Run(ctx context.Context) error {
	c.current = float64(c.pool.ActiveCount())

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			tick, ok := c.scheduler.Tick()
			if !ok {
				return nil
			}
			c.step(ctx, tick)
		}
	}
}

// step moves the pool one ramp-rate-capped increment toward tick's target.
func (c *Controller) step(ctx context.Context, tick shape.Tick) {
	target := float64(tick.Users)
	if target < 0 {
		target = 0
	}

	maxStep := tick.RampRate * c.interval.Seconds()
	delta := target - c.current
	if delta > maxStep {
		delta = maxStep
	} else if delta < -maxStep {
		delta = -maxStep
	}
	c.current += delta

	c.pool.Scale(ctx, int(math.Round(c.current)))
}
