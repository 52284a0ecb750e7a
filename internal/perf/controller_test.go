package perf

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Blodie/locust-stages/internal/perf/metrics"
	"github.com/Blodie/locust-stages/internal/shape"
)

func TestController_StepIsRampRateCapped(t *testing.T) {
	p := NewPool(noopTaskSet(), metrics.NewEngine())
	defer p.Shutdown(time.Second)
	c := NewController(nil, p)
	ctx := context.Background()

	// Target 100 with a 10 users/s cap: each 1 s step moves by at most 10.
	c.step(ctx, shape.Tick{Users: 100, RampRate: 10})
	assert.Equal(t, 10, p.ActiveCount())

	c.step(ctx, shape.Tick{Users: 100, RampRate: 10})
	assert.Equal(t, 20, p.ActiveCount())

	// Ramping down is capped the same way.
	c.step(ctx, shape.Tick{Users: 0, RampRate: 15})
	assert.Equal(t, 5, p.ActiveCount())

	c.step(ctx, shape.Tick{Users: 0, RampRate: 15})
	assert.Equal(t, 0, p.ActiveCount())
}

func TestController_ReachesTargetWithinCap(t *testing.T) {
	p := NewPool(noopTaskSet(), metrics.NewEngine())
	defer p.Shutdown(time.Second)
	c := NewController(nil, p)

	c.step(context.Background(), shape.Tick{Users: 3, RampRate: 40})
	assert.Equal(t, 3, p.ActiveCount(), "a target under the cap is reached in one step")
}

func TestController_NegativeTargetClampsToZero(t *testing.T) {
	p := NewPool(noopTaskSet(), metrics.NewEngine())
	defer p.Shutdown(time.Second)
	c := NewController(nil, p)
	ctx := context.Background()

	c.step(ctx, shape.Tick{Users: 5, RampRate: 40})
	assert.Equal(t, 5, p.ActiveCount())

	// A down-ramp stage can compute a negative user count; the pool floor
	// is zero.
	c.step(ctx, shape.Tick{Users: -7, RampRate: 40})
	assert.Equal(t, 0, p.ActiveCount())
}

func TestController_FractionalRampAccumulates(t *testing.T) {
	p := NewPool(noopTaskSet(), metrics.NewEngine())
	defer p.Shutdown(time.Second)
	c := NewController(nil, p)
	ctx := context.Background()

	// 0.4 users/s rounds to no VU after one step and one VU once the
	// fractional progress crosses 0.5.
	c.step(ctx, shape.Tick{Users: 10, RampRate: 0.4})
	assert.Equal(t, 0, p.ActiveCount())

	c.step(ctx, shape.Tick{Users: 10, RampRate: 0.4})
	assert.Equal(t, 1, p.ActiveCount())
}
