// Package shape converts a declarative list of throughput stages into a
// continuously updated target virtual-user count.
package shape

import (
	"fmt"
	"time"
)

// Stage is one configured segment of the load test: the request rate to
// reach by the end of the segment, how long the segment lasts, and the curve
// exponent shaping the ramp.
//
// A curve below 2 front-loads the ramp, above 2 back-loads it. A curve of 0
// degenerates to an immediate step at the stage's floor, with the harness's
// linear ramp-rate cap doing the smoothing instead.
//
// Stages are immutable once constructed.
type Stage struct {
	// TargetRate is the requests/second the test should be driving by the
	// end of this stage.
	TargetRate float64

	// Duration is how long it takes to reach TargetRate starting from the
	// previous stage's rate.
	Duration time.Duration

	// Curve is the exponent applied to the sine progress function.
	Curve float64
}

// NewStage validates and constructs a stage. A non-positive duration or a
// negative rate or curve is a configuration error.
func NewStage(targetRate float64, duration time.Duration, curve float64) (Stage, error) {
	if targetRate < 0 {
		return Stage{}, fmt.Errorf("stage target rate must be >= 0, got %g", targetRate)
	}
	if duration <= 0 {
		return Stage{}, fmt.Errorf("stage duration must be > 0, got %s", duration)
	}
	if curve < 0 {
		return Stage{}, fmt.Errorf("stage curve must be >= 0, got %g", curve)
	}
	return Stage{TargetRate: targetRate, Duration: duration, Curve: curve}, nil
}
