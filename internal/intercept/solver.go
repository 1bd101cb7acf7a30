// Package intercept solves for the time and bearing at which a slug meets
// a tracked rock, and schedules the railgun shot.
package intercept

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/neocrisis/internal/tracking"
	"github.com/banshee-data/neocrisis/internal/trajectory"
	"github.com/banshee-data/neocrisis/internal/units"
)

// ErrNoIntercept is returned when the two radial speeds are too close for
// the paths to meet at a single instant.
var ErrNoIntercept = errors.New("intercept: radial speeds are equal")

// DefaultEpsilon is the smallest speed difference the solver accepts.
const DefaultEpsilon = 1e-9

// Interceptor describes the slug: a fixed radial speed from r = 0,
// starting at Launch.
type Interceptor struct {
	Speed  float64
	Launch time.Time
}

// Solution is where and when the slug meets the rock.
type Solution struct {
	Launch      time.Time
	CollideTime time.Time
	// Lead is the slug's flight time in seconds, CollideTime minus Launch
	// before rounding to whole nanoseconds. Close rocks are met well
	// under a nanosecond after launch.
	Lead float64
	// Aim is the rock's position at CollideTime. Theta is normalised into
	// [0, 2π).
	Aim tracking.Position
}

// Reachable reports whether the meeting happens after launch and in front
// of the origin.
func (s Solution) Reachable() bool {
	return s.Lead > 0 && s.Aim.R >= 0
}

// Solver holds the numeric thresholds for intercept solutions.
type Solver struct {
	Tolerance trajectory.Tolerance
	Epsilon   float64
}

// NewSolver returns a Solver; a non-positive epsilon selects DefaultEpsilon.
func NewSolver(tol trajectory.Tolerance, epsilon float64) Solver {
	if epsilon <= 0 {
		epsilon = DefaultEpsilon
	}
	return Solver{Tolerance: tol, Epsilon: epsilon}
}

// CollisionTime returns the instant tc at which
//
//	vT*(tc - tFiredT) + r0T == vI*(tc - tLaunchI)
//
// with every time in seconds on a common axis. The result is checked by
// evaluating both radii at tc.
func (s Solver) CollisionTime(vT, r0T, tFiredT, vI, tLaunchI float64) (float64, error) {
	if math.Abs(vT-vI) < s.Epsilon {
		return 0, ErrNoIntercept
	}
	tc := (vT*tFiredT - r0T - vI*tLaunchI) / (vT - vI)

	target := vT*(tc-tFiredT) + r0T
	slug := vI * (tc - tLaunchI)
	if !s.Tolerance.Equal(target, slug) {
		return 0, &trajectory.ConsistencyError{Stage: "intercept", Axis: "r", At: tc, Got: slug, Want: target}
	}
	return tc, nil
}

// Solve intercepts m with ic. Instants are converted to seconds relative
// to anchor, normally the current time, so the arithmetic works on small
// magnitudes.
func (s Solver) Solve(m trajectory.Model, ic Interceptor, anchor time.Time) (Solution, error) {
	tFired := units.Seconds(m.Fired.Sub(anchor))
	tLaunch := units.Seconds(ic.Launch.Sub(anchor))

	tc, err := s.CollisionTime(m.R.Slope, m.R.Intercept, tFired, ic.Speed, tLaunch)
	if err != nil {
		return Solution{}, fmt.Errorf("solve %s: %w", m.Identity, err)
	}

	aim := m.PositionAfter(tc - tFired)
	aim.Theta = units.NormalizeTheta(aim.Theta)

	return Solution{
		Launch:      ic.Launch,
		CollideTime: anchor.Add(units.Duration(tc)),
		Lead:        tc - tLaunch,
		Aim:         aim,
	}, nil
}
