// Package trajectory fits the linear motion model of a tracked object from
// two position samples.
package trajectory

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats/scalar"

	"github.com/banshee-data/neocrisis/internal/tracking"
	"github.com/banshee-data/neocrisis/internal/units"
)

// Line is y(t) = Slope*t + Intercept, t in seconds.
type Line struct {
	Slope     float64
	Intercept float64
}

// At evaluates the line at t.
func (l Line) At(t float64) float64 {
	return l.Slope*t + l.Intercept
}

// FitLine returns the line through (t0, y0) and (t1, y1).
func FitLine(t0, y0, t1, y1 float64) (Line, error) {
	if t0 == t1 {
		return Line{}, ErrDegenerateWindow
	}
	slope := (y0 - y1) / (t0 - t1)
	return Line{Slope: slope, Intercept: y0 - slope*t0}, nil
}

// Tolerance is the approximate-equality rule used by every self-check.
// Two values agree when they are within Abs of each other or within Rel of
// the larger magnitude.
type Tolerance struct {
	Abs float64
	Rel float64
}

// DefaultTolerance matches the shipped configuration defaults.
var DefaultTolerance = Tolerance{Abs: 1e-6, Rel: 1e-6}

// Equal reports whether a and b agree. NaN never agrees.
func (tol Tolerance) Equal(a, b float64) bool {
	return scalar.EqualWithinAbsOrRel(a, b, tol.Abs, tol.Rel)
}

// Model is the fitted motion of one object. Each axis is a line in
// seconds elapsed since Fired.
type Model struct {
	Identity tracking.Identity
	Fired    time.Time
	R        Line
	Theta    Line
	Phi      Line
}

// Elapsed returns the seconds between the launch and t.
func (m Model) Elapsed(t time.Time) float64 {
	return units.Seconds(t.Sub(m.Fired))
}

// PositionAfter evaluates every axis at elapsed seconds since launch.
func (m Model) PositionAfter(elapsed float64) tracking.Position {
	return tracking.Position{
		R:     m.R.At(elapsed),
		Theta: m.Theta.At(elapsed),
		Phi:   m.Phi.At(elapsed),
	}
}

// At evaluates the model at an absolute instant.
func (m Model) At(t time.Time) tracking.Position {
	return m.PositionAfter(m.Elapsed(t))
}

// Velocity is the radial speed, negative when approaching.
func (m Model) Velocity() float64 {
	return m.R.Slope
}

// ImpactETA returns how long after now the object reaches r = 0. ok is
// false for objects that are not approaching.
func (m Model) ImpactETA(now time.Time) (eta time.Duration, ok bool) {
	if m.R.Slope >= 0 || math.IsNaN(m.R.Slope) {
		return 0, false
	}
	impact := -m.R.Intercept / m.R.Slope
	return units.Duration(impact - m.Elapsed(now)), true
}
