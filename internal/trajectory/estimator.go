package trajectory

import (
	"github.com/banshee-data/neocrisis/internal/tracking"
)

// Estimator turns a full tracking window into a Model.
type Estimator struct {
	Tolerance Tolerance
}

// NewEstimator returns an Estimator that validates fits with tol.
func NewEstimator(tol Tolerance) *Estimator {
	return &Estimator{Tolerance: tol}
}

// Estimate fits r, theta and phi independently through the two samples,
// using seconds since id's launch as the time axis, then checks that each
// fitted line reproduces the newer sample.
//
// It returns ErrDegenerateWindow when the samples share a timestamp and a
// *ConsistencyError when a line fails its check.
func (e *Estimator) Estimate(id tracking.Identity, older, newer tracking.Sample) (Model, error) {
	m := Model{Identity: id, Fired: id.Fired()}
	t0 := m.Elapsed(older.ObservedAt)
	t1 := m.Elapsed(newer.ObservedAt)

	axes := []struct {
		name   string
		y0, y1 float64
		line   *Line
	}{
		{"r", older.Position.R, newer.Position.R, &m.R},
		{"theta", older.Position.Theta, newer.Position.Theta, &m.Theta},
		{"phi", older.Position.Phi, newer.Position.Phi, &m.Phi},
	}

	for _, axis := range axes {
		line, err := FitLine(t0, axis.y0, t1, axis.y1)
		if err != nil {
			return Model{}, err
		}
		if got := line.At(t1); !e.Tolerance.Equal(got, axis.y1) {
			return Model{}, &ConsistencyError{Stage: "fit", Axis: axis.name, At: t1, Got: got, Want: axis.y1}
		}
		*axis.line = line
	}

	return m, nil
}
