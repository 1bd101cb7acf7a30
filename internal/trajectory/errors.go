package trajectory

import (
	"errors"
	"fmt"
)

// ErrDegenerateWindow is returned when both samples carry the same
// timestamp, leaving the line fit undefined.
var ErrDegenerateWindow = errors.New("trajectory: samples share a timestamp")

// ConsistencyError reports a fitted or solved model that does not
// reproduce its inputs within tolerance.
type ConsistencyError struct {
	Stage string  // "fit" or "intercept"
	Axis  string  // "r", "theta", "phi"
	At    float64 // seconds at which the check was made
	Got   float64
	Want  float64
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("trajectory: %s check failed on %s at t=%g: got %g, want %g",
		e.Stage, e.Axis, e.At, e.Got, e.Want)
}

// IsConsistencyError reports whether err wraps a *ConsistencyError.
func IsConsistencyError(err error) bool {
	var ce *ConsistencyError
	return errors.As(err, &ce)
}
