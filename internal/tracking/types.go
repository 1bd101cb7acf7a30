// Package tracking holds the per-target sliding windows of position
// samples that feed the trajectory estimator.
package tracking

import (
	"fmt"
	"time"
)

// Identity keys one launched object. Names repeat across firings, so the
// launch instant is part of the key; it is kept as Unix nanoseconds so the
// struct compares safely as a map key.
type Identity struct {
	Name           string
	FiredUnixNanos int64
}

// NewIdentity builds the key for an object named name launched at fired.
func NewIdentity(name string, fired time.Time) Identity {
	return Identity{Name: name, FiredUnixNanos: fired.UnixNano()}
}

// Fired returns the launch instant.
func (id Identity) Fired() time.Time {
	return time.Unix(0, id.FiredUnixNanos)
}

func (id Identity) String() string {
	return fmt.Sprintf("%s@%s", id.Name, id.Fired().UTC().Format(time.RFC3339Nano))
}

// Position is a point in spherical coordinates: R in AU, Theta (azimuth)
// in [0, 2π), Phi (inclination) in [0, π].
type Position struct {
	R     float64 `json:"r"`
	Theta float64 `json:"theta"`
	Phi   float64 `json:"phi"`
}

// Sample is one sighting of an object.
type Sample struct {
	ObservedAt time.Time
	Position   Position
}
