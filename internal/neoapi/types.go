package neoapi

import (
	"fmt"
	"time"

	"github.com/banshee-data/neocrisis/internal/tracking"
)

// Object types reported by the telescope.
const (
	TypeRock = "rock"
	TypeSlug = "slug"
)

// Octant bounds accepted by the telescope.
const (
	MinOctant = 1
	MaxOctant = 8
)

// Cartesian is the service's x/y/z rendering of a position, in AU.
type Cartesian struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Object is one rock or slug as the service reports it. Timestamps are
// kept as sent; use Sighting to interpret them.
type Object struct {
	ID        int64             `json:"id"`
	Type      string            `json:"type"`
	Name      string            `json:"name"`
	Target    string            `json:"target"`
	Mass      *float64          `json:"mass,omitempty"`
	Fired     string            `json:"fired,omitempty"`
	FiredTime string            `json:"fired_time,omitempty"`
	Pos       tracking.Position `json:"pos"`
	CPos      Cartesian         `json:"cpos"`
	ObsTime   string            `json:"obs_time"`
	Octant    int               `json:"octant"`
	Age       float64           `json:"age"`
}

// IsRock reports whether the object is an incoming rock.
func (o Object) IsRock() bool {
	return o.Type == TypeRock
}

// LaunchTime returns the object's launch instant. Railgun responses name
// the field fired_time; telescope responses name it fired.
func (o Object) LaunchTime(loc *time.Location) (time.Time, error) {
	raw := o.Fired
	if raw == "" {
		raw = o.FiredTime
	}
	return ParseTimestamp(raw, loc)
}

// Sighting converts the object into a store key and sample.
func (o Object) Sighting(loc *time.Location) (tracking.Identity, tracking.Sample, error) {
	fired, err := o.LaunchTime(loc)
	if err != nil {
		return tracking.Identity{}, tracking.Sample{}, fmt.Errorf("object %q fired: %w", o.Name, err)
	}
	observed, err := ParseTimestamp(o.ObsTime, loc)
	if err != nil {
		return tracking.Identity{}, tracking.Sample{}, fmt.Errorf("object %q obs_time: %w", o.Name, err)
	}
	return tracking.NewIdentity(o.Name, fired), tracking.Sample{ObservedAt: observed, Position: o.Pos}, nil
}

// Observation is the telescope's response for one octant.
type Observation struct {
	Objects []Object `json:"objects"`
}

// FireRequest is a railgun command. A nil Fired fires on receipt.
type FireRequest struct {
	Name   string
	Theta  float64
	Phi    float64
	Target string
	Fired  *time.Time
}

// SlugName is the label given to the slug aimed at rock.
func SlugName(rock string) string {
	return "@ " + rock
}

type fireBody struct {
	Name   string  `json:"name"`
	Theta  float64 `json:"theta"`
	Phi    float64 `json:"phi"`
	Target string  `json:"target,omitempty"`
	Fired  string  `json:"fired,omitempty"`
}

type fireResponse struct {
	Object Object `json:"object"`
}

// Info is the service status document.
type Info struct {
	Name    string `json:"name"`
	Railgun struct {
		Online bool `json:"online"`
	} `json:"railgun"`
	Telescope struct {
		Online bool `json:"online"`
	} `json:"telescope"`
}
