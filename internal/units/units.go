// Package units holds the physical constants and angle/time conventions
// shared by the estimator, solver and service client.
package units

import (
	"fmt"
	"math"
	"time"
)

// SpeedOfLight is c in the service's distance units per second.
const SpeedOfLight = 299792458.0

// DefaultSlugSpeed is the railgun muzzle speed: a tenth of c.
const DefaultSlugSpeed = SpeedOfLight / 10

// MaxTheta is the exclusive upper bound of the service's azimuth.
const MaxTheta = 2 * math.Pi

// NormalizeTheta wraps an azimuth into [0, 2π).
func NormalizeTheta(theta float64) float64 {
	theta = math.Mod(theta, MaxTheta)
	if theta < 0 {
		theta += MaxTheta
	}
	if theta >= MaxTheta {
		theta = 0
	}
	return theta
}

// Seconds converts a duration to fractional seconds.
func Seconds(d time.Duration) float64 {
	return d.Seconds()
}

// Duration converts fractional seconds to a time.Duration, rounding to the
// nearest nanosecond.
func Duration(seconds float64) time.Duration {
	return time.Duration(math.Round(seconds * float64(time.Second)))
}

// IsTimezoneValid checks if the given timezone is valid by attempting to
// load it from the tz database. "Local" is always valid.
func IsTimezoneValid(tz string) bool {
	if tz == "" {
		return false
	}
	_, err := time.LoadLocation(tz)
	return err == nil
}

// LoadTimezone resolves a tz database name, treating "" and "Local" as the
// host's local zone.
func LoadTimezone(tz string) (*time.Location, error) {
	if tz == "" || tz == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %s: %w", tz, err)
	}
	return loc, nil
}
