package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/neocrisis/internal/units"
)

// DefaultConfigPath is the path to the canonical autofire defaults file.
const DefaultConfigPath = "config/autofire.defaults.json"

// AutofireConfig holds the tunables of the targeting loop. Every field is
// optional; the Get* accessors supply the default for anything omitted, so
// a partial file only overrides what it names.
type AutofireConfig struct {
	// Interceptor
	SlugSpeed  *float64 `json:"slug_speed,omitempty"`  // distance units per second
	LaunchLead *string  `json:"launch_lead,omitempty"` // duration string like "5s"

	// Loop pacing
	EvaluatePause  *string `json:"evaluate_pause,omitempty"`  // pause after each evaluated identity
	RequestTimeout *string `json:"request_timeout,omitempty"` // per HTTP request

	// Self-consistency checks
	AbsTolerance  *float64 `json:"abs_tolerance,omitempty"`
	RelTolerance  *float64 `json:"rel_tolerance,omitempty"`
	SolverEpsilon *float64 `json:"solver_epsilon,omitempty"`

	// Sample store
	MaxTracked *int `json:"max_tracked,omitempty"`

	// Actuation endpoint
	ServerTimezone  *string `json:"server_timezone,omitempty"`
	FireHorizon     *string `json:"fire_horizon,omitempty"`
	ServerScheduled *bool   `json:"server_scheduled,omitempty"`
}

// EmptyConfig returns an AutofireConfig with all fields set to nil.
func EmptyConfig() *AutofireConfig {
	return &AutofireConfig{}
}

// LoadConfig loads an AutofireConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadConfig(path string) (*AutofireConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath,
// searching the current directory and its parents. Panics if the file
// cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *AutofireConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from cmd/autofire/ and deeper
	}
	for _, path := range candidates {
		if cfg, err := LoadConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are usable.
func (c *AutofireConfig) Validate() error {
	if c.SlugSpeed != nil && *c.SlugSpeed <= 0 {
		return fmt.Errorf("slug_speed must be positive, got %f", *c.SlugSpeed)
	}

	durations := []struct {
		name     string
		value    *string
		positive bool
	}{
		{"launch_lead", c.LaunchLead, true},
		{"evaluate_pause", c.EvaluatePause, false},
		{"request_timeout", c.RequestTimeout, true},
		{"fire_horizon", c.FireHorizon, true},
	}
	for _, d := range durations {
		if d.value == nil || *d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(*d.value)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", d.name, *d.value, err)
		}
		if parsed < 0 || (d.positive && parsed == 0) {
			return fmt.Errorf("%s must be positive, got %s", d.name, *d.value)
		}
	}

	if c.LaunchLead != nil && c.FireHorizon != nil && *c.LaunchLead != "" && *c.FireHorizon != "" {
		if c.GetLaunchLead() >= c.GetFireHorizon() {
			return fmt.Errorf("launch_lead %s must be shorter than fire_horizon %s", *c.LaunchLead, *c.FireHorizon)
		}
	}

	for name, v := range map[string]*float64{
		"abs_tolerance":  c.AbsTolerance,
		"rel_tolerance":  c.RelTolerance,
		"solver_epsilon": c.SolverEpsilon,
	} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%s must be non-negative, got %g", name, *v)
		}
	}

	if c.MaxTracked != nil && *c.MaxTracked < 1 {
		return fmt.Errorf("max_tracked must be at least 1, got %d", *c.MaxTracked)
	}

	if c.ServerTimezone != nil && *c.ServerTimezone != "" && !units.IsTimezoneValid(*c.ServerTimezone) {
		return fmt.Errorf("invalid server_timezone %q", *c.ServerTimezone)
	}

	return nil
}

func parseDurationOr(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def
	}
	return d
}

// GetSlugSpeed returns the slug_speed value or the default (c/10).
func (c *AutofireConfig) GetSlugSpeed() float64 {
	if c.SlugSpeed == nil {
		return units.DefaultSlugSpeed
	}
	return *c.SlugSpeed
}

// GetLaunchLead returns how far ahead of "now" the slug is launched.
func (c *AutofireConfig) GetLaunchLead() time.Duration {
	return parseDurationOr(c.LaunchLead, 5*time.Second)
}

// GetEvaluatePause returns the pause taken after each evaluated identity.
func (c *AutofireConfig) GetEvaluatePause() time.Duration {
	return parseDurationOr(c.EvaluatePause, 100*time.Millisecond)
}

// GetRequestTimeout returns the per-request HTTP timeout.
func (c *AutofireConfig) GetRequestTimeout() time.Duration {
	return parseDurationOr(c.RequestTimeout, 2*time.Second)
}

// GetAbsTolerance returns the abs_tolerance value or the default.
func (c *AutofireConfig) GetAbsTolerance() float64 {
	if c.AbsTolerance == nil {
		return 1e-6
	}
	return *c.AbsTolerance
}

// GetRelTolerance returns the rel_tolerance value or the default.
func (c *AutofireConfig) GetRelTolerance() float64 {
	if c.RelTolerance == nil {
		return 1e-6
	}
	return *c.RelTolerance
}

// GetSolverEpsilon returns the smallest |v_target - v_slug| the solver
// accepts.
func (c *AutofireConfig) GetSolverEpsilon() float64 {
	if c.SolverEpsilon == nil {
		return 1e-9
	}
	return *c.SolverEpsilon
}

// GetMaxTracked returns the max_tracked value or the default.
func (c *AutofireConfig) GetMaxTracked() int {
	if c.MaxTracked == nil {
		return 4096
	}
	return *c.MaxTracked
}

// GetServerTimezone returns the zone the service uses for naive
// timestamps.
func (c *AutofireConfig) GetServerTimezone() string {
	if c.ServerTimezone == nil || *c.ServerTimezone == "" {
		return "Local"
	}
	return *c.ServerTimezone
}

// GetFireHorizon returns how far in the future a scheduled fire time may be.
func (c *AutofireConfig) GetFireHorizon() time.Duration {
	return parseDurationOr(c.FireHorizon, 5*time.Minute)
}

// GetServerScheduled reports whether launches are delegated to the service
// via the "fired" field instead of waiting locally.
func (c *AutofireConfig) GetServerScheduled() bool {
	if c.ServerScheduled == nil {
		return false
	}
	return *c.ServerScheduled
}
