package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/neocrisis/internal/units"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestEmptyConfigDefaults(t *testing.T) {
	cfg := EmptyConfig()

	if got := cfg.GetSlugSpeed(); got != units.DefaultSlugSpeed {
		t.Errorf("GetSlugSpeed() = %v, want %v", got, units.DefaultSlugSpeed)
	}
	if got := cfg.GetLaunchLead(); got != 5*time.Second {
		t.Errorf("GetLaunchLead() = %v, want 5s", got)
	}
	if got := cfg.GetEvaluatePause(); got != 100*time.Millisecond {
		t.Errorf("GetEvaluatePause() = %v, want 100ms", got)
	}
	if got := cfg.GetRequestTimeout(); got != 2*time.Second {
		t.Errorf("GetRequestTimeout() = %v, want 2s", got)
	}
	if got := cfg.GetAbsTolerance(); got != 1e-6 {
		t.Errorf("GetAbsTolerance() = %v, want 1e-6", got)
	}
	if got := cfg.GetRelTolerance(); got != 1e-6 {
		t.Errorf("GetRelTolerance() = %v, want 1e-6", got)
	}
	if got := cfg.GetSolverEpsilon(); got != 1e-9 {
		t.Errorf("GetSolverEpsilon() = %v, want 1e-9", got)
	}
	if got := cfg.GetMaxTracked(); got != 4096 {
		t.Errorf("GetMaxTracked() = %d, want 4096", got)
	}
	if got := cfg.GetServerTimezone(); got != "Local" {
		t.Errorf("GetServerTimezone() = %q, want Local", got)
	}
	if got := cfg.GetFireHorizon(); got != 5*time.Minute {
		t.Errorf("GetFireHorizon() = %v, want 5m", got)
	}
	if cfg.GetServerScheduled() {
		t.Error("GetServerScheduled() = true, want false")
	}
}

func TestDefaultsFileMatchesGetters(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	empty := EmptyConfig()

	if cfg.GetSlugSpeed() != empty.GetSlugSpeed() {
		t.Errorf("slug_speed: file %v, getter default %v", cfg.GetSlugSpeed(), empty.GetSlugSpeed())
	}
	if cfg.GetLaunchLead() != empty.GetLaunchLead() {
		t.Errorf("launch_lead: file %v, getter default %v", cfg.GetLaunchLead(), empty.GetLaunchLead())
	}
	if cfg.GetEvaluatePause() != empty.GetEvaluatePause() {
		t.Errorf("evaluate_pause: file %v, getter default %v", cfg.GetEvaluatePause(), empty.GetEvaluatePause())
	}
	if cfg.GetRequestTimeout() != empty.GetRequestTimeout() {
		t.Errorf("request_timeout: file %v, getter default %v", cfg.GetRequestTimeout(), empty.GetRequestTimeout())
	}
	if cfg.GetAbsTolerance() != empty.GetAbsTolerance() || cfg.GetRelTolerance() != empty.GetRelTolerance() {
		t.Error("tolerances in defaults file differ from getter defaults")
	}
	if cfg.GetSolverEpsilon() != empty.GetSolverEpsilon() {
		t.Error("solver_epsilon in defaults file differs from getter default")
	}
	if cfg.GetMaxTracked() != empty.GetMaxTracked() {
		t.Error("max_tracked in defaults file differs from getter default")
	}
	if cfg.GetServerTimezone() != empty.GetServerTimezone() {
		t.Error("server_timezone in defaults file differs from getter default")
	}
	if cfg.GetFireHorizon() != empty.GetFireHorizon() {
		t.Error("fire_horizon in defaults file differs from getter default")
	}
	if cfg.GetServerScheduled() != empty.GetServerScheduled() {
		t.Error("server_scheduled in defaults file differs from getter default")
	}
}

func TestLoadConfig_PartialOverride(t *testing.T) {
	path := writeConfig(t, "partial.json", `{
  "launch_lead": "10s",
  "max_tracked": 16,
  "server_timezone": "UTC",
  "server_scheduled": true
}`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if got := cfg.GetLaunchLead(); got != 10*time.Second {
		t.Errorf("GetLaunchLead() = %v, want 10s", got)
	}
	if got := cfg.GetMaxTracked(); got != 16 {
		t.Errorf("GetMaxTracked() = %d, want 16", got)
	}
	if got := cfg.GetServerTimezone(); got != "UTC" {
		t.Errorf("GetServerTimezone() = %q, want UTC", got)
	}
	if !cfg.GetServerScheduled() {
		t.Error("GetServerScheduled() = false, want true")
	}
	// Untouched fields keep their defaults.
	if got := cfg.GetSlugSpeed(); got != units.DefaultSlugSpeed {
		t.Errorf("GetSlugSpeed() = %v, want default", got)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{"wrong extension", "cfg.yaml", `{}`, ".json extension"},
		{"malformed json", "bad.json", `{"launch_lead": `, "failed to parse"},
		{"negative slug speed", "c.json", `{"slug_speed": -1}`, "slug_speed"},
		{"bad duration", "c.json", `{"launch_lead": "soon"}`, "invalid launch_lead"},
		{"zero timeout", "c.json", `{"request_timeout": "0s"}`, "request_timeout must be positive"},
		{"lead beyond horizon", "c.json", `{"launch_lead": "10m", "fire_horizon": "5m"}`, "shorter than fire_horizon"},
		{"negative tolerance", "c.json", `{"rel_tolerance": -0.1}`, "rel_tolerance"},
		{"zero max tracked", "c.json", `{"max_tracked": 0}`, "max_tracked"},
		{"unknown timezone", "c.json", `{"server_timezone": "Mars/Olympus"}`, "server_timezone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.file, tt.body)
			_, err := LoadConfig(path)
			if err == nil {
				t.Fatalf("LoadConfig() succeeded, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("LoadConfig() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	if err == nil || !strings.Contains(err.Error(), "failed to stat") {
		t.Errorf("LoadConfig(missing) error = %v", err)
	}
}

func TestLoadConfig_TooLarge(t *testing.T) {
	body := `{"launch_lead": "5s", "pad": "` + strings.Repeat("x", 1024*1024) + `"}`
	path := writeConfig(t, "big.json", body)
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("LoadConfig(big) error = %v", err)
	}
}

func TestGetters_FallBackOnUnparseableDuration(t *testing.T) {
	bad := "later"
	cfg := &AutofireConfig{LaunchLead: &bad, EvaluatePause: &bad}
	if got := cfg.GetLaunchLead(); got != 5*time.Second {
		t.Errorf("GetLaunchLead() = %v, want default on parse error", got)
	}
	if got := cfg.GetEvaluatePause(); got != 100*time.Millisecond {
		t.Errorf("GetEvaluatePause() = %v, want default on parse error", got)
	}
}
