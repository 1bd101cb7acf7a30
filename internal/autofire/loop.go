// Package autofire runs the targeting loop: sweep the sky, fit every rock
// seen twice, and engage it.
package autofire

import (
	"context"
	"errors"
	"time"

	"github.com/banshee-data/neocrisis/internal/intercept"
	"github.com/banshee-data/neocrisis/internal/monitoring"
	"github.com/banshee-data/neocrisis/internal/telescope"
	"github.com/banshee-data/neocrisis/internal/timeutil"
	"github.com/banshee-data/neocrisis/internal/tracking"
	"github.com/banshee-data/neocrisis/internal/trajectory"
)

// Sweeper performs one observation sweep into the store.
type Sweeper interface {
	Sweep(ctx context.Context) telescope.Report
}

// Engager attempts one intercept for a fitted model.
type Engager interface {
	Engage(ctx context.Context, m trajectory.Model) (*intercept.Attempt, error)
}

// Config wires a Loop together. Clock defaults to the real clock and
// Metrics may be nil.
type Config struct {
	Sweeper   Sweeper
	Store     *tracking.Store
	Estimator *trajectory.Estimator
	Engager   Engager
	Clock     timeutil.Clock
	Metrics   *monitoring.Collector
	// Pause is slept after each evaluated identity, and once after a step
	// that evaluated none.
	Pause time.Duration
}

// Loop is the single-goroutine control loop.
type Loop struct {
	cfg Config
}

// StepResult summarises one iteration.
type StepResult struct {
	Report       telescope.Report
	Evaluated    int
	Degenerate   int
	Inconsistent int
	Attempts     []*intercept.Attempt
}

// New returns a Loop for cfg.
func New(cfg Config) *Loop {
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	return &Loop{cfg: cfg}
}

// Run steps until ctx is cancelled, which is not reported as an error.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if _, err := l.Step(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
	}
}

// Step sweeps once and then evaluates every identity whose window is full.
// Only a done ctx ends a step early with an error.
func (l *Loop) Step(ctx context.Context) (StepResult, error) {
	var res StepResult

	res.Report = l.cfg.Sweeper.Sweep(ctx)
	if err := ctx.Err(); err != nil {
		return res, err
	}
	if res.Report.Clear() {
		monitoring.Opsf("All clear! (%d/%d sectors answered)",
			res.Report.Sectors-len(res.Report.Failed), res.Report.Sectors)
	}

	for _, id := range l.cfg.Store.Full() {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Evaluated++
		l.evaluate(ctx, id, &res)

		if err := timeutil.SleepContext(ctx, l.cfg.Clock, l.cfg.Pause); err != nil {
			return res, err
		}
	}

	if res.Evaluated == 0 {
		if err := timeutil.SleepContext(ctx, l.cfg.Clock, l.cfg.Pause); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (l *Loop) evaluate(ctx context.Context, id tracking.Identity, res *StepResult) {
	samples := l.cfg.Store.Samples(id)
	if len(samples) != tracking.WindowSize {
		return
	}

	m, err := l.cfg.Estimator.Estimate(id, samples[0], samples[1])
	switch {
	case errors.Is(err, trajectory.ErrDegenerateWindow):
		// Left in place; the next sighting evicts the duplicate.
		res.Degenerate++
		l.cfg.Metrics.ObserveFitFailure("degenerate")
		monitoring.Diagf("trajectory: %s: %v", id, err)
		return
	case err != nil:
		res.Inconsistent++
		l.cfg.Store.Drain(id)
		l.cfg.Metrics.ObserveFitFailure("inconsistent")
		monitoring.Opsf("trajectory: %s: %v (samples %+v, %+v)", id, err, samples[0], samples[1])
		return
	}

	l.cfg.Store.Drain(id)
	if eta, ok := m.ImpactETA(l.cfg.Clock.Now()); ok {
		monitoring.Diagf("trajectory: %s v=%.6g r0=%.6g impact in %s", id, m.R.Slope, m.R.Intercept, eta.Round(time.Millisecond))
	} else {
		monitoring.Diagf("trajectory: %s v=%.6g r0=%.6g receding", id, m.R.Slope, m.R.Intercept)
	}

	// Engage logs, counts and journals its own outcome.
	a, _ := l.cfg.Engager.Engage(ctx, m)
	if a != nil {
		res.Attempts = append(res.Attempts, a)
	}
}
