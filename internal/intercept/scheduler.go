package intercept

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/neocrisis/internal/monitoring"
	"github.com/banshee-data/neocrisis/internal/neoapi"
	"github.com/banshee-data/neocrisis/internal/timeutil"
	"github.com/banshee-data/neocrisis/internal/trajectory"
	"github.com/banshee-data/neocrisis/internal/units"
)

var (
	// ErrUnreachable is returned when the solution meets the rock before
	// the slug leaves or behind the origin.
	ErrUnreachable = errors.New("intercept: solution is not reachable")
	// ErrLaunchMissed is returned when the launch instant had already
	// passed by the time the wait began.
	ErrLaunchMissed = errors.New("intercept: launch time already passed")
	// ErrHorizon is returned when a server-scheduled fire time lies beyond
	// what the railgun accepts.
	ErrHorizon = errors.New("intercept: launch beyond fire horizon")
)

// Launcher sends railgun commands.
type Launcher interface {
	Fire(ctx context.Context, req neoapi.FireRequest) (*neoapi.Object, error)
}

// Recorder persists finished attempts.
type Recorder interface {
	RecordAttempt(ctx context.Context, a Attempt) error
}

// Options configures a Scheduler.
type Options struct {
	SlugSpeed  float64
	LaunchLead time.Duration
	Tolerance  trajectory.Tolerance
	Epsilon    float64
	// ServerScheduled sends the launch time with the command instead of
	// waiting for it locally.
	ServerScheduled bool
	FireHorizon     time.Duration
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		SlugSpeed:   units.DefaultSlugSpeed,
		LaunchLead:  5 * time.Second,
		Tolerance:   trajectory.DefaultTolerance,
		Epsilon:     DefaultEpsilon,
		FireHorizon: 5 * time.Minute,
	}
}

// Scheduler turns fitted models into railgun shots, one shot per model
// and no retries. It is not safe for concurrent use.
type Scheduler struct {
	launcher Launcher
	recorder Recorder
	clock    timeutil.Clock
	metrics  *monitoring.Collector
	opts     Options
	solver   Solver
	seq      int
}

// NewScheduler builds a Scheduler. recorder and metrics may be nil.
func NewScheduler(launcher Launcher, recorder Recorder, clock timeutil.Clock, metrics *monitoring.Collector, opts Options) *Scheduler {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Scheduler{
		launcher: launcher,
		recorder: recorder,
		clock:    clock,
		metrics:  metrics,
		opts:     opts,
		solver:   NewSolver(opts.Tolerance, opts.Epsilon),
	}
}

// Engage solves an intercept for m with launch at now + LaunchLead and
// fires once. The returned Attempt is always non-nil and has already been
// recorded; the error explains any outcome other than OutcomeFired.
func (s *Scheduler) Engage(ctx context.Context, m trajectory.Model) (*Attempt, error) {
	now := s.clock.Now()
	s.seq++
	a := &Attempt{
		ID:        uuid.New(),
		Seq:       s.seq,
		Identity:  m.Identity,
		PlannedAt: now,
		Launch:    now.Add(s.opts.LaunchLead),
		Scheduled: s.opts.ServerScheduled,
	}

	sol, err := s.solver.Solve(m, Interceptor{Speed: s.opts.SlugSpeed, Launch: a.Launch}, now)
	if err != nil {
		if trajectory.IsConsistencyError(err) {
			return s.finish(ctx, a, OutcomeInconsistent, err)
		}
		return s.finish(ctx, a, OutcomeUnreachable, err)
	}
	a.CollideTime = sol.CollideTime
	a.Aim = sol.Aim

	monitoring.Diagf("intercept #%d: %s launch=%s collide=%s lead=%.3gs r=%.6g theta=%.6g phi=%.6g",
		a.Seq, m.Identity, a.Launch.Format(time.RFC3339Nano), a.CollideTime.Format(time.RFC3339Nano),
		sol.Lead, a.Aim.R, a.Aim.Theta, a.Aim.Phi)

	if !sol.Reachable() {
		return s.finish(ctx, a, OutcomeUnreachable,
			fmt.Errorf("%w: lead %.6gs, r=%.6g", ErrUnreachable, sol.Lead, a.Aim.R))
	}

	req := neoapi.FireRequest{
		Name:   neoapi.SlugName(m.Identity.Name),
		Theta:  a.Aim.Theta,
		Phi:    a.Aim.Phi,
		Target: m.Identity.Name,
	}

	if s.opts.ServerScheduled {
		if lead := a.Launch.Sub(now); s.opts.FireHorizon > 0 && lead > s.opts.FireHorizon {
			return s.finish(ctx, a, OutcomeAbandoned, fmt.Errorf("%w: %s > %s", ErrHorizon, lead, s.opts.FireHorizon))
		}
		launch := a.Launch
		req.Fired = &launch
	} else {
		ok, err := timeutil.SleepUntil(ctx, s.clock, a.Launch)
		if err != nil {
			return s.finish(ctx, a, OutcomeAbandoned, fmt.Errorf("waiting for launch: %w", err))
		}
		if !ok {
			return s.finish(ctx, a, OutcomeMissed, ErrLaunchMissed)
		}
	}

	slug, err := s.launcher.Fire(ctx, req)
	if err != nil {
		return s.finish(ctx, a, OutcomeRejected, err)
	}
	a.Slug = slug.Name
	return s.finish(ctx, a, OutcomeFired, nil)
}

func (s *Scheduler) finish(ctx context.Context, a *Attempt, outcome Outcome, err error) (*Attempt, error) {
	a.Outcome = outcome
	if err != nil {
		a.Err = err.Error()
		monitoring.Opsf("intercept #%d: %s %s: %v", a.Seq, a.Identity, outcome, err)
	} else {
		monitoring.Diagf("intercept #%d: %s fired slug %q", a.Seq, a.Identity, a.Slug)
	}

	s.metrics.ObserveAttempt(string(outcome))
	if s.recorder != nil {
		// The journal is written even when ctx was cancelled mid-wait.
		if rerr := s.recorder.RecordAttempt(context.WithoutCancel(ctx), *a); rerr != nil {
			monitoring.Opsf("intercept #%d: journal write failed: %v", a.Seq, rerr)
		}
	}
	return a, err
}
