package autofire

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/neocrisis/internal/httputil"
	"github.com/banshee-data/neocrisis/internal/intercept"
	"github.com/banshee-data/neocrisis/internal/monitoring"
	"github.com/banshee-data/neocrisis/internal/neoapi"
	"github.com/banshee-data/neocrisis/internal/telescope"
	"github.com/banshee-data/neocrisis/internal/timeutil"
	"github.com/banshee-data/neocrisis/internal/tracking"
	"github.com/banshee-data/neocrisis/internal/trajectory"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// scriptedSweeper records pre-baked sightings into the store, one batch
// per sweep.
type scriptedSweeper struct {
	store   *tracking.Store
	batches [][]sighting
	sweeps  int
	onSweep func(n int)
}

type sighting struct {
	id     tracking.Identity
	sample tracking.Sample
}

func (s *scriptedSweeper) Sweep(ctx context.Context) telescope.Report {
	s.sweeps++
	if s.onSweep != nil {
		s.onSweep(s.sweeps)
	}
	rep := telescope.Report{Sectors: 8}
	if s.sweeps <= len(s.batches) {
		for _, sg := range s.batches[s.sweeps-1] {
			s.store.Record(sg.id, sg.sample)
			rep.Rocks++
		}
	}
	return rep
}

type recordingEngager struct {
	models []trajectory.Model
}

func (e *recordingEngager) Engage(_ context.Context, m trajectory.Model) (*intercept.Attempt, error) {
	e.models = append(e.models, m)
	return &intercept.Attempt{Seq: len(e.models), Identity: m.Identity, Outcome: intercept.OutcomeFired}, nil
}

func see(id tracking.Identity, sec float64, r, theta, phi float64) sighting {
	return sighting{id: id, sample: tracking.Sample{
		ObservedAt: epoch.Add(time.Duration(sec * float64(time.Second))),
		Position:   tracking.Position{R: r, Theta: theta, Phi: phi},
	}}
}

func newTestLoop(t *testing.T, batches [][]sighting) (*Loop, *scriptedSweeper, *recordingEngager, *timeutil.MockClock, *monitoring.Collector) {
	t.Helper()
	store := tracking.NewStore(0)
	sweeper := &scriptedSweeper{store: store, batches: batches}
	engager := &recordingEngager{}
	clock := timeutil.NewAutoClock(epoch)
	metrics, err := monitoring.NewCollector(prometheus.NewRegistry())
	require.NoError(t, err)

	loop := New(Config{
		Sweeper:   sweeper,
		Store:     store,
		Estimator: trajectory.NewEstimator(trajectory.DefaultTolerance),
		Engager:   engager,
		Clock:     clock,
		Metrics:   metrics,
		Pause:     100 * time.Millisecond,
	})
	return loop, sweeper, engager, clock, metrics
}

func TestStep_ScenarioFitsAndEngages(t *testing.T) {
	id := tracking.NewIdentity("apophis", epoch)
	loop, _, engager, clock, _ := newTestLoop(t, [][]sighting{
		{see(id, 10, 50, 1.0, 1.5)},
		{see(id, 20, 0, 1.0, 1.5)},
	})
	ctx := context.Background()

	res, err := loop.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Evaluated)
	assert.Empty(t, engager.models)

	res, err = loop.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Evaluated)
	require.Len(t, engager.models, 1)
	require.Len(t, res.Attempts, 1)

	m := engager.models[0]
	assert.InDelta(t, -5.0, m.R.Slope, 1e-12)
	assert.InDelta(t, 100.0, m.R.Intercept, 1e-9)
	assert.InDelta(t, 1.0, m.Theta.Intercept, 1e-12)
	assert.InDelta(t, 1.5, m.Phi.Intercept, 1e-12)

	assert.Equal(t, []time.Duration{100 * time.Millisecond, 100 * time.Millisecond}, clock.Sleeps())
	assert.Empty(t, loop.cfg.Store.Samples(id), "a fitted window is one-shot")
}

func TestStep_ClearSweep(t *testing.T) {
	loop, _, engager, _, _ := newTestLoop(t, nil)

	res, err := loop.Step(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Report.Clear())
	assert.Empty(t, engager.models)
}

func TestStep_DegenerateWindowIsKept(t *testing.T) {
	id := tracking.NewIdentity("twin", epoch)
	loop, _, engager, _, metrics := newTestLoop(t, [][]sighting{
		{see(id, 10, 50, 1, 1), see(id, 10, 50, 1, 1)},
		{see(id, 11, 45, 1, 1)},
	})
	ctx := context.Background()

	res, err := loop.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Degenerate)
	assert.Empty(t, engager.models)
	assert.Len(t, loop.cfg.Store.Samples(id), 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FitFailures.WithLabelValues("degenerate")))

	res, err = loop.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Degenerate)
	require.Len(t, engager.models, 1)
	assert.InDelta(t, -5.0, engager.models[0].R.Slope, 1e-9)
}

func TestStep_InconsistentFitIsDropped(t *testing.T) {
	id := tracking.NewIdentity("glitch", epoch)
	loop, _, engager, _, metrics := newTestLoop(t, [][]sighting{
		{see(id, 10, 50, 1, 1), see(id, 20, math.NaN(), 1, 1)},
	})

	res, err := loop.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inconsistent)
	assert.Empty(t, engager.models)
	assert.Empty(t, loop.cfg.Store.Samples(id))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FitFailures.WithLabelValues("inconsistent")))
}

func TestStep_InconsistentFitSparesOtherRocks(t *testing.T) {
	glitch := tracking.NewIdentity("glitch", epoch)
	apophis := tracking.NewIdentity("apophis", epoch)
	loop, _, engager, _, metrics := newTestLoop(t, [][]sighting{
		{
			see(glitch, 10, 50, 1, 1), see(glitch, 20, 40, math.NaN(), 1),
			see(apophis, 10, 50, 1.0, 1.5), see(apophis, 20, 0, 1.0, 1.5),
		},
	})

	res, err := loop.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Evaluated)
	assert.Equal(t, 1, res.Inconsistent)

	require.Len(t, engager.models, 1)
	assert.Equal(t, apophis, engager.models[0].Identity)
	assert.InDelta(t, -5.0, engager.models[0].R.Slope, 1e-12)
	require.Len(t, res.Attempts, 1)

	assert.Empty(t, loop.cfg.Store.Samples(glitch))
	assert.Empty(t, loop.cfg.Store.Samples(apophis))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FitFailures.WithLabelValues("inconsistent")))
}

type countingLauncher struct {
	reqs []neoapi.FireRequest
}

func (l *countingLauncher) Fire(_ context.Context, req neoapi.FireRequest) (*neoapi.Object, error) {
	l.reqs = append(l.reqs, req)
	return &neoapi.Object{Type: neoapi.TypeSlug, Name: req.Name}, nil
}

func TestStep_InconsistentInterceptSparesOtherRocks(t *testing.T) {
	// huge fits cleanly but its radii overflow the collision check.
	huge := tracking.NewIdentity("huge", epoch)
	bennu := tracking.NewIdentity("bennu", epoch.Add(-10*time.Second))

	store := tracking.NewStore(0)
	sweeper := &scriptedSweeper{store: store, batches: [][]sighting{{
		see(huge, 1, 0, 1, 1), see(huge, 2, -1e300, 1, 1),
		see(bennu, 1, 1e9-11000, 2.0, 0.5), see(bennu, 2, 1e9-12000, 2.0, 0.5),
	}}}
	clock := timeutil.NewAutoClock(epoch)
	launcher := &countingLauncher{}
	loop := New(Config{
		Sweeper:   sweeper,
		Store:     store,
		Estimator: trajectory.NewEstimator(trajectory.DefaultTolerance),
		Engager:   intercept.NewScheduler(launcher, nil, clock, nil, intercept.DefaultOptions()),
		Clock:     clock,
		Pause:     100 * time.Millisecond,
	})

	res, err := loop.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Evaluated)
	assert.Equal(t, 0, res.Inconsistent)
	require.Len(t, res.Attempts, 2)

	outcomes := map[string]intercept.Outcome{}
	for _, a := range res.Attempts {
		outcomes[a.Identity.Name] = a.Outcome
	}
	assert.Equal(t, intercept.OutcomeInconsistent, outcomes["huge"])
	assert.Equal(t, intercept.OutcomeFired, outcomes["bennu"])

	require.Len(t, launcher.reqs, 1)
	assert.Equal(t, "bennu", launcher.reqs[0].Target)
	assert.Empty(t, store.Samples(huge))
	assert.Empty(t, store.Samples(bennu))
}

func TestStep_EvaluatesEveryFullWindow(t *testing.T) {
	a := tracking.NewIdentity("a", epoch)
	b := tracking.NewIdentity("b", epoch)
	c := tracking.NewIdentity("c", epoch)
	loop, _, engager, clock, _ := newTestLoop(t, [][]sighting{
		{see(a, 1, 100, 1, 1), see(a, 2, 90, 1, 1), see(b, 1, 200, 2, 1), see(b, 2, 150, 2, 1), see(c, 1, 10, 0, 0)},
	})

	res, err := loop.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Evaluated)
	assert.Len(t, engager.models, 2)
	assert.Len(t, clock.Sleeps(), 2, "one pause per evaluated identity")
	assert.Len(t, loop.cfg.Store.Samples(c), 1)
}

func TestRun_StopsOnCancel(t *testing.T) {
	loop, sweeper, _, _, _ := newTestLoop(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	sweeper.onSweep = func(n int) {
		if n == 3 {
			cancel()
		}
	}

	require.NoError(t, loop.Run(ctx))
	assert.Equal(t, 3, sweeper.sweeps)
}

// fakeService answers the telescope and railgun from a single rock moving
// at -1000 AU/s, positioned by the mock clock.
func fakeService(clock timeutil.Clock, fired time.Time) func(*http.Request) (*http.Response, error) {
	respond := func(req *http.Request, body string) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(body)),
			Header:     make(http.Header),
			Request:    req,
		}, nil
	}
	return func(req *http.Request) (*http.Response, error) {
		switch {
		case req.Method == http.MethodGet && req.URL.Path == "/telescope/3":
			now := clock.Now()
			r := 1e9 - 1000*now.Sub(fired).Seconds()
			return respond(req, fmt.Sprintf(
				`{"objects":[{"type":"rock","name":"bennu","fired":%q,"obs_time":%q,"pos":{"r":%v,"theta":2.0,"phi":0.5}}]}`,
				fired.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano), r))
		case req.Method == http.MethodGet && strings.HasPrefix(req.URL.Path, "/telescope/"):
			return respond(req, `{"objects":[]}`)
		case req.Method == http.MethodPost && req.URL.Path == "/railgun":
			return respond(req, `{"object":{"type":"slug","name":"@ bennu"}}`)
		}
		return &http.Response{StatusCode: http.StatusNotFound, Body: io.NopCloser(strings.NewReader("")), Request: req}, nil
	}
}

func TestLoop_EndToEnd(t *testing.T) {
	clock := timeutil.NewAutoClock(epoch)
	mock := httputil.NewMockHTTPClient()
	mock.DoFunc = fakeService(clock, epoch.Add(-10*time.Second))
	client := neoapi.NewClient("http://neo.test:5000", mock, time.UTC)

	store := tracking.NewStore(0)
	loop := New(Config{
		Sweeper:   telescope.NewPoller(client, store, client.Location(), nil),
		Store:     store,
		Estimator: trajectory.NewEstimator(trajectory.DefaultTolerance),
		Engager:   intercept.NewScheduler(client, nil, clock, nil, intercept.DefaultOptions()),
		Clock:     clock,
		Pause:     100 * time.Millisecond,
	})
	ctx := context.Background()

	first, err := loop.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Report.Rocks)
	assert.Empty(t, first.Attempts)

	second, err := loop.Step(ctx)
	require.NoError(t, err)
	require.Len(t, second.Attempts, 1)

	a := second.Attempts[0]
	assert.Equal(t, intercept.OutcomeFired, a.Outcome)
	assert.Equal(t, "@ bennu", a.Slug)
	assert.True(t, a.Launch.Equal(epoch.Add(5100*time.Millisecond)))

	assert.Equal(t, []time.Duration{100 * time.Millisecond, 5 * time.Second, 100 * time.Millisecond}, clock.Sleeps())
	require.Equal(t, 17, mock.RequestCount())

	fire := mock.GetRequest(16)
	assert.Equal(t, http.MethodPost, fire.Method)
	var sent map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(mock.GetBody(16)), &sent))
	assert.Equal(t, "@ bennu", sent["name"])
	assert.Equal(t, "bennu", sent["target"])
	assert.InDelta(t, 2.0, sent["theta"], 1e-9)
	assert.InDelta(t, 0.5, sent["phi"], 1e-9)
	assert.NotContains(t, sent, "fired")
}
