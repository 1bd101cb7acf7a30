package monitoring

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the Prometheus metrics for the targeting loop. A nil
// *Collector is valid and records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	Sweeps         prometheus.Counter
	ClearSweeps    prometheus.Counter
	SectorFailures *prometheus.CounterVec
	RocksObserved  prometheus.Counter
	TrackedTargets prometheus.Gauge
	FitFailures    *prometheus.CounterVec
	Attempts       *prometheus.CounterVec
}

// NewCollector registers the autofire metrics against reg, defaulting to
// the global Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	sweeps, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "autofire_sweeps_total",
		Help: "Observation sweeps completed across all eight octants.",
	}), "autofire_sweeps_total")
	if err != nil {
		return nil, err
	}
	clearSweeps, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "autofire_clear_sweeps_total",
		Help: "Sweeps that observed no rocks in any octant.",
	}), "autofire_clear_sweeps_total")
	if err != nil {
		return nil, err
	}
	sectorFailures, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autofire_sector_failures_total",
		Help: "Telescope requests that failed, labeled by octant.",
	}, []string{"octant"}), "autofire_sector_failures_total")
	if err != nil {
		return nil, err
	}
	rocks, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "autofire_rock_sightings_total",
		Help: "Rock sightings recorded into the sample store.",
	}), "autofire_rock_sightings_total")
	if err != nil {
		return nil, err
	}
	tracked, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "autofire_tracked_targets",
		Help: "Identities currently holding a tracking window.",
	}), "autofire_tracked_targets")
	if err != nil {
		return nil, err
	}
	fitFailures, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autofire_fit_failures_total",
		Help: "Trajectory fits that could not be used, labeled by reason.",
	}, []string{"reason"}), "autofire_fit_failures_total")
	if err != nil {
		return nil, err
	}
	attempts, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autofire_intercept_attempts_total",
		Help: "Intercept attempts, labeled by outcome.",
	}, []string{"outcome"}), "autofire_intercept_attempts_total")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:       gatherer,
		Sweeps:         sweeps,
		ClearSweeps:    clearSweeps,
		SectorFailures: sectorFailures,
		RocksObserved:  rocks,
		TrackedTargets: tracked,
		FitFailures:    fitFailures,
		Attempts:       attempts,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveSweep records one completed sweep.
func (c *Collector) ObserveSweep(rocks int, failedOctants []int, tracked int) {
	if c == nil {
		return
	}
	c.Sweeps.Inc()
	if rocks == 0 {
		c.ClearSweeps.Inc()
	}
	c.RocksObserved.Add(float64(rocks))
	for _, octant := range failedOctants {
		c.SectorFailures.WithLabelValues(strconv.Itoa(octant)).Inc()
	}
	c.TrackedTargets.Set(float64(tracked))
}

// ObserveFitFailure counts a fit that was rejected for reason.
func (c *Collector) ObserveFitFailure(reason string) {
	if c == nil {
		return
	}
	c.FitFailures.WithLabelValues(reason).Inc()
}

// ObserveAttempt counts a finished intercept attempt.
func (c *Collector) ObserveAttempt(outcome string) {
	if c == nil {
		return
	}
	c.Attempts.WithLabelValues(outcome).Inc()
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
