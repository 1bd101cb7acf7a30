// Package telescope sweeps the eight observation octants and feeds every
// rock sighting into the tracking store.
package telescope

import (
	"context"
	"time"

	"github.com/banshee-data/neocrisis/internal/monitoring"
	"github.com/banshee-data/neocrisis/internal/neoapi"
	"github.com/banshee-data/neocrisis/internal/tracking"
)

// Observer lists the objects visible in one octant.
type Observer interface {
	Observe(ctx context.Context, octant int) ([]neoapi.Object, error)
}

// Report summarises one sweep.
type Report struct {
	Sectors int   // octants queried
	Failed  []int // octants whose query errored
	Objects int   // objects of any type returned
	Rocks   int   // rock sightings recorded
	Skipped int   // rocks dropped for unreadable timestamps
}

// Clear reports whether the sweep saw no rocks. Failed sectors do not
// affect the verdict.
func (r Report) Clear() bool {
	return r.Rocks == 0
}

// Poller runs sweeps against an Observer.
type Poller struct {
	observer Observer
	store    *tracking.Store
	loc      *time.Location
	metrics  *monitoring.Collector
}

// NewPoller returns a Poller recording into store. loc interprets naive
// service timestamps; metrics may be nil.
func NewPoller(observer Observer, store *tracking.Store, loc *time.Location, metrics *monitoring.Collector) *Poller {
	if loc == nil {
		loc = time.Local
	}
	return &Poller{observer: observer, store: store, loc: loc, metrics: metrics}
}

// Sweep queries octants 1 through 8 once each, in order. A failing octant
// is logged and skipped; the sweep stops early only when ctx is done.
func (p *Poller) Sweep(ctx context.Context) Report {
	var rep Report
	for octant := neoapi.MinOctant; octant <= neoapi.MaxOctant; octant++ {
		if ctx.Err() != nil {
			break
		}
		rep.Sectors++

		objects, err := p.observer.Observe(ctx, octant)
		if err != nil {
			monitoring.Opsf("telescope: octant %d failed: %v", octant, err)
			rep.Failed = append(rep.Failed, octant)
			continue
		}
		rep.Objects += len(objects)

		for _, obj := range objects {
			if !obj.IsRock() {
				continue
			}
			id, sample, err := obj.Sighting(p.loc)
			if err != nil {
				monitoring.Opsf("telescope: octant %d: skipping sighting: %v", octant, err)
				rep.Skipped++
				continue
			}
			monitoring.Tracef("telescope: octant %d: %s r=%.6g theta=%.6g phi=%.6g at %s",
				octant, id, sample.Position.R, sample.Position.Theta, sample.Position.Phi,
				sample.ObservedAt.Format(time.RFC3339Nano))
			p.store.Record(id, sample)
			rep.Rocks++
		}
	}

	p.metrics.ObserveSweep(rep.Rocks, rep.Failed, p.store.Len())
	return rep
}
