package tracking

import (
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
)

// WindowSize is the number of samples a full window holds.
const WindowSize = 2

// DefaultMaxTracked bounds the number of identities held at once.
const DefaultMaxTracked = 4096

// window is a fixed two-slot buffer ordered by ObservedAt ascending.
type window struct {
	samples [WindowSize]Sample
	n       int
}

// push inserts s in time order, evicting the oldest sample when full.
func (w *window) push(s Sample) {
	if w.n < WindowSize {
		w.samples[w.n] = s
		w.n++
	} else {
		// Replace the oldest, unless s is older than everything held.
		if s.ObservedAt.Before(w.samples[0].ObservedAt) {
			return
		}
		w.samples[0] = s
	}
	buf := w.samples[:w.n]
	sort.SliceStable(buf, func(i, j int) bool {
		return buf[i].ObservedAt.Before(buf[j].ObservedAt)
	})
}

// Store keeps, per Identity, the two most recent samples. Identities that
// have not been recorded for a long time are dropped once more than
// maxTracked are held.
//
// Store is not safe for concurrent use; it is owned by the single control
// loop.
type Store struct {
	windows *lru.Cache[Identity, *window]
}

// NewStore returns an empty store holding at most maxTracked identities.
// A non-positive maxTracked selects DefaultMaxTracked.
func NewStore(maxTracked int) *Store {
	if maxTracked <= 0 {
		maxTracked = DefaultMaxTracked
	}
	cache, err := lru.New[Identity, *window](maxTracked)
	if err != nil {
		// Only returned for a non-positive size, excluded above.
		panic(err)
	}
	return &Store{windows: cache}
}

// Record appends s to id's window, creating the window on first sighting
// and evicting the oldest sample if it already holds two.
func (s *Store) Record(id Identity, sample Sample) {
	w, ok := s.windows.Get(id)
	if !ok {
		w = &window{}
		s.windows.Add(id, w)
	}
	w.push(sample)
}

// IsFull reports whether id's window holds two samples. Unknown identities
// are empty.
func (s *Store) IsFull(id Identity) bool {
	w, ok := s.windows.Peek(id)
	return ok && w.n == WindowSize
}

// Samples returns a copy of id's window, oldest first, without changing it.
func (s *Store) Samples(id Identity) []Sample {
	w, ok := s.windows.Peek(id)
	if !ok {
		return nil
	}
	out := make([]Sample, w.n)
	copy(out, w.samples[:w.n])
	return out
}

// Drain resets id's window to empty and returns the two samples it held,
// oldest first. ok is false when the window was not full; a lone sample
// is discarded all the same. Unknown identities are left untracked.
func (s *Store) Drain(id Identity) (older, newer Sample, ok bool) {
	w, found := s.windows.Peek(id)
	if !found {
		return Sample{}, Sample{}, false
	}
	full := w.n == WindowSize
	older, newer = w.samples[0], w.samples[1]
	*w = window{}
	if !full {
		return Sample{}, Sample{}, false
	}
	return older, newer, true
}

// Full lists the identities whose windows are full, in no particular order.
func (s *Store) Full() []Identity {
	var ids []Identity
	for _, id := range s.windows.Keys() {
		if s.IsFull(id) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Len returns the number of identities currently tracked.
func (s *Store) Len() int {
	return s.windows.Len()
}
