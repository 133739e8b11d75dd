package store

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// minShrinkCap is the backing array size below which EvictStale never reallocates.
const minShrinkCap = 64

// MemoryStore is an in-process Store guarded by a read/write lock.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Observation
	horizon time.Duration
	clock   clockwork.Clock
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(horizon time.Duration, opts ...Option) (*MemoryStore, error) {
	if err := validateHorizon(horizon); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	return &MemoryStore{horizon: horizon, clock: o.clock}, nil
}

// Record appends observations.
func (s *MemoryStore) Record(_ context.Context, obs ...Observation) error {
	if len(obs) == 0 {
		return nil
	}
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range obs {
		if o.ObservedAt.IsZero() {
			o.ObservedAt = now
		}
		o.Labels = maps.Clone(o.Labels)
		s.entries = append(s.entries, o)
	}
	return nil
}

// Recent returns copies of observations at or after since, oldest first.
func (s *MemoryStore) Recent(_ context.Context, since time.Time) ([]Observation, error) {
	s.mu.RLock()
	out := make([]Observation, 0, len(s.entries))
	for _, o := range s.entries {
		if !o.ObservedAt.Before(since) {
			o.Labels = maps.Clone(o.Labels)
			out = append(out, o)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].ObservedAt.Before(out[j].ObservedAt) })
	return out, nil
}

// EvictStale drops observations older than now minus the horizon.
func (s *MemoryStore) EvictStale(_ context.Context) (int, error) {
	cutoff := s.clock.Now().Add(-s.horizon)

	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[:0]
	for _, o := range s.entries {
		if !o.ObservedAt.Before(cutoff) {
			kept = append(kept, o)
		}
	}
	removed := len(s.entries) - len(kept)
	// zero the tail so evicted label maps can be collected
	clear(s.entries[len(kept):])
	s.entries = shrink(kept)
	return removed, nil
}

// shrink reallocates entries once they fill less than a quarter of the
// backing array, so a burst does not pin its peak capacity.
func shrink(entries []Observation) []Observation {
	if cap(entries) < minShrinkCap || len(entries) >= cap(entries)/4 {
		return entries
	}
	if len(entries) == 0 {
		return nil
	}
	return slices.Clone(entries)
}

// Clear drops every observation and releases the backing array.
func (s *MemoryStore) Clear(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := len(s.entries)
	s.entries = nil
	return removed, nil
}

// Len reports the number of observations held.
func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

// Horizon returns the staleness horizon.
func (s *MemoryStore) Horizon() time.Duration { return s.horizon }

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error { return nil }
