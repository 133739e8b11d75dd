package store

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/hiveagent/internal/foundation/errors"
)

// Observation is one locally observed value.
type Observation struct {
	Key        string            `json:"key"`
	Kind       string            `json:"kind"`
	Value      float64           `json:"value"`
	Labels     map[string]string `json:"labels,omitempty"`
	ObservedAt time.Time         `json:"observed_at"`
}

// Store defines the operations the agent needs from its state store.
type Store interface {
	// Record appends observations. A zero ObservedAt is stamped with the store clock.
	Record(ctx context.Context, obs ...Observation) error

	// Recent returns observations observed at or after since, oldest first.
	Recent(ctx context.Context, since time.Time) ([]Observation, error)

	// EvictStale removes observations older than the staleness horizon and
	// reports how many were removed.
	EvictStale(ctx context.Context) (int, error)

	// Clear removes every observation and reports how many were removed.
	Clear(ctx context.Context) (int, error)

	// Len reports the number of observations held.
	Len(ctx context.Context) (int, error)

	// Horizon returns the staleness horizon.
	Horizon() time.Duration

	// Close releases resources.
	Close() error
}

// ErrInvalidHorizon is returned when a store is constructed with a non-positive horizon.
var ErrInvalidHorizon = errors.ValidationError("staleness horizon must be positive").Build()

// Option configures a store.
type Option func(*options)

type options struct {
	clock clockwork.Clock
}

// WithClock overrides the clock used for stamping and eviction.
func WithClock(c clockwork.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func validateHorizon(h time.Duration) error {
	if h <= 0 {
		return ErrInvalidHorizon.WithContext("horizon", h.String())
	}
	return nil
}
