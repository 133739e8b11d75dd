// Package collector samples local runtime observations into the state store.
package collector

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/hiveagent/internal/foundation/errors"
	"git.home.luguber.info/inful/hiveagent/internal/logfields"
	"git.home.luguber.info/inful/hiveagent/internal/store"
)

// Observation kinds recorded by the runtime sampler.
const (
	KindMemory     = "memory"
	KindGoroutines = "goroutines"
	KindGC         = "gc"
)

// Recorder is the write side of the state store.
type Recorder interface {
	Record(ctx context.Context, obs ...store.Observation) error
}

// Sampler produces one batch of observations.
type Sampler func() []store.Observation

// RuntimeSampler reads heap, goroutine and GC figures from the Go runtime.
func RuntimeSampler() []store.Observation {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return []store.Observation{
		{Key: "heap_alloc_bytes", Kind: KindMemory, Value: float64(ms.HeapAlloc)},
		{Key: "heap_objects", Kind: KindMemory, Value: float64(ms.HeapObjects)},
		{Key: "sys_bytes", Kind: KindMemory, Value: float64(ms.Sys)},
		{Key: "goroutines", Kind: KindGoroutines, Value: float64(runtime.NumGoroutine())},
		{Key: "gc_cycles", Kind: KindGC, Value: float64(ms.NumGC)},
	}
}

// Collector records a sample on a fixed interval.
type Collector struct {
	mu       sync.Mutex
	rec      Recorder
	sample   Sampler
	interval time.Duration
	sched    gocron.Scheduler
}

// Option configures a Collector.
type Option func(*Collector)

// WithSampler replaces the runtime sampler.
func WithSampler(s Sampler) Option {
	return func(c *Collector) {
		if s != nil {
			c.sample = s
		}
	}
}

// New creates a Collector writing to rec every interval.
func New(rec Recorder, interval time.Duration, opts ...Option) (*Collector, error) {
	if rec == nil {
		return nil, errors.ValidationError("collector requires a store").Build()
	}
	if interval <= 0 {
		return nil, errors.ValidationError("collector interval must be positive").
			WithContext("interval", interval.String()).
			Build()
	}
	c := &Collector{rec: rec, sample: RuntimeSampler, interval: interval}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Collect records one sample immediately.
func (c *Collector) Collect(ctx context.Context) (int, error) {
	batch := c.sample()
	if len(batch) == 0 {
		return 0, nil
	}
	if err := c.rec.Record(ctx, batch...); err != nil {
		return 0, fmt.Errorf("record runtime sample: %w", err)
	}
	return len(batch), nil
}

// Start samples immediately and then every interval until Stop.
func (c *Collector) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sched != nil {
		return nil
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return errors.WrapError(err, errors.CategoryDaemon, "failed to create collector scheduler").Build()
	}
	_, err = s.NewJob(
		gocron.DurationJob(c.interval),
		gocron.NewTask(func() {
			n, err := c.Collect(ctx)
			if err != nil {
				slog.Warn("Runtime sample not recorded", logfields.Error(err))
				return
			}
			slog.Debug("Runtime sample recorded", logfields.Entries(n))
		}),
		gocron.WithName("collector"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = s.Shutdown()
		return errors.WrapError(err, errors.CategoryDaemon, "failed to schedule collector").Build()
	}
	s.Start()
	c.sched = s
	slog.Info("Collector started", slog.Duration("interval", c.interval))
	return nil
}

// Stop halts sampling. It is safe to call more than once.
func (c *Collector) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sched == nil {
		return nil
	}
	err := c.sched.Shutdown()
	c.sched = nil
	if err != nil {
		return fmt.Errorf("stop collector: %w", err)
	}
	return nil
}
