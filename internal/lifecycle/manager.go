// Package lifecycle bounds the agent's local memory by evicting state.
package lifecycle

import (
	"context"
	"runtime"

	"git.home.luguber.info/inful/hiveagent/internal/foundation/errors"
	"git.home.luguber.info/inful/hiveagent/internal/logfields"
	"git.home.luguber.info/inful/hiveagent/internal/metrics"
	"git.home.luguber.info/inful/hiveagent/internal/observability"
)

// Operation names used in logs, metrics and reports.
const (
	OpClearInert = "clear_inert"
	OpClearAll   = "clear_all"
)

// Warning reasons.
const (
	reasonStoreError    = "store_error"
	reasonNegativeDelta = "negative_delta"
)

// Cleaner is the part of the state store the manager drives.
type Cleaner interface {
	EvictStale(ctx context.Context) (int, error)
	Clear(ctx context.Context) (int, error)
}

// Report describes one completed lifecycle operation.
type Report struct {
	Operation   string
	Removed     int
	Before      MemoryReading
	After       MemoryReading
	ReclaimedMB float64
	Warnings    []*errors.ClassifiedError
}

// Manager performs partial and full state cleanup.
type Manager struct {
	store    Cleaner
	recorder metrics.Recorder
	readMem  MemoryReader
	gc       func()
}

// Option configures a Manager.
type Option func(*Manager)

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(m *Manager) {
		if r != nil {
			m.recorder = r
		}
	}
}

// WithMemoryReader replaces the runtime memory reader.
func WithMemoryReader(r MemoryReader) Option {
	return func(m *Manager) {
		if r != nil {
			m.readMem = r
		}
	}
}

// NewManager creates a lifecycle manager over store.
func NewManager(store Cleaner, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		recorder: metrics.NoopRecorder{},
		readMem:  ReadRuntimeMemory,
		gc:       runtime.GC,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ClearInertState evicts observations beyond the store's staleness horizon.
func (m *Manager) ClearInertState(ctx context.Context) Report {
	return m.run(ctx, OpClearInert, "Removing inert state", m.store.EvictStale)
}

// ClearAllState removes every observation, resetting the agent's local state.
func (m *Manager) ClearAllState(ctx context.Context) Report {
	return m.run(ctx, OpClearAll, "Removing all state", m.store.Clear)
}

func (m *Manager) run(ctx context.Context, op, msg string, clean func(context.Context) (int, error)) Report {
	ctx = observability.WithOperation(ctx, op)
	report := Report{Operation: op, Before: m.readMem()}
	observability.InfoContext(ctx, msg, logfields.MemoryMB(report.Before.MB()))

	removed, err := clean(ctx)
	if err != nil {
		w := errors.LifecycleWarning(op, "state store cleanup failed").WithCause(err).Build()
		report.Warnings = append(report.Warnings, w)
		m.recorder.IncLifecycleWarning(op, reasonStoreError)
		observability.WarnContext(ctx, w.Message(), logfields.Error(err))
	}
	report.Removed = removed

	// Reclamation is deferred until the collector runs; ask for it before measuring.
	m.gc()
	report.After = m.readMem()
	report.ReclaimedMB = report.Before.MB() - report.After.MB()

	// A negative delta means the heap grew while cleaning; it is a measurement
	// artifact, reported but not treated as failure.
	if report.ReclaimedMB < 0 {
		w := errors.LifecycleWarning(op, "heap grew during cleanup").
			WithContext("reclaimed_mb", report.ReclaimedMB).
			Build()
		report.Warnings = append(report.Warnings, w)
		m.recorder.IncLifecycleWarning(op, reasonNegativeDelta)
		observability.WarnContext(ctx, w.Message(), logfields.ReclaimedMB(report.ReclaimedMB))
	}
	m.recorder.ObserveLifecycle(op, removed, report.ReclaimedMB)
	observability.InfoContext(ctx, msg+" completed",
		logfields.Removed(removed),
		logfields.ReclaimedMB(report.ReclaimedMB),
		logfields.MemoryMB(report.After.MB()))
	return report
}
