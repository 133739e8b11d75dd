// Package daemon wires the hiveagent components into a long-running agent.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/hiveagent/internal/collector"
	"git.home.luguber.info/inful/hiveagent/internal/config"
	"git.home.luguber.info/inful/hiveagent/internal/coordinator"
	"git.home.luguber.info/inful/hiveagent/internal/essence"
	"git.home.luguber.info/inful/hiveagent/internal/foundation/errors"
	"git.home.luguber.info/inful/hiveagent/internal/lifecycle"
	"git.home.luguber.info/inful/hiveagent/internal/logfields"
	"git.home.luguber.info/inful/hiveagent/internal/metrics"
	"git.home.luguber.info/inful/hiveagent/internal/store"
	"git.home.luguber.info/inful/hiveagent/internal/synchronizer"
	"git.home.luguber.info/inful/hiveagent/internal/version"
)

// Status represents the current state of the agent.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusError    Status = "error"
)

// Maintenance job names.
const (
	jobClearInert = "clear-inert-state"
	jobClearAll   = "clear-all-state"
)

var errStoreClosed = errors.StoreError("state store not initialized").Build()

// DefaultStopTimeout bounds Run's shutdown after its context ends.
const DefaultStopTimeout = 30 * time.Second

// TransportFactory opens a coordinator transport.
type TransportFactory func(ctx context.Context, cfg config.CoordinatorConfig) (coordinator.Transport, error)

// Agent owns the store, the synchronization scheduler and the maintenance jobs.
type Agent struct {
	mu         sync.Mutex
	config     atomic.Pointer[config.Config]
	configPath string
	status     atomic.Value
	startTime  time.Time

	identity     essence.Identity
	newTransport TransportFactory
	registry     *prom.Registry
	recorder     metrics.Recorder

	stateMu     sync.RWMutex // guards store and lifecycle
	store       store.Store
	provider    *essence.Provider
	transport   coordinator.Transport
	transportMu sync.Mutex
	sync        *synchronizer.Scheduler
	lifecycle   *lifecycle.Manager
	maintenance *Scheduler
	collector   *collector.Collector
	admin       *AdminServer
	watcher     *ConfigWatcher

	runCtx    context.Context
	runCancel context.CancelFunc

	lastReport atomic.Pointer[lifecycle.Report]
}

// Option configures an Agent.
type Option func(*Agent)

// WithConfigPath enables hot reload of the given file.
func WithConfigPath(path string) Option {
	return func(a *Agent) { a.configPath = path }
}

// WithTransportFactory replaces the coordinator factory.
func WithTransportFactory(f TransportFactory) Option {
	return func(a *Agent) {
		if f != nil {
			a.newTransport = f
		}
	}
}

// New creates a stopped agent.
func New(cfg *config.Config, opts ...Option) (*Agent, error) {
	if cfg == nil {
		return nil, errors.ConfigError("configuration is required").Build()
	}
	registry := newRegistry()
	a := &Agent{
		newTransport: coordinator.New,
		registry:     registry,
		recorder:     metrics.NewPrometheusRecorder(registry),
		identity:     essence.ResolveIdentity(cfg.Node.ID, cfg.Node.Hostname, version.Version),
	}
	a.config.Store(cfg)
	a.status.Store(StatusStopped)
	for _, opt := range opts {
		opt(a)
	}
	a.sync = synchronizer.NewScheduler(synchronizer.WithRecorder(a.recorder))
	return a, nil
}

// Start brings up every component. On failure everything already started is
// torn down and the agent is left in StatusError.
func (a *Agent) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.GetStatus() != StatusStopped {
		return errors.DaemonError(fmt.Sprintf("agent is not in stopped state: %s", a.GetStatus())).Build()
	}
	a.status.Store(StatusStarting)
	a.startTime = time.Now()
	a.runCtx, a.runCancel = context.WithCancel(context.WithoutCancel(ctx))

	slog.Info("Starting hiveagent",
		slog.String("version", version.Version),
		logfields.NodeID(a.identity.NodeID))

	if err := a.startComponents(ctx); err != nil {
		a.stopComponents(ctx)
		a.status.Store(StatusError)
		return err
	}

	a.status.Store(StatusRunning)
	cfg := a.config.Load()
	slog.Info("hiveagent started",
		logfields.PeriodSeconds(cfg.Sync.PeriodSeconds),
		logfields.Backend(string(cfg.State.Backend)),
		logfields.Transport(string(cfg.Coordinator.Transport)))
	return nil
}

func (a *Agent) startComponents(ctx context.Context) error {
	cfg := a.config.Load()

	st, err := openStore(cfg.State)
	if err != nil {
		return err
	}
	a.stateMu.Lock()
	a.store = st
	a.lifecycle = lifecycle.NewManager(st, lifecycle.WithRecorder(a.recorder))
	a.stateMu.Unlock()

	a.provider, err = essence.NewProvider(st, a.identity, cfg.Sync.WindowDuration())
	if err != nil {
		return err
	}

	if cfg.Collector.IsEnabled() {
		a.collector, err = collector.New(st, cfg.Collector.IntervalDuration())
		if err != nil {
			return err
		}
		if err := a.collector.Start(a.runCtx); err != nil {
			return err
		}
	}

	if err := a.startMaintenance(ctx); err != nil {
		return err
	}

	syncCfg, err := synchronizer.NewSyncConfig(cfg.Sync.PeriodSeconds)
	if err != nil {
		return err
	}
	if err := a.sync.Start(syncCfg, a.unitFactory(cfg.Coordinator)); err != nil {
		return err
	}

	if cfg.Admin.IsEnabled() {
		a.admin = NewAdminServer(cfg.Admin.Addr, a)
		if err := a.admin.Start(ctx); err != nil {
			return err
		}
	}

	if a.configPath != "" {
		w, err := NewConfigWatcher(a.configPath, a)
		if err != nil {
			slog.Warn("Config watcher unavailable", logfields.Error(err))
			return nil
		}
		if err := w.Start(a.runCtx); err != nil {
			slog.Warn("Failed to start config watcher", logfields.Error(err))
			return nil
		}
		a.watcher = w
	}
	return nil
}

func (a *Agent) startMaintenance(ctx context.Context) error {
	sched, err := NewScheduler()
	if err != nil {
		return errors.WrapError(err, errors.CategoryDaemon, "failed to create maintenance scheduler").Build()
	}
	a.maintenance = sched
	cfg := a.config.Load()

	if _, err := sched.ScheduleEvery(jobClearInert, cfg.Lifecycle.InertIntervalDuration(), func() {
		a.ClearInertState(a.runCtx)
	}); err != nil {
		return errors.WrapError(err, errors.CategoryDaemon, "failed to schedule inert state cleanup").Build()
	}

	if expr := cfg.Lifecycle.FullResetCron; expr != "" {
		if _, err := sched.ScheduleCron(jobClearAll, expr, func() {
			a.ClearAllState(a.runCtx)
		}); err != nil {
			return errors.WrapError(err, errors.CategoryDaemon, "failed to schedule full state reset").Build()
		}
	}

	sched.Start(ctx)
	return nil
}

// unitFactory opens the transport for cfg, replacing any previous one.
func (a *Agent) unitFactory(cfg config.CoordinatorConfig) synchronizer.UnitFactory {
	return func() (synchronizer.Runner, error) {
		tr, err := a.newTransport(a.runCtx, cfg)
		if err != nil {
			return nil, err
		}
		a.swapTransport(tr)
		return synchronizer.NewUnit(a.provider, tr, synchronizer.WithUnitRecorder(a.recorder)), nil
	}
}

func (a *Agent) swapTransport(tr coordinator.Transport) {
	a.transportMu.Lock()
	prev := a.transport
	a.transport = tr
	a.transportMu.Unlock()
	closeTransport(prev)
}

func closeTransport(tr coordinator.Transport) {
	if tr == nil {
		return
	}
	if err := tr.Close(); err != nil {
		slog.Warn("Failed to close coordinator transport", logfields.Transport(tr.Name()), logfields.Error(err))
	}
}

func openStore(cfg config.StateConfig) (store.Store, error) {
	switch cfg.Backend {
	case config.StateBackendSQLite:
		return store.NewSQLiteStore(cfg.Path, cfg.HorizonDuration())
	default:
		return store.NewMemoryStore(cfg.HorizonDuration())
	}
}

// Stop shuts components down in reverse order. It returns the synchronization
// scheduler's error when the in-flight cycle outlives ctx.
func (a *Agent) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.GetStatus() {
	case StatusStopped, StatusStopping:
		return nil
	}
	a.status.Store(StatusStopping)
	slog.Info("Stopping hiveagent")

	err := a.stopComponents(ctx)
	if err != nil {
		a.status.Store(StatusError)
		return err
	}

	a.status.Store(StatusStopped)
	slog.Info("hiveagent stopped", slog.Duration("uptime", time.Since(a.startTime)))
	return nil
}

func (a *Agent) stopComponents(ctx context.Context) error {
	if a.watcher != nil {
		if err := a.watcher.Stop(ctx); err != nil {
			slog.Error("Failed to stop config watcher", logfields.Error(err))
		}
		a.watcher = nil
	}
	if a.admin != nil {
		if err := a.admin.Stop(ctx); err != nil {
			slog.Error("Failed to stop admin server", logfields.Error(err))
		}
		a.admin = nil
	}

	syncErr := a.sync.Stop(ctx)
	if syncErr != nil {
		slog.Error("Synchronization did not stop cleanly", logfields.Error(syncErr))
	}

	if a.maintenance != nil {
		if err := a.maintenance.Stop(ctx); err != nil {
			slog.Error("Failed to stop maintenance scheduler", logfields.Error(err))
		}
		a.maintenance = nil
	}
	if a.collector != nil {
		if err := a.collector.Stop(); err != nil {
			slog.Error("Failed to stop collector", logfields.Error(err))
		}
		a.collector = nil
	}
	if a.runCancel != nil {
		a.runCancel()
	}

	if syncErr != nil {
		// The in-flight cycle still uses the transport and store.
		return syncErr
	}

	a.swapTransport(nil)

	// Waits for an on-demand lifecycle call still using the store.
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.lifecycle = nil
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			slog.Error("Failed to close state store", logfields.Error(err))
		}
		a.store = nil
	}
	return nil
}

// Run starts the agent and blocks until ctx ends, then stops it.
func (a *Agent) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultStopTimeout)
	defer cancel()
	return a.Stop(stopCtx)
}

// ClearInertState evicts stale state now. It is a no-op returning an empty
// report while the agent is not running.
func (a *Agent) ClearInertState(ctx context.Context) lifecycle.Report {
	return a.runLifecycle(ctx, lifecycle.OpClearInert, (*lifecycle.Manager).ClearInertState)
}

// ClearAllState empties the store now. It is a no-op returning an empty
// report while the agent is not running.
func (a *Agent) ClearAllState(ctx context.Context) lifecycle.Report {
	return a.runLifecycle(ctx, lifecycle.OpClearAll, (*lifecycle.Manager).ClearAllState)
}

// LastLifecycleReport returns the most recent cleanup report, if any.
func (a *Agent) LastLifecycleReport() *lifecycle.Report {
	return a.lastReport.Load()
}

func (a *Agent) runLifecycle(ctx context.Context, op string, run func(*lifecycle.Manager, context.Context) lifecycle.Report) lifecycle.Report {
	a.stateMu.RLock()
	defer a.stateMu.RUnlock()
	if a.lifecycle == nil || a.store == nil {
		slog.Debug("Lifecycle operation skipped, agent not running", logfields.Operation(op))
		return lifecycle.Report{Operation: op}
	}

	report := run(a.lifecycle, ctx)
	a.lastReport.Store(&report)
	if n, err := a.store.Len(ctx); err == nil {
		a.recorder.SetStoreEntries(n)
	}
	return report
}

// storeLen reports the store size, or an error when no store is open.
func (a *Agent) storeLen(ctx context.Context) (int, error) {
	a.stateMu.RLock()
	defer a.stateMu.RUnlock()
	if a.store == nil {
		return 0, errStoreClosed
	}
	return a.store.Len(ctx)
}

// GetStatus returns the current agent status.
func (a *Agent) GetStatus() Status {
	status, ok := a.status.Load().(Status)
	if !ok {
		return StatusError
	}
	return status
}

// GetConfig returns the active configuration.
func (a *Agent) GetConfig() *config.Config {
	return a.config.Load()
}

// Registry exposes the agent's Prometheus registry.
func (a *Agent) Registry() *prom.Registry { return a.registry }

// SyncStats returns the synchronization scheduler statistics.
func (a *Agent) SyncStats() synchronizer.Stats { return a.sync.Stats() }

// Identity returns the node identity sent with every essence.
func (a *Agent) Identity() essence.Identity { return a.identity }

// ReloadConfig applies a new configuration. Period and coordinator changes
// restart synchronization; other sections need an agent restart.
func (a *Agent) ReloadConfig(ctx context.Context, newConfig *config.Config) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.GetStatus() != StatusRunning {
		return errors.DaemonError("agent is not running").Build()
	}
	old := a.config.Load()

	if old.State != newConfig.State || old.Admin.Addr != newConfig.Admin.Addr ||
		old.Lifecycle != newConfig.Lifecycle || old.Sync.Window != newConfig.Sync.Window {
		slog.Warn("Configuration changes outside sync period and coordinator require a restart")
	}

	if old.Sync.PeriodSeconds == newConfig.Sync.PeriodSeconds && old.Coordinator == newConfig.Coordinator {
		a.config.Store(newConfig)
		return nil
	}

	syncCfg, err := synchronizer.NewSyncConfig(newConfig.Sync.PeriodSeconds)
	if err != nil {
		return err
	}
	if err := a.sync.Stop(ctx); err != nil {
		return err
	}
	if err := a.sync.Start(syncCfg, a.unitFactory(newConfig.Coordinator)); err != nil {
		slog.Error("Restart with new configuration failed; keeping previous settings", logfields.Error(err))
		prevCfg, _ := synchronizer.NewSyncConfig(old.Sync.PeriodSeconds)
		if rerr := a.sync.Start(prevCfg, a.unitFactory(old.Coordinator)); rerr != nil {
			slog.Error("Failed to restore synchronization", logfields.Error(rerr))
		}
		return err
	}

	a.config.Store(newConfig)
	slog.Info("Synchronization restarted with new configuration",
		logfields.PeriodSeconds(newConfig.Sync.PeriodSeconds),
		logfields.Transport(string(newConfig.Coordinator.Transport)))
	return nil
}
