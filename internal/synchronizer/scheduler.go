package synchronizer

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/hiveagent/internal/foundation/errors"
	"git.home.luguber.info/inful/hiveagent/internal/logfields"
	"git.home.luguber.info/inful/hiveagent/internal/metrics"
)

// State is the scheduler lifecycle state.
type State string

const (
	StateStopped State = "stopped"
	StateRunning State = "running"
)

const syncJobName = "hivemind-sync"

// UnitFactory builds the Runner for a scheduler run. It is called once per Start.
type UnitFactory func() (Runner, error)

var (
	// ErrAlreadyRunning is returned by Start when the scheduler is running.
	ErrAlreadyRunning = errors.StartupError("synchronization already running").Build()

	// ErrStopIncomplete is returned by Stop when ctx expires before the in-flight cycle returns.
	ErrStopIncomplete = errors.NewError(errors.CategoryScheduler, "in-flight cycle still running").Warning().Build()
)

// Stats summarizes the cycles dispatched since the scheduler was created.
type Stats struct {
	State         State
	PeriodSeconds int
	Started       uint64
	Succeeded     uint64
	Failed        uint64
	LastOutcome   *CycleOutcome
}

// Scheduler dispatches a Runner at a fixed rate with at most one cycle in flight.
type Scheduler struct {
	mu     sync.Mutex // serializes Start and Stop
	state  atomic.Value
	cron   gocron.Scheduler
	cycles *cycleGroup

	recorder    metrics.Recorder
	stopTimeout time.Duration
	periodUnit  time.Duration

	started   atomic.Uint64
	succeeded atomic.Uint64
	failed    atomic.Uint64
	lastMu    sync.RWMutex // guards cfg and last
	cfg       SyncConfig
	last      *CycleOutcome
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(s *Scheduler) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithStopTimeout bounds how long the underlying gocron scheduler waits for a
// running job during shutdown. Stop keeps waiting on its own context afterwards.
func WithStopTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.stopTimeout = d
		}
	}
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{
		recorder:    metrics.NoopRecorder{},
		stopTimeout: time.Second,
		periodUnit:  time.Second,
	}
	s.state.Store(StateStopped)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins dispatching cycles: the first immediately, then one every
// cfg period. A firing that would overlap a running cycle is dropped.
func (s *Scheduler) Start(cfg SyncConfig, factory UnitFactory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	slog.Info("Starting synchronization with hivemind", logfields.PeriodSeconds(cfg.PeriodSeconds()))

	if s.cycles != nil {
		return ErrAlreadyRunning
	}
	if !cfg.Valid() {
		return errors.WrapError(ErrInvalidPeriod, errors.CategoryScheduler, "invalid synchronization config").
			Fatal().
			WithContext("period_seconds", cfg.PeriodSeconds()).
			Build()
	}
	if factory == nil {
		return errors.StartupError("no synchronization unit factory").Build()
	}

	runner, err := factory()
	if err != nil {
		return errors.WrapError(err, errors.CategoryScheduler, "synchronization unit unavailable").Fatal().Build()
	}

	cron, err := gocron.NewScheduler(gocron.WithStopTimeout(s.stopTimeout))
	if err != nil {
		return errors.WrapError(err, errors.CategoryScheduler, "failed to create gocron scheduler").Fatal().Build()
	}

	cycles := &cycleGroup{}
	period := time.Duration(cfg.PeriodSeconds()) * s.periodUnit
	_, err = cron.NewJob(
		gocron.DurationJob(period),
		gocron.NewTask(func() { s.dispatch(cycles, runner) }),
		gocron.WithName(syncJobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = cron.Shutdown()
		return errors.WrapError(err, errors.CategoryScheduler, "failed to create synchronization job").Fatal().Build()
	}

	s.cron = cron
	s.cycles = cycles
	s.lastMu.Lock()
	s.cfg = cfg
	s.lastMu.Unlock()
	cron.Start()
	s.state.Store(StateRunning)
	s.recorder.SetSchedulerRunning(true)

	slog.Info("Started synchronization with hivemind", logfields.PeriodSeconds(cfg.PeriodSeconds()))
	return nil
}

// Stop halts dispatch and waits for the in-flight cycle to finish. It is a
// no-op when the scheduler is already stopped. If ctx ends first Stop returns
// ErrStopIncomplete; no further cycle starts and a later Stop waits again.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cycles == nil {
		return nil
	}
	slog.Info("Stopping synchronization with hivemind")

	s.cycles.Stop()
	if s.cron != nil {
		if err := s.cron.Shutdown(); err != nil && !stderrors.Is(err, gocron.ErrStopSchedulerTimedOut) {
			slog.Warn("Synchronization scheduler shutdown reported an error", logfields.Error(err))
		}
		s.cron = nil
	}

	if err := s.cycles.StopAndWait(ctx); err != nil {
		return ErrStopIncomplete.WithContext("cause", err.Error())
	}

	s.cycles = nil
	s.state.Store(StateStopped)
	s.recorder.SetSchedulerRunning(false)
	slog.Info("Stopped synchronization with hivemind")
	return nil
}

// State returns the current scheduler state without blocking.
func (s *Scheduler) State() State {
	return s.state.Load().(State)
}

// Stats returns cycle counters and the most recent outcome.
func (s *Scheduler) Stats() Stats {
	s.lastMu.RLock()
	var last *CycleOutcome
	if s.last != nil {
		cp := *s.last
		last = &cp
	}
	period := s.cfg.PeriodSeconds()
	s.lastMu.RUnlock()

	return Stats{
		State:         s.State(),
		PeriodSeconds: period,
		Started:       s.started.Load(),
		Succeeded:     s.succeeded.Load(),
		Failed:        s.failed.Load(),
		LastOutcome:   last,
	}
}

// dispatch runs one cycle inside the in-flight group. A panicking Runner is
// converted to a failed outcome so the job stays scheduled.
func (s *Scheduler) dispatch(cycles *cycleGroup, runner Runner) {
	cycles.Do(func() {
		s.started.Add(1)
		outcome := s.runGuarded(runner)
		if outcome.Succeeded() {
			s.succeeded.Add(1)
		} else {
			s.failed.Add(1)
		}
		s.lastMu.Lock()
		s.last = &outcome
		s.lastMu.Unlock()
	})
}

func (s *Scheduler) runGuarded(runner Runner) (outcome CycleOutcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = CycleOutcome{
				Status: StatusFailure,
				Stage:  StagePanic,
				Err:    errors.InternalError("synchronization runner panicked").WithCause(fmt.Errorf("%v", r)).Build(),
			}
			slog.Error("Synchronization runner panicked", logfields.Error(outcome.Err))
		}
	}()
	// Cycles are never aborted from outside; Stop only waits for them.
	return runner.Run(context.Background())
}
