package synchronizer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/hiveagent/internal/foundation/errors"
	"git.home.luguber.info/inful/hiveagent/internal/logfields"
	"git.home.luguber.info/inful/hiveagent/internal/metrics"
	"git.home.luguber.info/inful/hiveagent/internal/observability"
)

// Runner runs one synchronization cycle. Implementations must not panic or
// block forever; Unit satisfies both by construction.
type Runner interface {
	Run(ctx context.Context) CycleOutcome
}

// Unit is one synchronization cycle: fetch the essence, deliver it.
type Unit struct {
	provider    EssenceProvider
	coordinator Coordinator
	recorder    metrics.Recorder
	now         func() time.Time
}

// UnitOption configures a Unit.
type UnitOption func(*Unit)

// WithUnitRecorder sets the metrics recorder for cycle outcomes.
func WithUnitRecorder(r metrics.Recorder) UnitOption {
	return func(u *Unit) {
		if r != nil {
			u.recorder = r
		}
	}
}

// NewUnit creates a Unit.
func NewUnit(provider EssenceProvider, coordinator Coordinator, opts ...UnitOption) *Unit {
	u := &Unit{
		provider:    provider,
		coordinator: coordinator,
		recorder:    metrics.NoopRecorder{},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Run performs exactly one cycle. It never returns an error and never panics;
// every failure is folded into the returned outcome and logged.
func (u *Unit) Run(ctx context.Context) (outcome CycleOutcome) {
	outcome = CycleOutcome{
		CycleID:   uuid.NewString(),
		StartedAt: u.now(),
	}
	ctx = observability.WithCycleID(ctx, outcome.CycleID)

	defer func() {
		if r := recover(); r != nil {
			outcome.Status = StatusFailure
			outcome.Stage = StagePanic
			outcome.Err = errors.InternalError("synchronization cycle panicked").
				WithCause(fmt.Errorf("%v", r)).
				Build()
		}
		outcome.Duration = u.now().Sub(outcome.StartedAt)
		u.report(ctx, outcome)
	}()

	payload, err := u.provider.Essence(ctx)
	if err != nil {
		outcome.Status = StatusFailure
		outcome.Stage = StageEssence
		outcome.Err = errors.WrapError(err, errors.CategoryProvider, "essence unavailable").NextTick().Build()
		return outcome
	}
	outcome.Entries = payload.Entries

	if err := u.coordinator.Deliver(ctx, payload); err != nil {
		outcome.Status = StatusFailure
		outcome.Stage = StageDeliver
		outcome.Err = errors.WrapError(err, errors.CategoryCoordinator, "delivery to hivemind failed").
			NextTick().
			WithContext("payload_id", payload.ID).
			Build()
		return outcome
	}

	outcome.Status = StatusSuccess
	return outcome
}

func (u *Unit) report(ctx context.Context, o CycleOutcome) {
	durationMS := float64(o.Duration.Microseconds()) / 1000
	u.recorder.ObserveCycleDuration(o.Duration)

	if o.Succeeded() {
		u.recorder.IncCycleOutcome(metrics.ResultSuccess, string(StageNone))
		observability.InfoContext(ctx, "Synchronized with hivemind",
			logfields.Entries(o.Entries),
			logfields.DurationMS(durationMS))
		return
	}

	u.recorder.IncCycleOutcome(metrics.ResultFailure, string(o.Stage))
	observability.WarnContext(ctx, "Synchronization cycle failed; retrying next period",
		logfields.Stage(string(o.Stage)),
		logfields.DurationMS(durationMS),
		logfields.Error(o.Err))
}
