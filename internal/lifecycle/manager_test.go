package lifecycle

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/hiveagent/internal/foundation/errors"
	"git.home.luguber.info/inful/hiveagent/internal/metrics"
	"git.home.luguber.info/inful/hiveagent/internal/store"
)

type spyRecorder struct {
	metrics.NoopRecorder
	mu       sync.Mutex
	runs     []string
	warnings []string
}

func (r *spyRecorder) ObserveLifecycle(op string, _ int, _ float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, op)
}

func (r *spyRecorder) IncLifecycleWarning(op, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, op+":"+reason)
}

// readings returns a MemoryReader yielding the given megabyte values in order.
func readings(mbs ...float64) MemoryReader {
	i := 0
	return func() MemoryReading {
		v := mbs[i%len(mbs)]
		i++
		return MemoryReading{InUseBytes: uint64(v * bytesPerMB), TakenAt: time.Now()}
	}
}

type failingCleaner struct{ err error }

func (f failingCleaner) EvictStale(context.Context) (int, error) { return 0, f.err }
func (f failingCleaner) Clear(context.Context) (int, error)      { return 0, f.err }

func TestClearInertState_RemovesOnlyStaleEntries(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(t0)
	s, err := store.NewMemoryStore(50*time.Second, store.WithClock(clock))
	require.NoError(t, err)

	require.NoError(t, s.Record(ctx,
		store.Observation{Key: "t0", Kind: "k", ObservedAt: t0},
		store.Observation{Key: "t100", Kind: "k", ObservedAt: t0.Add(100 * time.Second)},
	))
	clock.Advance(60 * time.Second)

	m := NewManager(s, WithMemoryReader(readings(10, 8)))
	report := m.ClearInertState(ctx)

	require.Equal(t, OpClearInert, report.Operation)
	require.Equal(t, 1, report.Removed)
	require.InDelta(t, 2.0, report.ReclaimedMB, 0.0001)
	require.Empty(t, report.Warnings)

	left, err := s.Recent(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, left, 1)
	require.Equal(t, "t100", left[0].Key)
}

func TestClearAllState_LeavesStoreEmpty(t *testing.T) {
	ctx := context.Background()
	for _, n := range []int{0, 1, 500} {
		s, err := store.NewMemoryStore(time.Hour)
		require.NoError(t, err)
		for i := range n {
			require.NoError(t, s.Record(ctx, store.Observation{Key: "k", Kind: "k", Value: float64(i)}))
		}

		report := NewManager(s).ClearAllState(ctx)
		require.Equal(t, n, report.Removed)

		left, err := s.Len(ctx)
		require.NoError(t, err)
		require.Zero(t, left)
	}
}

func TestRun_RequestsCollectionBetweenReadings(t *testing.T) {
	s, err := store.NewMemoryStore(time.Hour)
	require.NoError(t, err)

	var order []string
	m := NewManager(s, WithMemoryReader(func() MemoryReading {
		order = append(order, "read")
		return MemoryReading{}
	}))
	m.gc = func() { order = append(order, "gc") }

	m.ClearAllState(context.Background())
	require.Equal(t, []string{"read", "gc", "read"}, order)
}

func TestRun_NegativeDeltaIsWarningNotFailure(t *testing.T) {
	s, err := store.NewMemoryStore(time.Hour)
	require.NoError(t, err)
	rec := &spyRecorder{}

	report := NewManager(s, WithRecorder(rec), WithMemoryReader(readings(4, 6))).ClearAllState(context.Background())

	require.InDelta(t, -2.0, report.ReclaimedMB, 0.0001)
	require.Len(t, report.Warnings, 1)
	require.True(t, report.Warnings[0].IsSeverity(errors.SeverityWarning))
	require.Equal(t, []string{"clear_all:negative_delta"}, rec.warnings)
	require.Equal(t, []string{OpClearAll}, rec.runs)
}

func TestRun_ZeroDeltaIsNotWarned(t *testing.T) {
	s, err := store.NewMemoryStore(time.Hour)
	require.NoError(t, err)

	report := NewManager(s, WithMemoryReader(readings(5, 5))).ClearInertState(context.Background())
	require.Zero(t, report.ReclaimedMB)
	require.Empty(t, report.Warnings)
}

func TestRun_StoreErrorBecomesWarning(t *testing.T) {
	cause := stderrors.New("database is locked")
	rec := &spyRecorder{}
	m := NewManager(failingCleaner{err: cause}, WithRecorder(rec), WithMemoryReader(readings(3, 3)))

	for _, report := range []Report{m.ClearInertState(context.Background()), m.ClearAllState(context.Background())} {
		require.Len(t, report.Warnings, 1)
		require.ErrorIs(t, report.Warnings[0], cause)
		require.True(t, report.Warnings[0].IsCategory(errors.CategoryLifecycle))
	}
	require.Equal(t, []string{"clear_inert:store_error", "clear_all:store_error"}, rec.warnings)
	require.Equal(t, []string{OpClearInert, OpClearAll}, rec.runs)
}

func TestReadRuntimeMemory(t *testing.T) {
	r := ReadRuntimeMemory()
	require.NotZero(t, r.InUseBytes)
	require.False(t, r.TakenAt.IsZero())
	require.InDelta(t, float64(r.InUseBytes)/bytesPerMB, r.MB(), 0.0001)
}
