package daemon

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/hiveagent/internal/config"
	"git.home.luguber.info/inful/hiveagent/internal/coordinator"
	"git.home.luguber.info/inful/hiveagent/internal/foundation/errors"
	"git.home.luguber.info/inful/hiveagent/internal/lifecycle"
	"git.home.luguber.info/inful/hiveagent/internal/store"
	"git.home.luguber.info/inful/hiveagent/internal/synchronizer"
)

type fakeTransport struct {
	mu        sync.Mutex
	delivered []synchronizer.Payload
	closed    bool
	reject    error
}

func (f *fakeTransport) Deliver(_ context.Context, p synchronizer.Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered = append(f.delivered, p)
	return f.reject
}

func (f *fakeTransport) Name() string { return "fake" }

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.delivered)
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type transportLog struct {
	mu      sync.Mutex
	opened  []*fakeTransport
	configs []config.CoordinatorConfig
	err     error
	fail    int // number of upcoming opens that fail with err
	reject  error
}

func (l *transportLog) factory(_ context.Context, cfg config.CoordinatorConfig) (coordinator.Transport, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil && l.fail != 0 {
		l.fail--
		return nil, l.err
	}
	tr := &fakeTransport{reject: l.reject}
	l.opened = append(l.opened, tr)
	l.configs = append(l.configs, cfg)
	return tr, nil
}

func (l *transportLog) latest() *fakeTransport {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.opened) == 0 {
		return nil
	}
	return l.opened[len(l.opened)-1]
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(`
node:
  id: node-test
sync:
  period_seconds: 1
  window: 1m
collector:
  interval: 50ms
lifecycle:
  inert_interval: 1h
admin:
  addr: 127.0.0.1:0
`))
	require.NoError(t, err)
	return cfg
}

func startAgent(t *testing.T, cfg *config.Config, log *transportLog) *Agent {
	t.Helper()
	a, err := New(cfg, WithTransportFactory(log.factory))
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))
	t.Cleanup(func() { _ = a.Stop(context.Background()) })
	return a
}

func TestAgent_StartDeliversAndStops(t *testing.T) {
	log := &transportLog{}
	a := startAgent(t, testConfig(t), log)

	assert.Equal(t, StatusRunning, a.GetStatus())
	require.Eventually(t, func() bool {
		tr := log.latest()
		return tr != nil && tr.count() >= 1
	}, 3*time.Second, 10*time.Millisecond)

	tr := log.latest()
	require.NoError(t, a.Stop(context.Background()))
	assert.Equal(t, StatusStopped, a.GetStatus())
	assert.True(t, tr.isClosed())
	assert.Equal(t, synchronizer.StateStopped, a.SyncStats().State)
	require.NoError(t, a.Stop(context.Background()), "second stop is a no-op")
}

func TestAgent_AdminEndpoints(t *testing.T) {
	log := &transportLog{}
	a := startAgent(t, testConfig(t), log)
	require.NotNil(t, a.admin)
	base := "http://" + a.admin.Addr()

	require.Eventually(t, func() bool { return a.SyncStats().Succeeded >= 1 }, 3*time.Second, 10*time.Millisecond)

	resp, err := http.Get(base + "/healthz")
	require.NoError(t, err)
	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, HealthStatusHealthy, health.Status)
	assert.Len(t, health.Checks, 4)

	resp, err = http.Get(base + "/status")
	require.NoError(t, err)
	var status StatusData
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	_ = resp.Body.Close()
	assert.Equal(t, StatusRunning, status.Status)
	assert.Equal(t, "node-test", status.NodeID)
	assert.Equal(t, 1, status.Sync.PeriodSeconds)
	assert.GreaterOrEqual(t, status.Sync.Succeeded, uint64(1))
	assert.Equal(t, "memory", status.StoreBackend)

	resp, err = http.Get(base + "/metrics")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(base + "/readyz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAgent_StartFailsWhenTransportUnavailable(t *testing.T) {
	cause := stderrors.New("hivemind unreachable")
	log := &transportLog{err: cause, fail: -1}
	a, err := New(testConfig(t), WithTransportFactory(log.factory))
	require.NoError(t, err)

	err = a.Start(context.Background())
	require.ErrorIs(t, err, cause)
	assert.True(t, errors.HasCategory(err, errors.CategoryScheduler))
	assert.Equal(t, StatusError, a.GetStatus())
	assert.Nil(t, a.admin, "admin server is torn down")
	assert.Equal(t, synchronizer.StateStopped, a.SyncStats().State)
}

func TestAgent_StartTwiceFails(t *testing.T) {
	a := startAgent(t, testConfig(t), &transportLog{})
	require.Error(t, a.Start(context.Background()))
}

func TestAgent_ReloadRestartsSynchronization(t *testing.T) {
	log := &transportLog{}
	a := startAgent(t, testConfig(t), log)
	require.Eventually(t, func() bool { return log.latest() != nil }, time.Second, 5*time.Millisecond)
	first := log.latest()

	unchanged := testConfig(t)
	require.NoError(t, a.ReloadConfig(context.Background(), unchanged))
	assert.Len(t, log.opened, 1, "same period and coordinator keep the running scheduler")

	changed := testConfig(t)
	changed.Sync.PeriodSeconds = 7
	require.NoError(t, a.ReloadConfig(context.Background(), changed))

	assert.Equal(t, 7, a.SyncStats().PeriodSeconds)
	assert.Equal(t, synchronizer.StateRunning, a.SyncStats().State)
	assert.Equal(t, 7, a.GetConfig().Sync.PeriodSeconds)
	require.Len(t, log.opened, 2)
	assert.True(t, first.isClosed(), "previous transport closed on restart")
}

func TestAgent_ReloadKeepsPreviousSettingsOnFailure(t *testing.T) {
	log := &transportLog{}
	a := startAgent(t, testConfig(t), log)

	changed := testConfig(t)
	changed.Coordinator.NATS.Subject = "other.subject"

	log.mu.Lock()
	log.err = stderrors.New("dial failed")
	log.fail = 1
	log.mu.Unlock()
	require.Error(t, a.ReloadConfig(context.Background(), changed))

	assert.Equal(t, config.DefaultNATSSubject, a.GetConfig().Coordinator.NATS.Subject)
	assert.Equal(t, synchronizer.StateRunning, a.SyncStats().State, "previous settings restored")
	log.mu.Lock()
	defer log.mu.Unlock()
	assert.Equal(t, config.DefaultNATSSubject, log.configs[len(log.configs)-1].NATS.Subject)
}

func TestAgent_LifecycleOperations(t *testing.T) {
	cfg := testConfig(t)
	disabled := false
	cfg.Collector.Enabled = &disabled
	a := startAgent(t, cfg, &transportLog{})
	ctx := context.Background()

	require.NoError(t, a.store.Record(ctx,
		store.Observation{Key: "a", Kind: "k", Value: 1},
		store.Observation{Key: "b", Kind: "k", Value: 2},
	))

	inert := a.ClearInertState(ctx)
	assert.Equal(t, "clear_inert", inert.Operation)
	assert.Zero(t, inert.Removed, "fresh entries are inside the horizon")

	all := a.ClearAllState(ctx)
	assert.Equal(t, "clear_all", all.Operation)
	assert.Equal(t, 2, all.Removed)
	n, err := a.store.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	data := a.GenerateStatusData(ctx)
	require.NotNil(t, data.LastLifecycle)
	assert.Equal(t, "clear_all", data.LastLifecycle.Operation)
	assert.Equal(t, 2, data.LastLifecycle.Removed)
}

func TestAgent_SQLiteBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.State.Backend = config.StateBackendSQLite
	cfg.State.Path = filepath.Join(t.TempDir(), "state.db")
	a := startAgent(t, cfg, &transportLog{})

	require.Eventually(t, func() bool {
		n, err := a.store.Len(context.Background())
		return err == nil && n > 0
	}, 3*time.Second, 10*time.Millisecond, "collector samples land in sqlite")
}

func TestAdminServer_UnhealthyWhenStopped(t *testing.T) {
	a, err := New(testConfig(t))
	require.NoError(t, err)

	srv := httptest.NewServer(NewAdminServer("", a).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestAgent_StatusReportsFailedCycle(t *testing.T) {
	log := &transportLog{reject: errors.CoordinatorError("hivemind unavailable").Build()}
	a := startAgent(t, testConfig(t), log)

	require.Eventually(t, func() bool { return a.SyncStats().Failed >= 1 }, 3*time.Second, 10*time.Millisecond)

	data := a.GenerateStatusData(context.Background())
	assert.Equal(t, "failure", data.Sync.LastStatus)
	assert.Equal(t, "deliver", data.Sync.LastStage)
	assert.Equal(t, string(errors.RetryNextTick), data.Sync.LastRetry)
	assert.Contains(t, data.Sync.LastError, "hivemind unavailable")
}

func TestAgent_LifecycleOperationsAfterStop(t *testing.T) {
	for _, backend := range []config.StateBackend{config.StateBackendMemory, config.StateBackendSQLite} {
		t.Run(string(backend), func(t *testing.T) {
			cfg := testConfig(t)
			cfg.State.Backend = backend
			cfg.State.Path = filepath.Join(t.TempDir(), "state.db")
			a := startAgent(t, cfg, &transportLog{})
			ctx := context.Background()

			require.NoError(t, a.Stop(ctx))

			var inert, all lifecycle.Report
			require.NotPanics(t, func() { inert = a.ClearInertState(ctx) })
			require.NotPanics(t, func() { all = a.ClearAllState(ctx) })
			assert.Equal(t, lifecycle.OpClearInert, inert.Operation)
			assert.Equal(t, lifecycle.OpClearAll, all.Operation)
			assert.Zero(t, all.Removed)
			assert.Empty(t, all.Warnings)

			data := a.GenerateStatusData(ctx)
			assert.Zero(t, data.StoreEntries)
		})
	}
}

func TestAgent_SyncStatsDuringReload(t *testing.T) {
	a := startAgent(t, testConfig(t), &transportLog{})

	done := make(chan struct{})
	var readers sync.WaitGroup
	readers.Add(1)
	go func() {
		defer readers.Done()
		for {
			select {
			case <-done:
				return
			default:
				_ = a.SyncStats()
				_ = a.GenerateStatusData(context.Background())
			}
		}
	}()

	changed := testConfig(t)
	changed.Sync.PeriodSeconds = 2
	require.NoError(t, a.ReloadConfig(context.Background(), changed))
	close(done)
	readers.Wait()

	assert.Equal(t, 2, a.SyncStats().PeriodSeconds)
}
