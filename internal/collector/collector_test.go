package collector

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/hiveagent/internal/store"
)

type failingRecorder struct{ err error }

func (f failingRecorder) Record(context.Context, ...store.Observation) error { return f.err }

func TestRuntimeSampler(t *testing.T) {
	batch := RuntimeSampler()
	require.NotEmpty(t, batch)
	kinds := map[string]bool{}
	for _, o := range batch {
		kinds[o.Kind] = true
		assert.NotEmpty(t, o.Key)
	}
	assert.True(t, kinds[KindMemory])
	assert.True(t, kinds[KindGoroutines])
	assert.True(t, kinds[KindGC])
}

func TestCollect_RecordsIntoStore(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewMemoryStore(time.Hour)
	require.NoError(t, err)

	c, err := New(s, time.Minute)
	require.NoError(t, err)

	n, err := c.Collect(ctx)
	require.NoError(t, err)
	got, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, n, got)
}

func TestCollect_StoreFailure(t *testing.T) {
	cause := stderrors.New("disk full")
	c, err := New(failingRecorder{err: cause}, time.Minute)
	require.NoError(t, err)

	_, err = c.Collect(context.Background())
	require.ErrorIs(t, err, cause)
}

func TestStart_SamplesRepeatedly(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewMemoryStore(time.Hour)
	require.NoError(t, err)

	var mu sync.Mutex
	calls := 0
	sampler := func() []store.Observation {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return []store.Observation{{Key: "k", Kind: "test", Value: float64(calls)}}
	}

	c, err := New(s, 20*time.Millisecond, WithSampler(sampler))
	require.NoError(t, err)
	require.NoError(t, c.Start(ctx))
	require.NoError(t, c.Start(ctx), "second start is a no-op")

	require.Eventually(t, func() bool {
		n, _ := s.Len(ctx)
		return n >= 3
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, c.Stop())
	require.NoError(t, c.Stop())
}

func TestNew_Validation(t *testing.T) {
	s, err := store.NewMemoryStore(time.Hour)
	require.NoError(t, err)

	_, err = New(s, 0)
	require.Error(t, err)
	_, err = New(nil, time.Second)
	require.Error(t, err)
}
