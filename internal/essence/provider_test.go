package essence

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/hiveagent/internal/store"
)

type failingReader struct{ err error }

func (f failingReader) Recent(context.Context, time.Time) ([]store.Observation, error) {
	return nil, f.err
}

func TestProvider_EssenceCoversWindowOnly(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)
	s, err := store.NewMemoryStore(time.Hour, store.WithClock(clock))
	require.NoError(t, err)

	require.NoError(t, s.Record(ctx,
		store.Observation{Key: "heap", Kind: "memory", Value: 10, ObservedAt: now.Add(-40 * time.Second)},
		store.Observation{Key: "heap", Kind: "memory", Value: 20, ObservedAt: now.Add(-10 * time.Second)},
		store.Observation{Key: "heap", Kind: "memory", Value: 40, ObservedAt: now.Add(-5 * time.Second)},
		store.Observation{Key: "gr", Kind: "goroutines", Value: 7, ObservedAt: now.Add(-1 * time.Second)},
	))

	id := Identity{NodeID: "node-a", Hostname: "host-a", AgentVersion: "1.2.3"}
	p, err := NewProvider(s, id, 30*time.Second, WithClock(clock))
	require.NoError(t, err)

	payload, err := p.Essence(ctx)
	require.NoError(t, err)
	assert.Equal(t, ContentType, payload.ContentType)
	assert.NotEmpty(t, payload.ID)
	assert.Equal(t, 3, payload.Entries)

	var e Essence
	require.NoError(t, json.Unmarshal(payload.Body, &e))
	assert.Equal(t, "node-a", e.NodeID)
	assert.Equal(t, "host-a", e.Hostname)
	assert.Equal(t, "1.2.3", e.AgentVersion)
	assert.Equal(t, int64(30), e.WindowSeconds)
	assert.True(t, e.GeneratedAt.Equal(now))
	require.Len(t, e.Observations, 3)
	assert.Equal(t, []string{"goroutines", "memory"}, e.Kinds())
	assert.Equal(t, Summary{Count: 2, Min: 20, Max: 40, Mean: 30}, e.Summary["memory"])
	assert.Equal(t, Summary{Count: 1, Min: 7, Max: 7, Mean: 7}, e.Summary["goroutines"])
}

func TestProvider_EmptyStoreYieldsEmptyEssence(t *testing.T) {
	s, err := store.NewMemoryStore(time.Minute)
	require.NoError(t, err)
	p, err := NewProvider(s, ResolveIdentity("n", "h", "dev"), time.Minute)
	require.NoError(t, err)

	payload, err := p.Essence(context.Background())
	require.NoError(t, err)
	assert.Zero(t, payload.Entries)
	assert.Contains(t, string(payload.Body), `"observations":[]`)
}

func TestProvider_ReaderFailure(t *testing.T) {
	cause := stderrors.New("database is locked")
	p, err := NewProvider(failingReader{err: cause}, Identity{}, time.Minute)
	require.NoError(t, err)

	_, err = p.Essence(context.Background())
	require.ErrorIs(t, err, cause)
}

func TestNewProvider_Validation(t *testing.T) {
	s, err := store.NewMemoryStore(time.Minute)
	require.NoError(t, err)

	_, err = NewProvider(s, Identity{}, 0)
	require.ErrorIs(t, err, ErrInvalidWindow)

	_, err = NewProvider(nil, Identity{}, time.Minute)
	require.Error(t, err)
}

func TestResolveIdentity(t *testing.T) {
	id := ResolveIdentity("", "", "v1")
	assert.NotEmpty(t, id.NodeID)
	assert.NotEmpty(t, id.Hostname)
	assert.Equal(t, "v1", id.AgentVersion)

	fixed := ResolveIdentity("node-1", "box", "v2")
	assert.Equal(t, Identity{NodeID: "node-1", Hostname: "box", AgentVersion: "v2"}, fixed)
}
