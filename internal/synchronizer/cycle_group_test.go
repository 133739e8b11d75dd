package synchronizer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCycleGroup_RefusesAfterStop(t *testing.T) {
	var g cycleGroup
	ran := false
	require.True(t, g.Do(func() { ran = true }))
	require.True(t, ran)

	require.NoError(t, g.StopAndWait(context.Background()))
	require.False(t, g.Do(func() { t.Fatal("must not run after stop") }))
}

func TestCycleGroup_StopWaitsForInFlight(t *testing.T) {
	var g cycleGroup
	started := make(chan struct{})
	release := make(chan struct{})
	go g.Do(func() {
		close(started)
		<-release
	})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, g.StopAndWait(ctx), context.DeadlineExceeded)

	close(release)
	require.NoError(t, g.StopAndWait(context.Background()))
}
