package synchronizer

import (
	"context"
	"sync"
)

// cycleGroup tracks the in-flight cycle and provides a shutdown boundary so
// WaitGroup.Add never races with Wait.
type cycleGroup struct {
	mu       sync.Mutex
	wg       sync.WaitGroup
	stopping bool
}

// Do runs fn on the calling goroutine unless the group is stopping.
func (g *cycleGroup) Do(fn func()) bool {
	g.mu.Lock()
	if g.stopping {
		g.mu.Unlock()
		return false
	}
	g.wg.Add(1)
	g.mu.Unlock()

	defer g.wg.Done()
	fn()
	return true
}

// Stop refuses further cycles without waiting.
func (g *cycleGroup) Stop() {
	g.mu.Lock()
	g.stopping = true
	g.mu.Unlock()
}

// StopAndWait refuses further cycles and waits for the current one, bounded by ctx.
func (g *cycleGroup) StopAndWait(ctx context.Context) error {
	g.Stop()

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
