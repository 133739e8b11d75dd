package daemon

import (
	"context"
	stderrors "errors"
	"time"

	"git.home.luguber.info/inful/hiveagent/internal/synchronizer"
	"git.home.luguber.info/inful/hiveagent/internal/version"
)

// HealthStatus represents the overall health of the agent.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck represents a single health check.
type HealthCheck struct {
	Name        string        `json:"name"`
	Status      HealthStatus  `json:"status"`
	Message     string        `json:"message,omitempty"`
	Duration    time.Duration `json:"duration"`
	LastChecked time.Time     `json:"last_checked"`
}

// HealthResponse represents the complete health check response.
type HealthResponse struct {
	Status    HealthStatus  `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Uptime    string        `json:"uptime"`
	Version   string        `json:"version"`
	Checks    []HealthCheck `json:"checks"`
}

// PerformHealthChecks executes all health checks and returns the overall status.
func (a *Agent) PerformHealthChecks(ctx context.Context) *HealthResponse {
	checks := []HealthCheck{
		a.checkAgentHealth(),
		a.checkSchedulerHealth(),
		a.checkStoreHealth(ctx),
		a.checkLastCycle(),
	}

	overall := HealthStatusHealthy
	for _, c := range checks {
		switch {
		case c.Status == HealthStatusUnhealthy:
			overall = HealthStatusUnhealthy
		case c.Status == HealthStatusDegraded && overall == HealthStatusHealthy:
			overall = HealthStatusDegraded
		}
	}

	return &HealthResponse{
		Status:    overall,
		Timestamp: time.Now(),
		Uptime:    time.Since(a.startTime).Round(time.Second).String(),
		Version:   version.Version,
		Checks:    checks,
	}
}

func newCheck(name string, start time.Time) HealthCheck {
	return HealthCheck{Name: name, LastChecked: time.Now(), Duration: time.Since(start)}
}

func (a *Agent) checkAgentHealth() HealthCheck {
	check := newCheck("agent_status", time.Now())
	switch a.GetStatus() {
	case StatusRunning:
		check.Status = HealthStatusHealthy
		check.Message = "Agent is running normally"
	case StatusStarting, StatusStopping:
		check.Status = HealthStatusDegraded
		check.Message = "Agent is " + string(a.GetStatus())
	default:
		check.Status = HealthStatusUnhealthy
		check.Message = "Agent is " + string(a.GetStatus())
	}
	return check
}

func (a *Agent) checkSchedulerHealth() HealthCheck {
	check := newCheck("sync_scheduler", time.Now())
	if a.sync.State() == synchronizer.StateRunning {
		check.Status = HealthStatusHealthy
		check.Message = "Synchronization scheduler is running"
	} else {
		check.Status = HealthStatusUnhealthy
		check.Message = "Synchronization scheduler is stopped"
	}
	return check
}

func (a *Agent) checkStoreHealth(ctx context.Context) HealthCheck {
	start := time.Now()
	_, err := a.storeLen(ctx)
	check := newCheck("state_store", start)
	if stderrors.Is(err, errStoreClosed) {
		check.Status = HealthStatusUnhealthy
		check.Message = "State store not initialized"
		return check
	}
	if err != nil {
		check.Status = HealthStatusUnhealthy
		check.Message = err.Error()
		return check
	}
	check.Status = HealthStatusHealthy
	return check
}

// checkLastCycle degrades health while the most recent cycle failed. A
// failed cycle is retried next period, so it never makes the agent unhealthy.
func (a *Agent) checkLastCycle() HealthCheck {
	check := newCheck("last_cycle", time.Now())
	last := a.sync.Stats().LastOutcome
	switch {
	case last == nil:
		check.Status = HealthStatusHealthy
		check.Message = "No cycle completed yet"
	case last.Succeeded():
		check.Status = HealthStatusHealthy
	default:
		check.Status = HealthStatusDegraded
		check.Message = "Last cycle failed at " + string(last.Stage) + " stage"
	}
	return check
}
