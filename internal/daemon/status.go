package daemon

import (
	"context"
	"time"

	"git.home.luguber.info/inful/hiveagent/internal/foundation/errors"
	"git.home.luguber.info/inful/hiveagent/internal/version"
)

// SyncStatus is the JSON view of the synchronization scheduler.
type SyncStatus struct {
	State         string     `json:"state"`
	PeriodSeconds int        `json:"period_seconds"`
	Started       uint64     `json:"cycles_started"`
	Succeeded     uint64     `json:"cycles_succeeded"`
	Failed        uint64     `json:"cycles_failed"`
	LastCycleID   string     `json:"last_cycle_id,omitempty"`
	LastStatus    string     `json:"last_status,omitempty"`
	LastStage     string     `json:"last_stage,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
	LastRetry     string     `json:"last_retry,omitempty"`
	LastStartedAt *time.Time `json:"last_started_at,omitempty"`
}

// LifecycleStatus is the JSON view of the most recent cleanup.
type LifecycleStatus struct {
	Operation   string  `json:"operation"`
	Removed     int     `json:"removed"`
	BeforeMB    float64 `json:"before_mb"`
	AfterMB     float64 `json:"after_mb"`
	ReclaimedMB float64 `json:"reclaimed_mb"`
	Warnings    int     `json:"warnings"`
}

// StatusData is served by /status.
type StatusData struct {
	Status        Status           `json:"status"`
	Version       string           `json:"version"`
	NodeID        string           `json:"node_id"`
	Hostname      string           `json:"hostname"`
	Uptime        string           `json:"uptime"`
	Transport     string           `json:"transport"`
	StoreBackend  string           `json:"store_backend"`
	StoreEntries  int              `json:"store_entries"`
	Sync          SyncStatus       `json:"sync"`
	LastLifecycle *LifecycleStatus `json:"last_lifecycle,omitempty"`
}

// GenerateStatusData snapshots the agent for the status endpoint.
func (a *Agent) GenerateStatusData(ctx context.Context) *StatusData {
	cfg := a.GetConfig()
	stats := a.sync.Stats()

	data := &StatusData{
		Status:       a.GetStatus(),
		Version:      version.Version,
		NodeID:       a.identity.NodeID,
		Hostname:     a.identity.Hostname,
		Uptime:       time.Since(a.startTime).Round(time.Second).String(),
		Transport:    string(cfg.Coordinator.Transport),
		StoreBackend: string(cfg.State.Backend),
		Sync: SyncStatus{
			State:         string(stats.State),
			PeriodSeconds: stats.PeriodSeconds,
			Started:       stats.Started,
			Succeeded:     stats.Succeeded,
			Failed:        stats.Failed,
		},
	}

	if n, err := a.storeLen(ctx); err == nil {
		data.StoreEntries = n
	}

	if last := stats.LastOutcome; last != nil {
		started := last.StartedAt
		data.Sync.LastCycleID = last.CycleID
		data.Sync.LastStatus = string(last.Status)
		data.Sync.LastStage = string(last.Stage)
		if !started.IsZero() {
			data.Sync.LastStartedAt = &started
		}
		if last.Err != nil {
			data.Sync.LastError = last.Err.Error()
			data.Sync.LastRetry = string(errors.RetryOf(last.Err))
		}
	}

	if r := a.LastLifecycleReport(); r != nil {
		data.LastLifecycle = &LifecycleStatus{
			Operation:   r.Operation,
			Removed:     r.Removed,
			BeforeMB:    r.Before.MB(),
			AfterMB:     r.After.MB(),
			ReclaimedMB: r.ReclaimedMB,
			Warnings:    len(r.Warnings),
		}
	}
	return data
}
