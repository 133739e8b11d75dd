package synchronizer

import (
	"context"
	"time"
)

// Payload is one cycle's encoded essence data. The synchronizer only moves it
// from the provider to the coordinator.
type Payload struct {
	ID          string
	ContentType string
	Body        []byte
	Entries     int
}

// EssenceProvider produces the payload for one cycle.
type EssenceProvider interface {
	Essence(ctx context.Context) (Payload, error)
}

// Coordinator delivers a payload to the Hivemind.
type Coordinator interface {
	Deliver(ctx context.Context, p Payload) error
}

// Status is the result class of a cycle.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Stage names the step a cycle failed in.
type Stage string

const (
	StageNone    Stage = ""
	StageEssence Stage = "essence"
	StageDeliver Stage = "deliver"
	StagePanic   Stage = "panic"
)

// CycleOutcome is the result of one cycle. It is reported, never persisted.
type CycleOutcome struct {
	CycleID   string
	Status    Status
	Stage     Stage
	Err       error
	StartedAt time.Time
	Duration  time.Duration
	Entries   int
}

// Succeeded reports whether the cycle delivered its payload.
func (o CycleOutcome) Succeeded() bool { return o.Status == StatusSuccess }
