package synchronizer

import (
	"time"

	"git.home.luguber.info/inful/hiveagent/internal/foundation/errors"
)

// SyncConfig holds the synchronization period. Values are immutable; build
// them with NewSyncConfig. The zero value is invalid.
type SyncConfig struct {
	periodSeconds int
}

// ErrInvalidPeriod is returned for non-positive periods.
var ErrInvalidPeriod = errors.ConfigError("synchronization period must be a positive number of seconds").Build()

// NewSyncConfig validates periodSeconds and returns a SyncConfig.
func NewSyncConfig(periodSeconds int) (SyncConfig, error) {
	if periodSeconds <= 0 {
		return SyncConfig{}, ErrInvalidPeriod.WithContext("period_seconds", periodSeconds)
	}
	return SyncConfig{periodSeconds: periodSeconds}, nil
}

// PeriodSeconds returns the period in whole seconds.
func (c SyncConfig) PeriodSeconds() int { return c.periodSeconds }

// Period returns the period as a duration.
func (c SyncConfig) Period() time.Duration {
	return time.Duration(c.periodSeconds) * time.Second
}

// Valid reports whether the config has a positive period.
func (c SyncConfig) Valid() bool { return c.periodSeconds > 0 }
