package logfields

import (
	"errors"
	"log/slog"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyCycleID     = "cycle_id"
	KeyOutcome     = "outcome"
	KeyStage       = "stage"
	KeyDurationMS  = "duration_ms"
	KeyPeriodS     = "period_seconds"
	KeyEntries     = "entries"
	KeyRemoved     = "removed"
	KeyMemoryMB    = "memory_mb"
	KeyReclaimedMB = "reclaimed_mb"
	KeyOperation   = "operation"
	KeyTransport   = "transport"
	KeyJobName     = "job_name"
	KeyBackend     = "backend"
	KeyPath        = "path"
	KeyAddr        = "addr"
	KeyNodeID      = "node_id"
	KeyError       = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func CycleID(id string) slog.Attr      { return slog.String(KeyCycleID, id) }
func Outcome(o string) slog.Attr       { return slog.String(KeyOutcome, o) }
func Stage(name string) slog.Attr      { return slog.String(KeyStage, name) }
func DurationMS(ms float64) slog.Attr  { return slog.Float64(KeyDurationMS, ms) }
func PeriodSeconds(s int) slog.Attr    { return slog.Int(KeyPeriodS, s) }
func Entries(n int) slog.Attr          { return slog.Int(KeyEntries, n) }
func Removed(n int) slog.Attr          { return slog.Int(KeyRemoved, n) }
func MemoryMB(mb float64) slog.Attr    { return slog.Float64(KeyMemoryMB, mb) }
func ReclaimedMB(mb float64) slog.Attr { return slog.Float64(KeyReclaimedMB, mb) }
func Operation(op string) slog.Attr    { return slog.String(KeyOperation, op) }
func Transport(name string) slog.Attr  { return slog.String(KeyTransport, name) }
func JobName(name string) slog.Attr    { return slog.String(KeyJobName, name) }
func Backend(name string) slog.Attr    { return slog.String(KeyBackend, name) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func Addr(a string) slog.Attr          { return slog.String(KeyAddr, a) }
func NodeID(id string) slog.Attr       { return slog.String(KeyNodeID, id) }

// Error renders err under KeyError. Errors in the chain that implement
// slog.LogValuer are logged as a group.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	var lv slog.LogValuer
	if errors.As(err, &lv) {
		return slog.Any(KeyError, lv)
	}
	return slog.String(KeyError, err.Error())
}
