// Package synchronizer periodically delivers the node's essence to the Hivemind.
//
// A Scheduler owns one fixed-rate gocron job that runs a Runner (normally a
// Unit) once per period. At most one cycle is in flight: a firing that would
// overlap a running cycle is dropped, never queued. The first cycle starts
// immediately.
//
// Unit.Run is an error boundary. Provider and delivery failures, and panics,
// become a CycleOutcome that is logged and counted; nothing escapes to the
// scheduler, so one bad cycle never stops later ones.
//
// Stop halts dispatch and waits for the in-flight cycle to return. There is no
// per-cycle timeout: a cycle that hangs holds off both later cycles and Stop.
package synchronizer
