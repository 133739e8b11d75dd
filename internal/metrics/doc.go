// Package metrics provides the observability hooks for synchronization cycles
// and state lifecycle operations.
//
// Components receive a Recorder through options and default to NoopRecorder, so
// callers never nil-check:
//
//	sched := synchronizer.NewScheduler(synchronizer.WithRecorder(rec))
//
// PrometheusRecorder registers its collectors on a caller-supplied registry; the
// agent exposes that registry through HTTPHandler on the admin server.
package metrics
