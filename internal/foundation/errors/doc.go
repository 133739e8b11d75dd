// Package errors provides the classified error primitives used across the agent.
//
// Every failure the agent reports is a ClassifiedError carrying a category, a
// severity and a retry hint. Three families matter to the synchronization core:
//
//   - startup errors: returned by Scheduler.Start, the only errors that cross the
//     scheduler boundary
//   - cycle failures: produced inside a synchronization cycle and only ever logged
//   - lifecycle warnings: best-effort state cleanup that did not behave as expected
//
// Example usage:
//
//	err := errors.NewError(errors.CategoryCoordinator, "publish rejected").
//		WithSeverity(errors.SeverityError).
//		WithContext("subject", subject).
//		WithCause(cause).
//		Build()
package errors
