// Package store holds the observations the agent accumulates between
// synchronization cycles.
//
// A Store is constructed explicitly and handed to every component that touches
// it (collector, essence provider, lifecycle manager). Implementations are
// internally synchronized; callers take no additional locks. The staleness
// horizon used by EvictStale is fixed at construction.
package store
