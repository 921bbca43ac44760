// Package store is the process-wide state container for one R1 controller
// session.
//
// The Store owns the connection lifecycle (connect, disconnect, reconnect
// with backoff), holds the latest value from each of the four telemetry
// streams, derives computed metrics (shot timer, running maxima, filtered
// water level) and exposes read accessors plus command methods to callers.
//
// Callers never mutate telemetry state directly. Command methods silently
// no-op (logging, not failing) when no controller is connected - that keeps
// call sites trivial - with the single exception of SelectScale, whose
// error the caller needs so it can revert an optimistic selection.
//
// Individual telemetry hiccups are invisible to callers: a failed refresh
// leaves the prior value in place, trading transient staleness for
// stability.
package store
