// Package stream manages the long-lived WebSocket connections that carry
// the controller's telemetry topics (machine snapshot, shot settings, water
// levels, scale snapshot).
//
// Each topic gets one Conn. A Conn moves through Connecting -> Open ->
// (Error | Closed); an unexpected closure with a non-normal close code
// triggers exponential-backoff reconnection (min(1s*2^(n-1), 30s), up to 5
// attempts) unless the close code is fatal (1011). An explicit Close
// suppresses reconnection, cancels any pending reconnect timer and delivers
// the close callback exactly once.
//
// Inbound frames that are not valid JSON are delivered as a best-effort
// wire.RawFrame rather than dropped; consumers must tolerate either shape.
//
// Connections are deduplicated by target URL through the Registry:
// requesting a second connection to an already-open URL returns the
// existing Conn.
package stream
