// Package wire defines the internal data model for R1 controller telemetry
// and the transformers that normalize raw device JSON into it.
//
// The controller's REST responses and WebSocket frames are tolerated in
// whatever shape they arrive: transformers never fail and never produce a
// partially-populated record. Missing or malformed fields are substituted
// with documented defaults - 0 for numerics, "unknown" for state strings,
// the current wall-clock time for missing timestamps. Known spelling
// variants of the same semantic value (e.g. a substate reported as either
// "preinfusion" or "preinfuse") normalize to one canonical token.
//
// The store replaces its snapshots wholesale on every inbound frame, which
// is why partial outputs are forbidden here.
package wire
