// Package remote exposes the controller's REST surface as thin, stateless
// command adapters behind the DeviceAPI, MachineAPI and ScaleAPI
// capability interfaces.
//
// Two implementations exist: the network-backed adapters over internal/rest
// and an in-memory fake for tests and offline development. Selection
// happens at construction time; nothing inspects types at runtime.
//
// Each adapter method issues exactly one HTTP call and maps the categorized
// error toward a domain-specific code (e.g. device.scan_timeout vs
// device.scan_failed). The one exception is scale selection, which has no
// server endpoint at all: it is client-side bookkeeping validated against
// the caller's current device listing.
package remote
