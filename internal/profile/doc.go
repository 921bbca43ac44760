// Package profile stores espresso profile documents on the local disk.
//
// Profiles downloaded from a controller or authored by hand are kept as
// individual JSON files under the user config directory, so they survive
// across sessions and can be uploaded to any controller later.
package profile
