// Package config provides user configuration management for r1ctl.
//
// This package manages a YAML-based configuration file that stores known
// R1 controllers (address, auth username, last active profile) and
// application preferences. The configuration follows OS-specific
// conventions for storage location.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/r1ctl/config.yaml or $HOME/.config/r1ctl/config.yaml
//   - macOS: $HOME/.config/r1ctl/config.yaml
//   - Windows: %LOCALAPPDATA%\r1ctl\config.yaml
//
// # Security
//
// IMPORTANT: This package NEVER stores passwords. They are always
// prompted from the user when needed.
//
// # Usage Example
//
//	// Load the global registry
//	registry, err := config.LoadRegistry()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Record a controller and make it the default
//	registry.RememberController("kitchen", "r1.local", 8080, false)
//
//	// Save changes atomically
//	if err := registry.Save(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Thread Safety
//
// The global registry uses sync.Once for safe initialization across goroutines.
// File operations are protected by a mutex to ensure atomic writes.
package config
