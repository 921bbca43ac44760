// Package logging provides structured logging for r1ctl.
//
// This package wraps the zap logger with convenience functions for the
// logging patterns used throughout the client. It provides both general
// logging functions and specialized functions for connection and telemetry
// events.
//
// # Log Levels
//
//   - Debug: per-frame telemetry, raw payloads
//   - Info: normal operations (connections, reconnects, state changes)
//   - Warn: non-fatal issues (stale telemetry, failed refresh reads)
//   - Error: command failures, terminal connection errors
//
// # Structured Logging
//
// All log functions use structured fields for queryability:
//
//	logging.Info("Machine state changed",
//	    zap.String("state", "espresso"),
//	    zap.String("substate", "preinfusion"),
//	)
//
// # Configuration
//
// Logging is silent by default. CLI commands initialize it from the
// R1CTL_LOG_LEVEL environment variable:
//
//	if err := logging.InitializeFromEnv(); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. The underlying zap
// logger handles synchronization automatically.
package logging
