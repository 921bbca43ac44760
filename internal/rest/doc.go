// Package rest wraps HTTP request/response handling for the R1 controller's
// REST surface.
//
// All requests carry a fixed timeout (30s by default). Failures are
// converted to the categorized error type from internal/apierr before they
// leave this package. Idempotent methods (GET) apply a bounded retry of up
// to 3 attempts with exponential backoff, gated on the error category's
// retryability; POST, PUT and DELETE are never retried automatically.
package rest
