// Package apierr defines the categorized error type used across the REST
// client, the streaming transport and the state store.
//
// Every failure that crosses a package boundary is converted into an *Error
// carrying a category, a stable machine-readable code, a human-readable
// message and a retryability flag. Raw transport errors never leave the
// layer that produced them.
//
// Classification is deterministic and applied in priority order:
//  1. an error that is already an *Error is returned unchanged
//  2. HTTP status codes (401/403 -> Authentication, 5xx retryable, ...)
//  3. network error inspection (timeout, connection refused, DNS, TLS)
//  4. message pattern matching
//  5. fallback to the General category
//
// The remediation suggestion attached to an error is drawn at random from a
// fixed per-category list; callers should treat it as advisory text only.
package apierr
