package apierr

import (
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
)

// Category is the top-level classification of a failure.
type Category string

const (
	// CategoryConnection covers network-level failures: unreachable hosts,
	// timeouts, TLS problems and abnormal socket closures.
	CategoryConnection Category = "connection"
	// CategoryDevice covers device listing and scan failures.
	CategoryDevice Category = "device"
	// CategoryMachine covers machine state reads/writes, shot settings and
	// USB charger toggles.
	CategoryMachine Category = "machine"
	// CategoryScale covers scale selection, tare and connectivity failures.
	CategoryScale Category = "scale"
	// CategoryProfile covers profile upload, listing, selection and parsing.
	CategoryProfile Category = "profile"
	// CategoryAuth covers HTTP 401/403 responses.
	CategoryAuth Category = "auth"
	// CategoryGeneral covers HTTP errors not otherwise categorized.
	CategoryGeneral Category = "general"
	// CategoryUnknown is the fallback when nothing else matches.
	CategoryUnknown Category = "unknown"
)

// String returns a human-readable name for the category.
func (c Category) String() string {
	switch c {
	case CategoryConnection:
		return "Connection Error"
	case CategoryDevice:
		return "Device Error"
	case CategoryMachine:
		return "Machine Error"
	case CategoryScale:
		return "Scale Error"
	case CategoryProfile:
		return "Profile Error"
	case CategoryAuth:
		return "Authentication Error"
	case CategoryGeneral:
		return "General Error"
	default:
		return "Unknown Error"
	}
}

// Error represents a categorized failure from the REST surface, the
// streaming transport or the store itself.
type Error struct {
	Category   Category // Category of the failure
	Code       string   // Stable machine-readable code, e.g. "connection.timeout"
	Message    string   // Human-readable message
	Suggestion string   // Optional remediation suggestion
	StatusCode int      // HTTP status code (if applicable)
	Retryable  bool     // Whether retrying the operation may succeed
	Err        error    // Underlying error (if any)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s [%s]: %s (caused by: %v)", e.Category.String(), e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Category.String(), e.Code, e.Message)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a categorized error with an explicit category and code suffix.
// The code is formed as "<category>.<suffix>". The message falls back to the
// static per-code table, then to a generic sentence.
func New(category Category, suffix, message string) *Error {
	code := string(category) + "." + suffix
	if message == "" {
		message = messageForCode(code)
	}
	return &Error{
		Category:   category,
		Code:       code,
		Message:    message,
		Suggestion: Suggest(category),
		Retryable:  category == CategoryConnection,
	}
}

// Wrap is like New but records an underlying cause. Retryability is
// inherited from the cause when the cause is itself an *Error.
func Wrap(category Category, suffix, message string, err error) *Error {
	e := New(category, suffix, message)
	e.Err = err
	var inner *Error
	if errors.As(err, &inner) {
		e.Retryable = inner.Retryable
		if e.StatusCode == 0 {
			e.StatusCode = inner.StatusCode
		}
	}
	return e
}

// Classify converts an arbitrary error into a categorized *Error. Errors
// that are already categorized pass through unchanged.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var already *Error
	if errors.As(err, &already) {
		return already
	}

	// Network-level inspection, most specific first.
	if os.IsTimeout(err) {
		return &Error{
			Category:   CategoryConnection,
			Code:       "connection.timeout",
			Message:    "Request timed out",
			Suggestion: Suggest(CategoryConnection),
			Err:        err,
			Retryable:  true,
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &Error{
			Category:   CategoryConnection,
			Code:       "connection.dns",
			Message:    fmt.Sprintf("Cannot resolve hostname %s", dnsErr.Name),
			Suggestion: Suggest(CategoryConnection),
			Err:        err,
			Retryable:  false,
		}
	}

	if isTLSError(err) {
		return &Error{
			Category:   CategoryConnection,
			Code:       "connection.tls",
			Message:    "TLS handshake with the controller failed",
			Suggestion: Suggest(CategoryConnection),
			Err:        err,
			Retryable:  false,
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch {
		case errors.Is(opErr.Err, syscall.ECONNREFUSED):
			return &Error{
				Category:   CategoryConnection,
				Code:       "connection.refused",
				Message:    "Controller refused the connection",
				Suggestion: Suggest(CategoryConnection),
				Err:        err,
				Retryable:  true,
			}
		case errors.Is(opErr.Err, syscall.ECONNABORTED), errors.Is(opErr.Err, syscall.ECONNRESET):
			return &Error{
				Category:   CategoryConnection,
				Code:       "connection.aborted",
				Message:    "Connection to the controller was aborted",
				Suggestion: Suggest(CategoryConnection),
				Err:        err,
				Retryable:  true,
			}
		case errors.Is(opErr.Err, syscall.EHOSTUNREACH), errors.Is(opErr.Err, syscall.ENETUNREACH):
			return &Error{
				Category:   CategoryConnection,
				Code:       "connection.unreachable",
				Message:    "Controller is not reachable on the network",
				Suggestion: Suggest(CategoryConnection),
				Err:        err,
				Retryable:  true,
			}
		}
	}

	// url.Error wraps the interesting cause; classify that instead.
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		classified := Classify(urlErr.Err)
		classified.Err = err
		return classified
	}

	if byMessage := classifyByMessage(err); byMessage != nil {
		return byMessage
	}

	return &Error{
		Category:   CategoryGeneral,
		Code:       "general.error",
		Message:    messageForCode("general.error"),
		Suggestion: Suggest(CategoryGeneral),
		Err:        err,
		Retryable:  false,
	}
}

// FromStatus converts a non-2xx HTTP response into a categorized error.
// serverMsg is the error text supplied by the controller, if any, and takes
// precedence over the static message table.
func FromStatus(status int, serverMsg string) *Error {
	var category Category
	var retryable bool

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		category = CategoryAuth
		retryable = false
	case status >= 500:
		category = CategoryGeneral
		retryable = true
	default:
		category = CategoryGeneral
		retryable = false
	}

	code := fmt.Sprintf("%s.%d", category, status)
	message := serverMsg
	if message == "" {
		message = messageForCode(code)
	}

	return &Error{
		Category:   category,
		Code:       code,
		Message:    message,
		Suggestion: Suggest(category),
		StatusCode: status,
		Retryable:  retryable,
	}
}

// classifyByMessage assigns a category from well-known substrings of the
// error text. This is the second-to-last resort before General.
func classifyByMessage(err error) *Error {
	msg := strings.ToLower(err.Error())

	patterns := []struct {
		substr   string
		category Category
		suffix   string
		retry    bool
	}{
		{"timeout", CategoryConnection, "timeout", true},
		{"timed out", CategoryConnection, "timeout", true},
		{"connection refused", CategoryConnection, "refused", true},
		{"connection reset", CategoryConnection, "aborted", true},
		{"no such host", CategoryConnection, "dns", false},
		{"certificate", CategoryConnection, "tls", false},
		{"x509", CategoryConnection, "tls", false},
		{"tls", CategoryConnection, "tls", false},
		{"unauthorized", CategoryAuth, "401", false},
		{"forbidden", CategoryAuth, "403", false},
		{"scale", CategoryScale, "error", false},
		{"profile", CategoryProfile, "error", false},
	}

	for _, p := range patterns {
		if strings.Contains(msg, p.substr) {
			code := string(p.category) + "." + p.suffix
			return &Error{
				Category:   p.category,
				Code:       code,
				Message:    messageForCode(code),
				Suggestion: Suggest(p.category),
				Err:        err,
				Retryable:  p.retry,
			}
		}
	}
	return nil
}

// isTLSError reports whether err stems from certificate verification.
func isTLSError(err error) bool {
	var unknownAuthority x509.UnknownAuthorityError
	if errors.As(err, &unknownAuthority) {
		return true
	}
	var hostname x509.HostnameError
	if errors.As(err, &hostname) {
		return true
	}
	var invalid x509.CertificateInvalidError
	if errors.As(err, &invalid) {
		return true
	}
	return false
}

// IsRetryable reports whether the operation that produced err may succeed
// when retried. Unclassified errors are not retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// IsTimeout reports whether err was classified as (or caused by) a timeout.
func IsTimeout(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		if e.Code == "connection.timeout" {
			return true
		}
		if e.Err != nil {
			return os.IsTimeout(e.Err)
		}
		return false
	}
	return os.IsTimeout(err)
}

// IsTLS reports whether err indicates a TLS/certificate problem. The store
// uses this to flip the secure-protocol setting before reconnecting.
func IsTLS(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == "connection.tls"
	}
	return isTLSError(err)
}

// CategoryOf returns the category of err, or CategoryUnknown when err has
// not been classified.
func CategoryOf(err error) Category {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return CategoryUnknown
}

// messageForCode is the static fallback message table, keyed by code.
func messageForCode(code string) string {
	if msg, ok := staticMessages[code]; ok {
		return msg
	}
	// Generic sentence keyed only on the category part of the code.
	if i := strings.IndexByte(code, '.'); i > 0 {
		switch Category(code[:i]) {
		case CategoryConnection:
			return "Communication with the controller failed"
		case CategoryDevice:
			return "Device operation failed"
		case CategoryMachine:
			return "Machine command failed"
		case CategoryScale:
			return "Scale operation failed"
		case CategoryProfile:
			return "Profile operation failed"
		case CategoryAuth:
			return "Authentication with the controller failed"
		}
	}
	return "An unexpected error occurred"
}

var staticMessages = map[string]string{
	"connection.timeout":     "The controller did not respond in time",
	"connection.refused":     "Controller refused the connection",
	"connection.aborted":     "Connection to the controller was aborted",
	"connection.unreachable": "Controller is not reachable on the network",
	"connection.dns":         "Cannot resolve controller hostname",
	"connection.tls":         "TLS handshake with the controller failed",
	"connection.closed":      "Connection to the controller was closed unexpectedly",
	"connection.probe":       "Controller reachability check failed",
	"device.not_found":       "No such device is known to the controller",
	"device.scan_failed":     "Device scan failed",
	"device.scan_timeout":    "Device scan timed out",
	"device.list_failed":     "Reading the device list failed",
	"machine.state_read":     "Reading the machine state failed",
	"machine.state_write":    "Changing the machine state failed",
	"machine.shot_settings":  "Updating shot settings failed",
	"machine.usb_toggle":     "Toggling the USB charger failed",
	"scale.not_connected":    "No scale is connected",
	"scale.tare_failed":      "Taring the scale failed",
	"scale.select_failed":    "Selecting the scale failed",
	"scale.not_found":        "The selected scale is not in the current device list",
	"profile.upload_failed":  "Uploading the profile failed",
	"profile.list_failed":    "Listing profiles failed",
	"profile.select_failed":  "Selecting the profile failed",
	"profile.parse_failed":   "The profile document could not be parsed",
	"auth.401":               "Authentication failed (check credentials)",
	"auth.403":               "Access to the controller was denied",
	"general.error":          "An unexpected error occurred",
	"general.500":            "The controller reported an internal error",
	"general.503":            "The controller is temporarily unavailable",
	"general.404":            "The controller does not know this endpoint",
	"general.400":            "The controller rejected the request",
}
