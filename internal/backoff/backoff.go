// Package backoff provides the exponential reconnect delay policy shared by
// the REST client, the streaming transport and the store's top-level
// reconnect loop.
package backoff

import "time"

const (
	// Initial is the delay before the first retry.
	Initial = 1 * time.Second

	// Max caps the delay regardless of attempt count.
	Max = 30 * time.Second
)

// Delay returns the wait before reconnect attempt n (1-based):
// min(Initial * 2^(n-1), Max). Attempts below 1 are treated as 1.
func Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := Initial
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= Max {
			return Max
		}
	}
	if d > Max {
		return Max
	}
	return d
}
