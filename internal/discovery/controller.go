package discovery

import (
	"fmt"
	"time"
)

// Controller represents a discovered R1 controller on the network
type Controller struct {
	// Serial is the controller serial number (e.g., "315260240")
	Serial string

	// Hostname is the mDNS hostname (e.g., "r1-315260240.local")
	Hostname string

	// IP is the IPv4 address (e.g., "192.168.4.16")
	IP string

	// Port is the HTTP port (typically 8080)
	Port int

	// Metadata contains additional mDNS TXT record data
	// Common fields: "path=/", "version=1.4.2"
	Metadata map[string]string

	// DiscoveredAt is when the controller was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the controller
func (c *Controller) String() string {
	return fmt.Sprintf("R1 Controller %s (%s) at %s:%d", c.Serial, c.Hostname, c.IP, c.Port)
}

// BaseURL returns the HTTP base URL for the controller
func (c *Controller) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", c.IP, c.Port)
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (c *Controller) GetMetadata(key string) string {
	if c.Metadata == nil {
		return ""
	}
	return c.Metadata[key]
}
