package store

import "fmt"

// ConnectionState is the store's single connection status value. Exactly
// one value holds at a time; transitions are the only way connect-dependent
// operations become valid.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	Error
)

// String returns a human-readable state name.
func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Error:
		return "error"
	default:
		return "invalid"
	}
}

// Settings identify and authenticate one controller. They are user-editable
// and persisted by the caller (see internal/config); changing them
// invalidates the current connection.
type Settings struct {
	Hostname string
	Port     int
	Secure   bool
	Username string
	Password string
}

// BaseURL returns the REST base URL for these settings.
func (s Settings) BaseURL() string {
	scheme := "http"
	if s.Secure {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, s.Hostname, s.Port)
}

// StreamURL returns the WebSocket URL for a telemetry topic path.
func (s Settings) StreamURL(topic string) string {
	scheme := "ws"
	if s.Secure {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s:%d%s", scheme, s.Hostname, s.Port, topic)
}

// Telemetry topic paths, one stream each.
const (
	TopicMachineSnapshot = "/ws/v1/de1/snapshot"
	TopicShotSettings    = "/ws/v1/de1/shotSettings"
	TopicWaterLevels     = "/ws/v1/de1/waterLevels"
	TopicScaleSnapshot   = "/ws/v1/scale/snapshot"
)
