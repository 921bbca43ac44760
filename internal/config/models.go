package config

import "time"

// Registry represents the entire user configuration file.
// This stores known controllers and application preferences.
type Registry struct {
	Version     int                    `yaml:"version"`
	Controllers map[string]*Controller `yaml:"controllers,omitempty"` // Keyed by controller name
	LastUsed    string                 `yaml:"last_used,omitempty"`   // Name of the last controller connected to
	Preferences *Preferences           `yaml:"preferences,omitempty"`
}

// Controller represents a known R1 controller.
// This is keyed by a user-chosen name in the Registry.
type Controller struct {
	Hostname      string    `yaml:"hostname"`
	Port          int       `yaml:"port"`
	Secure        bool      `yaml:"secure,omitempty"`          // Use https/wss
	Username      string    `yaml:"username,omitempty"`        // Basic auth username
	LastSeen      time.Time `yaml:"last_seen,omitempty"`       // Last discovery/connection time
	LastProfileID string    `yaml:"last_profile_id,omitempty"` // Profile active when last connected
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	AutoReconnect   bool       `yaml:"auto_reconnect"`         // Reconnect automatically after failures
	AutoDiscover    bool       `yaml:"auto_discover"`          // Enable automatic mDNS discovery on startup
	DiscoverTimeout int        `yaml:"discover_timeout"`       // mDNS discovery timeout in seconds
	DefaultAuth     *AuthPrefs `yaml:"default_auth,omitempty"` // Default authentication preferences
}

// AuthPrefs represents default authentication preferences.
// Note: Passwords are NEVER stored - they are always prompted from the user.
type AuthPrefs struct {
	Username string `yaml:"username"`
	// Password is NEVER stored in config file for security reasons
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     1,
		Controllers: make(map[string]*Controller),
		Preferences: &Preferences{
			AutoReconnect:   true,
			AutoDiscover:    true,
			DiscoverTimeout: 10,
		},
	}
}

// GetController retrieves a controller entry by name.
// Returns nil if no controller with that name is known.
func (r *Registry) GetController(name string) *Controller {
	return r.Controllers[name]
}

// EnsureController ensures a controller entry exists in the registry.
// If it doesn't exist, creates a new entry with default values.
// Returns the entry (existing or newly created).
func (r *Registry) EnsureController(name string) *Controller {
	if r.Controllers == nil {
		r.Controllers = make(map[string]*Controller)
	}

	if controller, exists := r.Controllers[name]; exists {
		return controller
	}

	controller := &Controller{Port: 8080}
	r.Controllers[name] = controller
	return controller
}

// RememberController records a controller's address and marks it last used.
func (r *Registry) RememberController(name, hostname string, port int, secure bool) {
	controller := r.EnsureController(name)
	controller.Hostname = hostname
	controller.Port = port
	controller.Secure = secure
	controller.LastSeen = time.Now()
	r.LastUsed = name
}

// SetControllerUsername records the basic auth username for a controller.
// The password is never persisted.
func (r *Registry) SetControllerUsername(name, username string) {
	r.EnsureController(name).Username = username
}

// SetLastProfile records the profile that was active on a controller.
func (r *Registry) SetLastProfile(name, profileID string) {
	r.EnsureController(name).LastProfileID = profileID
}

// LastUsedController returns the entry for the last controller connected
// to, or nil if none has been recorded yet.
func (r *Registry) LastUsedController() *Controller {
	if r.LastUsed == "" {
		return nil
	}
	return r.Controllers[r.LastUsed]
}
