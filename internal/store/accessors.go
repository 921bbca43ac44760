package store

import (
	"github.com/muurk/r1ctl/internal/apierr"
	"github.com/muurk/r1ctl/internal/wire"
)

// State returns the current connection state.
func (s *Store) State() ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastError returns the error behind the most recent Error transition, or
// nil when none.
func (s *Store) LastError() *apierr.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Settings returns the current connection settings.
func (s *Store) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// SetAutoReconnect toggles automatic reconnection. Turning it off does not
// cancel an already armed timer; the timer checks the flag when it fires.
func (s *Store) SetAutoReconnect(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoReconnect = enabled
}

// Devices returns a copy of the latest device listing.
func (s *Store) Devices() []wire.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]wire.Device, len(s.devices))
	copy(out, s.devices)
	return out
}

// Machine returns the latest machine snapshot.
func (s *Store) Machine() wire.MachineSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine
}

// Scale returns the latest scale snapshot.
func (s *Store) Scale() wire.ScaleSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scale
}

// ShotSettings returns the latest shot settings.
func (s *Store) ShotSettings() wire.ShotSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shotSettings
}

// WaterLevels returns the latest raw water level reading.
func (s *Store) WaterLevels() wire.WaterLevels {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.water
}

// FilteredWaterLevel returns the trailing-window mean of the water level,
// republished at most every ten seconds.
func (s *Store) FilteredWaterLevel() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filteredWater
}

// ShotTimer returns the live shot timer state.
func (s *Store) ShotTimer() ShotTimerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shot
}

// RecentShotTime returns the frozen duration of the last completed shot in
// seconds, zero if none completed this session.
func (s *Store) RecentShotTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recentShotTime
}

// ActiveProfileID returns the id of the profile most recently uploaded or
// selected this session.
func (s *Store) ActiveProfileID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeProfileID
}
