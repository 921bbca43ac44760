package remote

import (
	"context"
	"sync"
	"time"

	"github.com/muurk/r1ctl/internal/apierr"
	"github.com/muurk/r1ctl/internal/wire"
)

// Fake is an in-memory implementation of all three capability interfaces.
// It backs the store's tests and offline development; selection between
// Fake and the network adapters happens at construction time.
type Fake struct {
	mu sync.Mutex

	DevicesList []wire.Device
	Snapshot    wire.MachineSnapshot
	Settings    wire.ShotSettings
	Profiles    []wire.Profile
	ActiveID    string
	Tared       int
	USBEnabled  bool

	// FailWith, when set, makes every operation return this error.
	FailWith error

	scale ScaleAdapter
}

// NewFake creates a fake controller with one machine and one scale in its
// device listing.
func NewFake() *Fake {
	return &Fake{
		DevicesList: []wire.Device{
			{ID: "de1-01", Name: "R1", Type: "machine", ConnectionState: wire.DeviceConnected},
			{ID: "scale-01", Name: "Bench Scale", Type: "scale", ConnectionState: wire.DeviceConnected},
		},
		Snapshot: wire.MachineSnapshot{
			Timestamp: time.Now(),
			State:     wire.StateIdle,
			Substate:  wire.SubstateUnknown,
		},
	}
}

// APIs returns the fake wrapped in the API bundle.
func (f *Fake) APIs() *API {
	return &API{Devices: f, Machine: f, Scale: f}
}

// ListDevices implements DeviceAPI.
func (f *Fake) ListDevices(ctx context.Context) ([]wire.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return nil, f.FailWith
	}
	out := make([]wire.Device, len(f.DevicesList))
	copy(out, f.DevicesList)
	return out, nil
}

// ScanForDevices implements DeviceAPI; the fake's listing is already final.
func (f *Fake) ScanForDevices(ctx context.Context) ([]wire.Device, error) {
	return f.ListDevices(ctx)
}

// GetState implements MachineAPI.
func (f *Fake) GetState(ctx context.Context) (wire.MachineSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return wire.MachineSnapshot{}, f.FailWith
	}
	return f.Snapshot, nil
}

// SetState implements MachineAPI.
func (f *Fake) SetState(ctx context.Context, state wire.MachineState) error {
	if !state.IsValid() {
		return apierr.New(apierr.CategoryMachine, "state_write", "")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return f.FailWith
	}
	f.Snapshot.State = state
	f.Snapshot.Timestamp = time.Now()
	return nil
}

// UploadProfile implements MachineAPI.
func (f *Fake) UploadProfile(ctx context.Context, profile wire.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return f.FailWith
	}
	f.Profiles = append(f.Profiles, profile)
	f.ActiveID = profile.ID
	return nil
}

// ListProfiles implements MachineAPI.
func (f *Fake) ListProfiles(ctx context.Context) ([]wire.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return nil, f.FailWith
	}
	out := make([]wire.Profile, len(f.Profiles))
	copy(out, f.Profiles)
	return out, nil
}

// GetProfile implements MachineAPI.
func (f *Fake) GetProfile(ctx context.Context, id string) (wire.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return wire.Profile{}, f.FailWith
	}
	for _, p := range f.Profiles {
		if p.ID == id {
			return p, nil
		}
	}
	return wire.Profile{}, apierr.New(apierr.CategoryProfile, "list_failed", "no such profile")
}

// SelectProfile implements MachineAPI.
func (f *Fake) SelectProfile(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return f.FailWith
	}
	for _, p := range f.Profiles {
		if p.ID == id {
			f.ActiveID = id
			return nil
		}
	}
	return apierr.New(apierr.CategoryProfile, "select_failed", "no such profile")
}

// UpdateShotSettings implements MachineAPI.
func (f *Fake) UpdateShotSettings(ctx context.Context, settings wire.ShotSettings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return f.FailWith
	}
	f.Settings = settings
	return nil
}

// SetUSBCharging implements MachineAPI.
func (f *Fake) SetUSBCharging(ctx context.Context, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return f.FailWith
	}
	f.USBEnabled = enabled
	f.Snapshot.USBChargerEnabled = enabled
	return nil
}

// Tare implements ScaleAPI.
func (f *Fake) Tare(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return f.FailWith
	}
	f.Tared++
	return nil
}

// Select implements ScaleAPI with the same validation as the real adapter.
func (f *Fake) Select(id string, known []wire.Device) error {
	return f.scale.Select(id, known)
}

// Selected implements ScaleAPI.
func (f *Fake) Selected(known []wire.Device) (wire.Device, bool) {
	return f.scale.Selected(known)
}
