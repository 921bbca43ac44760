package remote

import (
	"context"

	"github.com/muurk/r1ctl/internal/rest"
	"github.com/muurk/r1ctl/internal/wire"
)

// DeviceAPI lists and scans for peripherals known to the controller.
type DeviceAPI interface {
	// ListDevices returns the controller's current device listing.
	ListDevices(ctx context.Context) ([]wire.Device, error)

	// ScanForDevices triggers a physical scan and returns the refreshed
	// listing. The listing is eventually-consistent with the scan.
	ScanForDevices(ctx context.Context) ([]wire.Device, error)
}

// MachineAPI drives the espresso machine through the controller.
type MachineAPI interface {
	// GetState reads the current machine snapshot.
	GetState(ctx context.Context) (wire.MachineSnapshot, error)

	// SetState requests a machine state transition.
	SetState(ctx context.Context, state wire.MachineState) error

	// UploadProfile sends a brew profile document to the machine.
	UploadProfile(ctx context.Context, profile wire.Profile) error

	// ListProfiles returns the profiles stored on the controller.
	ListProfiles(ctx context.Context) ([]wire.Profile, error)

	// GetProfile reads one stored profile by id.
	GetProfile(ctx context.Context, id string) (wire.Profile, error)

	// SelectProfile makes a stored profile the active one.
	SelectProfile(ctx context.Context, id string) error

	// UpdateShotSettings writes the machine-side brew parameters.
	UpdateShotSettings(ctx context.Context, settings wire.ShotSettings) error

	// SetUSBCharging toggles the group-head USB charger.
	SetUSBCharging(ctx context.Context, enabled bool) error
}

// ScaleAPI manages the connected scale.
type ScaleAPI interface {
	// Tare zeroes the scale.
	Tare(ctx context.Context) error

	// Select records id as the chosen scale after validating it against
	// the caller's current device listing. Pure client-side bookkeeping.
	Select(id string, known []wire.Device) error

	// Selected returns the chosen scale if it is still present in the
	// given listing. A previously selected scale that dropped out of the
	// listing silently resets the selection to none.
	Selected(known []wire.Device) (wire.Device, bool)
}

// API bundles the three capability interfaces for one controller session.
type API struct {
	Devices DeviceAPI
	Machine MachineAPI
	Scale   ScaleAPI
}

// New constructs network-backed adapters over the given REST client.
func New(client *rest.Client) *API {
	return &API{
		Devices: &DeviceAdapter{client: client},
		Machine: &MachineAdapter{client: client},
		Scale:   NewScaleAdapter(client),
	}
}
