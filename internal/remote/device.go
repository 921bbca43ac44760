package remote

import (
	"context"

	"github.com/muurk/r1ctl/internal/apierr"
	"github.com/muurk/r1ctl/internal/rest"
	"github.com/muurk/r1ctl/internal/wire"
)

// DeviceAdapter implements DeviceAPI over the controller's REST surface.
type DeviceAdapter struct {
	client *rest.Client
}

// ListDevices reads the current device listing.
func (a *DeviceAdapter) ListDevices(ctx context.Context) ([]wire.Device, error) {
	raw, err := a.client.GetRaw(ctx, "/api/v1/devices")
	if err != nil {
		return nil, apierr.Wrap(apierr.CategoryDevice, "list_failed", "", err)
	}
	return wire.ParseDeviceList(raw), nil
}

// ScanForDevices triggers a physical scan. Scan timeouts get their own code
// so the UI can distinguish "took too long" from "went wrong".
func (a *DeviceAdapter) ScanForDevices(ctx context.Context) ([]wire.Device, error) {
	raw, err := a.client.GetRaw(ctx, "/api/v1/devices/scan")
	if err != nil {
		if apierr.IsTimeout(err) {
			return nil, apierr.Wrap(apierr.CategoryDevice, "scan_timeout", "", err)
		}
		return nil, apierr.Wrap(apierr.CategoryDevice, "scan_failed", "", err)
	}
	return wire.ParseDeviceList(raw), nil
}
