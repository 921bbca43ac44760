package remote

import (
	"context"
	"fmt"
	"net/url"

	"github.com/muurk/r1ctl/internal/apierr"
	"github.com/muurk/r1ctl/internal/rest"
	"github.com/muurk/r1ctl/internal/wire"
)

// MachineAdapter implements MachineAPI over the controller's REST surface.
type MachineAdapter struct {
	client *rest.Client
}

// shotSettingsBody is the wire shape of a shot settings write.
type shotSettingsBody struct {
	SteamSetting        int     `json:"steamSetting"`
	TargetSteamTemp     float64 `json:"targetSteamTemp"`
	TargetSteamDuration float64 `json:"targetSteamDuration"`
	TargetHotWaterTemp  float64 `json:"targetHotWaterTemp"`
	TargetHotWaterVol   float64 `json:"targetHotWaterVolume"`
	TargetHotWaterDur   float64 `json:"targetHotWaterDuration"`
	TargetShotVolume    float64 `json:"targetShotVolume"`
	GroupTemp           float64 `json:"groupTemp"`
}

// GetState reads the current machine snapshot.
func (a *MachineAdapter) GetState(ctx context.Context) (wire.MachineSnapshot, error) {
	raw, err := a.client.GetRaw(ctx, "/api/v1/de1/state")
	if err != nil {
		return wire.MachineSnapshot{}, apierr.Wrap(apierr.CategoryMachine, "state_read", "", err)
	}
	return wire.ParseMachineSnapshot(raw), nil
}

// SetState requests a machine state transition. The target state is part of
// the path, so it must be one of the fixed state tokens.
func (a *MachineAdapter) SetState(ctx context.Context, state wire.MachineState) error {
	if !state.IsValid() {
		return apierr.New(apierr.CategoryMachine, "state_write",
			fmt.Sprintf("%q is not a machine state", state))
	}
	if err := a.client.Put(ctx, "/api/v1/de1/state/"+string(state), nil, nil); err != nil {
		return apierr.Wrap(apierr.CategoryMachine, "state_write", "", err)
	}
	return nil
}

// UploadProfile sends a brew profile document to the machine.
func (a *MachineAdapter) UploadProfile(ctx context.Context, profile wire.Profile) error {
	if err := a.client.Post(ctx, "/api/v1/de1/profile", profile, nil); err != nil {
		return apierr.Wrap(apierr.CategoryProfile, "upload_failed", "", err)
	}
	return nil
}

// ListProfiles returns the profiles stored on the controller.
func (a *MachineAdapter) ListProfiles(ctx context.Context) ([]wire.Profile, error) {
	var profiles []wire.Profile
	if err := a.client.Get(ctx, "/api/v1/de1/profiles", &profiles); err != nil {
		return nil, apierr.Wrap(apierr.CategoryProfile, "list_failed", "", err)
	}
	return profiles, nil
}

// GetProfile reads one stored profile by id.
func (a *MachineAdapter) GetProfile(ctx context.Context, id string) (wire.Profile, error) {
	var profile wire.Profile
	if err := a.client.Get(ctx, "/api/v1/de1/profiles/"+url.PathEscape(id), &profile); err != nil {
		return wire.Profile{}, apierr.Wrap(apierr.CategoryProfile, "list_failed", "", err)
	}
	return profile, nil
}

// SelectProfile makes a stored profile the active one.
func (a *MachineAdapter) SelectProfile(ctx context.Context, id string) error {
	if err := a.client.Put(ctx, "/api/v1/de1/profiles/"+url.PathEscape(id)+"/select", nil, nil); err != nil {
		return apierr.Wrap(apierr.CategoryProfile, "select_failed", "", err)
	}
	return nil
}

// UpdateShotSettings writes the machine-side brew parameters.
func (a *MachineAdapter) UpdateShotSettings(ctx context.Context, settings wire.ShotSettings) error {
	body := shotSettingsBody{
		SteamSetting:        settings.SteamSetting,
		TargetSteamTemp:     settings.TargetSteamTemp,
		TargetSteamDuration: settings.TargetSteamDuration,
		TargetHotWaterTemp:  settings.TargetHotWaterTemp,
		TargetHotWaterVol:   settings.TargetHotWaterVol,
		TargetHotWaterDur:   settings.TargetHotWaterDur,
		TargetShotVolume:    settings.TargetShotVolume,
		GroupTemp:           settings.GroupTemp,
	}
	if err := a.client.Post(ctx, "/api/v1/de1/shotSettings", body, nil); err != nil {
		return apierr.Wrap(apierr.CategoryMachine, "shot_settings", "", err)
	}
	return nil
}

// SetUSBCharging toggles the group-head USB charger.
func (a *MachineAdapter) SetUSBCharging(ctx context.Context, enabled bool) error {
	action := "disable"
	if enabled {
		action = "enable"
	}
	if err := a.client.Put(ctx, "/api/v1/de1/usb/"+action, nil, nil); err != nil {
		return apierr.Wrap(apierr.CategoryMachine, "usb_toggle", "", err)
	}
	return nil
}
