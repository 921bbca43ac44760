package wire

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Raw payload shapes, one per wire endpoint. Every field is a pointer so a
// missing field is distinguishable from a zero value; extraction always
// substitutes the documented default.

type rawMachineSnapshot struct {
	Timestamp         *flexTime   `json:"timestamp"`
	State             *string     `json:"state"`
	Substate          *string     `json:"substate"`
	Flow              *flexNumber `json:"flow"`
	Pressure          *flexNumber `json:"pressure"`
	TargetFlow        *flexNumber `json:"targetFlow"`
	TargetPressure    *flexNumber `json:"targetPressure"`
	MixTemperature    *flexNumber `json:"mixTemperature"`
	GroupTemperature  *flexNumber `json:"groupTemperature"`
	TargetMixTemp     *flexNumber `json:"targetMixTemperature"`
	TargetGroupTemp   *flexNumber `json:"targetGroupTemperature"`
	ProfileFrame      *flexNumber `json:"profileFrame"`
	SteamTemperature  *flexNumber `json:"steamTemperature"`
	USBChargerEnabled *bool       `json:"usbChargerEnabled"`
}

type rawScaleSnapshot struct {
	Timestamp    *flexTime   `json:"timestamp"`
	Weight       *flexNumber `json:"weight"`
	BatteryLevel *flexNumber `json:"batteryLevel"`
}

type rawShotSettings struct {
	SteamSetting        *flexNumber `json:"steamSetting"`
	TargetSteamTemp     *flexNumber `json:"targetSteamTemp"`
	TargetSteamDuration *flexNumber `json:"targetSteamDuration"`
	TargetHotWaterTemp  *flexNumber `json:"targetHotWaterTemp"`
	TargetHotWaterVol   *flexNumber `json:"targetHotWaterVolume"`
	TargetHotWaterDur   *flexNumber `json:"targetHotWaterDuration"`
	TargetShotVolume    *flexNumber `json:"targetShotVolume"`
	GroupTemp           *flexNumber `json:"groupTemp"`
}

type rawWaterLevels struct {
	CurrentPercentage   *flexNumber `json:"currentPercentage"`
	WarningThresholdPct *flexNumber `json:"warningThresholdPercentage"`
}

type rawDevice struct {
	ID              *string `json:"id"`
	Name            *string `json:"name"`
	Type            *string `json:"type"`
	ConnectionState *string `json:"connectionState"`
}

// flexNumber decodes a JSON number that some firmware versions emit as a
// quoted string. Unparseable values decode to 0.
type flexNumber float64

func (f *flexNumber) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexNumber(v)
	return nil
}

// flexTime decodes a timestamp that arrives either as RFC3339 text or as
// (possibly fractional) Unix seconds. Unparseable values decode to the zero
// time, which extraction replaces with the current wall clock.
type flexTime time.Time

func (f *flexTime) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = flexTime(time.Time{})
		return nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		*f = flexTime(t)
		return nil
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		sec := int64(secs)
		nsec := int64((secs - float64(sec)) * 1e9)
		*f = flexTime(time.Unix(sec, nsec))
		return nil
	}
	*f = flexTime(time.Time{})
	return nil
}

// NormalizeState maps the reported state string onto the canonical machine
// state set, defaulting to "unknown".
func NormalizeState(s string) MachineState {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sleep", "sleeping", "standby":
		return StateSleep
	case "idle", "ready":
		return StateIdle
	case "espresso":
		return StateEspresso
	case "steam", "steaming":
		return StateSteam
	case "hotwater", "hot_water", "hotwaterrinse":
		return StateHotWater
	case "flush", "flushing", "clean":
		return StateFlush
	default:
		return StateUnknown
	}
}

// NormalizeSubstate maps reported substate spellings onto the canonical
// tokens, defaulting to "unknown".
func NormalizeSubstate(s string) MachineSubstate {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "preinfusion", "preinfuse", "pre-infusion":
		return SubstatePreinfusion
	case "pour", "pouring":
		return SubstatePour
	case "heating", "heat", "warming":
		return SubstateHeating
	case "stabilizing", "stabilising", "stabilize":
		return SubstateStabilizing
	case "ending", "end":
		return SubstateEnding
	default:
		return SubstateUnknown
	}
}

// ParseMachineSnapshot converts a raw machine snapshot payload into a fully
// populated MachineSnapshot. It never fails: malformed payloads yield a
// default record stamped with the current time.
func ParseMachineSnapshot(payload []byte) MachineSnapshot {
	var raw rawMachineSnapshot
	_ = json.Unmarshal(payload, &raw)

	return MachineSnapshot{
		Timestamp:         timeOrNow(raw.Timestamp),
		State:             NormalizeState(stringOr(raw.State, "")),
		Substate:          NormalizeSubstate(stringOr(raw.Substate, "")),
		Flow:              numberOr(raw.Flow, 0),
		Pressure:          numberOr(raw.Pressure, 0),
		TargetFlow:        numberOr(raw.TargetFlow, 0),
		TargetPressure:    numberOr(raw.TargetPressure, 0),
		MixTemperature:    numberOr(raw.MixTemperature, 0),
		GroupTemperature:  numberOr(raw.GroupTemperature, 0),
		TargetMixTemp:     numberOr(raw.TargetMixTemp, 0),
		TargetGroupTemp:   numberOr(raw.TargetGroupTemp, 0),
		ProfileFrame:      int(numberOr(raw.ProfileFrame, 0)),
		SteamTemperature:  numberOr(raw.SteamTemperature, 0),
		USBChargerEnabled: boolOr(raw.USBChargerEnabled, false),
	}
}

// ParseScaleSnapshot converts a raw scale payload. Weight is passed through
// unclamped; transient negative readings are expected before a tare.
func ParseScaleSnapshot(payload []byte) ScaleSnapshot {
	var raw rawScaleSnapshot
	_ = json.Unmarshal(payload, &raw)

	return ScaleSnapshot{
		Timestamp:    timeOrNow(raw.Timestamp),
		Weight:       numberOr(raw.Weight, 0),
		BatteryLevel: numberOr(raw.BatteryLevel, 0),
	}
}

// ParseShotSettings converts a raw shot settings payload.
func ParseShotSettings(payload []byte) ShotSettings {
	var raw rawShotSettings
	_ = json.Unmarshal(payload, &raw)

	return ShotSettings{
		SteamSetting:        int(numberOr(raw.SteamSetting, 0)),
		TargetSteamTemp:     numberOr(raw.TargetSteamTemp, 0),
		TargetSteamDuration: numberOr(raw.TargetSteamDuration, 0),
		TargetHotWaterTemp:  numberOr(raw.TargetHotWaterTemp, 0),
		TargetHotWaterVol:   numberOr(raw.TargetHotWaterVol, 0),
		TargetHotWaterDur:   numberOr(raw.TargetHotWaterDur, 0),
		TargetShotVolume:    numberOr(raw.TargetShotVolume, 0),
		GroupTemp:           numberOr(raw.GroupTemp, 0),
	}
}

// ParseWaterLevels converts a raw water level payload.
func ParseWaterLevels(payload []byte) WaterLevels {
	var raw rawWaterLevels
	_ = json.Unmarshal(payload, &raw)

	return WaterLevels{
		CurrentPercentage:   numberOr(raw.CurrentPercentage, 0),
		WarningThresholdPct: numberOr(raw.WarningThresholdPct, 0),
	}
}

// ParseDevice converts a single raw device record.
func ParseDevice(payload []byte) Device {
	var raw rawDevice
	_ = json.Unmarshal(payload, &raw)
	return deviceFromRaw(raw)
}

// ParseDeviceList converts a raw device listing. Records that fail to
// decode individually are dropped rather than aborting the whole list.
func ParseDeviceList(payload []byte) []Device {
	var raws []rawDevice
	if err := json.Unmarshal(payload, &raws); err != nil {
		// Some firmware wraps the list in {"devices": [...]}.
		var wrapped struct {
			Devices []rawDevice `json:"devices"`
		}
		if err := json.Unmarshal(payload, &wrapped); err != nil {
			return []Device{}
		}
		raws = wrapped.Devices
	}

	devices := make([]Device, 0, len(raws))
	for _, raw := range raws {
		devices = append(devices, deviceFromRaw(raw))
	}
	return devices
}

func deviceFromRaw(raw rawDevice) Device {
	state := DeviceConnectionState(strings.ToLower(stringOr(raw.ConnectionState, "")))
	switch state {
	case DeviceConnected, DeviceDisconnected, DeviceConnecting:
	default:
		state = DeviceStateUnknown
	}
	return Device{
		ID:              stringOr(raw.ID, ""),
		Name:            stringOr(raw.Name, "unknown"),
		Type:            stringOr(raw.Type, "unknown"),
		ConnectionState: state,
	}
}

func stringOr(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}

func numberOr(p *flexNumber, def float64) float64 {
	if p == nil {
		return def
	}
	return float64(*p)
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func timeOrNow(p *flexTime) time.Time {
	if p == nil || time.Time(*p).IsZero() {
		return time.Now()
	}
	return time.Time(*p)
}
