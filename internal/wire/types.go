package wire

import "time"

// MachineState is the coarse machine mode reported by the controller.
// "idle" is the powered-on/ready state; "sleep" is standby.
type MachineState string

const (
	StateSleep    MachineState = "sleep"
	StateIdle     MachineState = "idle"
	StateEspresso MachineState = "espresso"
	StateSteam    MachineState = "steam"
	StateHotWater MachineState = "hotwater"
	StateFlush    MachineState = "flush"
	StateUnknown  MachineState = "unknown"
)

// IsValid reports whether s is one of the fixed machine states.
func (s MachineState) IsValid() bool {
	switch s {
	case StateSleep, StateIdle, StateEspresso, StateSteam, StateHotWater, StateFlush:
		return true
	}
	return false
}

// MachineSubstate is the finer sub-phase within a machine state. It is
// state-dependent and may be informationally absent ("unknown").
type MachineSubstate string

const (
	SubstatePreinfusion MachineSubstate = "preinfusion"
	SubstatePour        MachineSubstate = "pour"
	SubstateHeating     MachineSubstate = "heating"
	SubstateStabilizing MachineSubstate = "stabilizing"
	SubstateEnding      MachineSubstate = "ending"
	SubstateUnknown     MachineSubstate = "unknown"
)

// MachineSnapshot is a point-in-time telemetry reading from the machine
// snapshot stream. It is replaced wholesale on every inbound frame.
type MachineSnapshot struct {
	Timestamp         time.Time
	State             MachineState
	Substate          MachineSubstate
	Flow              float64
	Pressure          float64
	TargetFlow        float64
	TargetPressure    float64
	MixTemperature    float64
	GroupTemperature  float64
	TargetMixTemp     float64
	TargetGroupTemp   float64
	ProfileFrame      int
	SteamTemperature  float64
	USBChargerEnabled bool
}

// StateKey returns the combined "state.substate" key used to detect shot
// phase transitions.
func (m MachineSnapshot) StateKey() string {
	return string(m.State) + "." + string(m.Substate)
}

// ScaleSnapshot is a reading from the scale stream. Weight may be negative
// transiently (pre-tare noise) and must not be clamped.
type ScaleSnapshot struct {
	Timestamp    time.Time
	Weight       float64
	BatteryLevel float64
}

// ShotSettings are the machine-side brew parameters. The controller is
// authoritative for these.
type ShotSettings struct {
	SteamSetting        int
	TargetSteamTemp     float64
	TargetSteamDuration float64
	TargetHotWaterTemp  float64
	TargetHotWaterVol   float64
	TargetHotWaterDur   float64
	TargetShotVolume    float64
	GroupTemp           float64
}

// WaterLevels is a raw tank level reading. The store derives a filtered
// value from a rolling window of these.
type WaterLevels struct {
	CurrentPercentage   float64
	WarningThresholdPct float64
}

// DeviceConnectionState mirrors the connection state the controller reports
// for a peripheral.
type DeviceConnectionState string

const (
	DeviceConnected    DeviceConnectionState = "connected"
	DeviceDisconnected DeviceConnectionState = "disconnected"
	DeviceConnecting   DeviceConnectionState = "connecting"
	DeviceStateUnknown DeviceConnectionState = "unknown"
)

// Device is a peripheral known to the controller (the machine itself, or a
// Bluetooth scale). The listing is eventually-consistent with a scan.
type Device struct {
	ID              string
	Name            string
	Type            string
	ConnectionState DeviceConnectionState
}

// ProfileStep is one frame of a brew profile.
type ProfileStep struct {
	Name        string  `json:"name"`
	Pump        string  `json:"pump"`
	Transition  string  `json:"transition"`
	Pressure    float64 `json:"pressure"`
	Flow        float64 `json:"flow"`
	Temperature float64 `json:"temperature"`
	Seconds     float64 `json:"seconds"`
	Volume      float64 `json:"volume"`
}

// Profile is a versioned brew recipe document. The controller owns the
// authoritative copy; local profile lists are caches.
type Profile struct {
	ID              string        `json:"id"`
	Version         string        `json:"version"`
	Title           string        `json:"title"`
	Author          string        `json:"author"`
	Notes           string        `json:"notes"`
	BeverageType    string        `json:"beverage_type"`
	Steps           []ProfileStep `json:"steps"`
	TargetWeight    float64       `json:"target_weight"`
	TargetVolume    float64       `json:"target_volume"`
	TankTemperature float64       `json:"tank_temperature"`
}

// RawFrame is the best-effort fallback delivered when an inbound frame is
// not valid JSON. Consumers must tolerate receiving it in place of a typed
// record.
type RawFrame struct {
	Raw       []byte
	Timestamp time.Time
}
