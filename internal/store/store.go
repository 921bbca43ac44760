package store

import (
	"context"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/r1ctl/internal/apierr"
	"github.com/muurk/r1ctl/internal/backoff"
	"github.com/muurk/r1ctl/internal/logging"
	"github.com/muurk/r1ctl/internal/remote"
	"github.com/muurk/r1ctl/internal/rest"
	"github.com/muurk/r1ctl/internal/stream"
	"github.com/muurk/r1ctl/internal/wire"
)

const (
	// DefaultTickInterval drives the shot timer republish rate.
	DefaultTickInterval = 100 * time.Millisecond

	// reconnectGrowthCap bounds backoff growth for the store's own
	// reconnect loop; attempts keep counting but the delay stops growing.
	reconnectGrowthCap = 10
)

// TelemetryDialer opens the long-lived telemetry connections. The stream
// package's Registry is the production implementation; tests substitute a
// fake that pushes frames directly.
type TelemetryDialer interface {
	Connect(url string, cb stream.Callbacks) io.Closer
	CloseAll()
}

// registryDialer adapts *stream.Registry to the TelemetryDialer interface.
type registryDialer struct {
	reg *stream.Registry
}

func (d registryDialer) Connect(url string, cb stream.Callbacks) io.Closer {
	return closerFunc(d.reg.Connect(url, cb).Close)
}

func (d registryDialer) CloseAll() { d.reg.CloseAll() }

type closerFunc func()

func (f closerFunc) Close() error { f(); return nil }

// Config selects the store's collaborators at construction time.
type Config struct {
	// Settings is the initial controller address.
	Settings Settings

	// AutoReconnect enables backoff reconnection after failures.
	AutoReconnect bool

	// APIFactory builds the command adapters for an address. Nil selects
	// the network-backed adapters; tests install remote.NewFake().APIs.
	APIFactory func(Settings) *remote.API

	// Dialer opens telemetry connections. Nil selects a fresh
	// stream.Registry.
	Dialer TelemetryDialer

	// TickInterval overrides the shot timer tick (default 100ms).
	TickInterval time.Duration
}

// Store is the single coordinator for one controller session.
type Store struct {
	mu sync.Mutex

	settings      Settings
	state         ConnectionState
	lastErr       *apierr.Error
	autoReconnect bool

	apiFactory   func(Settings) *remote.API
	dialer       TelemetryDialer
	tickInterval time.Duration
	now          func() time.Time

	api *remote.API

	// gen invalidates callbacks from torn-down sessions: every stream
	// callback and timer carries the generation it was created under and
	// is dropped when it no longer matches.
	gen int

	reconnectAttempts int
	reconnectTimer    *time.Timer

	// Latest value per telemetry stream.
	devices      []wire.Device
	machine      wire.MachineSnapshot
	scale        wire.ScaleSnapshot
	shotSettings wire.ShotSettings
	water        wire.WaterLevels

	activeProfileID string

	// Derived state (see derived.go).
	shot             ShotTimerState
	recentShotTime   float64
	shotTicker       *time.Ticker
	shotStop         chan struct{}
	waterHistory     []waterReading
	filteredWater    float64
	lastWaterPublish time.Time
}

// New creates a store. Nothing connects until Connect is called.
func New(cfg Config) *Store {
	s := &Store{
		settings:      cfg.Settings,
		state:         Disconnected,
		autoReconnect: cfg.AutoReconnect,
		apiFactory:    cfg.APIFactory,
		dialer:        cfg.Dialer,
		tickInterval:  cfg.TickInterval,
		now:           time.Now,
	}
	if s.apiFactory == nil {
		s.apiFactory = func(settings Settings) *remote.API {
			client := rest.NewClient(settings.BaseURL())
			if settings.Username != "" {
				client.SetAuth(settings.Username, settings.Password)
			}
			return remote.New(client)
		}
	}
	if s.dialer == nil {
		s.dialer = registryDialer{reg: stream.NewRegistry()}
	}
	if s.tickInterval <= 0 {
		s.tickInterval = DefaultTickInterval
	}
	s.resetTelemetryLocked()
	return s
}

// Connect establishes a session with the configured controller: it probes
// reachability with a cheap device listing, reads devices and machine state
// once, then opens the four telemetry streams. Any failure transitions to
// Error, stores the cause and (when auto-reconnect is on) schedules a
// backoff retry.
func (s *Store) Connect() error {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.cancelReconnectTimerLocked()
	s.stopShotTickerLocked()
	settings := s.settings
	s.state = Connecting
	s.lastErr = nil
	s.api = nil
	api := s.apiFactory(settings)
	s.mu.Unlock()

	// Old session callbacks are stale now; tear its sockets down.
	s.dialer.CloseAll()
	logging.LogConnection(settings.BaseURL(), "connecting")

	ctx := context.Background()

	// Reachability probe. No telemetry is opened until this succeeds.
	devices, err := api.Devices.ListDevices(ctx)
	if err != nil {
		return s.connectFailed(gen, err)
	}

	snap, err := api.Machine.GetState(ctx)
	if err != nil {
		return s.connectFailed(gen, err)
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return nil
	}
	s.api = api
	s.devices = devices
	s.machine = snap
	s.mu.Unlock()

	s.openStreams(gen, settings)

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return nil
	}
	s.state = Connected
	s.reconnectAttempts = 0
	s.mu.Unlock()

	logging.LogConnection(settings.BaseURL(), "connected")
	return nil
}

// Disconnect tears the session down: it cancels pending reconnects, stops
// the shot timer, closes all telemetry connections and resets every
// telemetry and derived value to empty defaults. Idempotent; no callback
// mutates store state after it returns.
func (s *Store) Disconnect() {
	s.mu.Lock()
	s.gen++
	s.cancelReconnectTimerLocked()
	s.stopShotTickerLocked()
	s.api = nil
	s.state = Disconnected
	s.lastErr = nil
	s.resetTelemetryLocked()
	address := s.settings.BaseURL()
	s.mu.Unlock()

	s.dialer.CloseAll()
	logging.LogConnection(address, "disconnected")
}

// Reconnect re-runs Connect with the last settings. If the previous failure
// looked like a TLS problem, the secure-protocol setting is flipped first -
// a heuristic for controllers that moved between plain and TLS endpoints.
func (s *Store) Reconnect() error {
	s.mu.Lock()
	if s.lastErr != nil && apierr.IsTLS(s.lastErr) {
		s.settings.Secure = !s.settings.Secure
		logging.Info("Flipping secure protocol before reconnect",
			zap.Bool("secure", s.settings.Secure),
		)
	}
	s.mu.Unlock()
	return s.Connect()
}

// UpdateSettings replaces the connection settings. An active or pending
// session is invalidated and reconnected with the new address.
func (s *Store) UpdateSettings(settings Settings) error {
	s.mu.Lock()
	s.settings = settings
	active := s.state != Disconnected
	s.mu.Unlock()

	if active {
		return s.Connect()
	}
	return nil
}

// connectFailed records the failure, schedules backoff and surfaces the
// categorized error to the caller.
func (s *Store) connectFailed(gen int, err error) error {
	e := apierr.Classify(err)

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return e
	}
	s.state = Error
	s.lastErr = e
	s.scheduleReconnectLocked()
	s.mu.Unlock()

	logging.Error("Connect failed",
		zap.String("code", e.Code),
		zap.Error(e),
	)
	return e
}

// scheduleReconnectLocked arms the store-level reconnect timer. The attempt
// counter is independent of the per-stream counters and never stops; only
// its backoff growth is capped.
func (s *Store) scheduleReconnectLocked() {
	if !s.autoReconnect {
		return
	}

	s.reconnectAttempts++
	n := s.reconnectAttempts
	if n > reconnectGrowthCap {
		n = reconnectGrowthCap
	}
	delay := backoff.Delay(n)
	gen := s.gen

	logging.LogReconnect(s.settings.BaseURL(), s.reconnectAttempts, delay.Milliseconds())

	s.reconnectTimer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		stale := gen != s.gen || !s.autoReconnect
		s.reconnectTimer = nil
		s.mu.Unlock()
		if stale {
			return
		}
		_ = s.Connect()
	})
}

func (s *Store) cancelReconnectTimerLocked() {
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
}

// openStreams wires the four telemetry topics to their transformers.
// Streams are independent: one topic reconnecting never blocks the others.
func (s *Store) openStreams(gen int, settings Settings) {
	s.dialer.Connect(settings.StreamURL(TopicMachineSnapshot), stream.Callbacks{
		OnMessage: func(p []byte) { s.applyMachineSnapshot(gen, wire.ParseMachineSnapshot(p)) },
		OnRaw:     func(f wire.RawFrame) { s.handleRawFrame(gen, TopicMachineSnapshot, f) },
		OnError:   func(e *apierr.Error) { s.handleStreamError(gen, TopicMachineSnapshot, e) },
		OnClose:   func() { s.handleStreamClosed(gen, TopicMachineSnapshot) },
	})
	s.dialer.Connect(settings.StreamURL(TopicShotSettings), stream.Callbacks{
		OnMessage: func(p []byte) { s.applyShotSettings(gen, wire.ParseShotSettings(p)) },
		OnRaw:     func(f wire.RawFrame) { s.handleRawFrame(gen, TopicShotSettings, f) },
		OnError:   func(e *apierr.Error) { s.handleStreamError(gen, TopicShotSettings, e) },
		OnClose:   func() { s.handleStreamClosed(gen, TopicShotSettings) },
	})
	s.dialer.Connect(settings.StreamURL(TopicWaterLevels), stream.Callbacks{
		OnMessage: func(p []byte) { s.applyWaterLevels(gen, wire.ParseWaterLevels(p)) },
		OnRaw:     func(f wire.RawFrame) { s.handleRawFrame(gen, TopicWaterLevels, f) },
		OnError:   func(e *apierr.Error) { s.handleStreamError(gen, TopicWaterLevels, e) },
		OnClose:   func() { s.handleStreamClosed(gen, TopicWaterLevels) },
	})
	s.dialer.Connect(settings.StreamURL(TopicScaleSnapshot), stream.Callbacks{
		OnMessage: func(p []byte) { s.applyScaleSnapshot(gen, wire.ParseScaleSnapshot(p)) },
		OnRaw:     func(f wire.RawFrame) { s.handleRawFrame(gen, TopicScaleSnapshot, f) },
		OnError:   func(e *apierr.Error) { s.handleStreamError(gen, TopicScaleSnapshot, e) },
		OnClose:   func() { s.handleStreamClosed(gen, TopicScaleSnapshot) },
	})
}

// handleRawFrame logs an unparseable frame and leaves the prior value in
// place. Stale-but-present state beats clearing to empty.
func (s *Store) handleRawFrame(gen int, topic string, frame wire.RawFrame) {
	s.mu.Lock()
	stale := gen != s.gen
	s.mu.Unlock()
	if stale {
		return
	}
	logging.Warn("Unparseable telemetry frame, keeping previous value",
		zap.String("topic", topic),
		zap.Int("length", len(frame.Raw)),
	)
}

// handleStreamError logs a transport error. The stream layer handles its
// own reconnection; the store does not react until the close is terminal.
func (s *Store) handleStreamError(gen int, topic string, e *apierr.Error) {
	s.mu.Lock()
	stale := gen != s.gen
	s.mu.Unlock()
	if stale {
		return
	}
	logging.Warn("Telemetry stream error",
		zap.String("topic", topic),
		zap.String("code", e.Code),
	)
}

// handleStreamClosed reacts to a terminal stream close in the current
// session: the stream is out of reconnect attempts, so the whole session
// degrades to Error and the store-level backoff takes over.
func (s *Store) handleStreamClosed(gen int, topic string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}

	logging.Warn("Telemetry stream closed", zap.String("topic", topic))
	if s.state == Connected {
		s.state = Error
		s.lastErr = apierr.New(apierr.CategoryConnection, "closed", "")
		s.scheduleReconnectLocked()
	}
}

// currentAPI snapshots the adapters and session generation for one command.
func (s *Store) currentAPI(op string) (*remote.API, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.api == nil {
		logging.Info("Ignoring command while disconnected", zap.String("op", op))
		return nil, 0
	}
	return s.api, s.gen
}

// SetMachineState requests a machine state transition and refreshes the
// cached snapshot on success. No-op while disconnected.
func (s *Store) SetMachineState(state wire.MachineState) {
	api, gen := s.currentAPI("set machine state")
	if api == nil {
		return
	}
	ctx := context.Background()

	if err := api.Machine.SetState(ctx, state); err != nil {
		logging.Error("Set machine state failed",
			zap.String("state", string(state)),
			zap.Error(err),
		)
		return
	}

	// Best-effort refresh; the command itself already succeeded.
	if snap, err := api.Machine.GetState(ctx); err == nil {
		s.applyMachineSnapshot(gen, snap)
	} else {
		logging.Warn("State refresh after command failed", zap.Error(err))
	}
}

// UploadProfile sends a profile to the machine and patches the local
// target fields the new profile implies. No-op while disconnected.
func (s *Store) UploadProfile(profile wire.Profile) {
	api, gen := s.currentAPI("upload profile")
	if api == nil {
		return
	}

	if err := api.Machine.UploadProfile(context.Background(), profile); err != nil {
		logging.Error("Profile upload failed",
			zap.String("title", profile.Title),
			zap.Error(err),
		)
		return
	}

	s.mu.Lock()
	if gen == s.gen {
		s.activeProfileID = profile.ID
		// The upload path is the one place target fields are patched
		// rather than replaced wholesale by the stream.
		if profile.TankTemperature > 0 {
			s.machine.TargetGroupTemp = profile.TankTemperature
		}
		if profile.TargetWeight > 0 {
			s.shotSettings.TargetShotVolume = profile.TargetWeight
		}
	}
	s.mu.Unlock()
}

// SelectProfile activates a stored profile on the controller. No-op while
// disconnected.
func (s *Store) SelectProfile(id string) {
	api, gen := s.currentAPI("select profile")
	if api == nil {
		return
	}
	if err := api.Machine.SelectProfile(context.Background(), id); err != nil {
		logging.Error("Profile select failed", zap.String("id", id), zap.Error(err))
		return
	}
	s.mu.Lock()
	if gen == s.gen {
		s.activeProfileID = id
	}
	s.mu.Unlock()
}

// UpdateShotSettings applies the settings optimistically and writes them to
// the controller; the shot settings stream corrects any divergence. No-op
// while disconnected.
func (s *Store) UpdateShotSettings(settings wire.ShotSettings) {
	api, gen := s.currentAPI("update shot settings")
	if api == nil {
		return
	}

	s.mu.Lock()
	if gen == s.gen {
		s.shotSettings = settings
	}
	s.mu.Unlock()

	if err := api.Machine.UpdateShotSettings(context.Background(), settings); err != nil {
		logging.Error("Shot settings update failed", zap.Error(err))
	}
}

// SetUSBCharging toggles the group-head USB charger. No-op while
// disconnected.
func (s *Store) SetUSBCharging(enabled bool) {
	api, gen := s.currentAPI("set usb charging")
	if api == nil {
		return
	}

	if err := api.Machine.SetUSBCharging(context.Background(), enabled); err != nil {
		logging.Error("USB charger toggle failed", zap.Error(err))
		return
	}

	s.mu.Lock()
	if gen == s.gen {
		s.machine.USBChargerEnabled = enabled
	}
	s.mu.Unlock()
}

// SelectScale records the chosen scale after validating it against the
// latest device listing. Unlike the other commands the error propagates:
// the caller needs it to revert an optimistic selection. Calling it while
// disconnected is still a safe no-op.
func (s *Store) SelectScale(id string) error {
	s.mu.Lock()
	api := s.api
	gen := s.gen
	devices := make([]wire.Device, len(s.devices))
	copy(devices, s.devices)
	s.mu.Unlock()

	if api == nil {
		logging.Info("Ignoring scale selection while disconnected", zap.String("id", id))
		return nil
	}
	if err := api.Scale.Select(id, devices); err != nil {
		return err
	}

	// Best-effort listing refresh so the selection is validated against
	// fresh data next time.
	if refreshed, err := api.Devices.ListDevices(context.Background()); err == nil {
		s.mu.Lock()
		if gen == s.gen {
			s.devices = refreshed
		}
		s.mu.Unlock()
	} else {
		logging.Warn("Device refresh after scale selection failed", zap.Error(err))
	}
	return nil
}

// SelectedScale returns the chosen scale if it is still present in the
// latest device listing.
func (s *Store) SelectedScale() (wire.Device, bool) {
	s.mu.Lock()
	api := s.api
	devices := make([]wire.Device, len(s.devices))
	copy(devices, s.devices)
	s.mu.Unlock()

	if api == nil {
		return wire.Device{}, false
	}
	return api.Scale.Selected(devices)
}

// TareScale zeroes the scale. No-op while disconnected.
func (s *Store) TareScale() {
	api, _ := s.currentAPI("tare scale")
	if api == nil {
		return
	}
	if err := api.Scale.Tare(context.Background()); err != nil {
		logging.Error("Tare failed", zap.Error(err))
	}
}

// ScanForDevices triggers a device scan and refreshes the cached listing on
// success. It returns the refreshed listing, or nil when disconnected or
// failed (the prior listing stays in place either way).
func (s *Store) ScanForDevices() []wire.Device {
	api, gen := s.currentAPI("scan for devices")
	if api == nil {
		return nil
	}

	devices, err := api.Devices.ScanForDevices(context.Background())
	if err != nil {
		logging.Error("Device scan failed", zap.Error(err))
		return nil
	}

	s.mu.Lock()
	if gen == s.gen {
		s.devices = devices
	}
	s.mu.Unlock()

	out := make([]wire.Device, len(devices))
	copy(out, devices)
	return out
}

// resetTelemetryLocked clears all telemetry and derived values to their
// empty defaults. Caller holds mu.
func (s *Store) resetTelemetryLocked() {
	s.devices = nil
	s.machine = wire.MachineSnapshot{State: wire.StateUnknown, Substate: wire.SubstateUnknown}
	s.scale = wire.ScaleSnapshot{}
	s.shotSettings = wire.ShotSettings{}
	s.water = wire.WaterLevels{}
	s.activeProfileID = ""
	s.shot = ShotTimerState{}
	s.recentShotTime = 0
	s.waterHistory = nil
	s.filteredWater = 0
	s.lastWaterPublish = time.Time{}
}
