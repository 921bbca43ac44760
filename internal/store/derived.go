package store

import (
	"time"

	"github.com/muurk/r1ctl/internal/wire"
)

const (
	// waterWindow is how much water-level history feeds the filtered value.
	waterWindow = 30 * time.Second

	// waterPublishInterval throttles filtered value republication.
	waterPublishInterval = 10 * time.Second
)

// ShotTimerState is the live shot timer plus the running maxima gathered
// while the shot is in a flowing phase.
type ShotTimerState struct {
	Running   bool
	StartedAt time.Time
	Elapsed   float64

	MaxFlow     float64
	MaxPressure float64
	MaxWeight   float64
}

type waterReading struct {
	at  time.Time
	pct float64
}

// applyMachineSnapshot replaces the cached machine state and drives the
// shot timer off the state-key transition.
func (s *Store) applyMachineSnapshot(gen int, snap wire.MachineSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}

	prevKey := s.machine.StateKey()
	s.machine = snap
	newKey := snap.StateKey()

	shotStartKey := string(wire.StateEspresso) + "." + string(wire.SubstatePreinfusion)
	if newKey == shotStartKey && prevKey != newKey {
		s.startShotLocked(gen)
	}

	if s.shot.Running && inShotPhase(snap) {
		s.shot.MaxFlow = maxOf(s.shot.MaxFlow, snap.Flow)
		s.shot.MaxPressure = maxOf(s.shot.MaxPressure, snap.Pressure)
		s.shot.MaxWeight = maxOf(s.shot.MaxWeight, s.scale.Weight)
	}

	if s.shot.Running && snap.State != wire.StateEspresso {
		s.stopShotLocked()
	}
}

// applyScaleSnapshot replaces the cached scale reading. Weight feeds the
// running maximum only while a shot is flowing.
func (s *Store) applyScaleSnapshot(gen int, snap wire.ScaleSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}

	s.scale = snap
	if s.shot.Running && inShotPhase(s.machine) {
		s.shot.MaxWeight = maxOf(s.shot.MaxWeight, snap.Weight)
	}
}

// applyShotSettings replaces the cached settings wholesale; the controller
// is authoritative.
func (s *Store) applyShotSettings(gen int, settings wire.ShotSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	s.shotSettings = settings
}

// applyWaterLevels records the raw reading, prunes history outside the
// averaging window and republishes the filtered value at most every ten
// seconds. The raw value always updates; only the filtered one is
// throttled.
func (s *Store) applyWaterLevels(gen int, levels wire.WaterLevels) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}

	s.water = levels
	now := s.now()
	s.waterHistory = append(s.waterHistory, waterReading{at: now, pct: levels.CurrentPercentage})

	cutoff := now.Add(-waterWindow)
	kept := s.waterHistory[:0]
	for _, r := range s.waterHistory {
		if !r.at.Before(cutoff) {
			kept = append(kept, r)
		}
	}
	s.waterHistory = kept

	if s.lastWaterPublish.IsZero() || now.Sub(s.lastWaterPublish) >= waterPublishInterval {
		var sum float64
		for _, r := range s.waterHistory {
			sum += r.pct
		}
		s.filteredWater = sum / float64(len(s.waterHistory))
		s.lastWaterPublish = now
	}
}

// startShotLocked begins a new shot: the timer restarts and all maxima
// reset to zero. Caller holds mu.
func (s *Store) startShotLocked(gen int) {
	s.shot = ShotTimerState{
		Running:   true,
		StartedAt: s.now(),
	}
	s.startShotTickerLocked(gen)
}

// stopShotLocked freezes the elapsed time into the recent shot time and
// clears the live timer. Maxima keep their final values until the next
// shot starts. Caller holds mu.
func (s *Store) stopShotLocked() {
	s.recentShotTime = s.now().Sub(s.shot.StartedAt).Seconds()
	s.shot.Running = false
	s.shot.Elapsed = 0
	s.shot.StartedAt = time.Time{}
	s.stopShotTickerLocked()
}

func (s *Store) startShotTickerLocked(gen int) {
	s.stopShotTickerLocked()

	ticker := time.NewTicker(s.tickInterval)
	stop := make(chan struct{})
	s.shotTicker = ticker
	s.shotStop = stop

	go func() {
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.shotTick(gen)
			}
		}
	}()
}

func (s *Store) stopShotTickerLocked() {
	if s.shotStop != nil {
		close(s.shotStop)
		s.shotStop = nil
	}
	if s.shotTicker != nil {
		s.shotTicker.Stop()
		s.shotTicker = nil
	}
}

// shotTick republishes the elapsed time and keeps the maxima fresh between
// telemetry frames.
func (s *Store) shotTick(gen int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || !s.shot.Running {
		return
	}

	s.shot.Elapsed = s.now().Sub(s.shot.StartedAt).Seconds()
	if inShotPhase(s.machine) {
		s.shot.MaxFlow = maxOf(s.shot.MaxFlow, s.machine.Flow)
		s.shot.MaxPressure = maxOf(s.shot.MaxPressure, s.machine.Pressure)
		s.shot.MaxWeight = maxOf(s.shot.MaxWeight, s.scale.Weight)
	}
}

// inShotPhase reports whether coffee is flowing: espresso major state in
// its preinfusion or pour phase.
func inShotPhase(snap wire.MachineSnapshot) bool {
	if snap.State != wire.StateEspresso {
		return false
	}
	return snap.Substate == wire.SubstatePreinfusion || snap.Substate == wire.SubstatePour
}

func maxOf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
