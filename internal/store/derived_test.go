package store

import (
	"testing"
	"time"

	"github.com/muurk/r1ctl/internal/remote"
	"github.com/muurk/r1ctl/internal/wire"
)

func TestShotTimerFullCycle(t *testing.T) {
	fake := remote.NewFake()
	s, dialer, clock := newTestStore(t, fake, false)

	if err := s.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	// Entering preinfusion starts the shot and resets the maxima.
	dialer.push(t, TopicMachineSnapshot, `{"state":"espresso","substate":"preinfusion","flow":1.2,"pressure":2.5}`)
	shot := s.ShotTimer()
	if !shot.Running {
		t.Fatal("shot not running after entering preinfusion")
	}
	if shot.MaxFlow != 1.2 || shot.MaxPressure != 2.5 {
		t.Errorf("maxima = flow %v pressure %v, want 1.2 and 2.5", shot.MaxFlow, shot.MaxPressure)
	}

	dialer.push(t, TopicScaleSnapshot, `{"weight":5.5}`)
	if got := s.ShotTimer().MaxWeight; got != 5.5 {
		t.Errorf("MaxWeight = %v, want 5.5", got)
	}

	clock.Advance(10 * time.Second)
	dialer.push(t, TopicMachineSnapshot, `{"state":"espresso","substate":"pour","flow":2.4,"pressure":9.1}`)
	shot = s.ShotTimer()
	if shot.MaxFlow != 2.4 || shot.MaxPressure != 9.1 {
		t.Errorf("maxima = flow %v pressure %v, want 2.4 and 9.1", shot.MaxFlow, shot.MaxPressure)
	}

	// Maxima only ratchet upward.
	dialer.push(t, TopicScaleSnapshot, `{"weight":34}`)
	dialer.push(t, TopicScaleSnapshot, `{"weight":20}`)
	if got := s.ShotTimer().MaxWeight; got != 34.0 {
		t.Errorf("MaxWeight = %v, want 34", got)
	}
	dialer.push(t, TopicMachineSnapshot, `{"state":"espresso","substate":"pour","flow":1.8,"pressure":8.0}`)
	if got := s.ShotTimer().MaxFlow; got != 2.4 {
		t.Errorf("MaxFlow = %v, want 2.4", got)
	}

	// Leaving the espresso state stops the timer and freezes the duration.
	clock.Advance(15 * time.Second)
	dialer.push(t, TopicMachineSnapshot, `{"state":"idle"}`)
	shot = s.ShotTimer()
	if shot.Running {
		t.Error("shot still running after leaving espresso")
	}
	if got := s.RecentShotTime(); got != 25.0 {
		t.Errorf("RecentShotTime() = %v, want 25", got)
	}
	if shot.MaxFlow != 2.4 || shot.MaxPressure != 9.1 || shot.MaxWeight != 34.0 {
		t.Errorf("maxima not retained after shot end: %+v", shot)
	}

	// The next shot starts clean.
	dialer.push(t, TopicMachineSnapshot, `{"state":"espresso","substate":"preinfusion","flow":0.5,"pressure":1.0}`)
	shot = s.ShotTimer()
	if !shot.Running {
		t.Fatal("second shot not running")
	}
	if shot.MaxFlow != 0.5 || shot.MaxWeight != 0 {
		t.Errorf("maxima not reset at shot start: %+v", shot)
	}
	if got := s.RecentShotTime(); got != 25.0 {
		t.Errorf("RecentShotTime() = %v, want 25 until the new shot ends", got)
	}
}

func TestShotTickPublishesElapsed(t *testing.T) {
	fake := remote.NewFake()
	s, dialer, clock := newTestStore(t, fake, false)

	if err := s.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	dialer.push(t, TopicMachineSnapshot, `{"state":"espresso","substate":"preinfusion","flow":1.0}`)

	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()

	clock.Advance(3 * time.Second)
	s.shotTick(gen)
	if got := s.ShotTimer().Elapsed; got != 3.0 {
		t.Errorf("Elapsed = %v, want 3", got)
	}

	// A tick from a torn-down session is ignored.
	s.Disconnect()
	clock.Advance(time.Second)
	s.shotTick(gen)
	if got := s.ShotTimer().Elapsed; got != 0.0 {
		t.Errorf("stale tick published Elapsed = %v", got)
	}
}

func TestShotMaximaFrozenOutsideFlowPhases(t *testing.T) {
	fake := remote.NewFake()
	s, dialer, _ := newTestStore(t, fake, false)

	if err := s.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	dialer.push(t, TopicMachineSnapshot, `{"state":"espresso","substate":"preinfusion","flow":1.2}`)

	// Heating is inside the espresso state but nothing is flowing yet.
	dialer.push(t, TopicMachineSnapshot, `{"state":"espresso","substate":"heating","flow":9.9}`)
	shot := s.ShotTimer()
	if !shot.Running {
		t.Fatal("shot stopped inside espresso state")
	}
	if shot.MaxFlow != 1.2 {
		t.Errorf("MaxFlow = %v, want 1.2 (frozen during heating)", shot.MaxFlow)
	}

	dialer.push(t, TopicScaleSnapshot, `{"weight":50}`)
	if got := s.ShotTimer().MaxWeight; got != 0.0 {
		t.Errorf("MaxWeight = %v, want 0 (scale ignored during heating)", got)
	}
}

func TestNoShotStartsOutsidePreinfusion(t *testing.T) {
	fake := remote.NewFake()
	s, dialer, _ := newTestStore(t, fake, false)

	if err := s.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	// Jumping straight to pour does not start a shot.
	dialer.push(t, TopicMachineSnapshot, `{"state":"espresso","substate":"pour","flow":2.0}`)
	if s.ShotTimer().Running {
		t.Error("shot started without passing through preinfusion")
	}
	dialer.push(t, TopicMachineSnapshot, `{"state":"steam","substate":"pour"}`)
	if s.ShotTimer().Running {
		t.Error("shot started in steam state")
	}
}

func TestWaterLevelFilterThrottlesAndPrunes(t *testing.T) {
	fake := remote.NewFake()
	s, dialer, clock := newTestStore(t, fake, false)

	if err := s.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	// The first reading publishes immediately.
	dialer.push(t, TopicWaterLevels, `{"currentPercentage":50}`)
	if got := s.FilteredWaterLevel(); got != 50.0 {
		t.Fatalf("FilteredWaterLevel() = %v, want 50", got)
	}
	if got := s.WaterLevels().CurrentPercentage; got != 50.0 {
		t.Fatalf("raw CurrentPercentage = %v, want 50", got)
	}

	// Within ten seconds the raw value moves but the filtered one holds.
	clock.Advance(5 * time.Second)
	dialer.push(t, TopicWaterLevels, `{"currentPercentage":60}`)
	if got := s.FilteredWaterLevel(); got != 50.0 {
		t.Errorf("FilteredWaterLevel() = %v, want 50 (throttled)", got)
	}
	if got := s.WaterLevels().CurrentPercentage; got != 60.0 {
		t.Errorf("raw CurrentPercentage = %v, want 60", got)
	}

	// At the ten second mark the trailing mean is republished.
	clock.Advance(5 * time.Second)
	dialer.push(t, TopicWaterLevels, `{"currentPercentage":70}`)
	if got := s.FilteredWaterLevel(); got != 60.0 {
		t.Errorf("FilteredWaterLevel() = %v, want 60 (mean of 50,60,70)", got)
	}

	// After the thirty second window only fresh readings remain.
	clock.Advance(31 * time.Second)
	dialer.push(t, TopicWaterLevels, `{"currentPercentage":40}`)
	if got := s.FilteredWaterLevel(); got != 40.0 {
		t.Errorf("FilteredWaterLevel() = %v, want 40 (old readings pruned)", got)
	}
}

func TestUnparseableFrameKeepsPreviousValue(t *testing.T) {
	fake := remote.NewFake()
	s, dialer, _ := newTestStore(t, fake, false)

	if err := s.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	dialer.push(t, TopicMachineSnapshot, `{"state":"steam"}`)
	if got := s.Machine().State; got != wire.StateSteam {
		t.Fatalf("Machine().State = %q, want steam", got)
	}

	dialer.callbacks(t, TopicMachineSnapshot).OnRaw(wire.RawFrame{
		Raw:       []byte("not json"),
		Timestamp: time.Now(),
	})
	if got := s.Machine().State; got != wire.StateSteam {
		t.Errorf("raw frame clobbered state to %q", got)
	}
}
