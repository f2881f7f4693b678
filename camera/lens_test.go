package camera

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// TestSwitchCamera_TogglesPosition verifies back ↔ front switching
// lands on the opposite side's wide lens.
func TestSwitchCamera_TogglesPosition(t *testing.T) {
	s := newRunningSession(t, Config{Provider: NewSimProvider(fastRig()...)})

	if err := s.SwitchCamera(); err != nil {
		t.Fatalf("SwitchCamera failed: %v", err)
	}
	desc, ok := s.ActiveDevice()
	if !ok {
		t.Fatal("no active device after switch")
	}
	if desc.Position != PositionFront || desc.Lens != LensWide {
		t.Errorf("after switch: %s, want front wide", desc)
	}
	if s.State() != StateRunning {
		t.Errorf("state = %v, want running", s.State())
	}
	t.Log("✅ Switch lands on the opposite wide camera")
}

// TestSwitchCamera_TwiceRestoresOriginal verifies the round trip:
// two switches put the session back on the exact starting device.
func TestSwitchCamera_TwiceRestoresOriginal(t *testing.T) {
	s := newRunningSession(t, Config{Provider: NewSimProvider(fastRig()...)})
	original, _ := s.ActiveDevice()

	for i := 0; i < 2; i++ {
		if err := s.SwitchCamera(); err != nil {
			t.Fatalf("switch %d failed: %v", i+1, err)
		}
	}
	back, _ := s.ActiveDevice()
	if back != original {
		t.Errorf("double switch landed on %s, want original %s", back, original)
	}
	if s.Stats().Switches != 2 {
		t.Errorf("Switches = %d, want 2", s.Stats().Switches)
	}
	t.Log("✅ Double switch restores the original device")
}

// TestSwitchCamera_ResetsZoom verifies zoom snaps back to 1.0 on a
// committed device change instead of carrying the old baseline over.
func TestSwitchCamera_ResetsZoom(t *testing.T) {
	s := newRunningSession(t, Config{Provider: NewSimProvider(fastRig()...)})

	if _, err := s.SetZoom(2.5); err != nil {
		t.Fatalf("SetZoom failed: %v", err)
	}
	if err := s.SwitchCamera(); err != nil {
		t.Fatalf("SwitchCamera failed: %v", err)
	}
	if z := s.Zoom(); z != MinZoom {
		t.Errorf("zoom after switch = %v, want %v", z, MinZoom)
	}
}

// TestSwitchCamera_MissingCounterpart verifies a rig with only one
// side fails the switch with a configuration error and keeps running.
func TestSwitchCamera_MissingCounterpart(t *testing.T) {
	rig := []SimSpec{{Position: PositionBack, Lens: LensWide, FPS: 200}}
	s := newRunningSession(t, Config{Provider: NewSimProvider(rig...)})

	err := s.SwitchCamera()
	if !errors.Is(err, ErrConfigurationFailed) {
		t.Fatalf("switch error = %v, want ErrConfigurationFailed", err)
	}
	desc, _ := s.ActiveDevice()
	if desc.Position != PositionBack {
		t.Errorf("active device moved to %s", desc)
	}
	if s.State() != StateRunning {
		t.Errorf("state = %v, want running", s.State())
	}
}

// TestSwitchCamera_FailureRestoresPrevious verifies the swap bracket:
// when the target device refuses to start, the previous input comes
// back and frames keep flowing.
func TestSwitchCamera_FailureRestoresPrevious(t *testing.T) {
	rig := []SimSpec{
		{Position: PositionBack, Lens: LensWide, FPS: 200},
		{Position: PositionFront, Lens: LensWide, FPS: 200,
			StartErr: fmt.Errorf("sensor powered down")},
	}
	s, _ := NewSession(Config{Provider: NewSimProvider(rig...)})
	frames := frameTap(s)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	err := s.SwitchCamera()
	if err == nil {
		t.Fatal("switch to a dead device must fail")
	}
	if !strings.Contains(err.Error(), "previous input restored") {
		t.Errorf("error does not describe the restore: %v", err)
	}
	desc, ok := s.ActiveDevice()
	if !ok || desc.Position != PositionBack || desc.Lens != LensWide {
		t.Errorf("previous input not restored, active = %v (ok=%v)", desc, ok)
	}
	if s.State() != StateRunning {
		t.Fatalf("state = %v, want running", s.State())
	}

	drainFrames(frames)
	f := nextFrame(t, frames)
	if f.Device.Position != PositionBack {
		t.Errorf("post-restore frame from %s, want back", f.Device)
	}
	t.Log("✅ Failed switch restores the previous input, stream intact")
}

// TestCycleExtraLens_Scenario walks the canonical path: standard →
// telephoto → ultrawide → standard.
func TestCycleExtraLens_Scenario(t *testing.T) {
	s := newRunningSession(t, Config{Provider: NewSimProvider(fastRig()...)})

	want := []Lens{LensTelephoto, LensUltraWide, LensWide}
	for i, lens := range want {
		desc, err := s.CycleExtraLens()
		if err != nil {
			t.Fatalf("cycle %d failed: %v", i+1, err)
		}
		if desc.Lens != lens {
			t.Fatalf("cycle %d landed on %s, want %s", i+1, desc.Lens, lens)
		}
		if active, _ := s.ActiveDevice(); active != desc {
			t.Errorf("cycle %d: returned %s but active is %s", i+1, desc, active)
		}
	}
	if s.Stats().LensCycles != 3 {
		t.Errorf("LensCycles = %d, want 3", s.Stats().LensCycles)
	}
	t.Log("✅ Lens cycle: wide → telephoto → ultrawide → wide")
}

// TestCycleExtraLens_WrapAroundLaw verifies lensCount+1 cycles return
// to the standard lens for a rig with a single auxiliary lens.
func TestCycleExtraLens_WrapAroundLaw(t *testing.T) {
	rig := []SimSpec{
		{Position: PositionBack, Lens: LensWide, FPS: 200},
		{Position: PositionBack, Lens: LensTelephoto, FPS: 200},
	}
	s := newRunningSession(t, Config{Provider: NewSimProvider(rig...)})

	first, err := s.CycleExtraLens()
	if err != nil || first.Lens != LensTelephoto {
		t.Fatalf("first cycle = %s, %v; want telephoto", first.Lens, err)
	}
	second, err := s.CycleExtraLens()
	if err != nil || second.Lens != LensWide {
		t.Fatalf("second cycle = %s, %v; want wide", second.Lens, err)
	}
	if z := s.Zoom(); z != MinZoom {
		t.Errorf("zoom after cycling = %v, want %v", z, MinZoom)
	}
	t.Log("✅ Wrap-around after lens count + 1 cycles")
}

// TestCycleExtraLens_UnsupportedWithoutAuxLenses verifies single-lens
// rigs answer ErrLensUnsupported and stay put.
func TestCycleExtraLens_UnsupportedWithoutAuxLenses(t *testing.T) {
	rig := []SimSpec{
		{Position: PositionBack, Lens: LensWide, FPS: 200},
		{Position: PositionFront, Lens: LensWide, FPS: 200},
	}
	s := newRunningSession(t, Config{Provider: NewSimProvider(rig...)})
	before, _ := s.ActiveDevice()

	desc, err := s.CycleExtraLens()
	if !errors.Is(err, ErrLensUnsupported) {
		t.Fatalf("cycle error = %v, want ErrLensUnsupported", err)
	}
	if desc != before {
		t.Errorf("unsupported cycle moved the device: %s → %s", before, desc)
	}
	if s.State() != StateRunning {
		t.Errorf("state = %v, want running", s.State())
	}
}

// TestCycleExtraLens_UnsupportedOnFrontCamera verifies lens cycling
// from the front camera reports unsupported even when the back side
// has auxiliary lenses.
func TestCycleExtraLens_UnsupportedOnFrontCamera(t *testing.T) {
	s := newRunningSession(t, Config{Provider: NewSimProvider(fastRig()...)})
	if err := s.SwitchCamera(); err != nil {
		t.Fatalf("SwitchCamera failed: %v", err)
	}

	if _, err := s.CycleExtraLens(); !errors.Is(err, ErrLensUnsupported) {
		t.Errorf("front cycle error = %v, want ErrLensUnsupported", err)
	}
	desc, _ := s.ActiveDevice()
	if desc.Position != PositionFront {
		t.Errorf("front cycle moved the device to %s", desc)
	}
}

// TestCycleExtraLens_RequiresInput verifies cycling with no active
// device answers ErrNoInput.
func TestCycleExtraLens_RequiresInput(t *testing.T) {
	s, _ := NewSession(Config{Provider: NewSimProvider(fastRig()...)})
	if _, err := s.CycleExtraLens(); !errors.Is(err, ErrNoInput) {
		t.Errorf("cycle error = %v, want ErrNoInput", err)
	}
	if err := s.SwitchCamera(); !errors.Is(err, ErrNoInput) {
		t.Errorf("switch error = %v, want ErrNoInput", err)
	}
}

// TestCycleExtraLens_FailureKeepsPreviousLens verifies a lens whose
// device will not start surfaces ErrExtraLensInput with the previous
// lens restored.
func TestCycleExtraLens_FailureKeepsPreviousLens(t *testing.T) {
	rig := []SimSpec{
		{Position: PositionBack, Lens: LensWide, FPS: 200},
		{Position: PositionBack, Lens: LensTelephoto, FPS: 200,
			StartErr: fmt.Errorf("lens actuator stuck")},
	}
	s := newRunningSession(t, Config{Provider: NewSimProvider(rig...)})

	desc, err := s.CycleExtraLens()
	if !errors.Is(err, ErrExtraLensInput) {
		t.Fatalf("cycle error = %v, want ErrExtraLensInput", err)
	}
	if desc.Lens != LensWide {
		t.Errorf("reported lens = %s, want restored wide", desc.Lens)
	}
	if active, _ := s.ActiveDevice(); active.Lens != LensWide {
		t.Errorf("active lens = %s, want wide", active.Lens)
	}
	if s.State() != StateRunning {
		t.Errorf("state = %v, want running", s.State())
	}
	t.Log("✅ Failed lens swap keeps the previous optics")
}
