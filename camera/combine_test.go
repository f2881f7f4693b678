package camera

import (
	"strings"
	"testing"
)

// TestCombineProviders_MergesRigs verifies device lists concatenate
// and opens route to the owning backend.
func TestCombineProviders_MergesRigs(t *testing.T) {
	backA := NewSimProvider(SimSpec{ID: "a:back", Position: PositionBack, Lens: LensWide, FPS: 200})
	frontB := NewSimProvider(SimSpec{ID: "b:front", Position: PositionFront, Lens: LensWide, FPS: 200})
	combined := CombineProviders(backA, nil, frontB)

	devices := combined.Devices()
	if len(devices) != 2 {
		t.Fatalf("combined rig has %d devices, want 2", len(devices))
	}
	if devices[0].ID != "a:back" || devices[1].ID != "b:front" {
		t.Errorf("rig order %v, want declaration order", devices)
	}

	s := newRunningSession(t, Config{Provider: combined})
	if err := s.SwitchCamera(); err != nil {
		t.Fatalf("cross-backend switch failed: %v", err)
	}
	if backA.OpenCalls() != 1 || frontB.OpenCalls() != 1 {
		t.Errorf("opens routed wrong: a=%d b=%d", backA.OpenCalls(), frontB.OpenCalls())
	}
	t.Log("✅ Combined providers behave as one rig")
}

// TestCombineProviders_UnknownDevice verifies misses name the device.
func TestCombineProviders_UnknownDevice(t *testing.T) {
	combined := CombineProviders(NewSimProvider(fastRig()...))
	if _, err := combined.Open("sim:nowhere"); err == nil || !strings.Contains(err.Error(), "sim:nowhere") {
		t.Errorf("unknown open error = %v, want device named", err)
	}
}
