package camera

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/visiona/lumen/pixel"
)

type stillResult struct {
	buf *pixel.Buffer
	err error
}

// stillCollector funnels completion callbacks into a channel so tests
// can assert exactly-once delivery.
func stillCollector() (CompletionFunc, chan stillResult) {
	ch := make(chan stillResult, 4)
	return func(buf *pixel.Buffer, err error) {
		ch <- stillResult{buf: buf, err: err}
	}, ch
}

func awaitStill(t *testing.T, ch chan stillResult) stillResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for still completion")
		return stillResult{}
	}
}

func assertNoMoreCompletions(t *testing.T, ch chan stillResult) {
	t.Helper()
	select {
	case r := <-ch:
		t.Fatalf("completion fired more than once: %+v", r)
	case <-time.After(100 * time.Millisecond):
	}
}

func rgbaAt(t *testing.T, buf *pixel.Buffer, x, y int) [4]byte {
	t.Helper()
	d := buf.Descriptor()
	if x < 0 || y < 0 || x >= d.Width || y >= d.Height {
		t.Fatalf("pixel (%d,%d) outside %dx%d", x, y, d.Width, d.Height)
	}
	i := (y*d.Width + x) * 4
	data := buf.Data()
	return [4]byte{data[i], data[i+1], data[i+2], data[i+3]}
}

// TestCaptureImage_NoInputFastFail verifies capture with no active
// device completes synchronously with ErrNoInput and never touches
// hardware.
func TestCaptureImage_NoInputFastFail(t *testing.T) {
	provider := NewSimProvider(fastRig()...)
	s, _ := NewSession(Config{Provider: provider})

	var delivered bool
	var captureErr error
	s.CaptureImage(context.Background(), func(buf *pixel.Buffer, err error) {
		delivered = true
		captureErr = err
		if buf != nil {
			t.Error("failed capture delivered a buffer")
		}
	})

	// No goroutine involved: the callback must already have fired.
	if !delivered {
		t.Fatal("completion did not fire synchronously")
	}
	if !errors.Is(captureErr, ErrNoInput) {
		t.Errorf("capture error = %v, want ErrNoInput", captureErr)
	}
	if n := provider.OpenCalls(); n != 0 {
		t.Errorf("capture opened hardware %d times", n)
	}
	if n := provider.StillCalls(); n != 0 {
		t.Errorf("capture reached still hardware %d times", n)
	}
	if s.Stats().StillsFailed != 1 {
		t.Errorf("StillsFailed = %d, want 1", s.Stats().StillsFailed)
	}
	t.Log("✅ No-input capture fails fast with zero hardware calls")
}

// TestCaptureImage_PortraitRotatesToUpright verifies the default
// portrait pose turns the landscape sensor image 90°: the corrected
// still has swapped dimensions and remapped pixels.
func TestCaptureImage_PortraitRotatesToUpright(t *testing.T) {
	s := newRunningSession(t, Config{Provider: NewSimProvider(fastRig()...)})

	fn, ch := stillCollector()
	s.CaptureImage(context.Background(), fn)
	r := awaitStill(t, ch)
	if r.err != nil {
		t.Fatalf("capture failed: %v", r.err)
	}
	defer r.buf.Release()

	// Sensor photo is 128×96; upright portrait output is 96×128.
	d := r.buf.Descriptor()
	if d.Width != 96 || d.Height != 128 {
		t.Fatalf("corrected still is %dx%d, want 96x128", d.Width, d.Height)
	}
	if d.Format != pixel.RGBA {
		t.Errorf("corrected format = %v, want RGBA", d.Format)
	}
	if r.buf.Refs() != 1 {
		t.Errorf("delivered still refs = %d, want 1", r.buf.Refs())
	}

	// The sensor gradient stores the source row in the G channel, so
	// a clockwise quarter turn makes G count down along output X.
	if g := rgbaAt(t, r.buf, 0, 0)[1]; g != 95 {
		t.Errorf("pixel (0,0) G = %d, want 95 (bottom sensor row)", g)
	}
	if g := rgbaAt(t, r.buf, 95, 0)[1]; g != 0 {
		t.Errorf("pixel (95,0) G = %d, want 0 (top sensor row)", g)
	}

	assertNoMoreCompletions(t, ch)
	if s.Stats().StillsCaptured != 1 {
		t.Errorf("StillsCaptured = %d, want 1", s.Stats().StillsCaptured)
	}
	t.Log("✅ Portrait still delivered upright, exactly once")
}

// TestCaptureImage_SensorNativePoseUntouched verifies a right-edge-
// down pose needs no rotation: sensor geometry passes through.
func TestCaptureImage_SensorNativePoseUntouched(t *testing.T) {
	sampler := &scriptedSampler{g: Gravity{X: 1}}
	s := newRunningSession(t, Config{
		Provider: NewSimProvider(fastRig()...),
		Motion:   sampler,
	})
	waitUntil(t, "landscape-right", func() bool { return s.Orientation() == OrientationLandscapeRight })

	fn, ch := stillCollector()
	s.CaptureImage(context.Background(), fn)
	r := awaitStill(t, ch)
	if r.err != nil {
		t.Fatalf("capture failed: %v", r.err)
	}
	defer r.buf.Release()

	d := r.buf.Descriptor()
	if d.Width != 128 || d.Height != 96 {
		t.Errorf("corrected still is %dx%d, want sensor-native 128x96", d.Width, d.Height)
	}
	// Unrotated: G still counts up along output Y.
	if g := rgbaAt(t, r.buf, 0, 17)[1]; g != 17 {
		t.Errorf("pixel (0,17) G = %d, want 17", g)
	}
}

// TestCaptureImage_FrontStillMirrored verifies front-camera stills
// are flipped after rotation so they match the preview the user saw.
func TestCaptureImage_FrontStillMirrored(t *testing.T) {
	s := newRunningSession(t, Config{Provider: NewSimProvider(fastRig()...)})
	if err := s.SwitchCamera(); err != nil {
		t.Fatalf("SwitchCamera failed: %v", err)
	}

	fn, ch := stillCollector()
	s.CaptureImage(context.Background(), fn)
	r := awaitStill(t, ch)
	if r.err != nil {
		t.Fatalf("capture failed: %v", r.err)
	}
	defer r.buf.Release()

	d := r.buf.Descriptor()
	if d.Width != 96 || d.Height != 128 {
		t.Fatalf("front still is %dx%d, want 96x128", d.Width, d.Height)
	}
	// Mirroring reverses the portrait G gradient: G counts up along
	// output X instead of down (compare the back-camera test).
	if g := rgbaAt(t, r.buf, 0, 0)[1]; g != 0 {
		t.Errorf("pixel (0,0) G = %d, want 0 after mirror", g)
	}
	if g := rgbaAt(t, r.buf, 95, 0)[1]; g != 95 {
		t.Errorf("pixel (95,0) G = %d, want 95 after mirror", g)
	}
	t.Log("✅ Front still mirrored to match the preview")
}

// TestCaptureImage_CancelledContext verifies a dead context fails the
// capture exactly once with the context's reason.
func TestCaptureImage_CancelledContext(t *testing.T) {
	s := newRunningSession(t, Config{Provider: NewSimProvider(fastRig()...)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fn, ch := stillCollector()
	s.CaptureImage(ctx, fn)

	r := awaitStill(t, ch)
	if !errors.Is(r.err, context.Canceled) {
		t.Errorf("capture error = %v, want context.Canceled", r.err)
	}
	if r.buf != nil {
		t.Error("failed capture delivered a buffer")
	}
	assertNoMoreCompletions(t, ch)
	if s.Stats().StillsFailed != 1 {
		t.Errorf("StillsFailed = %d, want 1", s.Stats().StillsFailed)
	}
}

// TestCaptureImage_CompletesAcrossStop verifies an in-flight capture
// still resolves its callback when the session stops underneath it.
func TestCaptureImage_CompletesAcrossStop(t *testing.T) {
	s := newRunningSession(t, Config{Provider: NewSimProvider(fastRig()...)})

	fn, ch := stillCollector()
	s.CaptureImage(context.Background(), fn)
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	r := awaitStill(t, ch)
	if r.buf != nil {
		r.buf.Release()
	}
	assertNoMoreCompletions(t, ch)
	t.Log("✅ Capture resolves exactly once even across Stop")
}

// TestCaptureImage_NilCallback verifies a nil completion is a safe
// fire-and-forget.
func TestCaptureImage_NilCallback(t *testing.T) {
	s := newRunningSession(t, Config{Provider: NewSimProvider(fastRig()...)})
	s.CaptureImage(context.Background(), nil)
	waitUntil(t, "still completion", func() bool {
		st := s.Stats()
		return st.StillsCaptured+st.StillsFailed > 0
	})
}

// TestUprightTransform_Mapping checks the orientation → correction
// table for both camera positions.
func TestUprightTransform_Mapping(t *testing.T) {
	cases := []struct {
		o        Orientation
		pos      Position
		wantRot  pixel.Rotation
		wantFlip bool
	}{
		{OrientationLandscapeRight, PositionBack, pixel.Rotate0, false},
		{OrientationPortrait, PositionBack, pixel.Rotate90, false},
		{OrientationLandscapeLeft, PositionBack, pixel.Rotate180, false},
		{OrientationPortraitUpsideDown, PositionBack, pixel.Rotate270, false},
		{OrientationPortrait, PositionFront, pixel.Rotate90, true},
		{OrientationLandscapeLeft, PositionFront, pixel.Rotate180, true},
	}
	for _, tc := range cases {
		rot, flip := UprightTransform(tc.o, tc.pos)
		if rot != tc.wantRot || flip != tc.wantFlip {
			t.Errorf("UprightTransform(%s, %s) = (%s, %v), want (%s, %v)",
				tc.o, tc.pos, rot, flip, tc.wantRot, tc.wantFlip)
		}
	}
}

// TestCorrectStill_LeavesInputUntouched verifies correction builds a
// fresh buffer and does not consume or mutate the raw capture.
func TestCorrectStill_LeavesInputUntouched(t *testing.T) {
	raw := pixel.NewBuffer(pixel.Descriptor{Width: 3, Height: 2, Format: pixel.RGBA})
	if raw == nil {
		t.Fatal("allocation failed")
	}
	defer raw.Release()
	fillGradient(raw, 0)
	before := rgbaAt(t, raw, 2, 1)

	out := correctStill(raw, OrientationPortrait, PositionFront)
	if out == nil {
		t.Fatal("correction failed")
	}
	defer out.Release()

	if out.Descriptor().Width != 2 || out.Descriptor().Height != 3 {
		t.Errorf("corrected dims %dx%d, want 2x3", out.Descriptor().Width, out.Descriptor().Height)
	}
	if raw.Refs() != 1 {
		t.Errorf("raw refs = %d, want 1", raw.Refs())
	}
	if got := rgbaAt(t, raw, 2, 1); got != before {
		t.Error("correction mutated the raw capture")
	}
	// Rotate90 then mirror maps src(x,y) → dst(y,x).
	if got, want := rgbaAt(t, out, 1, 2), rgbaAt(t, raw, 2, 1); got != want {
		t.Errorf("dst(1,2) = %v, want src(2,1) = %v", got, want)
	}
}
