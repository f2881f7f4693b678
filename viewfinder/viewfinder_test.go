package viewfinder

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/visiona/lumen/pixel"
)

// captureSink records deliveries without releasing buffers, so tests
// can inspect reference counts afterward.
type captureSink struct {
	mu         sync.Mutex
	deliveries []delivery
	ch         chan delivery
}

type delivery struct {
	frame Frame
	tr    Transform
}

func newCaptureSink() *captureSink {
	return &captureSink{ch: make(chan delivery, 64)}
}

func (s *captureSink) Display(f Frame, tr Transform) {
	s.mu.Lock()
	s.deliveries = append(s.deliveries, delivery{f, tr})
	s.mu.Unlock()
	select {
	case s.ch <- delivery{f, tr}:
	default:
	}
}

func (s *captureSink) wait(t *testing.T) delivery {
	t.Helper()
	select {
	case d := <-s.ch:
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a delivery")
		return delivery{}
	}
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.deliveries)
}

// fakeEngine lets tests script the filter stage.
type fakeEngine struct {
	active   atomic.Bool
	prepares atomic.Uint64
	lastHint atomic.Int64
	render   func(*pixel.Buffer) *pixel.Buffer
}

func (e *fakeEngine) Active() bool { return e.active.Load() }

func (e *fakeEngine) Prepare(_ pixel.Descriptor, hint int) {
	e.prepares.Add(1)
	e.lastHint.Store(int64(hint))
}

func (e *fakeEngine) Render(in *pixel.Buffer) *pixel.Buffer {
	if e.render == nil {
		return nil
	}
	return e.render(in)
}

func testFrame(t *testing.T, seq uint64) Frame {
	t.Helper()
	buf := pixel.NewBuffer(pixel.Descriptor{Width: 2, Height: 2, Format: pixel.RGBA})
	if buf == nil {
		t.Fatal("buffer allocation failed")
	}
	return Frame{Buffer: buf, Seq: seq, Timestamp: time.Now()}
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// TestPassThrough_NoEngine verifies the pass-through law: with no
// filter stage at all, the sink receives the exact submitted buffer.
func TestPassThrough_NoEngine(t *testing.T) {
	sink := newCaptureSink()
	pipe, err := New(Config{}, nil, sink)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := pipe.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer pipe.Stop()

	f := testFrame(t, 1)
	pipe.Submit(f)

	got := sink.wait(t)
	if got.frame.Buffer != f.Buffer {
		t.Error("pass-through delivered a different buffer than submitted")
	}
	if got.frame.Seq != 1 {
		t.Errorf("sequence lost in transit: %d", got.frame.Seq)
	}
	if pipe.Stats().PassThrough != 1 {
		t.Errorf("expected 1 pass-through, got %d", pipe.Stats().PassThrough)
	}
	t.Log("✅ Unfiltered frames reach the sink unchanged")
}

// TestPassThrough_InactiveEngineSkipsPrepare verifies an inactive
// filter costs nothing: no Prepare, no Render, same buffer out.
func TestPassThrough_InactiveEngineSkipsPrepare(t *testing.T) {
	engine := &fakeEngine{}
	sink := newCaptureSink()
	pipe, _ := New(Config{}, engine, sink)
	if err := pipe.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer pipe.Stop()

	f := testFrame(t, 7)
	pipe.Submit(f)
	got := sink.wait(t)

	if got.frame.Buffer != f.Buffer {
		t.Error("inactive engine must not touch the buffer")
	}
	if engine.prepares.Load() != 0 {
		t.Errorf("Prepare called %d times for an inactive filter", engine.prepares.Load())
	}
}

// TestFiltered_DeliversNewBufferAndReleasesInput verifies the styled
// path: the sink gets the engine's output, and the input reference is
// released by the pipeline.
func TestFiltered_DeliversNewBufferAndReleasesInput(t *testing.T) {
	styled := pixel.NewBuffer(pixel.Descriptor{Width: 2, Height: 2, Format: pixel.RGBA})
	engine := &fakeEngine{render: func(*pixel.Buffer) *pixel.Buffer { return styled }}
	engine.active.Store(true)

	sink := newCaptureSink()
	pipe, _ := New(Config{BufferCount: 5}, engine, sink)
	if err := pipe.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer pipe.Stop()

	f := testFrame(t, 1)
	pipe.Submit(f)
	got := sink.wait(t)

	if got.frame.Buffer != styled {
		t.Error("sink did not receive the styled buffer")
	}
	if f.Buffer.Refs() != 0 {
		t.Errorf("input buffer still holds %d refs; pipeline must release it", f.Buffer.Refs())
	}
	if engine.lastHint.Load() != 5 {
		t.Errorf("Prepare hint = %d, want configured 5", engine.lastHint.Load())
	}
	if pipe.Stats().Filtered != 1 {
		t.Errorf("expected 1 filtered delivery, got %d", pipe.Stats().Filtered)
	}
	t.Log("✅ Styled frames replace their inputs cleanly")
}

// TestRenderDecline_FallsBackToPassThrough verifies a nil render
// (unprepared engine, exhausted pool) degrades to delivering the
// original frame instead of dropping it.
func TestRenderDecline_FallsBackToPassThrough(t *testing.T) {
	engine := &fakeEngine{} // render func nil → always declines
	engine.active.Store(true)
	sink := newCaptureSink()
	pipe, _ := New(Config{}, engine, sink)
	if err := pipe.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer pipe.Stop()

	f := testFrame(t, 3)
	pipe.Submit(f)
	got := sink.wait(t)

	if got.frame.Buffer != f.Buffer {
		t.Error("fallback must deliver the original buffer")
	}
	if got.frame.Buffer.Refs() != 1 {
		t.Errorf("delivered buffer refs = %d, want 1 (owned by sink)", got.frame.Buffer.Refs())
	}
	if pipe.Stats().RenderFallbacks != 1 {
		t.Errorf("expected 1 render fallback, got %d", pipe.Stats().RenderFallbacks)
	}
	t.Log("✅ Declined renders pass the original through")
}

// TestMailbox_LatestFrameWins verifies the overwrite contract: with
// no consumer running, later submissions replace earlier ones and the
// replaced buffers are released.
func TestMailbox_LatestFrameWins(t *testing.T) {
	sink := newCaptureSink()
	pipe, _ := New(Config{}, nil, sink)

	a, b, c := testFrame(t, 1), testFrame(t, 2), testFrame(t, 3)
	pipe.Submit(a)
	pipe.Submit(b)
	pipe.Submit(c)

	if got := pipe.Stats().Dropped; got != 2 {
		t.Fatalf("expected 2 overwrites, got %d", got)
	}
	if a.Buffer.Refs() != 0 || b.Buffer.Refs() != 0 {
		t.Error("overwritten frames were not released")
	}
	if c.Buffer.Refs() != 1 {
		t.Error("pending frame lost its reference")
	}

	// Start late: only the survivor is delivered.
	if err := pipe.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer pipe.Stop()
	got := sink.wait(t)
	if got.frame.Seq != 3 {
		t.Errorf("delivered seq %d, want 3 (latest)", got.frame.Seq)
	}
	t.Log("✅ Mailbox keeps exactly the latest frame")
}

// TestSubmit_NeverBlocks verifies the producer is never slowed down:
// a thousand submissions with no consumer complete immediately.
func TestSubmit_NeverBlocks(t *testing.T) {
	pipe, _ := New(Config{}, nil, newCaptureSink())

	start := time.Now()
	const n = 1000
	for i := 0; i < n; i++ {
		pipe.Submit(testFrame(t, uint64(i)))
	}
	elapsed := time.Since(start)

	if elapsed > time.Second {
		t.Errorf("submissions took %v; Submit must not block", elapsed)
	}
	if got := pipe.Stats().Dropped; got != n-1 {
		t.Errorf("expected %d drops, got %d", n-1, got)
	}
	t.Logf("✅ %d submissions in %v, all but the latest dropped", n, elapsed)
}

// TestStop_Idempotent verifies Stop before Start, after Start, and
// repeated Stops are all safe no-ops.
func TestStop_Idempotent(t *testing.T) {
	pipe, _ := New(Config{}, nil, newCaptureSink())
	if err := pipe.Stop(); err != nil {
		t.Errorf("Stop before Start failed: %v", err)
	}
	if err := pipe.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := pipe.Stop(); err != nil {
		t.Errorf("first Stop failed: %v", err)
	}
	if err := pipe.Stop(); err != nil {
		t.Errorf("second Stop failed: %v", err)
	}
	t.Log("✅ Stop is idempotent")
}

// TestStop_HaltsDeliveryAndReleasesLateFrames verifies no sink
// callback fires after Stop returns and late submissions are released
// rather than leaked.
func TestStop_HaltsDeliveryAndReleasesLateFrames(t *testing.T) {
	sink := newCaptureSink()
	pipe, _ := New(Config{}, nil, sink)
	if err := pipe.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	pipe.Submit(testFrame(t, 1))
	sink.wait(t)

	if err := pipe.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	late := testFrame(t, 2)
	pipe.Submit(late)
	if late.Buffer.Refs() != 0 {
		t.Error("late frame not released after Stop")
	}
	time.Sleep(50 * time.Millisecond)
	if sink.count() != 1 {
		t.Errorf("sink received %d deliveries, want 1 (none after Stop)", sink.count())
	}
	t.Log("✅ Stop is a hard stop for deliveries")
}

// TestMalformedFrame_SkippedSilently verifies a frame with no buffer
// is absorbed without delivery, escalation, or pipeline damage.
func TestMalformedFrame_SkippedSilently(t *testing.T) {
	sink := newCaptureSink()
	pipe, _ := New(Config{}, nil, sink)
	if err := pipe.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer pipe.Stop()

	pipe.Submit(Frame{Seq: 1}) // nil buffer
	waitUntil(t, "skip counter", func() bool { return pipe.Stats().Skipped == 1 })

	pipe.Submit(testFrame(t, 2))
	got := sink.wait(t)
	if got.frame.Seq != 2 {
		t.Errorf("delivered seq %d, want 2", got.frame.Seq)
	}
	if sink.count() != 1 {
		t.Errorf("malformed frame reached the sink (count=%d)", sink.count())
	}
	t.Log("✅ Malformed frames vanish without a trace at the sink")
}

// TestSetTransform_AttachedToDeliveries verifies the cached transform
// rides along with every delivery and updates take effect on the next
// frame.
func TestSetTransform_AttachedToDeliveries(t *testing.T) {
	sink := newCaptureSink()
	pipe, _ := New(Config{}, nil, sink)
	if err := pipe.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer pipe.Stop()

	pipe.SetTransform(Transform{Rotation: pixel.Rotate90, Mirrored: true})
	pipe.Submit(testFrame(t, 1))
	if got := sink.wait(t).tr; got.Rotation != pixel.Rotate90 || !got.Mirrored {
		t.Errorf("delivery carried transform %+v", got)
	}

	pipe.SetTransform(Transform{Rotation: pixel.Rotate270})
	pipe.Submit(testFrame(t, 2))
	if got := sink.wait(t).tr; got.Rotation != pixel.Rotate270 || got.Mirrored {
		t.Errorf("updated transform not applied: %+v", got)
	}
}

// TestStart_SecondCallFails verifies the one-shot start contract.
func TestStart_SecondCallFails(t *testing.T) {
	pipe, _ := New(Config{}, nil, newCaptureSink())
	if err := pipe.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer pipe.Stop()
	if err := pipe.Start(context.Background()); err == nil {
		t.Error("second Start must fail")
	}
}

// TestNew_RequiresSink verifies construction validation.
func TestNew_RequiresSink(t *testing.T) {
	if _, err := New(Config{}, nil, nil); err == nil {
		t.Error("New accepted a nil sink")
	}
}
