package camera

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Orientation is the device's physical orientation, derived from the
// gravity vector. Landscape names follow which edge faces the ground.
type Orientation int

const (
	OrientationPortrait Orientation = iota
	OrientationPortraitUpsideDown
	OrientationLandscapeLeft  // left edge down
	OrientationLandscapeRight // right edge down
)

func (o Orientation) String() string {
	switch o {
	case OrientationPortrait:
		return "portrait"
	case OrientationPortraitUpsideDown:
		return "portrait-upside-down"
	case OrientationLandscapeLeft:
		return "landscape-left"
	case OrientationLandscapeRight:
		return "landscape-right"
	default:
		return fmt.Sprintf("orientation(%d)", int(o))
	}
}

// Gravity is the gravity vector in the device frame: +X toward the
// device's right edge, +Y toward its top edge, +Z out of the screen.
// Magnitude is in g (≈1 at rest).
type Gravity struct {
	X, Y, Z float64
}

// MotionSampler feeds gravity readings to the orientation tracker.
// Implementations wrap an accelerometer/IMU driver; tests script it.
type MotionSampler interface {
	Sample() (Gravity, error)
}

// flatThreshold is the in-plane magnitude below which the device
// counts as lying flat, where the previous orientation holds instead
// of jittering on sensor noise.
const flatThreshold = 0.25

// orientationFromGravity classifies one gravity reading. The larger
// in-plane axis decides portrait vs landscape; the sign decides which
// way. Near-flat readings keep the current orientation.
func orientationFromGravity(g Gravity, current Orientation) Orientation {
	ax, ay := math.Abs(g.X), math.Abs(g.Y)
	if ax < flatThreshold && ay < flatThreshold {
		return current
	}
	if ay >= ax {
		if g.Y < 0 {
			return OrientationPortrait // top edge up, gravity pulls toward -Y
		}
		return OrientationPortraitUpsideDown
	}
	if g.X < 0 {
		return OrientationLandscapeLeft
	}
	return OrientationLandscapeRight
}

// orientationTracker samples gravity at MotionSampleInterval and
// keeps the latest classification. The sole consumer is still-capture
// tagging; the video pipeline never touches it.
type orientationTracker struct {
	sampler  MotionSampler
	interval time.Duration
	current  atomic.Int32

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	samples atomic.Uint64
}

// newOrientationTracker accepts a nil sampler: the tracker then
// stays at portrait and start/stop become no-ops.
func newOrientationTracker(sampler MotionSampler) *orientationTracker {
	t := &orientationTracker{
		sampler:  sampler,
		interval: MotionSampleInterval,
	}
	t.current.Store(int32(OrientationPortrait))
	return t
}

func (t *orientationTracker) orientation() Orientation {
	return Orientation(t.current.Load())
}

// start begins sampling. Restartable: a stopped tracker keeps its
// last orientation and resumes from it.
func (t *orientationTracker) start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sampler == nil || t.running {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.running = true
	t.wg.Add(1)
	go t.loop(runCtx)
}

// stop halts the sensor subscription and waits for the sampling
// goroutine. Idempotent; no samples land after stop returns.
func (t *orientationTracker) stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	cancel := t.cancel
	t.mu.Unlock()

	cancel()
	t.wg.Wait()
}

func (t *orientationTracker) loop(ctx context.Context) {
	defer t.wg.Done()
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g, err := t.sampler.Sample()
			if err != nil {
				continue // sensor hiccup: keep the last classification
			}
			t.samples.Add(1)
			cur := Orientation(t.current.Load())
			t.current.Store(int32(orientationFromGravity(g, cur)))
		}
	}
}
