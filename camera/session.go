package camera

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Config carries the session's immutable construction parameters.
type Config struct {
	// Provider enumerates and opens devices. Required.
	Provider Provider
	// Motion feeds orientation tracking. Optional: without it the
	// session reports portrait and stills get portrait correction.
	Motion MotionSampler
}

// Stats is a point-in-time snapshot of session state and counters.
type Stats struct {
	State           SessionState
	Failure         string // reason when State == StateFailed
	ActiveDevice    string // descriptor ID, "" when no input
	Position        Position
	Lens            Lens
	Zoom            float64
	Flash           FlashMode
	Orientation     Orientation
	FramesForwarded uint64
	FramesDiscarded uint64 // streamed with no handler attached
	Switches        uint64
	LensCycles      uint64
	ZoomCommits     uint64
	FocusApplied    uint64
	FocusIgnored    uint64
	StillsCaptured  uint64
	StillsFailed    uint64
}

// Session is the device session controller. It owns exactly one
// active device at a time (or explicitly none), pumps its frames to
// the registered handler, and serializes every hardware
// reconfiguration behind the device-configuration lock.
//
// Thread-safety: all exported methods are safe for concurrent use.
// Reconfiguration methods (Start, Stop, SwitchCamera, CycleExtraLens,
// SetZoom, Focus) serialize on the configuration lock; read accessors
// never block behind it.
type Session struct {
	provider Provider

	// configMu is the device-configuration lock: held for the full
	// duration of any hardware reconfiguration so no frame can be
	// attributed to a half-swapped state.
	configMu   sync.Mutex
	active     Device // nil = no input, checked before every device call
	descriptor DeviceDescriptor
	zoom       float64
	flash      FlashMode
	lastFocus  FocusRequest
	runCtx     context.Context

	// viewMu mirrors the fields readers need, so accessors never wait
	// behind a reconfiguration in progress.
	viewMu       sync.Mutex
	viewDesc     DeviceDescriptor
	viewHasInput bool
	viewZoom     float64
	viewFlash    FlashMode

	stateMu  sync.Mutex
	state    SessionState
	stateErr error

	handlerMu sync.Mutex
	handler   FrameHandler

	tracker *orientationTracker

	pumpWg   sync.WaitGroup
	pumpStop chan struct{}

	framesForwarded atomic.Uint64
	framesDiscarded atomic.Uint64
	switches        atomic.Uint64
	lensCycles      atomic.Uint64
	zoomCommits     atomic.Uint64
	focusApplied    atomic.Uint64
	focusIgnored    atomic.Uint64
	stillsCaptured  atomic.Uint64
	stillsFailed    atomic.Uint64
}

// NewSession builds an idle session. No hardware is touched until
// Start.
func NewSession(cfg Config) (*Session, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("camera: provider is required")
	}
	s := &Session{
		provider: cfg.Provider,
		state:    StateIdle,
		zoom:     MinZoom,
		viewZoom: MinZoom,
		flash:    FlashOff,
		tracker:  newOrientationTracker(cfg.Motion),
	}
	return s, nil
}

// SetFrameHandler wires the consumer of streamed frames, typically
// the viewfinder's Submit. Replaceable at any time; a nil handler
// discards (and releases) frames.
func (s *Session) SetFrameHandler(fn FrameHandler) {
	s.handlerMu.Lock()
	s.handler = fn
	s.handlerMu.Unlock()
}

// Start transitions idle or stopped to running: selects a device if
// none is remembered (back wide preferred), opens and starts it,
// starts the frame pump and the orientation tracker.
//
// Failure classification: permission errors surface as
// ErrNotAuthorized, everything else as ErrConfigurationFailed (or
// ErrNoInput when the provider has no devices at all). Either way the
// session lands in StateFailed, terminal for this instance.
func (s *Session) Start(ctx context.Context) error {
	s.stateMu.Lock()
	switch s.state {
	case StateRunning:
		s.stateMu.Unlock()
		return fmt.Errorf("camera: session already running")
	case StateFailed:
		err := s.stateErr
		s.stateMu.Unlock()
		return fmt.Errorf("camera: session failed (%v); build a new session", err)
	}
	s.stateMu.Unlock()

	s.configMu.Lock()
	defer s.configMu.Unlock()
	s.runCtx = ctx

	if s.active == nil {
		desc := s.descriptor
		if desc == (DeviceDescriptor{}) {
			var ok bool
			desc, ok = s.pickInitialDevice()
			if !ok {
				s.fail(ErrNoInput)
				return ErrNoInput
			}
		}
		dev, err := s.openAndStartLocked(desc)
		if err != nil {
			err = classifySetupErr(err)
			s.fail(err)
			return err
		}
		s.active = dev
		s.descriptor = desc
		s.zoom = MinZoom
		s.publishViewLocked()
		s.startPumpLocked(dev)
	}

	s.tracker.start(ctx)
	s.setState(StateRunning, nil)
	return nil
}

// Stop halts streaming, the frame pump and the orientation tracker.
// Idempotent: calling it from stopped (or before Start) is a no-op.
// After Stop returns no further frame callbacks fire; an in-flight
// still capture completes or fails independently.
func (s *Session) Stop() error {
	s.stateMu.Lock()
	if s.state != StateRunning {
		s.stateMu.Unlock()
		return nil
	}
	s.stateMu.Unlock()

	s.configMu.Lock()
	defer s.configMu.Unlock()

	s.tracker.stop()
	err := s.stopActiveLocked()
	s.publishViewLocked()
	s.setState(StateStopped, nil)
	if err != nil {
		return fmt.Errorf("camera: stop device: %w", err)
	}
	return nil
}

// SetZoom clamps the requested factor into [MinZoom, min(MaxZoom,
// hardware max)], applies it under the configuration lock, and
// commits it as the baseline for subsequent pinch deltas. Returns the
// committed factor.
func (s *Session) SetZoom(requested float64) (float64, error) {
	s.configMu.Lock()
	defer s.configMu.Unlock()

	if s.active == nil {
		return s.zoom, ErrNoInput
	}
	committed := clampZoom(requested, s.active.MaxZoom())
	if err := s.active.SetZoom(committed); err != nil {
		return s.zoom, fmt.Errorf("camera: apply zoom %.2f: %w", committed, err)
	}
	s.zoom = committed
	s.zoomCommits.Add(1)
	s.publishViewLocked()
	return committed, nil
}

// Zoom returns the committed zoom baseline.
func (s *Session) Zoom() float64 {
	s.viewMu.Lock()
	defer s.viewMu.Unlock()
	return s.viewZoom
}

// Focus applies a one-shot focus point-of-interest and reports
// whether it was applied. Ignored, without error, when no input is
// active or the device has no focus control. A later request
// supersedes; nothing queues.
func (s *Session) Focus(pt Point) bool {
	s.configMu.Lock()
	defer s.configMu.Unlock()

	if s.active == nil || !s.active.SupportsFocus() {
		s.focusIgnored.Add(1)
		return false
	}
	pt = pt.clamped()
	if err := s.active.Focus(pt); err != nil {
		s.focusIgnored.Add(1)
		return false
	}
	s.lastFocus = FocusRequest{Point: pt, Timestamp: time.Now()}
	s.focusApplied.Add(1)
	return true
}

// SetFlash stores the flash mode used by subsequent still captures.
func (s *Session) SetFlash(mode FlashMode) {
	s.configMu.Lock()
	s.flash = mode
	s.publishViewLocked()
	s.configMu.Unlock()
}

// Flash returns the current flash mode.
func (s *Session) Flash() FlashMode {
	s.viewMu.Lock()
	defer s.viewMu.Unlock()
	return s.viewFlash
}

// State returns the session's lifecycle state.
func (s *Session) State() SessionState {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

// Err returns the failure reason when State is StateFailed.
func (s *Session) Err() error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.stateErr
}

// ActiveDevice returns the current descriptor and whether a live
// input backs it. ok is false before the first Start and after Stop.
func (s *Session) ActiveDevice() (DeviceDescriptor, bool) {
	s.viewMu.Lock()
	defer s.viewMu.Unlock()
	return s.viewDesc, s.viewHasInput
}

// Orientation returns the last known device orientation.
func (s *Session) Orientation() Orientation {
	return s.tracker.orientation()
}

// Stats returns a snapshot of session state and counters.
func (s *Session) Stats() Stats {
	s.stateMu.Lock()
	state := s.state
	failure := ""
	if s.stateErr != nil {
		failure = s.stateErr.Error()
	}
	s.stateMu.Unlock()

	s.viewMu.Lock()
	desc := s.viewDesc
	hasInput := s.viewHasInput
	zoom := s.viewZoom
	flash := s.viewFlash
	s.viewMu.Unlock()

	activeID := ""
	if hasInput {
		activeID = desc.ID
	}
	return Stats{
		State:           state,
		Failure:         failure,
		ActiveDevice:    activeID,
		Position:        desc.Position,
		Lens:            desc.Lens,
		Zoom:            zoom,
		Flash:           flash,
		Orientation:     s.tracker.orientation(),
		FramesForwarded: s.framesForwarded.Load(),
		FramesDiscarded: s.framesDiscarded.Load(),
		Switches:        s.switches.Load(),
		LensCycles:      s.lensCycles.Load(),
		ZoomCommits:     s.zoomCommits.Load(),
		FocusApplied:    s.focusApplied.Load(),
		FocusIgnored:    s.focusIgnored.Load(),
		StillsCaptured:  s.stillsCaptured.Load(),
		StillsFailed:    s.stillsFailed.Load(),
	}
}

// --- internals (configMu held unless noted) ---

// openAndStartLocked opens desc and starts streaming, cleaning up the
// half-open device on failure.
func (s *Session) openAndStartLocked(desc DeviceDescriptor) (Device, error) {
	dev, err := s.provider.Open(desc.ID)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", desc.ID, err)
	}
	if err := dev.Start(s.runCtx); err != nil {
		dev.Stop()
		return nil, fmt.Errorf("start %s: %w", desc.ID, err)
	}
	return dev, nil
}

// stopActiveLocked halts the pump, stops the device, and drops the
// handle. The pump is signalled before the device stops so a closing
// frame channel is recognized as deliberate.
func (s *Session) stopActiveLocked() error {
	if s.active == nil {
		return nil
	}
	if s.pumpStop != nil {
		close(s.pumpStop)
		s.pumpStop = nil
	}
	err := s.active.Stop()
	s.pumpWg.Wait()
	s.active = nil
	return err
}

// startPumpLocked spawns the forwarding goroutine for dev.
func (s *Session) startPumpLocked(dev Device) {
	stop := make(chan struct{})
	s.pumpStop = stop
	s.pumpWg.Add(1)
	go s.pump(dev, stop)
}

// pump forwards frames from one device until a deliberate halt or
// source death. Runs outside configMu.
func (s *Session) pump(dev Device, stop chan struct{}) {
	defer s.pumpWg.Done()
	frames := dev.Frames()
	for {
		select {
		case <-stop:
			return
		case f, ok := <-frames:
			if !ok {
				// Distinguish a deliberate halt (stop already
				// signalled) from the source dying under us.
				select {
				case <-stop:
				default:
					s.sourceFailed(dev)
				}
				return
			}
			s.forward(f)
		}
	}
}

// forward hands one frame to the registered handler, or releases it
// when none is attached.
func (s *Session) forward(f Frame) {
	s.handlerMu.Lock()
	h := s.handler
	s.handlerMu.Unlock()
	if h == nil {
		if f.Buffer != nil {
			f.Buffer.Release()
		}
		s.framesDiscarded.Add(1)
		return
	}
	h(f)
	s.framesForwarded.Add(1)
}

// sourceFailed marks the session failed after its frame source ended
// without a deliberate stop. Runs on the pump goroutine.
func (s *Session) sourceFailed(dev Device) {
	err := dev.Err()
	if err == nil {
		err = ErrConfigurationFailed
	}
	s.fail(fmt.Errorf("camera: frame source %s terminated: %w", dev.Descriptor().ID, err))
}

// pickInitialDevice prefers the back wide camera, then anything.
func (s *Session) pickInitialDevice() (DeviceDescriptor, bool) {
	devices := s.provider.Devices()
	if len(devices) == 0 {
		return DeviceDescriptor{}, false
	}
	for _, d := range devices {
		if d.Position == PositionBack && d.Lens == LensWide {
			return d, true
		}
	}
	return devices[0], true
}

// findDevice scans the provider for a position/lens pair.
func (s *Session) findDevice(pos Position, lens Lens) (DeviceDescriptor, bool) {
	for _, d := range s.provider.Devices() {
		if d.Position == pos && d.Lens == lens {
			return d, true
		}
	}
	return DeviceDescriptor{}, false
}

// publishViewLocked mirrors reader-visible fields out from under the
// configuration lock.
func (s *Session) publishViewLocked() {
	s.viewMu.Lock()
	s.viewDesc = s.descriptor
	s.viewHasInput = s.active != nil
	s.viewZoom = s.zoom
	s.viewFlash = s.flash
	s.viewMu.Unlock()
}

func (s *Session) setState(state SessionState, err error) {
	s.stateMu.Lock()
	s.state = state
	s.stateErr = err
	s.stateMu.Unlock()
}

// fail transitions to StateFailed, keeping the first recorded reason.
func (s *Session) fail(err error) {
	s.stateMu.Lock()
	if s.state != StateFailed {
		s.state = StateFailed
		s.stateErr = err
	}
	s.stateMu.Unlock()
}

// classifySetupErr maps provider errors onto the session's error
// kinds, preserving ErrNotAuthorized and folding the rest into
// ErrConfigurationFailed.
func classifySetupErr(err error) error {
	if errors.Is(err, ErrNotAuthorized) {
		return fmt.Errorf("%w: %v", ErrNotAuthorized, err)
	}
	return fmt.Errorf("%w: %v", ErrConfigurationFailed, err)
}

// clampZoom forces requested into [MinZoom, min(MaxZoom, hwMax)].
// NaN settles at MinZoom; infinities clamp like any other magnitude.
func clampZoom(requested, hwMax float64) float64 {
	if math.IsNaN(requested) {
		return MinZoom
	}
	max := MaxZoom
	if hwMax >= MinZoom && hwMax < max {
		max = hwMax
	}
	switch {
	case requested < MinZoom:
		return MinZoom
	case requested > max:
		return max
	default:
		return requested
	}
}
