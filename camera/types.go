package camera

import (
	"fmt"
	"time"

	"github.com/visiona/lumen/pixel"
)

// Zoom bounds. The session clamps every request into
// [MinZoom, min(MaxZoom, hardware max)].
const (
	MinZoom = 1.0
	MaxZoom = 3.0
)

// MotionSampleInterval is the gravity sampling period for orientation
// tracking.
const MotionSampleInterval = time.Second / 30

// Position locates a camera on the device body.
type Position int

const (
	PositionBack Position = iota
	PositionFront
)

func (p Position) String() string {
	switch p {
	case PositionBack:
		return "back"
	case PositionFront:
		return "front"
	default:
		return fmt.Sprintf("position(%d)", int(p))
	}
}

// Lens classifies a camera's optics.
type Lens int

const (
	LensWide Lens = iota
	LensTelephoto
	LensUltraWide
	LensDual
)

func (l Lens) String() string {
	switch l {
	case LensWide:
		return "wide"
	case LensTelephoto:
		return "telephoto"
	case LensUltraWide:
		return "ultrawide"
	case LensDual:
		return "dual"
	default:
		return fmt.Sprintf("lens(%d)", int(l))
	}
}

// DeviceDescriptor identifies one physical camera. Exactly one
// descriptor is current per session at any time; switching is atomic
// from the consumer's perspective.
type DeviceDescriptor struct {
	ID       string // provider-scoped identifier, e.g. "/dev/video0" or "sim:back-wide"
	Position Position
	Lens     Lens
	Model    string
}

func (d DeviceDescriptor) String() string {
	return fmt.Sprintf("%s (%s %s)", d.ID, d.Position, d.Lens)
}

// SessionState is the controller's lifecycle state.
type SessionState int

const (
	StateIdle SessionState = iota
	StateRunning
	StateStopped
	StateFailed
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// FlashMode is the session-held flash setting used by still capture.
type FlashMode int

const (
	FlashOff FlashMode = iota
	FlashOn
	FlashAuto
)

func (f FlashMode) String() string {
	switch f {
	case FlashOff:
		return "off"
	case FlashOn:
		return "on"
	case FlashAuto:
		return "auto"
	default:
		return fmt.Sprintf("flash(%d)", int(f))
	}
}

// Point is a normalized view-space coordinate: (0,0) top-left,
// (1,1) bottom-right.
type Point struct {
	X float64
	Y float64
}

// clamped returns the point forced into the unit square.
func (p Point) clamped() Point {
	c := func(v float64) float64 {
		if v < 0 {
			return 0
		}
		if v > 1 {
			return 1
		}
		return v
	}
	return Point{X: c(p.X), Y: c(p.Y)}
}

// FocusRequest is a one-shot focus point-of-interest. A later request
// supersedes it; requests are never queued.
type FocusRequest struct {
	Point     Point
	Timestamp time.Time
}

// Frame is one captured image leaving a device, tagged with the
// descriptor it was captured under.
type Frame struct {
	Buffer    *pixel.Buffer
	Seq       uint64
	Timestamp time.Time
	TraceID   string
	Device    DeviceDescriptor
}

// StillOptions parameterizes a one-shot capture.
type StillOptions struct {
	Flash FlashMode
}

// FrameHandler consumes streamed frames. It runs on the session's
// pump goroutine: it must not block, and it must not call back into
// session reconfiguration methods (Submit-style hand-offs only).
// Ownership of Frame.Buffer transfers to the handler.
type FrameHandler func(Frame)

// CompletionFunc receives the result of a still capture, exactly once
// per CaptureImage call. A nil buffer signals failure; the error says
// why.
type CompletionFunc func(*pixel.Buffer, error)
