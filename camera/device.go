package camera

import (
	"context"

	"github.com/visiona/lumen/pixel"
)

// Device is one physical (or simulated) camera the session can own.
//
// Contract:
//   - Start begins streaming; Frames() delivers until Stop or source
//     death, then closes. After the channel closes, Err() explains a
//     failure or returns nil for a deliberate stop.
//   - Stop is idempotent and safe on a never-started device.
//   - Control calls (SetZoom, Focus) are issued under the session's
//     device-configuration lock; implementations may assume no
//     concurrent control calls.
//   - Still may be called while streaming; it produces one
//     full-resolution buffer without disturbing the stream.
type Device interface {
	// Descriptor identifies the device.
	Descriptor() DeviceDescriptor

	// Format returns the streaming pixel geometry.
	Format() pixel.Descriptor

	// Start begins frame delivery. Returns an error if already
	// started or the hardware refuses.
	Start(ctx context.Context) error

	// Stop halts streaming and closes Frames(). Idempotent.
	Stop() error

	// Frames is the live stream. Closed by Stop or source death.
	Frames() <-chan Frame

	// Err reports why Frames closed, nil after a deliberate Stop.
	Err() error

	// MaxZoom is the hardware zoom ceiling (≥ 1.0).
	MaxZoom() float64

	// SetZoom applies an absolute zoom factor already clamped by the
	// session. Answers ErrControlUnsupported when the hardware cannot
	// zoom.
	SetZoom(factor float64) error

	// SupportsFocus reports point-of-interest focus capability.
	SupportsFocus() bool

	// Focus drives focus toward a normalized view-space point.
	Focus(pt Point) error

	// Still captures one full-resolution frame with the given
	// options. The caller owns the returned buffer.
	Still(ctx context.Context, opts StillOptions) (*pixel.Buffer, error)
}

// Provider enumerates and opens capture devices.
//
// Contract:
//   - Devices returns a stable snapshot; order is the provider's
//     preference order.
//   - Open returns a fresh Device per call; the caller owns its
//     lifecycle. Permission failures wrap ErrNotAuthorized.
type Provider interface {
	Devices() []DeviceDescriptor
	Open(id string) (Device, error)
}
