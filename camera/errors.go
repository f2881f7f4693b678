package camera

import "errors"

// Session error kinds. Wrapped errors keep these sentinels matchable
// with errors.Is.
var (
	// ErrNoInput: an operation requiring a device ran with none
	// selected. Checked before any hardware call is issued.
	ErrNoInput = errors.New("camera: no device input present")

	// ErrExtraLensInput: enabling an auxiliary lens input failed; the
	// previous input was restored where feasible.
	ErrExtraLensInput = errors.New("camera: adding extra lens input failed")

	// ErrNotAuthorized: capture permission denied. The session never
	// starts; terminal until a new session is built.
	ErrNotAuthorized = errors.New("camera: not authorized to use the capture device")

	// ErrConfigurationFailed: generic hardware session setup failure.
	ErrConfigurationFailed = errors.New("camera: capture session configuration failed")

	// ErrLensUnsupported: cycleExtraLens on a rig with no auxiliary
	// lenses (or from the front camera). Distinct from swap failures
	// so callers can hide the control instead of surfacing an error.
	ErrLensUnsupported = errors.New("camera: no auxiliary lenses available")

	// ErrControlUnsupported: the active device lacks a control (zoom,
	// focus) an operation tried to drive.
	ErrControlUnsupported = errors.New("camera: control not supported by the active device")
)
