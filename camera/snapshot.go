package camera

import (
	"context"
	"fmt"

	"github.com/visiona/lumen/pixel"
)

// CaptureImage issues one still capture against the current device
// with the current flash setting. The completion callback fires
// exactly once: with the orientation- and mirror-corrected buffer on
// success, or a nil buffer and the reason on failure.
//
// With no active input the callback fires synchronously with
// ErrNoInput and no hardware call is issued. Otherwise the capture
// runs on its own goroutine, independent of the streaming loop, and
// is allowed to complete or fail even if the session stops meanwhile.
func (s *Session) CaptureImage(ctx context.Context, fn CompletionFunc) {
	if fn == nil {
		fn = func(*pixel.Buffer, error) {}
	}

	s.configMu.Lock()
	dev := s.active
	pos := s.descriptor.Position
	opts := StillOptions{Flash: s.flash}
	s.configMu.Unlock()

	if dev == nil {
		s.stillsFailed.Add(1)
		fn(nil, ErrNoInput)
		return
	}
	orient := s.Orientation()

	go func() {
		raw, err := dev.Still(ctx, opts)
		if err != nil {
			s.stillsFailed.Add(1)
			fn(nil, fmt.Errorf("camera: still capture: %w", err))
			return
		}
		if raw == nil {
			s.stillsFailed.Add(1)
			fn(nil, fmt.Errorf("camera: still capture returned no image: %w", ErrConfigurationFailed))
			return
		}
		corrected := correctStill(raw, orient, pos)
		raw.Release()
		if corrected == nil {
			s.stillsFailed.Add(1)
			fn(nil, fmt.Errorf("camera: still correction: %w", ErrConfigurationFailed))
			return
		}
		s.stillsCaptured.Add(1)
		fn(corrected, nil)
	}()
}

// UprightTransform maps the device orientation to the correction
// that shows a sensor-native image upright. The sensor scans
// landscape and reads upright when the device rests on its right
// edge, so each further counter-clockwise quarter turn of the body
// needs one more clockwise quarter turn of the image. Front-camera
// images are mirrored after rotation, matching what the user saw in
// the preview. Still correction and live display share this mapping.
func UprightTransform(o Orientation, pos Position) (pixel.Rotation, bool) {
	var rot pixel.Rotation
	switch o {
	case OrientationLandscapeRight:
		rot = pixel.Rotate0
	case OrientationPortrait:
		rot = pixel.Rotate90
	case OrientationLandscapeLeft:
		rot = pixel.Rotate180
	case OrientationPortraitUpsideDown:
		rot = pixel.Rotate270
	}
	return rot, pos == PositionFront
}

// correctStill applies the upright transform, returning a new buffer
// (nil on allocation failure). The input is left untouched.
func correctStill(raw *pixel.Buffer, o Orientation, pos Position) *pixel.Buffer {
	rot, mirrored := UprightTransform(o, pos)
	out := pixel.Rotate(raw, rot)
	if out == nil {
		return nil
	}
	if mirrored {
		m := pixel.Mirror(out)
		out.Release()
		if m == nil {
			return nil
		}
		out = m
	}
	return out
}
