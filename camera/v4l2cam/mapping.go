package v4l2cam

import (
	"fmt"

	"github.com/visiona/lumen/camera"
	"github.com/visiona/lumen/pixel"
)

// Mapping declares one V4L2 device node and its role in the rig.
// V4L2 cannot tell a front camera from a back one, so the operator
// says so here; the provider never probes beyond what is declared.
type Mapping struct {
	Path     string // device node, e.g. /dev/video0
	Position camera.Position
	Lens     camera.Lens
	Model    string

	Width  int // stream geometry, default 1280
	Height int // default 720
	FPS    int // default 30

	// MaxZoomFactor is the zoom headroom this node offers. Leave at
	// zero (→1.0) for fixed-optics cameras; values above 1.0 require
	// a ZoomMin/ZoomMax control range to map into.
	MaxZoomFactor float64
	ZoomMin       int32 // hardware zoom-absolute range, inclusive
	ZoomMax       int32

	// Focusable marks nodes whose autofocus can be kicked on demand.
	Focusable bool
}

func (m Mapping) withDefaults() Mapping {
	if m.Model == "" {
		m.Model = "v4l2"
	}
	if m.Width <= 0 {
		m.Width = 1280
	}
	if m.Height <= 0 {
		m.Height = 720
	}
	if m.FPS <= 0 {
		m.FPS = 30
	}
	if m.MaxZoomFactor < camera.MinZoom {
		m.MaxZoomFactor = camera.MinZoom
	}
	return m
}

func (m Mapping) validate() error {
	if m.Path == "" {
		return fmt.Errorf("v4l2cam: mapping without a device path")
	}
	if m.MaxZoomFactor > camera.MinZoom && m.ZoomMax <= m.ZoomMin {
		return fmt.Errorf("v4l2cam: %s declares zoom %.1fx with no control range", m.Path, m.MaxZoomFactor)
	}
	return nil
}

func (m Mapping) descriptor() camera.DeviceDescriptor {
	return camera.DeviceDescriptor{
		ID:       m.Path,
		Position: m.Position,
		Lens:     m.Lens,
		Model:    m.Model,
	}
}

func (m Mapping) format() pixel.Descriptor {
	return pixel.Descriptor{Width: m.Width, Height: m.Height, Format: pixel.RGBA}
}
