package gstcam

import (
	"fmt"

	"github.com/visiona/lumen/camera"
	"github.com/visiona/lumen/pixel"
)

// Source declares one MJPEG capture node and its role in the rig.
type Source struct {
	Path     string // device node, e.g. /dev/video2
	Position camera.Position
	Lens     camera.Lens
	Model    string

	Width  int // decoded geometry, default 1280
	Height int // default 720
	FPS    int // default 30
}

func (s Source) withDefaults() Source {
	if s.Model == "" {
		s.Model = "gst-mjpeg"
	}
	if s.Width <= 0 {
		s.Width = 1280
	}
	if s.Height <= 0 {
		s.Height = 720
	}
	if s.FPS <= 0 {
		s.FPS = 30
	}
	return s
}

func (s Source) validate() error {
	if s.Path == "" {
		return fmt.Errorf("gstcam: source without a device path")
	}
	return nil
}

func (s Source) descriptor() camera.DeviceDescriptor {
	return camera.DeviceDescriptor{
		ID:       s.Path,
		Position: s.Position,
		Lens:     s.Lens,
		Model:    s.Model,
	}
}

func (s Source) format() pixel.Descriptor {
	return pixel.Descriptor{Width: s.Width, Height: s.Height, Format: pixel.RGBA}
}

// Provider serves the declared sources. It implements camera.Provider.
type Provider struct {
	sources []Source
}

// NewProvider validates the declared sources and builds a provider.
func NewProvider(sources ...Source) (*Provider, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("gstcam: no sources declared")
	}
	seen := make(map[string]bool, len(sources))
	p := &Provider{}
	for _, s := range sources {
		s = s.withDefaults()
		if err := s.validate(); err != nil {
			return nil, err
		}
		if seen[s.Path] {
			return nil, fmt.Errorf("gstcam: %s declared twice", s.Path)
		}
		seen[s.Path] = true
		p.sources = append(p.sources, s)
	}
	return p, nil
}

// Devices lists the rig in declaration order.
func (p *Provider) Devices() []camera.DeviceDescriptor {
	out := make([]camera.DeviceDescriptor, 0, len(p.sources))
	for _, s := range p.sources {
		out = append(out, s.descriptor())
	}
	return out
}

// Open builds a fresh device for the declared node. GStreamer element
// availability and node access both surface on Start, where the
// pipeline actually comes up.
func (p *Provider) Open(id string) (camera.Device, error) {
	for _, s := range p.sources {
		if s.Path == id {
			return newDevice(s), nil
		}
	}
	return nil, fmt.Errorf("gstcam: unknown device %q", id)
}
