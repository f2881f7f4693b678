//go:build linux

package v4l2cam

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/visiona/lumen/camera"
)

// Provider serves the declared rig. It implements camera.Provider.
type Provider struct {
	mappings []Mapping
}

// NewProvider validates the declared mappings and builds a provider.
// At least one mapping is required; duplicate paths are rejected.
func NewProvider(mappings ...Mapping) (*Provider, error) {
	if len(mappings) == 0 {
		return nil, fmt.Errorf("v4l2cam: no device mappings declared")
	}
	seen := make(map[string]bool, len(mappings))
	p := &Provider{}
	for _, m := range mappings {
		m = m.withDefaults()
		if err := m.validate(); err != nil {
			return nil, err
		}
		if seen[m.Path] {
			return nil, fmt.Errorf("v4l2cam: %s mapped twice", m.Path)
		}
		seen[m.Path] = true
		p.mappings = append(p.mappings, m)
	}
	return p, nil
}

// Devices lists the rig in declaration order. The snapshot is stable:
// it reflects the mappings, not momentary node availability.
func (p *Provider) Devices() []camera.DeviceDescriptor {
	out := make([]camera.DeviceDescriptor, 0, len(p.mappings))
	for _, m := range p.mappings {
		out = append(out, m.descriptor())
	}
	return out
}

// Open builds a fresh device for the mapped node. The node itself is
// opened lazily on Start; only permission problems are surfaced here
// so the session can distinguish "not allowed" from "not working".
func (p *Provider) Open(id string) (camera.Device, error) {
	for _, m := range p.mappings {
		if m.Path != id {
			continue
		}
		if err := probeAccess(m.Path); err != nil {
			if errors.Is(err, fs.ErrPermission) {
				return nil, fmt.Errorf("v4l2cam: %s: %v: %w", m.Path, err, camera.ErrNotAuthorized)
			}
			return nil, fmt.Errorf("v4l2cam: %s: %w", m.Path, err)
		}
		return newDevice(m), nil
	}
	return nil, fmt.Errorf("v4l2cam: unknown device %q", id)
}

// probeAccess opens and immediately closes the node, turning an
// unusable path into an error before any streaming is attempted.
func probeAccess(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	return f.Close()
}
