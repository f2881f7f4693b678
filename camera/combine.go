package camera

import "fmt"

// MultiProvider serves several providers as one rig, so a session can
// mix backends: control-rich nodes on one, compressed-mode nodes on
// another. Device IDs must be unique across the combined set; lookups
// go to the first provider listing the ID.
type MultiProvider struct {
	providers []Provider
}

// CombineProviders builds a provider over the given backends. Nil
// entries are skipped.
func CombineProviders(providers ...Provider) *MultiProvider {
	m := &MultiProvider{}
	for _, p := range providers {
		if p != nil {
			m.providers = append(m.providers, p)
		}
	}
	return m
}

// Devices concatenates the backends' rigs in combination order.
func (m *MultiProvider) Devices() []DeviceDescriptor {
	var out []DeviceDescriptor
	for _, p := range m.providers {
		out = append(out, p.Devices()...)
	}
	return out
}

// Open routes to the backend that lists id.
func (m *MultiProvider) Open(id string) (Device, error) {
	for _, p := range m.providers {
		for _, desc := range p.Devices() {
			if desc.ID == id {
				return p.Open(id)
			}
		}
	}
	return nil, fmt.Errorf("camera: no provider serves device %q", id)
}
