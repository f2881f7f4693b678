package camera

import "fmt"

// auxLensOrder is the cycle order for auxiliary back lenses. The full
// cycle is wide → telephoto → ultrawide → back to wide, restricted to
// lenses the provider actually has.
var auxLensOrder = []Lens{LensTelephoto, LensUltraWide}

// SwitchCamera toggles between the front and back standard (wide)
// lens as a single reconfiguration bracket: the old input is fully
// halted before the new one starts, so no frame is ever attributed to
// a mixed state. On failure the previous input is restored; only a
// failed restore leaves the session failed.
//
// The zoom baseline resets to MinZoom on a committed switch.
func (s *Session) SwitchCamera() error {
	s.configMu.Lock()
	defer s.configMu.Unlock()

	if s.active == nil {
		return ErrNoInput
	}
	target := PositionBack
	if s.descriptor.Position == PositionBack {
		target = PositionFront
	}
	desc, ok := s.findDevice(target, LensWide)
	if !ok {
		return fmt.Errorf("%w: no %s wide camera present", ErrConfigurationFailed, target)
	}
	if err := s.swapDeviceLocked(desc); err != nil {
		return err
	}
	s.switches.Add(1)
	return nil
}

// CycleExtraLens advances through the supported auxiliary back
// lenses, wrapping to the standard back lens after the last entry,
// and returns the newly active descriptor.
//
// With no auxiliary lenses, or from the front camera where auxiliary
// optics do not exist, it answers ErrLensUnsupported without touching
// the device. A swap failure surfaces as
// ErrExtraLensInput with the previous input restored.
func (s *Session) CycleExtraLens() (DeviceDescriptor, error) {
	s.configMu.Lock()
	defer s.configMu.Unlock()

	if s.active == nil {
		return DeviceDescriptor{}, ErrNoInput
	}
	if s.descriptor.Position != PositionBack {
		return s.descriptor, ErrLensUnsupported
	}
	aux := s.availableAuxLenses()
	if len(aux) == 0 {
		return s.descriptor, ErrLensUnsupported
	}

	next := nextLensInCycle(s.descriptor.Lens, aux)
	desc, ok := s.findDevice(PositionBack, next)
	if !ok {
		return s.descriptor, fmt.Errorf("%w: %s lens vanished from the provider", ErrExtraLensInput, next)
	}
	if err := s.swapDeviceLocked(desc); err != nil {
		return s.descriptor, fmt.Errorf("%w: %v", ErrExtraLensInput, err)
	}
	s.lensCycles.Add(1)
	return s.descriptor, nil
}

// availableAuxLenses returns the auxiliary back lenses the provider
// has, in cycle order.
func (s *Session) availableAuxLenses() []Lens {
	devices := s.provider.Devices()
	var out []Lens
	for _, lens := range auxLensOrder {
		for _, d := range devices {
			if d.Position == PositionBack && d.Lens == lens {
				out = append(out, lens)
				break
			}
		}
	}
	return out
}

// nextLensInCycle walks wide → aux... → wide. An unknown current lens
// restarts the cycle at its beginning.
func nextLensInCycle(current Lens, aux []Lens) Lens {
	cycle := append([]Lens{LensWide}, aux...)
	for i, lens := range cycle {
		if lens == current {
			return cycle[(i+1)%len(cycle)]
		}
	}
	return cycle[0]
}

// swapDeviceLocked replaces the active input with desc as one
// bracket. Ordering: halt and release the current input, open and
// start the new one, commit. On failure the previous input is
// reopened; if that also fails the session transitions to failed
// rather than pretending an input exists.
func (s *Session) swapDeviceLocked(desc DeviceDescriptor) error {
	prev := s.descriptor
	s.stopActiveLocked()

	dev, err := s.openAndStartLocked(desc)
	if err == nil {
		s.commitDeviceLocked(dev, desc)
		return nil
	}

	if restoreErr := s.restoreLocked(prev); restoreErr != nil {
		failure := fmt.Errorf("%w: switch to %s failed (%v) and restoring %s failed (%v)",
			ErrConfigurationFailed, desc.ID, err, prev.ID, restoreErr)
		s.fail(failure)
		s.publishViewLocked()
		return failure
	}
	return fmt.Errorf("switch to %s failed, previous input restored: %w", desc.ID, err)
}

// restoreLocked reopens the previous input after a failed swap.
func (s *Session) restoreLocked(prev DeviceDescriptor) error {
	dev, err := s.openAndStartLocked(prev)
	if err != nil {
		return err
	}
	s.commitDeviceLocked(dev, prev)
	return nil
}

// commitDeviceLocked installs a started device as the active input
// and resets the per-device baselines.
func (s *Session) commitDeviceLocked(dev Device, desc DeviceDescriptor) {
	s.active = dev
	s.descriptor = desc
	s.zoom = MinZoom
	s.publishViewLocked()
	s.startPumpLocked(dev)
}
