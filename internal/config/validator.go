package config

import (
	"fmt"
	"regexp"

	"github.com/visiona/lumen/camera"
	"github.com/visiona/lumen/lutfilter"
)

var instanceIDPattern = regexp.MustCompile(`^[a-z0-9\-]+$`)

// Validate checks the configuration and injects defaults in place.
func Validate(cfg *Config) error {
	if cfg.InstanceID == "" {
		return fmt.Errorf("instance_id is required")
	}
	if !instanceIDPattern.MatchString(cfg.InstanceID) {
		return fmt.Errorf("instance_id must match pattern [a-z0-9-]+")
	}
	if cfg.ShutdownTimeoutS <= 0 {
		cfg.ShutdownTimeoutS = 5
	}

	if err := validateRig(&cfg.Rig); err != nil {
		return err
	}
	if err := validateFilter(&cfg.Filter); err != nil {
		return err
	}
	if err := validatePreview(&cfg.Preview); err != nil {
		return err
	}
	validateMQTT(&cfg.MQTT, cfg.InstanceID)
	return nil
}

func validateRig(rig *RigConfig) error {
	if rig.Backend == "" {
		rig.Backend = "sim"
	}
	switch rig.Backend {
	case "sim":
		// Sim needs no declarations; it serves its built-in rig.
	case "v4l2":
		if len(rig.V4L2) == 0 {
			return fmt.Errorf("rig.backend is v4l2 but rig.v4l2 declares no devices")
		}
	case "gst":
		if len(rig.GST) == 0 {
			return fmt.Errorf("rig.backend is gst but rig.gst declares no devices")
		}
	case "mixed":
		if len(rig.V4L2)+len(rig.GST) == 0 {
			return fmt.Errorf("rig.backend is mixed but no devices are declared")
		}
	default:
		return fmt.Errorf("rig.backend %q unknown (sim, v4l2, gst, mixed)", rig.Backend)
	}

	for i, d := range rig.V4L2 {
		if d.Path == "" {
			return fmt.Errorf("rig.v4l2[%d]: path is required", i)
		}
		if _, err := parsePosition(d.Position); err != nil {
			return fmt.Errorf("rig.v4l2[%d]: %w", i, err)
		}
		if _, err := parseLens(d.Lens); err != nil {
			return fmt.Errorf("rig.v4l2[%d]: %w", i, err)
		}
	}
	for i, d := range rig.GST {
		if d.Path == "" {
			return fmt.Errorf("rig.gst[%d]: path is required", i)
		}
		if _, err := parsePosition(d.Position); err != nil {
			return fmt.Errorf("rig.gst[%d]: %w", i, err)
		}
		if _, err := parseLens(d.Lens); err != nil {
			return fmt.Errorf("rig.gst[%d]: %w", i, err)
		}
	}
	return nil
}

func validateFilter(f *FilterConfig) error {
	if f.Identity == "" {
		f.Identity = "none"
	}
	id, err := lutfilter.ParseIdentity(f.Identity)
	if err != nil {
		return fmt.Errorf("filter.identity: %w", err)
	}
	if id == lutfilter.Custom && f.CubePath == "" {
		return fmt.Errorf("filter.identity is custom but filter.cube_path is empty")
	}
	if f.BufferCount < 0 {
		return fmt.Errorf("filter.buffer_count must be >= 0")
	}
	if f.Workers < 0 {
		return fmt.Errorf("filter.workers must be >= 0")
	}
	return nil
}

func validatePreview(p *PreviewConfig) error {
	if p.Listen == "" {
		return nil
	}
	if p.Quality == 0 {
		p.Quality = 80
	}
	if p.Quality < 1 || p.Quality > 100 {
		return fmt.Errorf("preview.quality must be 1..100")
	}
	if p.MaxFPS == 0 {
		p.MaxFPS = 15
	}
	if p.MaxFPS < 1 {
		return fmt.Errorf("preview.max_fps must be >= 1")
	}
	return nil
}

func validateMQTT(m *MQTTConfig, instanceID string) {
	if m.Broker == "" {
		return
	}
	if m.Topics.Control == "" {
		m.Topics.Control = fmt.Sprintf("lumen/control/%s", instanceID)
	}
	if m.Topics.Events == "" {
		m.Topics.Events = fmt.Sprintf("lumen/events/%s", instanceID)
	}
	if m.Topics.Health == "" {
		m.Topics.Health = fmt.Sprintf("lumen/health/%s", instanceID)
	}
	if m.QoS == nil {
		m.QoS = map[string]byte{
			"control": 1,
			"events":  1,
			"health":  0,
		}
	}
}

func parsePosition(s string) (camera.Position, error) {
	switch s {
	case "back":
		return camera.PositionBack, nil
	case "front":
		return camera.PositionFront, nil
	default:
		return 0, fmt.Errorf("position %q unknown (back, front)", s)
	}
}

func parseLens(s string) (camera.Lens, error) {
	switch s {
	case "", "wide":
		return camera.LensWide, nil
	case "telephoto":
		return camera.LensTelephoto, nil
	case "ultrawide":
		return camera.LensUltraWide, nil
	default:
		return 0, fmt.Errorf("lens %q unknown (wide, telephoto, ultrawide)", s)
	}
}

// Position converts a validated position string.
func Position(s string) camera.Position {
	p, _ := parsePosition(s)
	return p
}

// LensKind converts a validated lens string.
func LensKind(s string) camera.Lens {
	l, _ := parseLens(s)
	return l
}
