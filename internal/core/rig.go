package core

import (
	"fmt"
	"log/slog"

	"github.com/visiona/lumen/camera"
	"github.com/visiona/lumen/camera/gstcam"
	"github.com/visiona/lumen/internal/config"
)

// buildProvider assembles the capture rig the config declares.
func buildProvider(rig config.RigConfig) (camera.Provider, error) {
	switch rig.Backend {
	case "sim":
		slog.Info("using simulated rig (no hardware configured)")
		return camera.NewSimProvider(camera.DefaultSimRig()...), nil

	case "v4l2":
		return buildV4L2Provider(rig.V4L2)

	case "gst":
		return buildGSTProvider(rig.GST)

	case "mixed":
		v4l2, err := buildV4L2Provider(rig.V4L2)
		if err != nil {
			return nil, err
		}
		gst, err := buildGSTProvider(rig.GST)
		if err != nil {
			return nil, err
		}
		return camera.CombineProviders(v4l2, gst), nil

	default:
		return nil, fmt.Errorf("unknown rig backend %q", rig.Backend)
	}
}

func buildGSTProvider(devices []config.MJPEGDevice) (camera.Provider, error) {
	sources := make([]gstcam.Source, 0, len(devices))
	for _, d := range devices {
		sources = append(sources, gstcam.Source{
			Path:     d.Path,
			Position: config.Position(d.Position),
			Lens:     config.LensKind(d.Lens),
			Model:    d.Model,
			Width:    d.Width,
			Height:   d.Height,
			FPS:      d.FPS,
		})
	}
	provider, err := gstcam.NewProvider(sources...)
	if err != nil {
		return nil, fmt.Errorf("gst rig: %w", err)
	}
	slog.Info("gstreamer rig configured", "devices", len(sources))
	return provider, nil
}
