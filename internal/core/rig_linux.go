//go:build linux

package core

import (
	"fmt"
	"log/slog"

	"github.com/visiona/lumen/camera"
	"github.com/visiona/lumen/camera/v4l2cam"
	"github.com/visiona/lumen/internal/config"
)

func buildV4L2Provider(devices []config.V4L2Device) (camera.Provider, error) {
	mappings := make([]v4l2cam.Mapping, 0, len(devices))
	for _, d := range devices {
		mappings = append(mappings, v4l2cam.Mapping{
			Path:          d.Path,
			Position:      config.Position(d.Position),
			Lens:          config.LensKind(d.Lens),
			Model:         d.Model,
			Width:         d.Width,
			Height:        d.Height,
			FPS:           d.FPS,
			MaxZoomFactor: d.MaxZoomFactor,
			ZoomMin:       d.ZoomMin,
			ZoomMax:       d.ZoomMax,
			Focusable:     d.Focusable,
		})
	}
	provider, err := v4l2cam.NewProvider(mappings...)
	if err != nil {
		return nil, fmt.Errorf("v4l2 rig: %w", err)
	}
	slog.Info("v4l2 rig configured", "devices", len(mappings))
	return provider, nil
}
