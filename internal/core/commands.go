package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/visiona/lumen/camera"
	"github.com/visiona/lumen/lutfilter"
	"github.com/visiona/lumen/pixel"
)

// getStatus returns the current service status.
func (l *Lumen) getStatus() map[string]interface{} {
	l.mu.RLock()
	defer l.mu.RUnlock()

	sessionStats := l.session.Stats()
	engineStats := l.engine.Stats()
	pipelineStats := l.pipeline.Stats()

	status := map[string]interface{}{
		"instance_id": l.cfg.InstanceID,
		"uptime_s":    time.Since(l.started).Seconds(),
		"running":     l.isRunning,
		"session": map[string]interface{}{
			"state":            sessionStats.State.String(),
			"failure":          sessionStats.Failure,
			"device":           sessionStats.ActiveDevice,
			"position":         sessionStats.Position.String(),
			"lens":             sessionStats.Lens.String(),
			"zoom":             sessionStats.Zoom,
			"flash":            sessionStats.Flash.String(),
			"orientation":      sessionStats.Orientation.String(),
			"frames_forwarded": sessionStats.FramesForwarded,
			"switches":         sessionStats.Switches,
			"lens_cycles":      sessionStats.LensCycles,
			"stills_captured":  sessionStats.StillsCaptured,
			"stills_failed":    sessionStats.StillsFailed,
		},
		"filter": map[string]interface{}{
			"identity":         engineStats.Filter.String(),
			"prepared":         engineStats.Prepared,
			"rendered":         engineStats.Rendered,
			"unprepared_drops": engineStats.UnpreparedDrops,
			"pool_exhausted":   engineStats.PoolExhausted,
		},
		"viewfinder": map[string]interface{}{
			"submitted":    pipelineStats.Submitted,
			"dropped":      pipelineStats.Dropped,
			"processed":    pipelineStats.Processed,
			"filtered":     pipelineStats.Filtered,
			"pass_through": pipelineStats.PassThrough,
		},
		"config": map[string]interface{}{
			"rig_backend": l.cfg.Rig.Backend,
			"preview":     l.cfg.Preview.Listen,
			"mqtt": map[string]interface{}{
				"broker":        l.cfg.MQTT.Broker,
				"control_topic": l.cfg.MQTT.Topics.Control,
				"events_topic":  l.cfg.MQTT.Topics.Events,
			},
		},
	}

	if l.hub != nil {
		hubStats := l.hub.Stats()
		status["preview"] = map[string]interface{}{
			"clients":        hubStats.Clients,
			"frames_sent":    hubStats.FramesSent,
			"frames_dropped": hubStats.FramesDropped,
			"encode_errors":  hubStats.EncodeErrors,
		}
	}

	if l.emitter != nil {
		emitterStats := l.emitter.Stats()
		status["emitter"] = map[string]interface{}{
			"connected": emitterStats.Connected,
			"published": emitterStats.Published,
			"errors":    emitterStats.Errors,
		}
	}

	return status
}

// setFilter selects a filter, loading a cube file for custom looks.
func (l *Lumen) setFilter(name, cubePath string) error {
	id, err := lutfilter.ParseIdentity(name)
	if err != nil {
		return err
	}

	if id == lutfilter.Custom {
		if cubePath == "" {
			return fmt.Errorf("custom filter requires params.cube_path")
		}
		table, err := lutfilter.LoadCube(cubePath)
		if err != nil {
			return fmt.Errorf("failed to load cube %s: %w", cubePath, err)
		}
		l.engine.SetCustomTable(table)
	}

	l.engine.SetFilter(id)
	slog.Info("filter changed", "identity", id.String())
	return nil
}

// deviceData describes the active device for command responses.
func (l *Lumen) deviceData() map[string]interface{} {
	desc, ok := l.session.ActiveDevice()
	if !ok {
		return map[string]interface{}{"device": nil}
	}
	return map[string]interface{}{
		"device":   desc.ID,
		"position": desc.Position.String(),
		"lens":     desc.Lens.String(),
		"model":    desc.Model,
		"zoom":     l.session.Zoom(),
	}
}

// switchCamera toggles between the back and front camera.
func (l *Lumen) switchCamera() (map[string]interface{}, error) {
	err := l.session.SwitchCamera()
	data := l.deviceData()
	if err != nil {
		return data, err
	}
	l.publishEvent("device_switched", data)
	return data, nil
}

// cycleLens advances the back-camera lens cycle.
func (l *Lumen) cycleLens() (map[string]interface{}, error) {
	desc, err := l.session.CycleExtraLens()
	if err != nil {
		return l.deviceData(), err
	}
	data := map[string]interface{}{
		"device":   desc.ID,
		"position": desc.Position.String(),
		"lens":     desc.Lens.String(),
		"model":    desc.Model,
		"zoom":     l.session.Zoom(),
	}
	l.publishEvent("lens_cycled", data)
	return data, nil
}

// setZoom clamps and applies a zoom factor.
func (l *Lumen) setZoom(factor float64) (float64, error) {
	return l.session.SetZoom(factor)
}

// focus requests focus at a normalized view point.
func (l *Lumen) focus(x, y float64) (bool, error) {
	return l.session.Focus(camera.Point{X: x, Y: y}), nil
}

// setFlash updates the session flash mode.
func (l *Lumen) setFlash(mode string) error {
	parsed, err := parseFlashMode(mode)
	if err != nil {
		return err
	}
	l.session.SetFlash(parsed)
	return nil
}

func parseFlashMode(s string) (camera.FlashMode, error) {
	switch s {
	case "off":
		return camera.FlashOff, nil
	case "on":
		return camera.FlashOn, nil
	case "auto":
		return camera.FlashAuto, nil
	default:
		return camera.FlashOff, fmt.Errorf("unknown flash mode %q (off, on, auto)", s)
	}
}

// captureStill starts an asynchronous capture that lands at path.
// Completion is reported as a still_captured or still_failed event.
func (l *Lumen) captureStill(path string) error {
	if path == "" {
		return fmt.Errorf("capture_still requires params.path")
	}

	l.mu.RLock()
	runCtx := l.runCtx
	l.mu.RUnlock()
	if runCtx == nil {
		return fmt.Errorf("service not running")
	}

	ctx, cancel := context.WithTimeout(runCtx, stillTimeout)
	l.session.CaptureImage(ctx, func(buf *pixel.Buffer, err error) {
		defer cancel()
		if err != nil {
			slog.Error("still capture failed", "path", path, "error", err)
			l.publishEvent("still_failed", map[string]interface{}{
				"path":  path,
				"error": err.Error(),
			})
			return
		}
		defer buf.Release()

		size, werr := writeStill(path, buf)
		if werr != nil {
			slog.Error("still write failed", "path", path, "error", werr)
			l.publishEvent("still_failed", map[string]interface{}{
				"path":  path,
				"error": werr.Error(),
			})
			return
		}

		desc := buf.Descriptor()
		slog.Info("still captured",
			"path", path,
			"geometry", desc.String(),
			"bytes", size,
		)
		l.publishEvent("still_captured", map[string]interface{}{
			"path":   path,
			"width":  desc.Width,
			"height": desc.Height,
			"bytes":  size,
		})
	})

	return nil
}

// shutdownViaControl ends the run loop on behalf of the control
// plane; the main goroutine then drives the normal shutdown path.
func (l *Lumen) shutdownViaControl() error {
	l.mu.RLock()
	cancel := l.cancelCtx
	l.mu.RUnlock()

	if cancel == nil {
		return fmt.Errorf("service not running")
	}
	cancel()
	return nil
}
