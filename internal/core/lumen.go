package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/visiona/lumen/camera"
	"github.com/visiona/lumen/internal/config"
	"github.com/visiona/lumen/internal/control"
	"github.com/visiona/lumen/internal/emitter"
	"github.com/visiona/lumen/internal/preview"
	"github.com/visiona/lumen/lutfilter"
	"github.com/visiona/lumen/viewfinder"
)

// transformPollInterval paces the orientation → display transform
// watcher. The sampler underneath runs at motion cadence; polling
// faster buys nothing.
const transformPollInterval = 100 * time.Millisecond

// stillTimeout bounds how long a capture may wait for a frame.
const stillTimeout = 5 * time.Second

// Lumen is the main service orchestrator.
type Lumen struct {
	cfg *config.Config

	// Core components
	provider       camera.Provider
	session        *camera.Session
	engine         *lutfilter.Engine
	pipeline       *viewfinder.Pipeline
	hub            *preview.Hub
	emitter        *emitter.MQTTEmitter
	controlHandler *control.Handler

	// Lifecycle management
	started   time.Time
	mu        sync.RWMutex
	wg        sync.WaitGroup
	isRunning bool
	runCtx    context.Context
	cancelCtx context.CancelFunc // for the MQTT shutdown command
}

// NewLumen creates a service instance from a config file.
func NewLumen(configPath string) (*Lumen, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	slog.Info("configuration loaded",
		"instance_id", cfg.InstanceID,
		"rig_backend", cfg.Rig.Backend,
	)

	l := &Lumen{
		cfg: cfg,
		engine: lutfilter.New(lutfilter.Config{
			BufferCount: cfg.Filter.BufferCount,
			Workers:     cfg.Filter.Workers,
		}),
	}

	if err := l.initializeFilter(); err != nil {
		return nil, fmt.Errorf("failed to initialize filter: %w", err)
	}

	if cfg.MQTT.Broker != "" {
		l.emitter = emitter.NewMQTTEmitter(cfg)
	}
	if cfg.Preview.Listen != "" {
		l.hub = preview.NewHub(cfg.Preview)
	}

	return l, nil
}

// initializeFilter selects the boot-time filter from config.
func (l *Lumen) initializeFilter() error {
	id, err := lutfilter.ParseIdentity(l.cfg.Filter.Identity)
	if err != nil {
		return err
	}

	if id == lutfilter.Custom {
		table, err := lutfilter.LoadCube(l.cfg.Filter.CubePath)
		if err != nil {
			return fmt.Errorf("failed to load cube %s: %w", l.cfg.Filter.CubePath, err)
		}
		l.engine.SetCustomTable(table)
		slog.Info("custom cube loaded", "path", l.cfg.Filter.CubePath)
	}

	l.engine.SetFilter(id)
	slog.Info("filter configured", "identity", id.String())
	return nil
}

// Run starts the service and blocks until the context is cancelled.
func (l *Lumen) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.isRunning {
		l.mu.Unlock()
		return fmt.Errorf("service is already running")
	}
	l.isRunning = true
	l.started = time.Now()
	l.mu.Unlock()

	// Cancellable so the MQTT shutdown command can end the run loop.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	l.mu.Lock()
	l.runCtx = ctx
	l.cancelCtx = cancel
	l.mu.Unlock()

	slog.Info("lumen service starting", "instance_id", l.cfg.InstanceID)

	// Build the capture rig from config.
	provider, err := buildProvider(l.cfg.Rig)
	if err != nil {
		return fmt.Errorf("failed to build rig: %w", err)
	}

	session, err := camera.NewSession(camera.Config{Provider: provider})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	// Viewfinder pipeline feeds the preview hub, or a discard sink
	// when no preview surface is configured.
	var sink viewfinder.Sink = discardSink{}
	if l.hub != nil {
		sink = l.hub
	}

	pipeline, err := viewfinder.New(viewfinder.Config{
		BufferCount: l.cfg.Filter.BufferCount,
	}, l.engine, sink)
	if err != nil {
		return fmt.Errorf("failed to create viewfinder: %w", err)
	}

	// Status and health readers access these under the same lock.
	l.mu.Lock()
	l.provider = provider
	l.session = session
	l.pipeline = pipeline
	l.mu.Unlock()

	if l.hub != nil {
		if err := l.hub.Start(ctx); err != nil {
			return fmt.Errorf("failed to start preview hub: %w", err)
		}
	}

	if err := l.pipeline.Start(ctx); err != nil {
		return fmt.Errorf("failed to start viewfinder: %w", err)
	}

	// Streamed frames go straight into the pipeline's mailbox.
	l.session.SetFrameHandler(func(f camera.Frame) {
		l.pipeline.Submit(viewfinder.Frame{
			Buffer:    f.Buffer,
			Seq:       f.Seq,
			Timestamp: f.Timestamp,
			TraceID:   f.TraceID,
		})
	})

	if err := l.session.Start(ctx); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	// Connect MQTT and the control plane when a broker is configured.
	if l.emitter != nil {
		if err := l.emitter.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect mqtt: %w", err)
		}

		l.controlHandler = control.NewHandler(l.cfg, l.emitter.Client, control.CommandCallbacks{
			OnGetStatus:    l.getStatus,
			OnSetFilter:    l.setFilter,
			OnSwitchCamera: l.switchCamera,
			OnCycleLens:    l.cycleLens,
			OnSetZoom:      l.setZoom,
			OnFocus:        l.focus,
			OnSetFlash:     l.setFlash,
			OnCaptureStill: l.captureStill,
			OnShutdown:     l.shutdownViaControl,
		})
		if err := l.controlHandler.Start(ctx); err != nil {
			return fmt.Errorf("failed to start control plane: %w", err)
		}
	}

	if l.cfg.Health.Listen != "" {
		if err := l.StartHealthServer(l.cfg.Health.Listen); err != nil {
			return fmt.Errorf("failed to start health server: %w", err)
		}
	}

	// Keep the display transform in step with orientation and device.
	l.wg.Add(1)
	go l.watchTransform(ctx)

	// Surface session death as an event instead of dying silently.
	l.wg.Add(1)
	go l.watchSession(ctx)

	slog.Info("lumen service running",
		"devices", len(provider.Devices()),
		"preview", l.cfg.Preview.Listen != "",
		"control_plane", l.cfg.MQTT.Broker != "",
	)

	<-ctx.Done()

	slog.Info("lumen service run loop exiting")
	return nil
}

// Shutdown performs graceful shutdown of all components.
func (l *Lumen) Shutdown(ctx context.Context) error {
	l.mu.Lock()
	if !l.isRunning {
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()

	slog.Info("shutting down lumen service")

	// Shutdown sequence (order matters):
	// 1. Stop the session first: no more frames produced.
	if l.session != nil {
		slog.Info("stopping capture session")
		if err := l.session.Stop(); err != nil {
			slog.Error("failed to stop session", "error", err)
		}
	}

	// 2. Stop the pipeline: drains the mailbox.
	if l.pipeline != nil {
		slog.Info("stopping viewfinder pipeline")
		if err := l.pipeline.Stop(); err != nil {
			slog.Error("failed to stop viewfinder", "error", err)
		}
	}

	// 3. Stop the preview hub: severs clients.
	if l.hub != nil {
		slog.Info("stopping preview hub")
		if err := l.hub.Stop(); err != nil {
			slog.Error("failed to stop preview hub", "error", err)
		}
	}

	// 4. Stop the control plane.
	if l.controlHandler != nil {
		slog.Info("stopping control handler")
		if err := l.controlHandler.Stop(); err != nil {
			slog.Error("failed to stop control handler", "error", err)
		}
	}

	// 5. Wait for watcher goroutines.
	l.wg.Wait()

	// 6. Disconnect MQTT last so late events still go out.
	if l.emitter != nil {
		if err := l.emitter.Disconnect(); err != nil {
			slog.Error("failed to disconnect mqtt", "error", err)
		}
	}

	l.mu.Lock()
	uptime := time.Since(l.started)
	l.isRunning = false
	l.mu.Unlock()

	slog.Info("lumen service shutdown complete", "uptime", uptime)
	return nil
}

// watchTransform recomputes the display transform when orientation
// or the active device changes, never per frame.
func (l *Lumen) watchTransform(ctx context.Context) {
	defer l.wg.Done()

	ticker := time.NewTicker(transformPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			desc, ok := l.session.ActiveDevice()
			if !ok {
				continue
			}
			rot, mirrored := camera.UprightTransform(l.session.Orientation(), desc.Position)
			next := viewfinder.Transform{Rotation: rot, Mirrored: mirrored}
			if l.pipeline.Transform() != next {
				l.pipeline.SetTransform(next)
				slog.Info("display transform updated",
					"rotation", rot.Degrees(),
					"mirrored", mirrored,
					"orientation", l.session.Orientation().String(),
				)
			}
		}
	}
}

// watchSession reports a dead session exactly once.
func (l *Lumen) watchSession(ctx context.Context) {
	defer l.wg.Done()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	reported := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if reported || l.session.State() != camera.StateFailed {
				continue
			}
			reported = true

			reason := ""
			if err := l.session.Err(); err != nil {
				reason = err.Error()
			}
			slog.Error("capture session failed", "reason", reason)
			l.publishEvent("session_failed", map[string]interface{}{
				"reason": reason,
			})
		}
	}
}

// publishEvent forwards to the emitter when one is configured.
func (l *Lumen) publishEvent(eventType string, data map[string]interface{}) {
	if l.emitter == nil {
		return
	}
	if err := l.emitter.PublishEvent(eventType, data); err != nil {
		slog.Warn("event publish failed", "type", eventType, "error", err)
	}
}

// ShutdownTimeout returns the configured graceful shutdown budget.
func (l *Lumen) ShutdownTimeout() time.Duration {
	timeout := time.Duration(l.cfg.ShutdownTimeoutS) * time.Second
	if timeout == 0 {
		return 5 * time.Second
	}
	return timeout
}

// discardSink releases frames when no preview surface is configured.
type discardSink struct{}

func (discardSink) Display(f viewfinder.Frame, _ viewfinder.Transform) {
	if f.Buffer != nil {
		f.Buffer.Release()
	}
}
