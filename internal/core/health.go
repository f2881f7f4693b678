package core

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/visiona/lumen/camera"
)

// HealthStatus represents the health state of the service.
type HealthStatus struct {
	Status          string  `json:"status"` // "healthy", "degraded", "unhealthy"
	UptimeSeconds   int64   `json:"uptime_seconds"`
	SessionState    string  `json:"session_state"`
	SessionFailure  string  `json:"session_failure,omitempty"`
	ActiveDevice    string  `json:"active_device,omitempty"`
	Orientation     string  `json:"orientation"`
	Zoom            float64 `json:"zoom"`
	FramesForwarded uint64  `json:"frames_forwarded"`
	FramesDropped   uint64  `json:"frames_dropped"`
	MQTTConnected   bool    `json:"mqtt_connected"`
	PreviewClients  int     `json:"preview_clients"`
}

// HealthCheck returns the current health status of the service.
func (l *Lumen) HealthCheck() HealthStatus {
	l.mu.RLock()
	running := l.isRunning
	started := l.started
	session := l.session
	pipeline := l.pipeline
	l.mu.RUnlock()

	status := HealthStatus{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(started).Seconds()),
		SessionState:  camera.StateIdle.String(),
		Orientation:   camera.OrientationPortrait.String(),
	}

	if session != nil {
		s := session.Stats()
		status.SessionState = s.State.String()
		status.SessionFailure = s.Failure
		status.ActiveDevice = s.ActiveDevice
		status.Orientation = s.Orientation.String()
		status.Zoom = s.Zoom
		status.FramesForwarded = s.FramesForwarded
	}
	if pipeline != nil {
		status.FramesDropped = pipeline.Stats().Dropped
	}
	if l.emitter != nil {
		status.MQTTConnected = l.emitter.Stats().Connected
	}
	if l.hub != nil {
		status.PreviewClients = l.hub.Stats().Clients
	}

	switch {
	case !running || status.SessionState == camera.StateFailed.String():
		status.Status = "unhealthy"
	case l.emitter != nil && !status.MQTTConnected:
		status.Status = "degraded"
	}

	return status
}

// LivenessHandler handles /health (simple liveness check).
func (l *Lumen) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	l.mu.RLock()
	started := l.started
	l.mu.RUnlock()

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "alive",
		"uptime": int64(time.Since(started).Seconds()),
	})
}

// ReadinessHandler handles /readiness (detailed readiness check).
// Answers 503 only when the service cannot produce frames at all.
func (l *Lumen) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	health := l.HealthCheck()

	statusCode := http.StatusOK
	if health.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(health)
}

// MetricsHandler handles /metrics with plain-text counters.
func (l *Lumen) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)

	health := l.HealthCheck()
	instance := l.cfg.InstanceID

	l.mu.RLock()
	session := l.session
	l.mu.RUnlock()

	fmt.Fprintf(w, "lumen_uptime_seconds{instance=%q} %d\n", instance, health.UptimeSeconds)
	fmt.Fprintf(w, "lumen_frames_forwarded_total{instance=%q} %d\n", instance, health.FramesForwarded)
	fmt.Fprintf(w, "lumen_frames_dropped_total{instance=%q} %d\n", instance, health.FramesDropped)
	fmt.Fprintf(w, "lumen_preview_clients{instance=%q} %d\n", instance, health.PreviewClients)
	if session != nil {
		s := session.Stats()
		fmt.Fprintf(w, "lumen_stills_captured_total{instance=%q} %d\n", instance, s.StillsCaptured)
		fmt.Fprintf(w, "lumen_stills_failed_total{instance=%q} %d\n", instance, s.StillsFailed)
		fmt.Fprintf(w, "lumen_device_switches_total{instance=%q} %d\n", instance, s.Switches)
	}
	fmt.Fprintf(w, "lumen_frames_filtered_total{instance=%q} %d\n", instance, l.engine.Stats().Rendered)
}

// StartHealthServer starts the HTTP health server. Non-blocking.
func (l *Lumen) StartHealthServer(listen string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", l.LivenessHandler)
	mux.HandleFunc("/readiness", l.ReadinessHandler)
	mux.HandleFunc("/metrics", l.MetricsHandler)

	server := &http.Server{
		Addr:         listen,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("starting health check server",
		"addr", listen,
		"endpoints", []string{"/health", "/readiness", "/metrics"},
	)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("health check server failed", "error", err)
		}
	}()

	return nil
}
