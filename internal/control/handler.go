package control

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/visiona/lumen/internal/config"
)

// Command represents a control plane command.
type Command struct {
	Command string                 `json:"command"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// Response represents a command response, published on the events
// topic.
type Response struct {
	CommandAck string                 `json:"command_ack"`
	Status     string                 `json:"status"`
	Data       map[string]interface{} `json:"data,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Timestamp  string                 `json:"timestamp"`
}

// CommandCallbacks contains the operations the control plane can
// reach. Nil callbacks answer "not implemented".
type CommandCallbacks struct {
	OnGetStatus    func() map[string]interface{}
	OnSetFilter    func(name, cubePath string) error
	OnSwitchCamera func() (map[string]interface{}, error)
	OnCycleLens    func() (map[string]interface{}, error)
	OnSetZoom      func(factor float64) (float64, error)
	OnFocus        func(x, y float64) (bool, error)
	OnSetFlash     func(mode string) error
	OnCaptureStill func(path string) error
	OnShutdown     func() error
}

// Handler subscribes to the control topic and dispatches commands.
type Handler struct {
	cfg       *config.Config
	client    mqtt.Client
	commands  chan Command
	callbacks CommandCallbacks

	mu      sync.Mutex
	started bool
}

// NewHandler creates a control plane handler.
func NewHandler(cfg *config.Config, client mqtt.Client, callbacks CommandCallbacks) *Handler {
	return &Handler{
		cfg:       cfg,
		client:    client,
		commands:  make(chan Command, 10),
		callbacks: callbacks,
	}
}

// Start subscribes to the control topic and begins processing.
func (h *Handler) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started {
		return fmt.Errorf("control: handler already started")
	}

	topic := h.cfg.MQTT.Topics.Control
	qos := h.cfg.MQTT.QoS["control"]

	slog.Info("subscribing to control plane", "topic", topic, "qos", qos)

	token := h.client.Subscribe(topic, qos, h.messageHandler)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("control: subscription timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("control: subscription failed: %w", err)
	}

	h.started = true
	go h.processCommands(ctx)

	slog.Info("control plane handler started")
	return nil
}

// Stop unsubscribes and stops command processing.
func (h *Handler) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.started {
		return nil
	}
	h.started = false

	if h.client != nil && h.client.IsConnected() {
		token := h.client.Unsubscribe(h.cfg.MQTT.Topics.Control)
		token.Wait()
	}
	close(h.commands)

	slog.Info("control plane handler stopped")
	return nil
}

// messageHandler parses inbound control messages onto the command
// queue. The queue is bounded; a flooded control plane drops commands
// rather than backing up the MQTT client.
func (h *Handler) messageHandler(client mqtt.Client, msg mqtt.Message) {
	var cmd Command
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		slog.Error("failed to parse control command", "error", err)
		h.sendResponse(Response{
			CommandAck: "unknown",
			Status:     "error",
			Error:      "invalid JSON",
		})
		return
	}

	slog.Info("control command received", "command", cmd.Command)

	select {
	case h.commands <- cmd:
	default:
		slog.Warn("command queue full, dropping command", "command", cmd.Command)
	}
}

func (h *Handler) processCommands(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd, ok := <-h.commands:
			if !ok {
				return
			}
			h.handleCommand(cmd)
		}
	}
}

// handleCommand executes one command and publishes its response.
func (h *Handler) handleCommand(cmd Command) {
	var resp Response
	resp.CommandAck = cmd.Command

	switch cmd.Command {
	case "get_status":
		if h.callbacks.OnGetStatus == nil {
			resp.Status = "error"
			resp.Error = "get_status not implemented"
			break
		}
		resp.Status = "success"
		resp.Data = h.callbacks.OnGetStatus()

	case "set_filter":
		if h.callbacks.OnSetFilter == nil {
			resp.Status = "error"
			resp.Error = "set_filter not implemented"
			break
		}
		name, ok := cmd.Params["filter"].(string)
		if !ok {
			resp.Status = "error"
			resp.Error = "missing or invalid 'filter' parameter (expected string)"
			break
		}
		cubePath, _ := cmd.Params["cube_path"].(string)
		if err := h.callbacks.OnSetFilter(name, cubePath); err != nil {
			resp.Status = "error"
			resp.Error = err.Error()
			break
		}
		resp.Status = "success"
		resp.Data = map[string]interface{}{"filter": name}

	case "switch_camera":
		if h.callbacks.OnSwitchCamera == nil {
			resp.Status = "error"
			resp.Error = "switch_camera not implemented"
			break
		}
		data, err := h.callbacks.OnSwitchCamera()
		if err != nil {
			resp.Status = "error"
			resp.Error = err.Error()
			resp.Data = data // carries the surviving device on restore
			break
		}
		resp.Status = "success"
		resp.Data = data

	case "cycle_lens":
		if h.callbacks.OnCycleLens == nil {
			resp.Status = "error"
			resp.Error = "cycle_lens not implemented"
			break
		}
		data, err := h.callbacks.OnCycleLens()
		if err != nil {
			resp.Status = "error"
			resp.Error = err.Error()
			resp.Data = data
			break
		}
		resp.Status = "success"
		resp.Data = data

	case "set_zoom":
		if h.callbacks.OnSetZoom == nil {
			resp.Status = "error"
			resp.Error = "set_zoom not implemented"
			break
		}
		factor, ok := cmd.Params["factor"].(float64)
		if !ok {
			resp.Status = "error"
			resp.Error = "missing or invalid 'factor' parameter (expected number)"
			break
		}
		committed, err := h.callbacks.OnSetZoom(factor)
		if err != nil {
			resp.Status = "error"
			resp.Error = err.Error()
			break
		}
		resp.Status = "success"
		resp.Data = map[string]interface{}{
			"requested": factor,
			"committed": committed,
		}

	case "focus":
		if h.callbacks.OnFocus == nil {
			resp.Status = "error"
			resp.Error = "focus not implemented"
			break
		}
		x, okX := cmd.Params["x"].(float64)
		y, okY := cmd.Params["y"].(float64)
		if !okX || !okY {
			resp.Status = "error"
			resp.Error = "missing or invalid 'x'/'y' parameters (expected numbers in [0,1])"
			break
		}
		applied, err := h.callbacks.OnFocus(x, y)
		if err != nil {
			resp.Status = "error"
			resp.Error = err.Error()
			break
		}
		resp.Status = "success"
		resp.Data = map[string]interface{}{"applied": applied}

	case "set_flash":
		if h.callbacks.OnSetFlash == nil {
			resp.Status = "error"
			resp.Error = "set_flash not implemented"
			break
		}
		mode, ok := cmd.Params["mode"].(string)
		if !ok {
			resp.Status = "error"
			resp.Error = "missing or invalid 'mode' parameter (expected off/on/auto)"
			break
		}
		if err := h.callbacks.OnSetFlash(mode); err != nil {
			resp.Status = "error"
			resp.Error = err.Error()
			break
		}
		resp.Status = "success"
		resp.Data = map[string]interface{}{"flash": mode}

	case "capture_still":
		if h.callbacks.OnCaptureStill == nil {
			resp.Status = "error"
			resp.Error = "capture_still not implemented"
			break
		}
		path, _ := cmd.Params["path"].(string)
		if err := h.callbacks.OnCaptureStill(path); err != nil {
			resp.Status = "error"
			resp.Error = err.Error()
			break
		}
		// Capture is asynchronous; completion arrives as an event.
		resp.Status = "accepted"
		resp.Data = map[string]interface{}{"message": "capture started, completion event follows"}

	case "shutdown":
		if h.callbacks.OnShutdown == nil {
			resp.Status = "error"
			resp.Error = "shutdown not implemented"
			break
		}
		slog.Warn("shutdown command received via control plane")
		resp.Status = "success"
		resp.Data = map[string]interface{}{"shutdown_initiated": true}
		// Send the response before the service starts tearing down.
		h.sendResponse(resp)
		go func() {
			time.Sleep(500 * time.Millisecond)
			if err := h.callbacks.OnShutdown(); err != nil {
				slog.Error("shutdown callback failed", "error", err)
			}
		}()
		return

	default:
		resp.Status = "error"
		resp.Error = fmt.Sprintf("unknown command: %s", cmd.Command)
	}

	h.sendResponse(resp)
}

// sendResponse publishes a response on the events topic.
func (h *Handler) sendResponse(resp Response) {
	resp.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)

	payload, err := json.Marshal(resp)
	if err != nil {
		slog.Error("failed to marshal response", "error", err)
		return
	}

	topic := h.cfg.MQTT.Topics.Events
	qos := h.cfg.MQTT.QoS["events"]

	token := h.client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		slog.Error("response publish timeout")
		return
	}
	if err := token.Error(); err != nil {
		slog.Error("failed to publish response", "error", err)
		return
	}

	slog.Debug("response sent", "command_ack", resp.CommandAck, "status", resp.Status)
}
