package emitter

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

// Event is an asynchronous notification published on the events
// topic: device switches, still completions, session failures.
type Event struct {
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp string                 `json:"timestamp"`
}

// MQTTEmitter publishes events and health beats to the broker.
type MQTTEmitter struct {
	cfg    *config.Config
	Client mqtt.Client // exported for the control plane handler

	mu        sync.RWMutex
	connected bool
	published map[string]uint64 // count per event type
	errors    uint64
}

// Stats contains emitter statistics.
type Stats struct {
	Connected bool
	Published map[string]uint64
	Errors    uint64
}

// NewMQTTEmitter creates an emitter for the configured broker.
func NewMQTTEmitter(cfg *config.Config) *MQTTEmitter {
	return &MQTTEmitter{
		cfg:       cfg,
		published: make(map[string]uint64),
	}
}

// Connect establishes the broker connection with auto-reconnect.
func (e *MQTTEmitter) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(e.cfg.MQTT.Broker)
	opts.SetClientID(e.cfg.InstanceID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		e.mu.Lock()
		e.connected = true
		e.mu.Unlock()
		slog.Info("mqtt connection established",
			"broker", e.cfg.MQTT.Broker,
			"client_id", e.cfg.InstanceID)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		e.mu.Lock()
		e.connected = false
		e.mu.Unlock()
		slog.Warn("mqtt connection lost, will auto-reconnect",
			"error", err,
			"broker", e.cfg.MQTT.Broker)
	}

	e.Client = mqtt.NewClient(opts)

	slog.Info("connecting to mqtt broker", "broker", e.cfg.MQTT.Broker)

	token := e.Client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("emitter: mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("emitter: mqtt connection failed: %w", err)
	}

	e.mu.Lock()
	e.connected = true
	e.mu.Unlock()
	return nil
}

// PublishEvent publishes one event on the events topic.
func (e *MQTTEmitter) PublishEvent(eventType string, data map[string]interface{}) error {
	if !e.isConnected() {
		e.countError()
		return fmt.Errorf("emitter: mqtt not connected")
	}

	event := Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		e.countError()
		return fmt.Errorf("emitter: marshal event: %w", err)
	}

	topic := e.cfg.MQTT.Topics.Events
	qos := e.cfg.MQTT.QoS["events"]

	token := e.Client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		e.countError()
		return fmt.Errorf("emitter: publish timeout")
	}
	if err := token.Error(); err != nil {
		e.countError()
		return fmt.Errorf("emitter: publish failed: %w", err)
	}

	e.mu.Lock()
	e.published[eventType]++
	e.mu.Unlock()

	slog.Debug("event published", "type", eventType, "topic", topic, "size", len(payload))
	return nil
}

// PublishHealth publishes a health payload.
func (e *MQTTEmitter) PublishHealth(payload []byte) error {
	if !e.isConnected() {
		return fmt.Errorf("emitter: mqtt not connected")
	}

	topic := e.cfg.MQTT.Topics.Health
	qos := e.cfg.MQTT.QoS["health"]

	token := e.Client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		return fmt.Errorf("emitter: publish timeout")
	}
	return token.Error()
}

// Disconnect closes the broker connection.
func (e *MQTTEmitter) Disconnect() error {
	if e.Client != nil && e.Client.IsConnected() {
		e.Client.Disconnect(250)
		slog.Info("mqtt disconnected")
	}
	e.mu.Lock()
	e.connected = false
	e.mu.Unlock()
	return nil
}

// Stats returns emitter statistics.
func (e *MQTTEmitter) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	published := make(map[string]uint64, len(e.published))
	for k, v := range e.published {
		published[k] = v
	}

	return Stats{
		Connected: e.connected,
		Published: published,
		Errors:    e.errors,
	}
}

func (e *MQTTEmitter) isConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.connected
}

func (e *MQTTEmitter) countError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}
