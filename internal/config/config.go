package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the complete lumend configuration.
type Config struct {
	InstanceID       string        `yaml:"instance_id"`
	ShutdownTimeoutS int           `yaml:"shutdown_timeout_s"` // graceful shutdown budget (default: 5)
	Rig              RigConfig     `yaml:"rig"`
	Filter           FilterConfig  `yaml:"filter"`
	Preview          PreviewConfig `yaml:"preview"`
	Health           HealthConfig  `yaml:"health"`
	MQTT             MQTTConfig    `yaml:"mqtt"`
}

// RigConfig selects the capture backend and declares its devices.
type RigConfig struct {
	Backend string        `yaml:"backend"` // sim, v4l2, gst, mixed
	V4L2    []V4L2Device  `yaml:"v4l2,omitempty"`
	GST     []MJPEGDevice `yaml:"gst,omitempty"`
}

// V4L2Device declares one kernel capture node for the v4l2 backend.
type V4L2Device struct {
	Path     string `yaml:"path"`
	Position string `yaml:"position"` // back, front
	Lens     string `yaml:"lens"`     // wide, telephoto, ultrawide
	Model    string `yaml:"model,omitempty"`

	Width  int `yaml:"width,omitempty"`
	Height int `yaml:"height,omitempty"`
	FPS    int `yaml:"fps,omitempty"`

	MaxZoomFactor float64 `yaml:"max_zoom_factor,omitempty"`
	ZoomMin       int32   `yaml:"zoom_min,omitempty"`
	ZoomMax       int32   `yaml:"zoom_max,omitempty"`
	Focusable     bool    `yaml:"focusable,omitempty"`
}

// MJPEGDevice declares one compressed-mode node for the gst backend.
type MJPEGDevice struct {
	Path     string `yaml:"path"`
	Position string `yaml:"position"`
	Lens     string `yaml:"lens"`
	Model    string `yaml:"model,omitempty"`

	Width  int `yaml:"width,omitempty"`
	Height int `yaml:"height,omitempty"`
	FPS    int `yaml:"fps,omitempty"`
}

// FilterConfig sets the boot-time color filter.
type FilterConfig struct {
	Identity    string `yaml:"identity"`              // none, mono, sepia, vivid, fade, arctic, custom
	CubePath    string `yaml:"cube_path,omitempty"`   // required when identity is custom
	BufferCount int    `yaml:"buffer_count,omitempty"`
	Workers     int    `yaml:"workers,omitempty"` // 0 = auto
}

// PreviewConfig sets the websocket preview surface.
type PreviewConfig struct {
	Listen  string `yaml:"listen"`            // e.g. :8089; empty disables preview
	Quality int    `yaml:"quality,omitempty"` // JPEG quality 1..100, default 80
	MaxFPS  int    `yaml:"max_fps,omitempty"` // encode ceiling, default 15
}

// HealthConfig sets the HTTP health surface.
type HealthConfig struct {
	Listen string `yaml:"listen"` // e.g. :8080; empty disables
}

// MQTTConfig contains broker settings for the control plane.
type MQTTConfig struct {
	Broker string          `yaml:"broker"` // empty disables the control plane
	Topics MQTTTopics      `yaml:"topics"`
	QoS    map[string]byte `yaml:"qos"`
}

// MQTTTopics contains topic templates.
type MQTTTopics struct {
	Control string `yaml:"control"`
	Events  string `yaml:"events"`
	Health  string `yaml:"health"`
}

// Load reads, parses and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates configuration bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}
