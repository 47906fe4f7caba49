package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Sensor backends.
const (
	BackendSynthetic = "synthetic"
	BackendAMG88xx   = "amg88xx"
)

// SensorConfig selects and tunes the frame source.
type SensorConfig struct {
	Backend         string `yaml:"backend"`           // "synthetic" or "amg88xx"
	I2CBus          string `yaml:"i2c_bus"`           // e.g. "1"; empty = first available bus
	I2CAddr         int    `yaml:"i2c_addr"`          // 0x68 (AD_SELECT low) or 0x69 (high)
	FrameIntervalMs int    `yaml:"frame_interval_ms"` // delay between two frames
	Seed            int64  `yaml:"seed"`              // synthetic generator seed; 0 = time based
}

// StatusLEDConfig describes the optional "sensor online" indicator.
type StatusLEDConfig struct {
	Pin int `yaml:"pin"` // GPIO pin (BCM). 0 = not used. Active HIGH.
}

// CalibrationConfig holds the initial display range.
type CalibrationConfig struct {
	MinTemp float64 `yaml:"min_temp"` // °C mapped to pure blue
	MaxTemp float64 `yaml:"max_temp"` // °C mapped to pure red
}

// CaptureConfig holds the initial burst parameters.
type CaptureConfig struct {
	IntervalMs int `yaml:"interval_ms"` // delay between two burst pictures
	MaxFrames  int `yaml:"max_frames"`  // pictures per burst
}

// RenderConfig controls rasterization of the colour grid.
type RenderConfig struct {
	CellPx  int  `yaml:"cell_px"` // pixels per sensor cell in PNG output
	Overlay bool `yaml:"overlay"` // draw the temperature on each cell when it fits
}

// GalleryConfig bounds the in-memory gallery.
type GalleryConfig struct {
	Limit int `yaml:"limit"` // 0 = unbounded
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel int  `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO   bool `yaml:"mock_gpio"`   // use mock GPIO (true=dev/test, false=real Raspberry Pi)
	WebPort    int  `yaml:"web_port"`    // default port for "thermogo serve"
}

// Config aggregates all application configuration.
type Config struct {
	Sensor      SensorConfig      `yaml:"sensor"`
	StatusLED   StatusLEDConfig   `yaml:"status_led"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Capture     CaptureConfig     `yaml:"capture"`
	Render      RenderConfig      `yaml:"render"`
	Gallery     GalleryConfig     `yaml:"gallery"`
	Defaults    DefaultsConfig    `yaml:"defaults"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.Render.Overlay = true
	cfg.Defaults.MockGPIO = true
	cfg.Defaults.DebugLevel = 1
	if err := cfg.applyDefaults(); err != nil {
		// The zero config only takes default branches.
		panic(err)
	}
	return cfg
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Config{Render: RenderConfig{Overlay: true}}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() error {
	switch cfg.Sensor.Backend {
	case "":
		cfg.Sensor.Backend = BackendSynthetic
	case BackendSynthetic, BackendAMG88xx:
	default:
		return fmt.Errorf("unsupported sensor.backend: %s", cfg.Sensor.Backend)
	}
	if cfg.Sensor.I2CAddr == 0 {
		cfg.Sensor.I2CAddr = 0x69 // Adafruit breakout default
	}
	if cfg.Sensor.I2CAddr != 0x68 && cfg.Sensor.I2CAddr != 0x69 {
		return fmt.Errorf("sensor.i2c_addr must be 0x68 or 0x69, got 0x%x", cfg.Sensor.I2CAddr)
	}
	if cfg.Sensor.FrameIntervalMs < 0 {
		return fmt.Errorf("sensor.frame_interval_ms must be >= 0, got %d", cfg.Sensor.FrameIntervalMs)
	}
	if cfg.Sensor.FrameIntervalMs == 0 {
		cfg.Sensor.FrameIntervalMs = 500
	}
	if cfg.StatusLED.Pin < 0 {
		return fmt.Errorf("status_led.pin must be >= 0, got %d", cfg.StatusLED.Pin)
	}

	if !isFinite(cfg.Calibration.MinTemp) || !isFinite(cfg.Calibration.MaxTemp) {
		return errors.New("calibration.min_temp and calibration.max_temp must be finite")
	}
	if cfg.Calibration.MinTemp == 0 && cfg.Calibration.MaxTemp == 0 {
		cfg.Calibration.MinTemp = 26 // Grid-EYE room-temperature defaults
		cfg.Calibration.MaxTemp = 32
	}

	if cfg.Capture.IntervalMs < 0 {
		return fmt.Errorf("capture.interval_ms must be >= 0, got %d", cfg.Capture.IntervalMs)
	}
	if cfg.Capture.IntervalMs == 0 {
		cfg.Capture.IntervalMs = 1000
	}
	if cfg.Capture.MaxFrames < 0 {
		return fmt.Errorf("capture.max_frames must be >= 0, got %d", cfg.Capture.MaxFrames)
	}
	if cfg.Capture.MaxFrames == 0 {
		cfg.Capture.MaxFrames = 10
	}

	if cfg.Render.CellPx < 0 {
		return fmt.Errorf("render.cell_px must be >= 0, got %d", cfg.Render.CellPx)
	}
	if cfg.Render.CellPx == 0 {
		cfg.Render.CellPx = 40 // 320x320 PNG
	}
	if cfg.Gallery.Limit < 0 {
		return fmt.Errorf("gallery.limit must be >= 0, got %d", cfg.Gallery.Limit)
	}
	if cfg.Defaults.DebugLevel < 0 || cfg.Defaults.DebugLevel > 4 {
		return fmt.Errorf("debug_level must be between 0 and 4, got %d", cfg.Defaults.DebugLevel)
	}
	if cfg.Defaults.WebPort == 0 {
		cfg.Defaults.WebPort = 8080
	}
	if cfg.Defaults.WebPort < 0 || cfg.Defaults.WebPort > 65535 {
		return fmt.Errorf("web_port must be 1-65535, got %d", cfg.Defaults.WebPort)
	}
	return nil
}

// ValidateConfigPath rejects paths that escape the configs/ directory or do
// not name a .yaml file.
func ValidateConfigPath(path string) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if strings.Contains(filepath.ToSlash(path), "..") {
		return fmt.Errorf("config path must not contain '..': %s", path)
	}
	if filepath.Ext(path) != ".yaml" {
		return fmt.Errorf("config file must have .yaml extension: %s", path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if filepath.Base(filepath.Dir(abs)) != "configs" {
		return fmt.Errorf("config file must live in a configs/ directory: %s", path)
	}
	return nil
}

// FrameInterval returns the delay between two sensor frames.
func (c *Config) FrameInterval() time.Duration {
	return time.Duration(c.Sensor.FrameIntervalMs) * time.Millisecond
}

// CaptureInterval returns the delay between two burst pictures.
func (c *Config) CaptureInterval() time.Duration {
	return time.Duration(c.Capture.IntervalMs) * time.Millisecond
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
