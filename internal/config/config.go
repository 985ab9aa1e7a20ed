package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// CameraConfig describes the capture device.
// Type selects a concrete implementation (e.g., "simulated").
type CameraConfig struct {
	Type                string   `yaml:"type"`                  // e.g., "simulated"
	RawFormats          []string `yaml:"raw_formats"`           // FourCC codes advertised by the photo output, in order
	PreviewFormats      []string `yaml:"preview_formats"`       // FourCC codes for embedded previews
	TelemetryIntervalMs int      `yaml:"telemetry_interval_ms"` // AE/AF loop period
	MinExposureMs       float64  `yaml:"min_exposure_ms"`       // auto-exposure lower bound
	MaxExposureMs       float64  `yaml:"max_exposure_ms"`       // auto-exposure upper bound
	MinISO              float64  `yaml:"min_iso"`
	MaxISO              float64  `yaml:"max_iso"`
}

// ResolutionConfig is optional: sensor/image resolution in pixels.
type ResolutionConfig struct {
	WidthPx  int `yaml:"width_px"`  // e.g., 4032
	HeightPx int `yaml:"height_px"` // e.g., 3024
}

// StorageConfig says where captured files go.
type StorageConfig struct {
	DocumentsDir string `yaml:"documents_dir"` // default: ~/Documents
}

// ShareConfig lists share activities hidden from the share sheet.
type ShareConfig struct {
	Excluded []string `yaml:"excluded"`
}

// ButtonConfig describes the optional hardware capture button.
type ButtonConfig struct {
	Pin        int `yaml:"pin"`         // GPIO input pin (BCM). 0 = no button. Active LOW with pull-up.
	PollMs     int `yaml:"poll_ms"`     // polling period
	DebounceMs int `yaml:"debounce_ms"` // level must hold this long to count as a press
}

// PreviewConfig is the size of the preview surface served to the UI.
type PreviewConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel int  `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO   bool `yaml:"mock_gpio"`   // use mock GPIO (true=dev/test, false=real Raspberry Pi)
}

// Config aggregates all application configuration.
type Config struct {
	Camera     CameraConfig      `yaml:"camera"`
	Resolution *ResolutionConfig `yaml:"resolution,omitempty"` // optional
	Storage    StorageConfig     `yaml:"storage"`
	Share      ShareConfig       `yaml:"share"`
	Button     ButtonConfig      `yaml:"button"`
	Preview    PreviewConfig     `yaml:"preview"`
	Defaults   DefaultsConfig    `yaml:"defaults"`
}

// ValidateConfigPath accepts only .yaml files located directly in a configs/ directory.
func ValidateConfigPath(path string) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}
	clean := filepath.Clean(path)
	if filepath.Ext(clean) != ".yaml" {
		return fmt.Errorf("config file must have .yaml extension: %s", path)
	}
	abs, err := filepath.Abs(clean)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if filepath.Base(filepath.Dir(abs)) != "configs" {
		return fmt.Errorf("config file must be inside a configs/ directory: %s", path)
	}
	return nil
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	if err := ValidateConfigPath(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() error {
	if c.Camera.Type == "" {
		return fmt.Errorf("camera.type is required")
	}
	if c.Camera.RawFormats == nil {
		c.Camera.RawFormats = []string{"grb4"} // 14-bit GRBG Bayer
	}
	if c.Camera.PreviewFormats == nil {
		c.Camera.PreviewFormats = []string{"BGRA"}
	}
	for _, f := range append(append([]string{}, c.Camera.RawFormats...), c.Camera.PreviewFormats...) {
		if len(f) != 4 {
			return fmt.Errorf("pixel format %q must be a 4-character code", f)
		}
	}
	if c.Camera.TelemetryIntervalMs <= 0 {
		c.Camera.TelemetryIntervalMs = 200
	}
	if c.Camera.MinExposureMs <= 0 {
		c.Camera.MinExposureMs = 0.5 // 1/2000
	}
	if c.Camera.MaxExposureMs <= 0 {
		c.Camera.MaxExposureMs = 100 // 1/10
	}
	if c.Camera.MinExposureMs > c.Camera.MaxExposureMs {
		return fmt.Errorf("camera.min_exposure_ms (%.3f) must be <= max_exposure_ms (%.3f)", c.Camera.MinExposureMs, c.Camera.MaxExposureMs)
	}
	if c.Camera.MinISO <= 0 {
		c.Camera.MinISO = 25
	}
	if c.Camera.MaxISO <= 0 {
		c.Camera.MaxISO = 1600
	}
	if c.Camera.MinISO > c.Camera.MaxISO {
		return fmt.Errorf("camera.min_iso (%.0f) must be <= max_iso (%.0f)", c.Camera.MinISO, c.Camera.MaxISO)
	}

	if c.Resolution != nil && (c.Resolution.WidthPx <= 0 || c.Resolution.HeightPx <= 0) {
		return fmt.Errorf("resolution must be positive, got %dx%d", c.Resolution.WidthPx, c.Resolution.HeightPx)
	}

	if c.Storage.DocumentsDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("storage.documents_dir not set and no home directory: %w", err)
		}
		c.Storage.DocumentsDir = filepath.Join(home, "Documents")
	}

	if c.Share.Excluded == nil {
		c.Share.Excluded = []string{"copy_to_pasteboard", "assign_to_contact", "open_in_books"}
	}

	if c.Button.Pin < 0 {
		return fmt.Errorf("button.pin must be >= 0, got %d", c.Button.Pin)
	}
	if c.Button.PollMs <= 0 {
		c.Button.PollMs = 10
	}
	if c.Button.DebounceMs <= 0 {
		c.Button.DebounceMs = 30
	}

	if c.Preview.Width <= 0 {
		c.Preview.Width = 640
	}
	if c.Preview.Height <= 0 {
		c.Preview.Height = 480
	}
	return nil
}

// TelemetryInterval returns the period of the simulated AE/AF loop.
func (c *Config) TelemetryInterval() time.Duration {
	return time.Duration(c.Camera.TelemetryIntervalMs) * time.Millisecond
}

// ExposureRange returns the auto-exposure bounds.
func (c *Config) ExposureRange() (min, max time.Duration) {
	return time.Duration(c.Camera.MinExposureMs * float64(time.Millisecond)),
		time.Duration(c.Camera.MaxExposureMs * float64(time.Millisecond))
}

// ButtonPoll returns the button polling period.
func (c *Config) ButtonPoll() time.Duration {
	return time.Duration(c.Button.PollMs) * time.Millisecond
}

// ButtonDebounce returns how long the button must stay pressed.
func (c *Config) ButtonDebounce() time.Duration {
	return time.Duration(c.Button.DebounceMs) * time.Millisecond
}

// SensorSize returns the sensor resolution, falling back to a small default.
func (c *Config) SensorSize() (width, height int) {
	if c.Resolution == nil {
		return 640, 480
	}
	return c.Resolution.WidthPx, c.Resolution.HeightPx
}
