package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/menta2k/image-redactor/pkg/analyzer"
	"github.com/menta2k/image-redactor/pkg/interaction"
	"github.com/menta2k/image-redactor/pkg/processing"
	"github.com/menta2k/image-redactor/pkg/raster"
	"github.com/menta2k/image-redactor/pkg/redaction"
	"github.com/menta2k/image-redactor/pkg/session"
)

// AppName is the application name used for XDG directory paths
const AppName = "image-redactor"

// Config holds the application configuration
type Config struct {
	Editor      EditorConfig      `yaml:"editor"`
	Export      ExportConfig      `yaml:"export"`
	Acquisition AcquisitionConfig `yaml:"acquisition"`
	Log         LogConfig         `yaml:"log"`
}

// EditorConfig holds box geometry and pointer settings
type EditorConfig struct {
	DefaultWidth  float64 `yaml:"default_width"`
	DefaultHeight float64 `yaml:"default_height"`
	MinWidth      float64 `yaml:"min_width"`
	MinHeight     float64 `yaml:"min_height"`
	HandleSize    float64 `yaml:"handle_size"`
}

// ExportConfig holds rasterization and output settings
type ExportConfig struct {
	Filename    string  `yaml:"filename"`
	RadiusRatio float64 `yaml:"radius_ratio"`
	MinRadius   float64 `yaml:"min_radius"`
	MaxRadius   float64 `yaml:"max_radius"`
}

// AcquisitionConfig holds limits for fetching and decoding source images
type AcquisitionConfig struct {
	MaxBytes         int64    `yaml:"max_bytes"`
	TimeoutSeconds   int      `yaml:"timeout_seconds"`
	UserAgent        string   `yaml:"user_agent"`
	SupportedFormats []string `yaml:"supported_formats"`
	MinImageSize     int      `yaml:"min_image_size"`
	MaxPixels        int      `yaml:"max_pixels"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a configuration with default values
func Default() *Config {
	proc := processing.DefaultConfig()
	an := analyzer.DefaultConfig()
	ras := raster.DefaultConfig()
	return &Config{
		Editor: EditorConfig{
			DefaultWidth:  redaction.DefaultWidth,
			DefaultHeight: redaction.DefaultHeight,
			MinWidth:      redaction.MinWidth,
			MinHeight:     redaction.MinHeight,
			HandleSize:    interaction.DefaultHandleSize,
		},
		Export: ExportConfig{
			Filename:    "redacted.png",
			RadiusRatio: ras.RadiusRatio,
			MinRadius:   ras.MinRadius,
			MaxRadius:   ras.MaxRadius,
		},
		Acquisition: AcquisitionConfig{
			MaxBytes:         proc.MaxBytes,
			TimeoutSeconds:   int(proc.Timeout / time.Second),
			UserAgent:        proc.UserAgent,
			SupportedFormats: an.SupportedFormats,
			MinImageSize:     an.MinImageSize,
			MaxPixels:        an.MaxPixels,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadFromFile loads configuration from a YAML file. Keys missing from the
// file keep their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Load reads the file at path, or the default config path when path is
// empty. A missing default file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = GetConfigPath()
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
	}
	config, err := LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	e := c.Editor
	if e.MinWidth <= 0 || e.MinWidth > 1 || e.MinHeight <= 0 || e.MinHeight > 1 {
		return fmt.Errorf("editor.min_width and editor.min_height must be in (0, 1]")
	}

	if e.DefaultWidth < e.MinWidth || e.DefaultWidth > 1 {
		return fmt.Errorf("editor.default_width must be between min_width and 1")
	}

	if e.DefaultHeight < e.MinHeight || e.DefaultHeight > 1 {
		return fmt.Errorf("editor.default_height must be between min_height and 1")
	}

	if e.HandleSize <= 0 {
		return fmt.Errorf("editor.handle_size must be positive")
	}

	if c.Export.Filename == "" {
		return fmt.Errorf("export.filename cannot be empty")
	}

	if c.Export.RadiusRatio < 0 {
		return fmt.Errorf("export.radius_ratio must not be negative")
	}

	if c.Export.MinRadius < 0 || c.Export.MaxRadius < c.Export.MinRadius {
		return fmt.Errorf("export.min_radius must be non-negative and not exceed export.max_radius")
	}

	if c.Acquisition.MaxBytes <= 0 {
		return fmt.Errorf("acquisition.max_bytes must be positive")
	}

	if c.Acquisition.TimeoutSeconds <= 0 {
		return fmt.Errorf("acquisition.timeout_seconds must be positive")
	}

	if c.Acquisition.MinImageSize < 1 {
		return fmt.Errorf("acquisition.min_image_size must be positive")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error")
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json")
	}

	return nil
}

// Session converts the editor and export sections into session settings
func (c *Config) Session() session.Config {
	return session.Config{
		Redaction: redaction.Config{
			DefaultWidth:  c.Editor.DefaultWidth,
			DefaultHeight: c.Editor.DefaultHeight,
			MinWidth:      c.Editor.MinWidth,
			MinHeight:     c.Editor.MinHeight,
		},
		Raster: raster.Config{
			Fill:        raster.DefaultConfig().Fill,
			RadiusRatio: c.Export.RadiusRatio,
			MinRadius:   c.Export.MinRadius,
			MaxRadius:   c.Export.MaxRadius,
		},
		HandleSize: c.Editor.HandleSize,
	}
}

// Processing converts the acquisition section into fetch settings
func (c *Config) Processing() processing.Config {
	return processing.Config{
		MaxBytes:  c.Acquisition.MaxBytes,
		Timeout:   time.Duration(c.Acquisition.TimeoutSeconds) * time.Second,
		UserAgent: c.Acquisition.UserAgent,
	}
}

// Analyzer converts the acquisition section into validation settings
func (c *Config) Analyzer() analyzer.Config {
	return analyzer.Config{
		SupportedFormats: c.Acquisition.SupportedFormats,
		MinImageSize:     c.Acquisition.MinImageSize,
		MaxPixels:        c.Acquisition.MaxPixels,
	}
}

// ConfigDir returns the XDG config directory for the application.
// On Linux: ~/.config/image-redactor
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
