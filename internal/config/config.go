// Package config provides configuration management for Earbound.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete Earbound configuration
type Config struct {
	Output   OutputConfig   `yaml:"output"`
	Tools    ToolsConfig    `yaml:"tools"`
	Audio    AudioConfig    `yaml:"audio"`
	Timeouts TimeoutsConfig `yaml:"timeouts"`
	Logging  LoggingConfig  `yaml:"logging"`
	Hooks    HooksConfig    `yaml:"hooks"`
	Metrics  MetricsConfig  `yaml:"metrics"`

	source string
}

// OutputConfig holds output settings
type OutputConfig struct {
	Directory     string `yaml:"directory"`
	ProgressStyle string `yaml:"progress_style"` // bar, minimal, json, none
	Colors        bool   `yaml:"colors"`
	TUI           bool   `yaml:"tui"`
}

// ToolsConfig overrides where external binaries are found
type ToolsConfig struct {
	SpotDL string `yaml:"spotdl"`
	YTDLP  string `yaml:"ytdlp"`
	FFmpeg string `yaml:"ffmpeg"`
}

// AudioConfig holds audio output settings
type AudioConfig struct {
	Format  string `yaml:"format"`
	Bitrate string `yaml:"bitrate"`
	Threads int    `yaml:"threads"`
}

// TimeoutsConfig bounds the helper steps of a download
type TimeoutsConfig struct {
	Probe          time.Duration `yaml:"probe"`
	Metadata       time.Duration `yaml:"metadata"`
	TerminateGrace time.Duration `yaml:"terminate_grace"`
	Drain          time.Duration `yaml:"drain"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"` // debug, info, warn, error
	File   string `yaml:"file"`
	Format string `yaml:"format"` // text, json
}

// HooksConfig holds commands and webhooks run after downloads
type HooksConfig struct {
	OnComplete string `yaml:"on_complete"`
	OnError    string `yaml:"on_error"`
	Webhook    string `yaml:"webhook"`
}

// MetricsConfig holds the metrics endpoint settings
type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables the endpoint
}

// Progress styles
const (
	ProgressBar     = "bar"
	ProgressMinimal = "minimal"
	ProgressJSON    = "json"
	ProgressNone    = "none"
)

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Output: OutputConfig{
			Directory:     "",
			ProgressStyle: ProgressBar,
			Colors:        true,
		},
		Audio: AudioConfig{
			Format:  "mp3",
			Bitrate: "320k",
		},
		Timeouts: TimeoutsConfig{
			Probe:          5 * time.Second,
			Metadata:       5 * time.Second,
			TerminateGrace: 3 * time.Second,
			Drain:          2 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// ConfigPaths returns the list of config file paths in priority order
func ConfigPaths() []string {
	paths := make([]string, 0, 7)

	if envPath := os.Getenv("EARBOUND_CONFIG"); envPath != "" {
		paths = append(paths, envPath)
	}

	paths = append(paths, ".earbound.yaml", ".earbound.yml")

	if configDir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(configDir, "earbound", "config.yaml"))
		paths = append(paths, filepath.Join(configDir, "earbound", "config.yml"))
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(homeDir, ".earbound.yaml"))
	}

	if runtime.GOOS != "windows" {
		paths = append(paths, "/etc/earbound/config.yaml")
	}

	return paths
}

// Load loads configuration from the first available config file and
// applies environment overrides
func Load() (*Config, error) {
	config := DefaultConfig()

	for _, path := range ConfigPaths() {
		if _, err := os.Stat(path); err == nil {
			if err := config.LoadFile(path); err != nil {
				return nil, fmt.Errorf("loading config from %s: %w", path, err)
			}
			break
		}
	}

	config.ApplyEnv()
	return config, nil
}

// LoadFile loads configuration from a specific file
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	c.source = path
	return nil
}

// Source returns the file the config was loaded from, if any
func (c *Config) Source() string {
	return c.source
}

// ApplyEnv overrides settings from EARBOUND_* environment variables
func (c *Config) ApplyEnv() {
	if v := os.Getenv("EARBOUND_OUTPUT_DIR"); v != "" {
		c.Output.Directory = v
	}
	if v := os.Getenv("EARBOUND_FFMPEG"); v != "" {
		c.Tools.FFmpeg = v
	}
	if v := os.Getenv("EARBOUND_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks values that cannot be fixed up silently
func (c *Config) Validate() error {
	switch c.Output.ProgressStyle {
	case ProgressBar, ProgressMinimal, ProgressJSON, ProgressNone:
	default:
		return fmt.Errorf("invalid progress style %q", c.Output.ProgressStyle)
	}

	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid log format %q", c.Logging.Format)
	}

	timeouts := map[string]time.Duration{
		"probe":           c.Timeouts.Probe,
		"metadata":        c.Timeouts.Metadata,
		"terminate_grace": c.Timeouts.TerminateGrace,
		"drain":           c.Timeouts.Drain,
	}
	for name, d := range timeouts {
		if d <= 0 {
			return fmt.Errorf("timeouts.%s must be positive, got %s", name, d)
		}
	}

	if c.Audio.Threads < 0 {
		return errors.New("audio.threads must not be negative")
	}
	return nil
}

// Save saves configuration to a file
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// GetDefaultConfigPath returns the default path for saving user config
func GetDefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "earbound", "config.yaml"), nil
}

// GenerateDefaultConfig generates a default config file content
func GenerateDefaultConfig() string {
	return `# Earbound Configuration File

# Output settings
output:
  directory: ""           # Base download directory (empty = current)
  progress_style: "bar"   # Progress display: bar, minimal, json, none
  colors: true            # Enable colored output
  tui: false              # Use the interactive terminal UI

# External tools (empty = search next to earbound, ./bin, then PATH)
tools:
  spotdl: ""
  ytdlp: ""
  ffmpeg: ""              # Codec binary passed to the downloaders

# Audio output
audio:
  format: "mp3"
  bitrate: "320k"         # spotdl only
  threads: 0              # spotdl download threads (0 = tool default)

# Timeouts
timeouts:
  probe: 5s               # Tool version detection
  metadata: 5s            # Title and playlist name lookups
  terminate_grace: 3s     # Wait before killing a cancelled download
  drain: 2s               # Keep reading output after the tool exits

# Logging settings
logging:
  level: "info"           # Log level: debug, info, warn, error
  file: ""                # Log file path (empty = stderr only)
  format: "text"          # Log format: text, json

# Hooks run after each download
hooks:
  on_complete: ""         # Shell command on success
  on_error: ""            # Shell command on failure
  webhook: ""             # URL receiving a JSON POST

# Prometheus metrics
metrics:
  addr: ""                # e.g. "127.0.0.1:9090" (empty = disabled)
`
}
