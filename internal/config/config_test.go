package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Output.ProgressStyle != ProgressBar {
		t.Errorf("ProgressStyle = %s, want bar", cfg.Output.ProgressStyle)
	}

	if cfg.Audio.Format != "mp3" {
		t.Errorf("Audio.Format = %s, want mp3", cfg.Audio.Format)
	}

	if cfg.Timeouts.TerminateGrace != 3*time.Second {
		t.Errorf("TerminateGrace = %v, want 3s", cfg.Timeouts.TerminateGrace)
	}

	if cfg.Timeouts.Drain != 2*time.Second {
		t.Errorf("Drain = %v, want 2s", cfg.Timeouts.Drain)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
output:
  directory: "/music"
  progress_style: "minimal"
  colors: false

tools:
  ffmpeg: "/opt/ffmpeg/bin/ffmpeg"

audio:
  format: "opus"

timeouts:
  metadata: 8s

hooks:
  webhook: "http://localhost:9000/hook"
`

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg := DefaultConfig()
	if err := cfg.LoadFile(configPath); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.Output.Directory != "/music" {
		t.Errorf("Directory = %s, want /music", cfg.Output.Directory)
	}
	if cfg.Output.ProgressStyle != ProgressMinimal {
		t.Errorf("ProgressStyle = %s, want minimal", cfg.Output.ProgressStyle)
	}
	if cfg.Output.Colors {
		t.Error("Colors should be false")
	}
	if cfg.Tools.FFmpeg != "/opt/ffmpeg/bin/ffmpeg" {
		t.Errorf("FFmpeg = %s", cfg.Tools.FFmpeg)
	}
	if cfg.Audio.Format != "opus" {
		t.Errorf("Audio.Format = %s, want opus", cfg.Audio.Format)
	}
	// Unset keys keep their defaults.
	if cfg.Audio.Bitrate != "320k" {
		t.Errorf("Audio.Bitrate = %s, want 320k", cfg.Audio.Bitrate)
	}
	if cfg.Timeouts.Metadata != 8*time.Second {
		t.Errorf("Metadata = %v, want 8s", cfg.Timeouts.Metadata)
	}
	if cfg.Timeouts.Probe != 5*time.Second {
		t.Errorf("Probe = %v, want 5s", cfg.Timeouts.Probe)
	}
	if cfg.Hooks.Webhook != "http://localhost:9000/hook" {
		t.Errorf("Webhook = %s", cfg.Hooks.Webhook)
	}
	if cfg.Source() != configPath {
		t.Errorf("Source() = %s, want %s", cfg.Source(), configPath)
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("output: [unclosed"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg := DefaultConfig()
	if err := cfg.LoadFile(configPath); err == nil {
		t.Error("LoadFile() should fail on malformed YAML")
	}
}

func TestLoadFile_Missing(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("LoadFile() should fail for a missing file")
	}
}

func TestLoad_EnvConfigPath(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(configPath, []byte("audio:\n  format: flac\n"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv("EARBOUND_CONFIG", configPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Audio.Format != "flac" {
		t.Errorf("Audio.Format = %s, want flac", cfg.Audio.Format)
	}
	if cfg.Source() != configPath {
		t.Errorf("Source() = %s, want %s", cfg.Source(), configPath)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("EARBOUND_OUTPUT_DIR", "/srv/music")
	t.Setenv("EARBOUND_FFMPEG", "/usr/local/bin/ffmpeg")
	t.Setenv("EARBOUND_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	cfg.ApplyEnv()

	if cfg.Output.Directory != "/srv/music" {
		t.Errorf("Directory = %s", cfg.Output.Directory)
	}
	if cfg.Tools.FFmpeg != "/usr/local/bin/ffmpeg" {
		t.Errorf("FFmpeg = %s", cfg.Tools.FFmpeg)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %s", cfg.Logging.Level)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"json progress", func(c *Config) { c.Output.ProgressStyle = ProgressJSON }, false},
		{"bad progress", func(c *Config) { c.Output.ProgressStyle = "fancy" }, true},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, true},
		{"zero grace", func(c *Config) { c.Timeouts.TerminateGrace = 0 }, true},
		{"negative drain", func(c *Config) { c.Timeouts.Drain = -time.Second }, true},
		{"negative threads", func(c *Config) { c.Audio.Threads = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSave(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Output.Directory = "/data/music"
	cfg.Metrics.Addr = "127.0.0.1:9090"

	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded := DefaultConfig()
	if err := loaded.LoadFile(configPath); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if loaded.Output.Directory != "/data/music" {
		t.Errorf("Directory = %s", loaded.Output.Directory)
	}
	if loaded.Metrics.Addr != "127.0.0.1:9090" {
		t.Errorf("Metrics.Addr = %s", loaded.Metrics.Addr)
	}
}

func TestConfigPaths(t *testing.T) {
	t.Setenv("EARBOUND_CONFIG", "/tmp/earbound-test.yaml")

	paths := ConfigPaths()
	if len(paths) == 0 {
		t.Fatal("ConfigPaths() returned empty")
	}
	if paths[0] != "/tmp/earbound-test.yaml" {
		t.Errorf("first path = %s, want the EARBOUND_CONFIG value", paths[0])
	}
	if paths[1] != ".earbound.yaml" {
		t.Errorf("second path = %s, want .earbound.yaml", paths[1])
	}
}

func TestGenerateDefaultConfig(t *testing.T) {
	content := GenerateDefaultConfig()

	for _, section := range []string{"output:", "tools:", "audio:", "timeouts:", "logging:", "hooks:", "metrics:"} {
		if !strings.Contains(content, section) {
			t.Errorf("generated config missing %s section", section)
		}
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(content), &cfg); err != nil {
		t.Fatalf("generated config is not valid YAML: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("generated config should validate, got %v", err)
	}
}

func TestRememberDirectory_NewFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "earbound", "config.yaml")

	if err := RememberDirectory(configPath, "/music/inbox"); err != nil {
		t.Fatalf("RememberDirectory() error = %v", err)
	}

	cfg := DefaultConfig()
	if err := cfg.LoadFile(configPath); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Output.Directory != "/music/inbox" {
		t.Errorf("Directory = %s, want /music/inbox", cfg.Output.Directory)
	}
}

func TestRememberDirectory_KeepsOtherKeys(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `# my settings
output:
  directory: "/old"
  progress_style: "json"
audio:
  format: "opus" # keep this
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if err := RememberDirectory(configPath, "/new"); err != nil {
		t.Fatalf("RememberDirectory() error = %v", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "keep this") {
		t.Error("comments should survive")
	}

	cfg := DefaultConfig()
	if err := cfg.LoadFile(configPath); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Output.Directory != "/new" {
		t.Errorf("Directory = %s, want /new", cfg.Output.Directory)
	}
	if cfg.Output.ProgressStyle != ProgressJSON {
		t.Errorf("ProgressStyle = %s, want json", cfg.Output.ProgressStyle)
	}
	if cfg.Audio.Format != "opus" {
		t.Errorf("Audio.Format = %s, want opus", cfg.Audio.Format)
	}
}

func TestRememberDirectory_AddsOutputSection(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("audio:\n  format: m4a\n"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if err := RememberDirectory(configPath, "/x"); err != nil {
		t.Fatalf("RememberDirectory() error = %v", err)
	}

	cfg := DefaultConfig()
	if err := cfg.LoadFile(configPath); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Output.Directory != "/x" || cfg.Audio.Format != "m4a" {
		t.Errorf("got directory %q format %q", cfg.Output.Directory, cfg.Audio.Format)
	}
}

func TestRememberDirectory_NotMapping(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("- a\n- b\n"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if err := RememberDirectory(configPath, "/x"); err == nil {
		t.Error("RememberDirectory() should reject a non-mapping document")
	}
}
