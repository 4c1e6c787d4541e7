package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"

	"github.com/kilimcininkoroglu/earbound/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    log.Level
		wantErr bool
	}{
		{"", log.InfoLevel, false},
		{"debug", log.DebugLevel, false},
		{"WARN", log.WarnLevel, false},
		{"warning", log.WarnLevel, false},
		{"error", log.ErrorLevel, false},
		{"loud", log.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestSetup_Flags(t *testing.T) {
	defer log.SetLevel(log.InfoLevel)

	if _, err := Setup(config.LoggingConfig{Level: "warn"}, Options{Verbose: true}); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if log.GetLevel() != log.DebugLevel {
		t.Errorf("level = %v, want debug with --verbose", log.GetLevel())
	}

	if _, err := Setup(config.LoggingConfig{Level: "debug"}, Options{Quiet: true}); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if log.GetLevel() != log.ErrorLevel {
		t.Errorf("level = %v, want error with --quiet", log.GetLevel())
	}
}

func TestSetup_Invalid(t *testing.T) {
	if _, err := Setup(config.LoggingConfig{Level: "loud"}, Options{}); err == nil {
		t.Error("Setup() should reject an unknown level")
	}
	if _, err := Setup(config.LoggingConfig{Format: "xml"}, Options{}); err == nil {
		t.Error("Setup() should reject an unknown format")
	}
}

func TestSetup_File(t *testing.T) {
	defer log.SetOutput(os.Stderr)
	defer log.SetFormatter(&log.TextFormatter{})

	path := filepath.Join(t.TempDir(), "earbound.log")
	closer, err := Setup(config.LoggingConfig{Level: "info", Format: "json", File: path}, Options{})
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	log.WithField("link", "https://youtu.be/x").Info("download finished")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	log.SetOutput(os.Stderr)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), `"msg":"download finished"`) {
		t.Errorf("log file missing JSON entry: %s", data)
	}
}
