// Package tools knows how to invoke the external downloaders: where
// their binaries live, which version is installed, and which command
// lines to try.
package tools

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/kilimcininkoroglu/earbound/internal/link"
)

// Tool is an external program earbound drives
type Tool string

const (
	SpotDL Tool = "spotdl"
	YTDLP  Tool = "yt-dlp"
	FFmpeg Tool = "ffmpeg"
)

// ForProvider returns the downloader used for a provider
func ForProvider(p link.Provider) Tool {
	if p == link.ProviderSpotify {
		return SpotDL
	}
	return YTDLP
}

// InstallHint returns a remediation message for a missing tool
func InstallHint(t Tool) string {
	switch t {
	case SpotDL:
		return "install spotdl with: pip install spotdl"
	case YTDLP:
		return "install yt-dlp with: pip install yt-dlp"
	case FFmpeg:
		return "install ffmpeg from your package manager or set tools.ffmpeg in the config"
	default:
		return "install " + string(t) + " and make sure it is on PATH"
	}
}

// Locator resolves tool names to executables
type Locator struct {
	// Overrides maps a tool to a configured path
	Overrides map[Tool]string
	// SearchDirs are checked before PATH
	SearchDirs []string
}

// NewLocator creates a Locator that also looks next to the running
// executable and in ./bin.
func NewLocator(overrides map[Tool]string) *Locator {
	l := &Locator{Overrides: overrides}
	if exe, err := os.Executable(); err == nil {
		l.SearchDirs = append(l.SearchDirs, filepath.Dir(exe))
	}
	l.SearchDirs = append(l.SearchDirs, "bin")
	return l
}

// Resolve returns the command to run for t. When nothing better is
// found the bare name is returned and left to PATH lookup.
func (l *Locator) Resolve(t Tool) string {
	if l != nil {
		if p := l.Overrides[t]; p != "" {
			return p
		}
		name := string(t)
		if runtime.GOOS == "windows" {
			name += ".exe"
		}
		for _, dir := range l.SearchDirs {
			candidate := filepath.Join(dir, name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate
			}
		}
	}
	return string(t)
}

// Available reports whether t resolves to something executable
func (l *Locator) Available(t Tool) bool {
	_, err := exec.LookPath(l.Resolve(t))
	return err == nil
}

// FFmpegOverride returns the configured codec binary path, or "" to
// leave it to the downloader.
func (l *Locator) FFmpegOverride() string {
	if l == nil {
		return ""
	}
	return l.Overrides[FFmpeg]
}
