package tools

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/kilimcininkoroglu/earbound/internal/link"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"2024.08.06", "2024.8.6", true},
		{"4.2.5\n", "4.2.5", true},
		{"spotdl v4.0.0-beta", "4.0.0-beta", true},
		{"yt-dlp 2023.11.16 (release)", "2023.11.16", true},
		{"no version here", "", false},
		{"7", "", false},
	}
	for _, tt := range tests {
		v, ok := ParseVersion(tt.in)
		if ok != tt.wantOK {
			t.Errorf("ParseVersion(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
			continue
		}
		if ok && v.String() != tt.want {
			t.Errorf("ParseVersion(%q) = %s, want %s", tt.in, v, tt.want)
		}
	}
}

func TestAtLeast(t *testing.T) {
	tests := []struct {
		v, since string
		want     bool
	}{
		{"4.0.0", "4.0.0", true},
		{"4.0", "4.0.0", true},
		{"4.1.0", "4.0.9", true},
		{"3.9.6", "4.0.0", false},
		{"4.0.0-beta", "4.0.0", true},
		{"2024.08.06", "2021.10.10", true},
		{"2021.10.9", "2021.10.10", false},
	}
	for _, tt := range tests {
		if got := atLeast(MustVersion(tt.v), MustVersion(tt.since)); got != tt.want {
			t.Errorf("atLeast(%s, %s) = %v, want %v", tt.v, tt.since, got, tt.want)
		}
	}
	if atLeast(nil, MustVersion("1.0")) {
		t.Error("nil version should not satisfy anything")
	}
	if got := (Capabilities{Tool: YTDLP}).VersionString(); got != "unknown" {
		t.Errorf("unknown VersionString() = %q", got)
	}
}

func TestCapabilities_Supports(t *testing.T) {
	modern := Capabilities{Tool: SpotDL, Version: MustVersion("4.2.5")}
	legacy := Capabilities{Tool: SpotDL, Version: MustVersion("3.9.6")}
	unknown := Capabilities{Tool: SpotDL}

	if !modern.Supports(FeatureBitrate) {
		t.Error("spotdl 4.2.5 should support bitrate")
	}
	if legacy.Supports(FeatureBitrate) {
		t.Error("spotdl 3.9.6 should not support bitrate")
	}
	if unknown.Supports(FeatureDownloadOperation) {
		t.Error("unknown version should support no optional features")
	}
	if modern.Supports(FeatureEmbedMetadata) {
		t.Error("feature of another tool should not be supported")
	}
}

func spec(p link.Provider, kind link.Kind, caps Capabilities) Spec {
	return Spec{
		Link:           "LINK",
		Directory:      filepath.Join("music", "out"),
		Classification: link.Classification{Provider: p, Kind: kind},
		Binary:         string(caps.Tool),
		Bitrate:        DefaultBitrate,
		Caps:           caps,
	}
}

func TestStrategies_Spotify(t *testing.T) {
	strategies := Strategies(link.ProviderSpotify)
	if len(strategies) != 2 {
		t.Fatalf("len = %d, want 2", len(strategies))
	}
	if strategies[0].Name != "primary" || strategies[1].Name != "fallback" {
		t.Errorf("names = %q, %q", strategies[0].Name, strategies[1].Name)
	}

	s := spec(link.ProviderSpotify, link.KindTrack, Capabilities{Tool: SpotDL, Version: MustVersion("4.2.5")})
	s.FFmpeg = "/opt/ffmpeg"
	got := strategies[0].Build(s)
	want := []string{
		"spotdl", "download", "LINK",
		"--output", filepath.Join("music", "out", "{artists} - {title}.{output-ext}"),
		"--format", "mp3",
		"--bitrate", "320k",
		"--ffmpeg", "/opt/ffmpeg",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("primary = %q\nwant %q", got, want)
	}

	fallback := strategies[1].Build(s)
	wantFallback := []string{"spotdl", "LINK", "--output", filepath.Join("music", "out")}
	if !reflect.DeepEqual(fallback, wantFallback) {
		t.Errorf("fallback = %q, want %q", fallback, wantFallback)
	}
}

func TestStrategies_SpotifyUnknownVersion(t *testing.T) {
	s := spec(link.ProviderSpotify, link.KindPlaylist, Capabilities{Tool: SpotDL})
	got := Strategies(link.ProviderSpotify)[0].Build(s)
	want := []string{"spotdl", "LINK", "--output", filepath.Join("music", "out")}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("primary = %q, want %q", got, want)
	}
}

func TestStrategies_YouTube(t *testing.T) {
	caps := Capabilities{Tool: YTDLP, Version: MustVersion("2024.08.06")}
	strategies := Strategies(link.ProviderYouTube)

	video := strategies[0].Build(spec(link.ProviderYouTube, link.KindVideo, caps))
	joined := strings.Join(video, " ")
	for _, want := range []string{"-x", "--audio-format mp3", "--audio-quality 0", "--newline", "--embed-metadata", "--embed-thumbnail", "--no-playlist"} {
		if !strings.Contains(joined, want) {
			t.Errorf("primary %q missing %q", joined, want)
		}
	}
	if video[len(video)-1] != "LINK" {
		t.Errorf("link should be last, got %q", video)
	}
	if strings.Contains(joined, "--ffmpeg-location") {
		t.Error("ffmpeg location passed without override")
	}

	playlist := strategies[0].Build(spec(link.ProviderYouTube, link.KindPlaylist, Capabilities{Tool: YTDLP}))
	joined = strings.Join(playlist, " ")
	if !strings.Contains(joined, "--yes-playlist") {
		t.Errorf("playlist primary %q missing --yes-playlist", joined)
	}
	if strings.Contains(joined, "--embed-metadata") {
		t.Errorf("unknown version should not get optional flags: %q", joined)
	}

	fallback := strategies[1].Build(spec(link.ProviderYouTube, link.KindVideo, caps))
	wantFallback := []string{"yt-dlp", "-f", "bestaudio", "--newline", "-o", filepath.Join("music", "out", "%(title)s.%(ext)s"), "LINK"}
	if !reflect.DeepEqual(fallback, wantFallback) {
		t.Errorf("fallback = %q, want %q", fallback, wantFallback)
	}
}

func TestStrategies_Unknown(t *testing.T) {
	if s := Strategies(link.ProviderUnknown); s != nil {
		t.Errorf("Strategies(unknown) = %v, want nil", s)
	}
}

func TestLocator_Resolve(t *testing.T) {
	dir := t.TempDir()
	name := "yt-dlp"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	local := filepath.Join(dir, name)
	if err := os.WriteFile(local, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}

	l := &Locator{Overrides: map[Tool]string{SpotDL: "/custom/spotdl"}, SearchDirs: []string{dir}}
	if got := l.Resolve(SpotDL); got != "/custom/spotdl" {
		t.Errorf("Resolve(spotdl) = %q, want override", got)
	}
	if got := l.Resolve(YTDLP); got != local {
		t.Errorf("Resolve(yt-dlp) = %q, want %q", got, local)
	}
	if got := l.Resolve(FFmpeg); got != "ffmpeg" {
		t.Errorf("Resolve(ffmpeg) = %q, want bare name", got)
	}
	var nilLocator *Locator
	if got := nilLocator.Resolve(SpotDL); got != "spotdl" {
		t.Errorf("nil Resolve = %q", got)
	}
}

func TestForProviderAndHint(t *testing.T) {
	if ForProvider(link.ProviderSpotify) != SpotDL {
		t.Error("spotify should use spotdl")
	}
	if ForProvider(link.ProviderYouTube) != YTDLP {
		t.Error("youtube should use yt-dlp")
	}
	if !strings.Contains(InstallHint(SpotDL), "pip install spotdl") {
		t.Errorf("InstallHint(spotdl) = %q", InstallHint(SpotDL))
	}
}

func TestVersionProber(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Skipping on Windows")
	}

	script := filepath.Join(t.TempDir(), "fake-ytdlp")
	if err := os.WriteFile(script, []byte("#!/bin/sh\necho 2024.08.06\n"), 0755); err != nil {
		t.Fatal(err)
	}

	p := NewVersionProber(2 * time.Second)
	caps := p.Probe(context.Background(), YTDLP, script)
	if caps.VersionString() != "2024.8.6" {
		t.Errorf("Version = %s, want 2024.8.6", caps.VersionString())
	}
	if !caps.Supports(FeatureEmbedMetadata) {
		t.Error("probed yt-dlp should support embed-metadata")
	}

	missing := p.Probe(context.Background(), SpotDL, "/nonexistent/spotdl")
	if missing.Known() {
		t.Errorf("missing binary probed as %s", missing.VersionString())
	}
}

func TestVersionProber_Timeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Skipping on Windows")
	}

	script := filepath.Join(t.TempDir(), "slow-tool")
	if err := os.WriteFile(script, []byte("#!/bin/sh\nexec sleep 10\n"), 0755); err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	caps := NewVersionProber(100*time.Millisecond).Probe(context.Background(), SpotDL, script)
	if caps.Known() {
		t.Error("timed out probe should be unknown")
	}
	if time.Since(start) > 3*time.Second {
		t.Errorf("probe took %v", time.Since(start))
	}
}

func TestStaticProber(t *testing.T) {
	p := StaticProber{SpotDL: MustVersion("4.1.0")}
	if c := p.Probe(context.Background(), SpotDL, "spotdl"); !c.Supports(FeatureThreads) {
		t.Error("static 4.1.0 should support threads")
	}
	if c := p.Probe(context.Background(), YTDLP, "yt-dlp"); c.Known() {
		t.Error("unset tool should be unknown")
	}
}
