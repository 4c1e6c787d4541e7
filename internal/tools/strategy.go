package tools

import (
	"path/filepath"
	"strconv"

	"github.com/kilimcininkoroglu/earbound/internal/link"
)

// Defaults for audio output
const (
	DefaultFormat  = "mp3"
	DefaultBitrate = "320k"
)

// Spec is everything a strategy needs to build a command line
type Spec struct {
	Link           string
	Directory      string
	Classification link.Classification
	Binary         string
	FFmpeg         string // optional codec binary override
	Format         string
	Bitrate        string
	Threads        int
	Caps           Capabilities
}

func (s Spec) format() string {
	if s.Format == "" {
		return DefaultFormat
	}
	return s.Format
}

// Strategy builds one command line for a download attempt
type Strategy struct {
	Name  string
	Build func(Spec) []string
}

// Strategies returns the ordered attempts for a provider: a fully
// optioned primary followed by a minimal fallback.
func Strategies(p link.Provider) []Strategy {
	switch p {
	case link.ProviderSpotify:
		return []Strategy{
			{Name: "primary", Build: spotdlPrimary},
			{Name: "fallback", Build: spotdlFallback},
		}
	case link.ProviderYouTube:
		return []Strategy{
			{Name: "primary", Build: ytdlpPrimary},
			{Name: "fallback", Build: ytdlpFallback},
		}
	}
	return nil
}

func spotdlPrimary(s Spec) []string {
	args := []string{s.Binary}
	if s.Caps.Supports(FeatureDownloadOperation) {
		args = append(args, "download")
	}
	args = append(args, s.Link)

	if s.Caps.Supports(FeatureOutputTemplate) {
		args = append(args, "--output", filepath.Join(s.Directory, "{artists} - {title}.{output-ext}"))
	} else {
		args = append(args, "--output", s.Directory)
	}
	if s.Caps.Supports(FeatureFormat) {
		args = append(args, "--format", s.format())
	}
	if s.Bitrate != "" && s.Caps.Supports(FeatureBitrate) {
		args = append(args, "--bitrate", s.Bitrate)
	}
	if s.FFmpeg != "" && s.Caps.Supports(FeatureFFmpegPath) {
		args = append(args, "--ffmpeg", s.FFmpeg)
	}
	if s.Threads > 0 && s.Caps.Supports(FeatureThreads) {
		args = append(args, "--threads", strconv.Itoa(s.Threads))
	}
	return args
}

func spotdlFallback(s Spec) []string {
	return []string{s.Binary, s.Link, "--output", s.Directory}
}

func ytdlpTemplate(dir string) string {
	return filepath.Join(dir, "%(title)s.%(ext)s")
}

func ytdlpPrimary(s Spec) []string {
	args := []string{
		s.Binary,
		"-x",
		"--audio-format", s.format(),
		"--audio-quality", "0",
		"--newline",
		"-o", ytdlpTemplate(s.Directory),
	}
	if s.FFmpeg != "" {
		args = append(args, "--ffmpeg-location", s.FFmpeg)
	}
	if s.Caps.Supports(FeatureEmbedMetadata) {
		args = append(args, "--embed-metadata")
	}
	if s.Caps.Supports(FeatureEmbedThumbnail) {
		args = append(args, "--embed-thumbnail")
	}
	if s.Classification.Kind == link.KindPlaylist {
		args = append(args, "--yes-playlist")
	} else {
		args = append(args, "--no-playlist")
	}
	return append(args, s.Link)
}

func ytdlpFallback(s Spec) []string {
	return []string{s.Binary, "-f", "bestaudio", "--newline", "-o", ytdlpTemplate(s.Directory), s.Link}
}
