package tools

import "github.com/hashicorp/go-version"

// Feature names an optional capability of a downloader tool
type Feature string

const (
	FeatureDownloadOperation Feature = "download-operation"
	FeatureOutputTemplate    Feature = "output-template"
	FeatureFormat            Feature = "format"
	FeatureBitrate           Feature = "bitrate"
	FeatureFFmpegPath        Feature = "ffmpeg-path"
	FeatureThreads           Feature = "threads"
	FeatureEmbedMetadata     Feature = "embed-metadata"
	FeatureEmbedThumbnail    Feature = "embed-thumbnail"
)

// featureTable maps each tool to the first version supporting a feature
var featureTable = map[Tool]map[Feature]*version.Version{
	SpotDL: {
		FeatureDownloadOperation: MustVersion("4.0.0"),
		FeatureOutputTemplate:    MustVersion("4.0.0"),
		FeatureFormat:            MustVersion("4.0.0"),
		FeatureBitrate:           MustVersion("4.0.0"),
		FeatureFFmpegPath:        MustVersion("4.0.0"),
		FeatureThreads:           MustVersion("4.0.0"),
	},
	YTDLP: {
		FeatureEmbedThumbnail: MustVersion("2021.2.4"),
		FeatureEmbedMetadata:  MustVersion("2021.10.10"),
	},
}

// Capabilities is what a probe learned about an installed tool
type Capabilities struct {
	Tool    Tool
	Version *version.Version
}

// Known reports whether the version was detected
func (c Capabilities) Known() bool {
	return c.Version != nil
}

// VersionString renders the detected version, "unknown" if none
func (c Capabilities) VersionString() string {
	return versionString(c.Version)
}

// Supports looks the feature up in the version table. An unknown
// version supports nothing optional.
func (c Capabilities) Supports(f Feature) bool {
	if !c.Known() {
		return false
	}
	since, ok := featureTable[c.Tool][f]
	if !ok {
		return false
	}
	return atLeast(c.Version, since)
}
