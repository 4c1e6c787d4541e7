package tools

import (
	"regexp"

	"github.com/hashicorp/go-version"
)

// versionPattern picks the version out of --version chatter such as
// "yt-dlp 2023.11.16 (release)"
var versionPattern = regexp.MustCompile(`\d+(?:\.\d+)+(?:-[0-9A-Za-z.]+)?`)

// ParseVersion finds the first dotted version in s. yt-dlp prints dates
// (2024.08.06) and spotdl semver (4.2.5); go-version orders both.
func ParseVersion(s string) (*version.Version, bool) {
	m := versionPattern.FindString(s)
	if m == "" {
		return nil, false
	}
	v, err := version.NewVersion(m)
	if err != nil {
		return nil, false
	}
	return v, true
}

// MustVersion parses a literal version and panics on bad input
func MustVersion(s string) *version.Version {
	return version.Must(version.NewVersion(s))
}

// atLeast compares release segments only, so 4.0.0-beta counts as 4.0.0
func atLeast(v, since *version.Version) bool {
	if v == nil || since == nil {
		return false
	}
	return v.Core().GreaterThanOrEqual(since.Core())
}

// versionString renders v, or "unknown" when the probe found nothing
func versionString(v *version.Version) string {
	if v == nil {
		return "unknown"
	}
	return v.String()
}
