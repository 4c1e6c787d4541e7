// Package version holds build metadata for Earbound.
package version

import (
	"fmt"
	"runtime"
	"sort"
	"strings"
)

// Set at build time with -ldflags "-X .../version.Version=..."
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Info describes this build and, optionally, the external tools it
// found on the host.
type Info struct {
	Version   string            `json:"version"`
	Commit    string            `json:"commit"`
	Date      string            `json:"date"`
	GoVersion string            `json:"go_version"`
	Platform  string            `json:"platform"`
	Tools     map[string]string `json:"tools,omitempty"`
}

// Get returns the build information
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// WithTool records the detected version of an external tool
func (i Info) WithTool(name, v string) Info {
	tools := make(map[string]string, len(i.Tools)+1)
	for k, existing := range i.Tools {
		tools[k] = existing
	}
	tools[name] = v
	i.Tools = tools
	return i
}

func (i Info) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Earbound %s (%s) built on %s with %s for %s",
		i.Version, i.Commit, i.Date, i.GoVersion, i.Platform)

	names := make([]string, 0, len(i.Tools))
	for name := range i.Tools {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "\n  %-8s %s", name, i.Tools[name])
	}
	return b.String()
}

// Short returns "earbound <version>"
func Short() string {
	return "earbound " + Version
}
