package tools

import (
	"context"
	"os/exec"
	"sync"
	"time"

	"github.com/hashicorp/go-version"
	log "github.com/sirupsen/logrus"
)

// DefaultProbeTimeout bounds a version probe
const DefaultProbeTimeout = 5 * time.Second

// Prober detects tool capabilities
type Prober interface {
	Probe(ctx context.Context, t Tool, binary string) Capabilities
}

// VersionProber runs "<binary> --version" and caches the answer per
// binary. Failures yield unknown capabilities, never an error.
type VersionProber struct {
	Timeout time.Duration

	mu    sync.Mutex
	cache map[string]Capabilities
}

// NewVersionProber creates a VersionProber
func NewVersionProber(timeout time.Duration) *VersionProber {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &VersionProber{Timeout: timeout, cache: make(map[string]Capabilities)}
}

// Probe implements Prober
func (p *VersionProber) Probe(ctx context.Context, t Tool, binary string) Capabilities {
	p.mu.Lock()
	if c, ok := p.cache[binary]; ok {
		p.mu.Unlock()
		return c
	}
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	caps := Capabilities{Tool: t}
	out, err := exec.CommandContext(ctx, binary, "--version").CombinedOutput()
	if err != nil {
		log.WithError(err).WithField("tool", t).Debug("version probe failed")
		return caps
	}
	if v, ok := ParseVersion(string(out)); ok {
		caps.Version = v
	}
	log.WithFields(log.Fields{"tool": t, "version": caps.VersionString()}).Debug("probed tool version")

	p.mu.Lock()
	p.cache[binary] = caps
	p.mu.Unlock()
	return caps
}

// StaticProber returns fixed capabilities, for tests and for users who
// pin a version in the config.
type StaticProber map[Tool]*version.Version

// Probe implements Prober
func (s StaticProber) Probe(_ context.Context, t Tool, _ string) Capabilities {
	return Capabilities{Tool: t, Version: s[t]}
}
