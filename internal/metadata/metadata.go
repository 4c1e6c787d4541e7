// Package metadata looks up titles and playlist names for links. Every
// lookup is best effort: sources are tried in order, each under its own
// timeout, and the first non-empty answer wins.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultTimeout bounds each source attempt
const DefaultTimeout = 5 * time.Second

// ErrUnsupported is returned by a source that cannot answer a query
var ErrUnsupported = errors.New("not supported by source")

// ErrNoResult is returned when no source produced an answer
var ErrNoResult = errors.New("no metadata found")

// Source answers metadata queries for links
type Source interface {
	Name() string
	Title(ctx context.Context, rawLink string) (string, error)
	PlaylistName(ctx context.Context, rawLink string) (string, error)
}

// Resolver tries its sources in order
type Resolver struct {
	Sources []Source
	Timeout time.Duration
}

// NewResolver creates a Resolver over the given sources
func NewResolver(timeout time.Duration, sources ...Source) *Resolver {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Resolver{Sources: sources, Timeout: timeout}
}

// Title returns the remote title of a single item
func (r *Resolver) Title(ctx context.Context, rawLink string) (string, error) {
	return r.first(ctx, "title", func(ctx context.Context, s Source) (string, error) {
		return s.Title(ctx, rawLink)
	})
}

// PlaylistName returns the display name of a playlist
func (r *Resolver) PlaylistName(ctx context.Context, rawLink string) (string, error) {
	return r.first(ctx, "playlist name", func(ctx context.Context, s Source) (string, error) {
		return s.PlaylistName(ctx, rawLink)
	})
}

func (r *Resolver) first(ctx context.Context, what string, query func(context.Context, Source) (string, error)) (string, error) {
	var errs []string
	for _, s := range r.Sources {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		sctx, cancel := context.WithTimeout(ctx, r.Timeout)
		v, err := query(sctx, s)
		cancel()

		v = strings.TrimSpace(v)
		if err == nil && v != "" {
			log.WithFields(log.Fields{"source": s.Name(), "value": v}).Debugf("resolved %s", what)
			return v, nil
		}
		if err != nil && !errors.Is(err, ErrUnsupported) {
			log.WithError(err).WithField("source", s.Name()).Debugf("%s lookup failed", what)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		}
	}
	if len(errs) > 0 {
		return "", fmt.Errorf("%w: %s", ErrNoResult, strings.Join(errs, "; "))
	}
	return "", ErrNoResult
}
