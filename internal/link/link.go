// Package link classifies music links by provider and content kind.
package link

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"mvdan.cc/xurls/v2"
)

// Provider identifies the platform a link points at
type Provider int

const (
	ProviderUnknown Provider = iota
	ProviderSpotify
	ProviderYouTube
)

func (p Provider) String() string {
	switch p {
	case ProviderSpotify:
		return "spotify"
	case ProviderYouTube:
		return "youtube"
	default:
		return "unknown"
	}
}

// Kind is the content kind behind a link
type Kind int

const (
	KindTrack Kind = iota
	KindAlbum
	KindPlaylist
	KindVideo
)

func (k Kind) String() string {
	switch k {
	case KindTrack:
		return "track"
	case KindAlbum:
		return "album"
	case KindPlaylist:
		return "playlist"
	case KindVideo:
		return "video"
	default:
		return "unknown"
	}
}

// Classification is the result of classifying a link
type Classification struct {
	Provider Provider
	Kind     Kind
}

// IsCollection reports whether the link refers to more than one item
func (c Classification) IsCollection() bool {
	return c.Kind == KindPlaylist || c.Kind == KindAlbum
}

func (c Classification) String() string {
	return c.Provider.String() + "/" + c.Kind.String()
}

// ErrInvalidLink is returned for links that match no known provider
var ErrInvalidLink = errors.New("invalid link")

// InvalidLinkError describes why a link was rejected
type InvalidLinkError struct {
	Input  string
	Reason string
}

func (e *InvalidLinkError) Error() string {
	if e.Input == "" {
		return fmt.Sprintf("invalid link: %s", e.Reason)
	}
	return fmt.Sprintf("invalid link %q: %s", e.Input, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidLink
func (e *InvalidLinkError) Unwrap() error {
	return ErrInvalidLink
}

// Domain patterns, matched case-insensitively as substrings
var (
	spotifyDomains = []string{"spotify.com"}
	youtubeDomains = []string{"music.youtube.com", "youtube.com", "youtu.be"}
)

// Classify derives provider and kind from the textual shape of a link.
// Collection kinds win over the single-item defaults.
func Classify(raw string) (Classification, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return Classification{}, &InvalidLinkError{Reason: "empty link"}
	}

	switch {
	case containsAny(s, spotifyDomains):
		c := Classification{Provider: ProviderSpotify, Kind: KindTrack}
		switch {
		case strings.Contains(s, "/playlist/"):
			c.Kind = KindPlaylist
		case strings.Contains(s, "/album/"):
			c.Kind = KindAlbum
		}
		return c, nil

	case containsAny(s, youtubeDomains):
		c := Classification{Provider: ProviderYouTube, Kind: KindVideo}
		if strings.Contains(s, "list=") || strings.Contains(s, "/playlist") {
			c.Kind = KindPlaylist
		}
		return c, nil
	}

	return Classification{}, &InvalidLinkError{Input: strings.TrimSpace(raw), Reason: "not a Spotify or YouTube link"}
}

// Extract returns the link contained in pasted text. Text without
// whitespace is returned trimmed as is; otherwise the first URL found
// wins, falling back to the trimmed input.
func Extract(text string) string {
	s := strings.TrimSpace(text)
	if !strings.ContainsFunc(s, unicode.IsSpace) {
		return s
	}
	if found := xurls.Strict().FindString(s); found != "" {
		return found
	}
	return s
}

// PlaylistID returns the value of the list= query parameter, if any
func PlaylistID(raw string) string {
	const param = "list="
	idx := strings.Index(raw, param)
	if idx < 0 {
		return ""
	}
	id := raw[idx+len(param):]
	if end := strings.IndexAny(id, "&#"); end >= 0 {
		id = id[:end]
	}
	return id
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
