package metadata

import (
	"context"
	"fmt"
	"strings"

	"github.com/ytget/ytdlp/v2"

	"github.com/kilimcininkoroglu/earbound/internal/link"
)

const (
	minPrefixLength = 10
	playlistSuffix  = " Playlist"
)

// itemLister fetches item titles of a YouTube playlist
type itemLister func(ctx context.Context, playlistID string) ([]string, error)

// PlaylistSource names YouTube playlists from their item titles using
// the Go-native ytdlp client. It does not answer single-title queries.
type PlaylistSource struct {
	list itemLister
}

// NewPlaylistSource creates a PlaylistSource backed by ytdlp
func NewPlaylistSource() *PlaylistSource {
	return &PlaylistSource{list: listPlaylistTitles}
}

func listPlaylistTitles(ctx context.Context, playlistID string) ([]string, error) {
	items, err := ytdlp.New().GetPlaylistItemsAll(ctx, playlistID, 0)
	if err != nil {
		return nil, err
	}
	titles := make([]string, 0, len(items))
	for _, it := range items {
		titles = append(titles, it.Title)
	}
	return titles, nil
}

func (s *PlaylistSource) Name() string { return "ytdlp-go" }

func (s *PlaylistSource) Title(context.Context, string) (string, error) {
	return "", ErrUnsupported
}

func (s *PlaylistSource) PlaylistName(ctx context.Context, rawLink string) (string, error) {
	id := link.PlaylistID(rawLink)
	if id == "" {
		return "", ErrUnsupported
	}
	titles, err := s.list(ctx, id)
	if err != nil {
		return "", fmt.Errorf("listing playlist %s: %w", id, err)
	}
	return nameFromTitles(titles), nil
}

// nameFromTitles derives a playlist name from its first item titles:
// a long enough common prefix of the first two, else the first title.
func nameFromTitles(titles []string) string {
	if len(titles) == 0 {
		return ""
	}
	if len(titles) > 1 {
		prefix := commonPrefix(titles[0], titles[1])
		if len(prefix) > minPrefixLength {
			return strings.TrimSpace(prefix) + playlistSuffix
		}
	}
	return strings.TrimSpace(titles[0]) + playlistSuffix
}

func commonPrefix(a, b string) string {
	ra, rb := []rune(a), []rune(b)
	n := min(len(ra), len(rb))
	for i := 0; i < n; i++ {
		if ra[i] != rb[i] {
			return string(ra[:i])
		}
	}
	return string(ra[:n])
}
