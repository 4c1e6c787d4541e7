// Package organize decides where downloads land on disk and inspects
// what is already there.
package organize

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/kilimcininkoroglu/earbound/internal/link"
)

// Directory names used under the base directory
const (
	SpotifyCollectionDir = "Spotify_Playlist"
	YouTubePlaylistDir   = "YouTube_Playlist"
	DefaultPlaylistName  = "Unknown Playlist"
)

// Target is the directory a download writes into
type Target struct {
	Directory string
	Created   bool
}

// TargetPath computes the target directory without touching the disk.
// Spotify albums and playlists share one bucket.
func TargetPath(base string, c link.Classification, playlistName string) string {
	switch {
	case c.Provider == link.ProviderSpotify && c.IsCollection():
		return filepath.Join(base, SpotifyCollectionDir)
	case c.Provider == link.ProviderYouTube && c.Kind == link.KindPlaylist:
		name := SanitizeName(playlistName)
		if name == "" {
			name = DefaultPlaylistName
		}
		return filepath.Join(base, YouTubePlaylistDir, name)
	default:
		return base
	}
}

// ResolveTarget computes the target directory and creates it if needed.
// On any filesystem error the base directory is returned together with
// the error, so callers can keep going.
func ResolveTarget(base string, c link.Classification, playlistName string) (Target, error) {
	dir := TargetPath(base, c, playlistName)
	if dir == base {
		return Target{Directory: base}, nil
	}

	created := false
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		created = true
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		log.WithError(err).WithField("dir", dir).Warn("creating target directory failed, using base")
		return Target{Directory: base}, fmt.Errorf("creating %s: %w", dir, err)
	}

	return Target{Directory: dir, Created: created}, nil
}
