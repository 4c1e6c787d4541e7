package organize

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// AudioExtensions lists the file extensions counted as finished audio
var AudioExtensions = []string{".mp3", ".m4a", ".webm", ".ogg", ".wav", ".flac"}

// AudioFile is an audio file found in a directory
type AudioFile struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
}

// IsAudioFile reports whether name has a recognized audio extension
func IsAudioFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range AudioExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// ListAudio returns the audio files directly inside dir, sorted by name
func ListAudio(dir string) ([]AudioFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []AudioFile
	for _, e := range entries {
		if e.IsDir() || !IsAudioFile(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, AudioFile{
			Name:    e.Name(),
			Path:    filepath.Join(dir, e.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// HasAudio reports whether dir holds at least one audio file. Scan
// errors count as no audio.
func HasAudio(dir string) bool {
	files, err := ListAudio(dir)
	return err == nil && len(files) > 0
}

// ModifiedSince filters files to those not older than t
func ModifiedSince(files []AudioFile, t time.Time) []AudioFile {
	var out []AudioFile
	for _, f := range files {
		if !f.ModTime.Before(t) {
			out = append(out, f)
		}
	}
	return out
}
