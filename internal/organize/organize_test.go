package organize

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/kilimcininkoroglu/earbound/internal/link"
)

func TestTargetPath(t *testing.T) {
	base := filepath.Join("tmp", "music")
	tests := []struct {
		name     string
		c        link.Classification
		playlist string
		want     string
	}{
		{"spotify track", link.Classification{Provider: link.ProviderSpotify, Kind: link.KindTrack}, "", base},
		{"spotify playlist", link.Classification{Provider: link.ProviderSpotify, Kind: link.KindPlaylist}, "", filepath.Join(base, SpotifyCollectionDir)},
		{"spotify album", link.Classification{Provider: link.ProviderSpotify, Kind: link.KindAlbum}, "", filepath.Join(base, SpotifyCollectionDir)},
		{"youtube video", link.Classification{Provider: link.ProviderYouTube, Kind: link.KindVideo}, "ignored", base},
		{"youtube playlist", link.Classification{Provider: link.ProviderYouTube, Kind: link.KindPlaylist}, "Road: Trip?", filepath.Join(base, YouTubePlaylistDir, "Road Trip")},
		{"youtube playlist unknown", link.Classification{Provider: link.ProviderYouTube, Kind: link.KindPlaylist}, "", filepath.Join(base, YouTubePlaylistDir, DefaultPlaylistName)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TargetPath(base, tt.c, tt.playlist); got != tt.want {
				t.Errorf("TargetPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveTarget_Idempotent(t *testing.T) {
	base := t.TempDir()
	c := link.Classification{Provider: link.ProviderYouTube, Kind: link.KindPlaylist}

	first, err := ResolveTarget(base, c, "My Mix")
	if err != nil {
		t.Fatalf("ResolveTarget() error = %v", err)
	}
	if !first.Created {
		t.Error("first call should report Created")
	}
	want := filepath.Join(base, YouTubePlaylistDir, "My Mix")
	if first.Directory != want {
		t.Errorf("Directory = %q, want %q", first.Directory, want)
	}
	if info, err := os.Stat(want); err != nil || !info.IsDir() {
		t.Fatalf("target directory not created: %v", err)
	}

	second, err := ResolveTarget(base, c, "My Mix")
	if err != nil {
		t.Fatalf("second ResolveTarget() error = %v", err)
	}
	if second.Directory != first.Directory {
		t.Errorf("second Directory = %q, want %q", second.Directory, first.Directory)
	}
	if second.Created {
		t.Error("second call should not report Created")
	}
}

func TestResolveTarget_FallsBackToBase(t *testing.T) {
	base := t.TempDir()
	// A file where the bucket directory should go makes MkdirAll fail.
	blocker := filepath.Join(base, SpotifyCollectionDir)
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	c := link.Classification{Provider: link.ProviderSpotify, Kind: link.KindAlbum}
	got, err := ResolveTarget(base, c, "")
	if err == nil {
		t.Error("expected error when directory cannot be created")
	}
	if got.Directory != base {
		t.Errorf("Directory = %q, want base %q", got.Directory, base)
	}
}

func TestListAudio(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.mp3", "a.FLAC", "notes.txt", "c.webm.part"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.mp3"), 0755); err != nil {
		t.Fatal(err)
	}

	files, err := ListAudio(dir)
	if err != nil {
		t.Fatalf("ListAudio() error = %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("ListAudio() len = %d, want 2", len(files))
	}
	if files[0].Name != "a.FLAC" || files[1].Name != "b.mp3" {
		t.Errorf("ListAudio() names = %q, %q", files[0].Name, files[1].Name)
	}
	if !HasAudio(dir) {
		t.Error("HasAudio() = false, want true")
	}
	if HasAudio(filepath.Join(dir, "missing")) {
		t.Error("HasAudio(missing) = true, want false")
	}
}

func TestModifiedSince(t *testing.T) {
	now := time.Now()
	files := []AudioFile{
		{Name: "old.mp3", ModTime: now.Add(-time.Hour)},
		{Name: "new.mp3", ModTime: now.Add(time.Second)},
		{Name: "same.mp3", ModTime: now},
	}
	got := ModifiedSince(files, now)
	if len(got) != 2 {
		t.Fatalf("ModifiedSince() len = %d, want 2", len(got))
	}
	if got[0].Name != "new.mp3" || got[1].Name != "same.mp3" {
		t.Errorf("ModifiedSince() = %v", got)
	}
}

func TestResolveTarget_TrackUsesBase(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Skipping on Windows")
	}
	got, err := ResolveTarget("/does/not/matter", link.Classification{Provider: link.ProviderSpotify}, "")
	if err != nil {
		t.Fatalf("ResolveTarget() error = %v", err)
	}
	if got.Directory != "/does/not/matter" || got.Created {
		t.Errorf("ResolveTarget() = %+v", got)
	}
}
