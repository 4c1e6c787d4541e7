package metadata

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// ToolSource asks yt-dlp itself. It works for YouTube and anything
// else yt-dlp can extract.
type ToolSource struct {
	Binary string
}

func (s *ToolSource) Name() string { return "yt-dlp" }

func (s *ToolSource) Title(ctx context.Context, rawLink string) (string, error) {
	return s.query(ctx, "--get-title", "--no-playlist", "--skip-download", rawLink)
}

func (s *ToolSource) PlaylistName(ctx context.Context, rawLink string) (string, error) {
	return s.query(ctx, "--flat-playlist", "--print", "playlist_title", "--playlist-items", "1", rawLink)
}

func (s *ToolSource) query(ctx context.Context, args ...string) (string, error) {
	bin := s.Binary
	if bin == "" {
		bin = "yt-dlp"
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("%s: %w (%s)", bin, err, strings.TrimSpace(stderr.String()))
	}
	return firstLine(out), nil
}

// firstLine returns the first non-blank line, skipping yt-dlp's "NA"
// placeholder for missing fields.
func firstLine(out []byte) string {
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" && line != "NA" {
			return line
		}
	}
	return ""
}
