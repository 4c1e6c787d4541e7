package process

import (
	"bufio"
	"strings"
	"testing"
)

func TestParseProgress(t *testing.T) {
	tests := []struct {
		line   string
		want   float64
		wantOK bool
	}{
		{"[download]  45.3% of 3.45MiB at 1.2MiB/s ETA 00:02", 45.3, true},
		{"[download] 100% of 3.45MiB", 100, true},
		{"Downloading 3/4 songs", 75, true},
		{"Processed 10 / 10", 100, true},
		{"Total 1/4 complete", 25, true},
		{"[download] Downloading item 2 of 8", 25, true},
		{"[2/5] Artist - Title", 40, true},
		{"Uploaded 10/12/2024 by channel", 0, false},
		{"Saved to music/1/2/song.mp3", 0, false},
		{"[youtube] abc: Downloading webpage", 0, false},
		{"5/0 songs", 0, false},
		{"7/3 songs", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseProgress(tt.line)
		if ok != tt.wantOK {
			t.Errorf("ParseProgress(%q) ok = %v, want %v", tt.line, ok, tt.wantOK)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("ParseProgress(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestBand_Scale(t *testing.T) {
	b := Band{Low: 20, High: 90}
	tests := []struct {
		raw  float64
		want float64
	}{
		{0, 20},
		{50, 55},
		{100, 90},
		{-5, 20},
		{150, 90},
	}
	for _, tt := range tests {
		if got := b.Scale(tt.raw); got != tt.want {
			t.Errorf("Scale(%v) = %v, want %v", tt.raw, got, tt.want)
		}
	}
	if got := FullBand.Scale(42); got != 42 {
		t.Errorf("FullBand.Scale(42) = %v", got)
	}
}

func TestClassifyLine(t *testing.T) {
	tests := []struct {
		line string
		want Level
	}{
		{"ERROR: unable to download video", LevelError},
		{"LookupError: No results found", LevelError},
		{"Failed to download song", LevelError},
		{"WARNING: falling back to generic extractor", LevelWarning},
		{"[download] Destination: song.mp3", LevelInfo},
		{"error in lowercase is plain text", LevelInfo},
	}
	for _, tt := range tests {
		if got := ClassifyLine(tt.line); got != tt.want {
			t.Errorf("ClassifyLine(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestSplitLines(t *testing.T) {
	input := "first\r 10%\r 20%\nsecond\r\n\nlast"
	sc := bufio.NewScanner(strings.NewReader(input))
	sc.Split(splitLines)

	var got []string
	for sc.Scan() {
		if sc.Text() != "" {
			got = append(got, sc.Text())
		}
	}
	want := []string{"first", " 10%", " 20%", "second", "last"}
	if len(got) != len(want) {
		t.Fatalf("lines = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCancelFlag(t *testing.T) {
	f := NewCancelFlag()
	if f.IsSet() {
		t.Fatal("new flag is set")
	}
	select {
	case <-f.Done():
		t.Fatal("Done closed before Set")
	default:
	}

	if !f.Set() {
		t.Error("first Set() = false, want true")
	}
	if f.Set() {
		t.Error("second Set() = true, want false")
	}
	if !f.IsSet() {
		t.Error("IsSet() = false after Set")
	}
	select {
	case <-f.Done():
	default:
		t.Error("Done not closed after Set")
	}

	var nilFlag *CancelFlag
	if nilFlag.IsSet() {
		t.Error("nil flag reports set")
	}
	if nilFlag.Done() != nil {
		t.Error("nil flag Done() should be nil")
	}
}
