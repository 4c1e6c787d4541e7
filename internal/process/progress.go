package process

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	percentPattern = regexp.MustCompile(`(\d{1,3}(?:\.\d+)?)\s*%`)
	// done/total counters only count when the tool marks them as such,
	// so dates and paths in ordinary output are ignored
	fractionPattern = regexp.MustCompile(`(?:^|[^\d/])(\d+)\s*/\s*(\d+)\s*(?:items?\b|songs?\b|tracks?\b|complete\b|\]|$)`)
	itemPattern     = regexp.MustCompile(`\bitem (\d+) of (\d+)\b`)
)

// Band is the slice of overall progress a run reports into
type Band struct {
	Low  float64
	High float64
}

// FullBand maps raw progress one to one
var FullBand = Band{Low: 0, High: 100}

// Scale maps a raw 0-100 value into the band
func (b Band) Scale(raw float64) float64 {
	raw = clamp(raw, 0, 100)
	return b.Low + (b.High-b.Low)*raw/100
}

// Sample is one progress observation
type Sample struct {
	Percent float64 // scaled into the runner's band
	Raw     float64 // as printed by the tool
	Line    string
}

// ParseProgress extracts a 0-100 value from a line of tool output.
// A percentage wins over a done/total pair.
func ParseProgress(line string) (float64, bool) {
	if m := percentPattern.FindStringSubmatch(line); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		if err == nil && v <= 100 {
			return v, true
		}
	}

	for _, p := range []*regexp.Regexp{fractionPattern, itemPattern} {
		if m := p.FindStringSubmatch(line); m != nil {
			return fraction(m[1], m[2])
		}
	}
	return 0, false
}

func fraction(a, b string) (float64, bool) {
	done, err1 := strconv.ParseInt(a, 10, 64)
	total, err2 := strconv.ParseInt(b, 10, 64)
	if err1 != nil || err2 != nil || total <= 0 || done > total {
		return 0, false
	}
	return float64(done) * 100 / float64(total), true
}

// Level is the severity a tool output line is reported with
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// ClassifyLine recognizes the few markers downloader tools print.
// Anything else is plain log text.
func ClassifyLine(line string) Level {
	switch {
	case strings.Contains(line, "ERROR:"),
		strings.Contains(line, "Error"),
		strings.Contains(line, "Failed"):
		return LevelError
	case strings.Contains(line, "WARNING:"):
		return LevelWarning
	default:
		return LevelInfo
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
