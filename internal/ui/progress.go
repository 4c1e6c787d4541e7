// Package ui renders download events in the terminal.
package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/cheggaaa/pb/v3"

	"github.com/kilimcininkoroglu/earbound/internal/process"
	"github.com/kilimcininkoroglu/earbound/internal/supervisor"
)

// barScale maps 0-100 percent onto bar units, giving one decimal place
const barScale = 10

const barTemplate = `{{string . "prefix"}}{{bar . "[" "=" ">" " " "]"}} {{percent . }} {{etime . }}`

// ProgressBar displays a live bar for the running request and prints
// tool messages above it.
type ProgressBar struct {
	output   io.Writer
	width    int
	noColor  bool
	showInfo bool
	static   bool

	mu    sync.Mutex
	bar   *pb.ProgressBar
	state supervisor.State
}

// ProgressBarOption configures a ProgressBar
type ProgressBarOption func(*ProgressBar)

// WithOutput sets the output writer
func WithOutput(w io.Writer) ProgressBarOption {
	return func(p *ProgressBar) {
		p.output = w
	}
}

// WithWidth sets the maximum bar width
func WithWidth(width int) ProgressBarOption {
	return func(p *ProgressBar) {
		p.width = width
	}
}

// WithNoColor disables colored output
func WithNoColor(noColor bool) ProgressBarOption {
	return func(p *ProgressBar) {
		p.noColor = noColor
	}
}

// WithInfoLines also prints informational tool output, not only
// warnings and errors
func WithInfoLines(show bool) ProgressBarOption {
	return func(p *ProgressBar) {
		p.showInfo = show
	}
}

// WithStatic turns off the refresh goroutine; the bar is redrawn only
// when an event arrives.
func WithStatic(static bool) ProgressBarOption {
	return func(p *ProgressBar) {
		p.static = static
	}
}

// NewProgressBar creates a new ProgressBar
func NewProgressBar(opts ...ProgressBarOption) *ProgressBar {
	p := &ProgressBar{
		width: 80,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
	clearLine   = "\r\033[2K"
)

// Handle renders one supervisor event
func (p *ProgressBar) Handle(ev supervisor.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch ev.Kind {
	case supervisor.EventState:
		p.state = ev.State
		p.ensureBar()
		p.bar.Set("prefix", p.color(colorCyan, StateLabel(ev.State))+" ")
		p.redraw()

	case supervisor.EventProgress:
		p.ensureBar()
		p.bar.SetCurrent(int64(ev.Progress * barScale))
		p.redraw()

	case supervisor.EventLog:
		if ev.Level == process.LevelInfo && !p.showInfo {
			return
		}
		fmt.Fprintf(p.out(), "%s%s\n", clearLine, p.levelLine(ev.Level, ev.Line))
		p.redraw()

	case supervisor.EventOutcome:
		if p.bar != nil {
			if ev.Outcome != nil && ev.Outcome.Success() {
				p.bar.SetCurrent(100 * barScale)
			}
			p.bar.Finish()
			p.bar = nil
			fmt.Fprint(p.out(), "\n")
		}
		if ev.Outcome != nil {
			RenderOutcome(p.out(), *ev.Outcome, p.noColor)
		}
	}
}

// Close stops the bar if a request was interrupted mid-way
func (p *ProgressBar) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		p.bar.Finish()
		p.bar = nil
	}
}

func (p *ProgressBar) ensureBar() {
	if p.bar != nil {
		return
	}
	bar := pb.ProgressBarTemplate(barTemplate).New(100 * barScale)
	bar.SetWriter(p.out())
	bar.SetMaxWidth(p.width)
	bar.Set(pb.Color, !p.noColor)
	bar.Set(pb.Static, p.static)
	bar.Set("prefix", "")
	bar.SetRefreshRate(200 * time.Millisecond)
	p.bar = bar.Start()
}

func (p *ProgressBar) redraw() {
	if p.static && p.bar != nil {
		p.bar.Write()
	}
}

func (p *ProgressBar) out() io.Writer {
	if p.output == nil {
		return io.Discard
	}
	return p.output
}

func (p *ProgressBar) levelLine(level process.Level, line string) string {
	switch level {
	case process.LevelError:
		return p.color(colorRed, line)
	case process.LevelWarning:
		return p.color(colorYellow, line)
	default:
		return line
	}
}

// color wraps text in ANSI color codes
func (p *ProgressBar) color(code, text string) string {
	return colorize(p.noColor, code, text)
}

func colorize(noColor bool, code, text string) string {
	if noColor {
		return text
	}
	return code + text + colorReset
}

// StateLabel is the short text shown for a supervisor state
func StateLabel(s supervisor.State) string {
	switch s {
	case supervisor.StateClassifying:
		return "Checking link"
	case supervisor.StateResolving:
		return "Preparing"
	case supervisor.StateDuplicateCheck:
		return "Checking folder"
	case supervisor.StateRunningPrimary:
		return "Downloading"
	case supervisor.StateRunningFallback:
		return "Retrying"
	case supervisor.StateFinalizing:
		return "Finishing"
	case supervisor.StateDone:
		return "Done"
	default:
		return "Idle"
	}
}

// RenderOutcome prints the one-line summary of a finished request
func RenderOutcome(w io.Writer, o supervisor.Outcome, noColor bool) {
	var size int64
	for _, f := range o.Files {
		size += f.Size
	}
	files := pluralize(len(o.Files), "file")

	switch o.Kind {
	case supervisor.Completed:
		fmt.Fprintf(w, "%s %s %s to %s (%s in %s)\n",
			colorize(noColor, colorGreen, "✓"),
			colorize(noColor, colorBold, "Downloaded"),
			files, o.Directory, FormatBytes(size), FormatDuration(o.Duration))

	case supervisor.CompletedWithWarnings:
		fmt.Fprintf(w, "%s %s (%s): %s in %s\n",
			colorize(noColor, colorYellow, "!"),
			colorize(noColor, colorBold, "Finished with warnings"),
			o.Reason, files, o.Directory)

	case supervisor.Cancelled:
		fmt.Fprintf(w, "%s %s: %s\n",
			colorize(noColor, colorYellow, "○"),
			colorize(noColor, colorBold, "Cancelled"),
			o.Reason)

	default:
		fmt.Fprintf(w, "%s %s: %s\n",
			colorize(noColor, colorRed, "✗"),
			colorize(noColor, colorBold, "Download failed"),
			o.Reason)
	}
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

// FormatDuration formats a duration as mm:ss or hh:mm:ss
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "00:00"
	}

	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// FormatBytes formats bytes into human-readable string
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	units := []string{"KB", "MB", "GB", "TB", "PB"}
	return fmt.Sprintf("%.1f %s", float64(bytes)/float64(div), units[exp])
}

// renderBar creates a plain text bar for the minimal renderer
func renderBar(percent float64, width int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := int(float64(width) * percent / 100)
	if filled >= width {
		return "[" + strings.Repeat("=", width) + "]"
	}
	return "[" + strings.Repeat("=", filled) + ">" + strings.Repeat(" ", width-filled-1) + "]"
}
