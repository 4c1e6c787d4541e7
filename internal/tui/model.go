// Package tui provides an interactive terminal interface using Bubbletea.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kilimcininkoroglu/earbound/internal/process"
	"github.com/kilimcininkoroglu/earbound/internal/supervisor"
	"github.com/kilimcininkoroglu/earbound/internal/ui"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			MarginBottom(1)

	successStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	highlightStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	promptStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("214")).
			Padding(0, 1)
)

// maxLogLines bounds the tool output kept for the log pane
const maxLogLines = 500

// EventMsg carries one supervisor event into the program
type EventMsg struct {
	Event supervisor.Event
}

// PromptMsg asks the user whether to download a likely duplicate. The
// answer is sent on Reply, which must be buffered.
type PromptMsg struct {
	Notice supervisor.DuplicateNotice
	Reply  chan<- bool
}

// Model is the Bubbletea model for one download
type Model struct {
	Link      string
	Directory string
	State     supervisor.State
	Percent   float64
	Outcome   *supervisor.Outcome

	lines   []string
	prompt  *PromptMsg
	stopped bool // cancel requested

	progress progress.Model
	spinner  spinner.Model
	logs     viewport.Model
	width    int
	height   int
	quitting bool

	onCancel func()
}

// NewModel creates a new TUI model
func NewModel(rawLink string, onCancel func()) Model {
	p := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(50),
		progress.WithoutPercentage(),
	)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))

	return Model{
		Link:     rawLink,
		State:    supervisor.StateIdle,
		progress: p,
		spinner:  s,
		logs:     viewport.New(76, 10),
		width:    80,
		height:   24,
		onCancel: onCancel,
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Finished reports whether the outcome has arrived
func (m Model) Finished() bool {
	return m.Outcome != nil
}

// Prompting reports whether a duplicate question is open
func (m Model) Prompting() bool {
	return m.prompt != nil
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = msg.Width - 10
		if m.progress.Width > 80 {
			m.progress.Width = 80
		}
		m.logs.Width = msg.Width - 4
		m.logs.Height = max(msg.Height-14, 3)
		m.logs.SetContent(strings.Join(m.lines, "\n"))
		m.logs.GotoBottom()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case PromptMsg:
		m.prompt = &msg

	case EventMsg:
		m.apply(msg.Event)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if m.prompt != nil {
		switch key {
		case "y", "Y", "enter":
			m.answer(true)
		case "n", "N", "esc":
			m.answer(false)
		case "ctrl+c", "q":
			m.answer(false)
			m.cancel()
		}
		return m, nil
	}

	if m.Finished() {
		m.quitting = true
		return m, tea.Quit
	}

	switch key {
	case "q", "ctrl+c":
		if m.stopped && key == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
		m.cancel()
	case "up", "k", "down", "j", "pgup", "pgdown":
		var cmd tea.Cmd
		m.logs, cmd = m.logs.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) answer(ok bool) {
	m.prompt.Reply <- ok
	m.prompt = nil
}

func (m *Model) cancel() {
	if m.stopped {
		return
	}
	m.stopped = true
	if m.onCancel != nil {
		m.onCancel()
	}
}

func (m *Model) apply(ev supervisor.Event) {
	switch ev.Kind {
	case supervisor.EventState:
		m.State = ev.State
	case supervisor.EventProgress:
		m.Percent = ev.Progress
	case supervisor.EventLog:
		m.appendLine(renderLine(ev.Level, ev.Line))
	case supervisor.EventOutcome:
		m.Outcome = ev.Outcome
		m.State = supervisor.StateDone
		if ev.Outcome != nil {
			m.Directory = ev.Outcome.Directory
			if ev.Outcome.Success() {
				m.Percent = 100
			}
		}
	}
}

func (m *Model) appendLine(line string) {
	m.lines = append(m.lines, line)
	if len(m.lines) > maxLogLines {
		m.lines = m.lines[len(m.lines)-maxLogLines:]
	}
	atBottom := m.logs.AtBottom()
	m.logs.SetContent(strings.Join(m.lines, "\n"))
	if atBottom {
		m.logs.GotoBottom()
	}
}

func renderLine(level process.Level, line string) string {
	switch level {
	case process.LevelError:
		return errorStyle.Render(line)
	case process.LevelWarning:
		return warningStyle.Render(line)
	default:
		return line
	}
}

// View implements tea.Model
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Earbound"))
	b.WriteString("\n")

	link := m.Link
	if len(link) > 70 {
		link = link[:67] + "..."
	}
	b.WriteString(dimStyle.Render("Link: " + link))
	b.WriteString("\n")
	if m.Directory != "" {
		b.WriteString(dimStyle.Render("Into: " + m.Directory))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(m.progress.ViewAs(m.Percent / 100))
	b.WriteString("  ")
	b.WriteString(highlightStyle.Render(fmt.Sprintf("%.1f%%", m.Percent)))
	b.WriteString("\n\n")

	b.WriteString(boxStyle.Render(m.logs.View()))
	b.WriteString("\n\n")

	if m.prompt != nil {
		b.WriteString(promptStyle.Render(fmt.Sprintf(
			"%s already has files that look like this download.\nDownload anyway? (y/n)",
			m.prompt.Notice.Directory)))
		b.WriteString("\n\n")
	}

	b.WriteString(m.renderStatus())
	b.WriteString("\n\n")
	b.WriteString(m.renderHelp())

	return b.String()
}

func (m Model) renderStatus() string {
	if o := m.Outcome; o != nil {
		switch o.Kind {
		case supervisor.Completed:
			return successStyle.Render(fmt.Sprintf("✓ Downloaded %d files", len(o.Files)))
		case supervisor.CompletedWithWarnings:
			return warningStyle.Render(fmt.Sprintf("! Finished with warnings (%s), %d files", o.Reason, len(o.Files)))
		case supervisor.Cancelled:
			return warningStyle.Render("○ Cancelled: " + o.Reason)
		default:
			return errorStyle.Render("✗ Download failed: " + o.Reason)
		}
	}
	if m.stopped {
		return m.spinner.View() + " Cancelling..."
	}
	return m.spinner.View() + " " + ui.StateLabel(m.State) + "..."
}

func (m Model) renderHelp() string {
	var keys []string
	switch {
	case m.prompt != nil:
		keys = append(keys, "y:download", "n:skip")
	case m.Finished():
		keys = append(keys, "any key:close")
	default:
		keys = append(keys, "↑/↓:scroll log", "q:cancel")
	}
	return dimStyle.Render(strings.Join(keys, " • "))
}
