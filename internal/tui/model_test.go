package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kilimcininkoroglu/earbound/internal/process"
	"github.com/kilimcininkoroglu/earbound/internal/supervisor"
)

func key(s string) tea.KeyMsg {
	switch s {
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	if !ok {
		t.Fatalf("Update() returned %T", next)
	}
	return nm, cmd
}

func TestModel_Events(t *testing.T) {
	m := NewModel("https://youtu.be/x", nil)

	m, _ = update(t, m, EventMsg{supervisor.Event{Kind: supervisor.EventState, State: supervisor.StateRunningPrimary}})
	m, _ = update(t, m, EventMsg{supervisor.Event{Kind: supervisor.EventProgress, Progress: 37.5}})
	m, _ = update(t, m, EventMsg{supervisor.Event{Kind: supervisor.EventLog, Level: process.LevelWarning, Line: "WARNING: throttled"}})

	if m.State != supervisor.StateRunningPrimary {
		t.Errorf("State = %v", m.State)
	}
	if m.Percent != 37.5 {
		t.Errorf("Percent = %v, want 37.5", m.Percent)
	}
	if len(m.lines) != 1 || !strings.Contains(m.lines[0], "throttled") {
		t.Errorf("lines = %q", m.lines)
	}

	view := m.View()
	if !strings.Contains(view, "37.5%") || !strings.Contains(view, "Downloading") {
		t.Errorf("View() missing progress:\n%s", view)
	}

	out := &supervisor.Outcome{Kind: supervisor.Completed, Directory: "/music"}
	m, _ = update(t, m, EventMsg{supervisor.Event{Kind: supervisor.EventOutcome, Outcome: out}})

	if !m.Finished() || m.State != supervisor.StateDone || m.Percent != 100 {
		t.Errorf("after outcome: finished=%v state=%v percent=%v", m.Finished(), m.State, m.Percent)
	}
	if !strings.Contains(m.View(), "Into: /music") {
		t.Error("View() should show the target directory")
	}

	_, cmd := update(t, m, key("x"))
	if cmd == nil {
		t.Error("any key after the outcome should quit")
	}
}

func TestModel_LogTail(t *testing.T) {
	m := NewModel("https://youtu.be/x", nil)
	for i := 0; i < maxLogLines+25; i++ {
		m, _ = update(t, m, EventMsg{supervisor.Event{Kind: supervisor.EventLog, Line: "line"}})
	}
	if len(m.lines) != maxLogLines {
		t.Errorf("lines = %d, want %d", len(m.lines), maxLogLines)
	}
}

func TestModel_CancelKey(t *testing.T) {
	cancels := 0
	m := NewModel("https://youtu.be/x", func() { cancels++ })

	m, cmd := update(t, m, key("q"))
	if cmd != nil {
		t.Error("q should not quit before the outcome arrives")
	}
	m, _ = update(t, m, key("q"))
	if cancels != 1 {
		t.Errorf("cancels = %d, want 1", cancels)
	}
	if !strings.Contains(m.View(), "Cancelling") {
		t.Error("View() should show the pending cancel")
	}

	_, cmd = update(t, m, key("ctrl+c"))
	if cmd == nil {
		t.Error("second ctrl+c should quit")
	}
}

func TestModel_Prompt(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"y", true},
		{"n", false},
		{"esc", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			m := NewModel("https://open.spotify.com/album/a", nil)
			reply := make(chan bool, 1)

			m, _ = update(t, m, PromptMsg{Notice: supervisor.DuplicateNotice{Directory: "/music/Spotify_Playlist"}, Reply: reply})
			if !m.Prompting() {
				t.Fatal("prompt should be open")
			}
			if !strings.Contains(m.View(), "Download anyway? (y/n)") {
				t.Error("View() should show the question")
			}

			m, _ = update(t, m, key(tt.key))
			if m.Prompting() {
				t.Error("prompt should close after an answer")
			}
			select {
			case got := <-reply:
				if got != tt.want {
					t.Errorf("reply = %v, want %v", got, tt.want)
				}
			default:
				t.Fatal("no reply sent")
			}
		})
	}
}

func TestModel_PromptCancel(t *testing.T) {
	cancelled := false
	m := NewModel("https://youtu.be/x", func() { cancelled = true })
	reply := make(chan bool, 1)

	m, _ = update(t, m, PromptMsg{Reply: reply})
	update(t, m, key("ctrl+c"))

	if got := <-reply; got {
		t.Error("ctrl+c during the prompt should decline")
	}
	if !cancelled {
		t.Error("ctrl+c during the prompt should cancel")
	}
}

func TestModel_WindowSize(t *testing.T) {
	m := NewModel("https://youtu.be/x", nil)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 200, Height: 50})

	if m.progress.Width != 80 {
		t.Errorf("progress width = %d, want capped 80", m.progress.Width)
	}
	if m.logs.Height != 36 {
		t.Errorf("log height = %d, want 36", m.logs.Height)
	}
}

func TestRunner_ConfirmAfterExit(t *testing.T) {
	r := NewRunner("https://youtu.be/x", nil)
	close(r.done)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if r.ConfirmDuplicate(ctx, supervisor.DuplicateNotice{}) {
		t.Error("a closed program should decline")
	}
	r.Send(supervisor.Event{Kind: supervisor.EventState})
}
