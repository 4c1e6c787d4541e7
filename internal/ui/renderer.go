package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/kilimcininkoroglu/earbound/internal/process"
	"github.com/kilimcininkoroglu/earbound/internal/supervisor"
)

// Renderer shows supervisor events to the user
type Renderer interface {
	Handle(ev supervisor.Event)
	Close()
}

// NewRenderer returns the renderer for a progress style: bar,
// minimal, json or none.
func NewRenderer(style string, w io.Writer, noColor, verbose bool) (Renderer, error) {
	switch style {
	case "", "bar":
		return NewProgressBar(WithOutput(w), WithNoColor(noColor), WithInfoLines(verbose)), nil
	case "minimal":
		return &MinimalProgress{output: w, noColor: noColor}, nil
	case "json":
		return NewJSONProgress(w), nil
	case "none":
		return &SummaryOnly{output: w, noColor: noColor}, nil
	default:
		return nil, fmt.Errorf("unknown progress style %q", style)
	}
}

// MinimalProgress renders a single rewritten line
type MinimalProgress struct {
	output  io.Writer
	noColor bool

	mu      sync.Mutex
	state   supervisor.State
	percent float64
	dirty   bool
}

// Handle renders one supervisor event
func (m *MinimalProgress) Handle(ev supervisor.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch ev.Kind {
	case supervisor.EventState:
		m.state = ev.State
		m.line()
	case supervisor.EventProgress:
		m.percent = ev.Progress
		m.line()
	case supervisor.EventLog:
		if ev.Level == process.LevelError {
			m.finishLine()
			fmt.Fprintln(m.output, colorize(m.noColor, colorRed, ev.Line))
		}
	case supervisor.EventOutcome:
		m.finishLine()
		if ev.Outcome != nil {
			RenderOutcome(m.output, *ev.Outcome, m.noColor)
		}
	}
}

func (m *MinimalProgress) line() {
	fmt.Fprintf(m.output, "\r%-16s %5.1f%% %s", StateLabel(m.state), m.percent, renderBar(m.percent, 25))
	m.dirty = true
}

func (m *MinimalProgress) finishLine() {
	if m.dirty {
		fmt.Fprint(m.output, "\n")
		m.dirty = false
	}
}

// Close ends the progress line
func (m *MinimalProgress) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finishLine()
}

// JSONEvent is one line of the json progress style
type JSONEvent struct {
	RequestID string       `json:"request_id"`
	Time      time.Time    `json:"time"`
	Type      string       `json:"type"`
	State     string       `json:"state,omitempty"`
	Percent   *float64     `json:"percent,omitempty"`
	Level     string       `json:"level,omitempty"`
	Line      string       `json:"line,omitempty"`
	Outcome   *JSONOutcome `json:"outcome,omitempty"`
}

// JSONOutcome is the outcome part of a JSONEvent
type JSONOutcome struct {
	Kind         string   `json:"kind"`
	Reason       string   `json:"reason,omitempty"`
	Link         string   `json:"link"`
	Provider     string   `json:"provider"`
	Content      string   `json:"content"`
	Directory    string   `json:"directory"`
	Strategy     string   `json:"strategy,omitempty"`
	UsedFallback bool     `json:"used_fallback"`
	ExitCode     int      `json:"exit_code"`
	Files        []string `json:"files"`
	Warnings     int      `json:"warnings"`
	Errors       int      `json:"errors"`
	Seconds      float64  `json:"duration_seconds"`
}

// JSONProgress writes each event as a JSON line, for scripting
type JSONProgress struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONProgress creates a JSON line renderer
func NewJSONProgress(w io.Writer) *JSONProgress {
	return &JSONProgress{enc: json.NewEncoder(w)}
}

// Handle writes one supervisor event
func (j *JSONProgress) Handle(ev supervisor.Event) {
	j.mu.Lock()
	defer j.mu.Unlock()
	_ = j.enc.Encode(ToJSONEvent(ev))
}

// Close is a no-op
func (j *JSONProgress) Close() {}

// ToJSONEvent converts a supervisor event to its JSON form
func ToJSONEvent(ev supervisor.Event) JSONEvent {
	out := JSONEvent{RequestID: ev.RequestID, Time: ev.Time}
	switch ev.Kind {
	case supervisor.EventState:
		out.Type = "state"
		out.State = ev.State.String()
	case supervisor.EventProgress:
		out.Type = "progress"
		p := ev.Progress
		out.Percent = &p
	case supervisor.EventLog:
		out.Type = "log"
		out.Level = ev.Level.String()
		out.Line = ev.Line
	case supervisor.EventOutcome:
		out.Type = "outcome"
		if o := ev.Outcome; o != nil {
			jo := &JSONOutcome{
				Kind:         o.Kind.String(),
				Reason:       o.Reason,
				Link:         o.Link,
				Provider:     o.Classification.Provider.String(),
				Content:      o.Classification.Kind.String(),
				Directory:    o.Directory,
				Strategy:     o.Strategy,
				UsedFallback: o.UsedFallback,
				ExitCode:     o.ExitCode,
				Files:        make([]string, 0, len(o.Files)),
				Warnings:     o.Warnings,
				Errors:       o.Errors,
				Seconds:      o.Duration.Seconds(),
			}
			for _, f := range o.Files {
				jo.Files = append(jo.Files, f.Name)
			}
			out.Outcome = jo
		}
	}
	return out
}

// SummaryOnly prints nothing but the final outcome line
type SummaryOnly struct {
	output  io.Writer
	noColor bool
}

// Handle prints the outcome event
func (s *SummaryOnly) Handle(ev supervisor.Event) {
	if ev.Kind == supervisor.EventOutcome && ev.Outcome != nil {
		RenderOutcome(s.output, *ev.Outcome, s.noColor)
	}
}

// Close is a no-op
func (s *SummaryOnly) Close() {}
