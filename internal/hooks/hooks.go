// Package hooks runs user commands and webhooks when a download finishes.
package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/kilimcininkoroglu/earbound/internal/supervisor"
	"github.com/kilimcininkoroglu/earbound/internal/version"
)

// Event names the outcome a hook subscribes to
type Event string

const (
	EventComplete Event = "complete"
	EventWarning  Event = "warning" // audio on disk, but the tool exited non-zero
	EventError    Event = "error"
	EventCancel   Event = "cancel" // includes declined duplicates
)

// EventFor maps an outcome kind to the hook event it fires
func EventFor(kind supervisor.OutcomeKind) Event {
	switch kind {
	case supervisor.Completed:
		return EventComplete
	case supervisor.CompletedWithWarnings:
		return EventWarning
	case supervisor.Cancelled:
		return EventCancel
	default:
		return EventError
	}
}

// Payload contains information about a finished download
type Payload struct {
	Event     Event     `json:"event"`
	RequestID string    `json:"request_id"`
	Link      string    `json:"link"`
	Provider  string    `json:"provider"`
	Kind      string    `json:"kind"`
	Directory string    `json:"directory"`
	Outcome   string    `json:"outcome"`
	Reason    string    `json:"reason,omitempty"`
	Strategy  string    `json:"strategy,omitempty"`
	ExitCode  int       `json:"exit_code"`
	Files     []string  `json:"files"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Duration  float64   `json:"duration_seconds"`
}

// PayloadFromOutcome builds the payload for a finished request
func PayloadFromOutcome(requestID string, o supervisor.Outcome) *Payload {
	p := &Payload{
		Event:     EventFor(o.Kind),
		RequestID: requestID,
		Link:      o.Link,
		Provider:  o.Classification.Provider.String(),
		Kind:      o.Classification.Kind.String(),
		Directory: o.Directory,
		Outcome:   o.Kind.String(),
		Reason:    o.Reason,
		Strategy:  o.Strategy,
		ExitCode:  o.ExitCode,
		Files:     make([]string, 0, len(o.Files)),
		Timestamp: time.Now(),
		Duration:  o.Duration.Seconds(),
	}
	for _, f := range o.Files {
		p.Files = append(p.Files, f.Name)
	}
	if o.Err != nil {
		p.Error = o.Err.Error()
	}
	return p
}

// Env renders the payload as EARBOUND_* environment variables
func (p *Payload) Env() []string {
	return []string{
		"EARBOUND_EVENT=" + string(p.Event),
		"EARBOUND_REQUEST_ID=" + p.RequestID,
		"EARBOUND_LINK=" + p.Link,
		"EARBOUND_PROVIDER=" + p.Provider,
		"EARBOUND_KIND=" + p.Kind,
		"EARBOUND_DIRECTORY=" + p.Directory,
		"EARBOUND_OUTCOME=" + p.Outcome,
		"EARBOUND_REASON=" + p.Reason,
		"EARBOUND_STRATEGY=" + p.Strategy,
		"EARBOUND_EXIT_CODE=" + strconv.Itoa(p.ExitCode),
		"EARBOUND_FILE_COUNT=" + strconv.Itoa(len(p.Files)),
		"EARBOUND_FILES=" + strings.Join(p.Files, "\n"),
		"EARBOUND_ERROR=" + p.Error,
		fmt.Sprintf("EARBOUND_DURATION=%.2f", p.Duration),
	}
}

// Hook reacts to finished downloads
type Hook interface {
	Execute(ctx context.Context, payload *Payload) error
	Name() string
}

// CommandHook runs a shell command with the payload in its environment
type CommandHook struct {
	Command string
	Events  []Event
	Timeout time.Duration
}

// NewCommandHook creates a command hook. Without events it fires for
// every outcome that produced audio and for failures.
func NewCommandHook(command string, events ...Event) *CommandHook {
	if len(events) == 0 {
		events = []Event{EventComplete, EventWarning, EventError}
	}
	return &CommandHook{Command: command, Events: events, Timeout: 30 * time.Second}
}

func (h *CommandHook) Name() string {
	return "command:" + h.Command
}

// Execute runs the command if it subscribes to the payload's event
func (h *CommandHook) Execute(ctx context.Context, payload *Payload) error {
	if !slices.Contains(h.Events, payload.Event) {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, h.Timeout)
	defer cancel()

	cmd := shellCommand(ctx, h.Command)
	cmd.Env = append(os.Environ(), payload.Env()...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	entry := log.WithFields(log.Fields{"hook": h.Name(), "event": payload.Event})
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("hook command failed: %w: %s", err, msg)
		}
		return fmt.Errorf("hook command failed: %w", err)
	}
	if out := strings.TrimSpace(stdout.String()); out != "" {
		entry.Debug(out)
	}
	return nil
}

func shellCommand(ctx context.Context, command string) *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.CommandContext(ctx, "cmd", "/C", command)
	}
	return exec.CommandContext(ctx, "sh", "-c", command)
}

// WebhookHook posts the payload as JSON to a URL
type WebhookHook struct {
	URL     string
	Events  []Event
	Headers map[string]string
	Timeout time.Duration
	client  *http.Client
}

// NewWebhookHook creates a webhook hook. Without events it fires for
// every outcome, cancellations included.
func NewWebhookHook(url string, events ...Event) *WebhookHook {
	if len(events) == 0 {
		events = []Event{EventComplete, EventWarning, EventError, EventCancel}
	}
	return &WebhookHook{
		URL:     url,
		Events:  events,
		Headers: map[string]string{},
		Timeout: 10 * time.Second,
		client:  &http.Client{},
	}
}

// WithHeader sets an extra request header, e.g. for authorization
func (h *WebhookHook) WithHeader(key, value string) *WebhookHook {
	h.Headers[key] = value
	return h
}

func (h *WebhookHook) Name() string {
	return "webhook:" + h.URL
}

// Execute posts the payload if the hook subscribes to its event. Any
// 2xx answer counts as delivered.
func (h *WebhookHook) Execute(ctx context.Context, payload *Payload) error {
	if !slices.Contains(h.Events, payload.Event) {
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, h.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Earbound-Webhook/"+version.Version)
	for key, value := range h.Headers {
		req.Header.Set(key, value)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting to webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("webhook answered %s", resp.Status)
	}
	return nil
}

// Manager fans a payload out to every registered hook
type Manager struct {
	hooks []Hook
}

func NewManager() *Manager {
	return &Manager{}
}

// FromConfig registers the configured hooks. The success command also
// runs for downloads that finished with warnings; the webhook hears
// about everything. Empty entries are skipped.
func FromConfig(onComplete, onError, webhook string) *Manager {
	m := NewManager()
	if onComplete != "" {
		m.AddCommand(onComplete, EventComplete, EventWarning)
	}
	if onError != "" {
		m.AddCommand(onError, EventError)
	}
	if webhook != "" {
		m.AddWebhook(webhook)
	}
	return m
}

func (m *Manager) Add(hook Hook) {
	m.hooks = append(m.hooks, hook)
}

func (m *Manager) AddCommand(command string, events ...Event) {
	m.Add(NewCommandHook(command, events...))
}

func (m *Manager) AddWebhook(url string, events ...Event) {
	m.Add(NewWebhookHook(url, events...))
}

// Execute runs every hook in order. One failing hook does not stop
// the rest; all failures come back joined.
func (m *Manager) Execute(ctx context.Context, payload *Payload) error {
	var errs []error
	for _, hook := range m.hooks {
		if err := hook.Execute(ctx, payload); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", hook.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Notify runs the hooks for a finished request and logs failures
// instead of returning them.
func (m *Manager) Notify(ctx context.Context, requestID string, o supervisor.Outcome) {
	if m == nil || len(m.hooks) == 0 {
		return
	}
	if err := m.Execute(ctx, PayloadFromOutcome(requestID, o)); err != nil {
		log.WithField("request", requestID).WithError(err).Warn("Hook failed")
	}
}

// Count returns the number of registered hooks
func (m *Manager) Count() int {
	return len(m.hooks)
}

// Clear removes all hooks
func (m *Manager) Clear() {
	m.hooks = nil
}
