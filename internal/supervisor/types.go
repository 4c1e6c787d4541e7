package supervisor

import (
	"context"
	"errors"
	"time"

	"github.com/kilimcininkoroglu/earbound/internal/link"
	"github.com/kilimcininkoroglu/earbound/internal/organize"
	"github.com/kilimcininkoroglu/earbound/internal/process"
)

var (
	// ErrBusy is returned by Submit while another request is in flight
	ErrBusy = errors.New("a download is already in progress")
	// ErrNoOutputProduced means every attempt failed and no audio exists
	ErrNoOutputProduced = errors.New("no files produced")
	// ErrPartialFailure marks a non-zero exit that still left audio behind
	ErrPartialFailure = errors.New("downloader reported errors")
	// ErrDeclined means the user chose not to download a likely duplicate
	ErrDeclined = errors.New("duplicate download declined")
)

// Request is one user-initiated download
type Request struct {
	Link          string
	BaseDirectory string
}

// State is a step of the per-request state machine
type State int

const (
	StateIdle State = iota
	StateClassifying
	StateResolving
	StateDuplicateCheck
	StateRunningPrimary
	StateRunningFallback
	StateFinalizing
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateClassifying:
		return "classifying"
	case StateResolving:
		return "resolving"
	case StateDuplicateCheck:
		return "duplicate-check"
	case StateRunningPrimary:
		return "running-primary"
	case StateRunningFallback:
		return "running-fallback"
	case StateFinalizing:
		return "finalizing"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// OutcomeKind is the terminal result of a request
type OutcomeKind int

const (
	Completed OutcomeKind = iota
	CompletedWithWarnings
	Cancelled
	Failed
)

func (k OutcomeKind) String() string {
	switch k {
	case Completed:
		return "completed"
	case CompletedWithWarnings:
		return "completed-with-warnings"
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is computed once per request
type Outcome struct {
	Kind           OutcomeKind
	Reason         string
	Err            error
	Link           string
	Classification link.Classification
	Directory      string
	Strategy       string // last strategy that ran
	UsedFallback   bool
	ExitCode       int
	Files          []organize.AudioFile // audio written during this request
	Warnings       int
	Errors         int
	Duration       time.Duration
}

// Success reports whether audio is expected on disk
func (o Outcome) Success() bool {
	return o.Kind == Completed || o.Kind == CompletedWithWarnings
}

// EventKind tells which field of an Event is set
type EventKind int

const (
	EventState EventKind = iota
	EventProgress
	EventLog
	EventOutcome
)

// Event is one update streamed to the caller
type Event struct {
	RequestID string
	Kind      EventKind
	Time      time.Time

	State    State
	Progress float64 // overall 0-100
	Line     string
	Level    process.Level
	Outcome  *Outcome
}

// DuplicateNotice is shown to the user when the target looks populated
type DuplicateNotice struct {
	RequestID string
	Link      string
	Directory string
}

// Confirmer decides whether to continue with a likely duplicate. It is
// called from the request goroutine and may block.
type Confirmer interface {
	ConfirmDuplicate(ctx context.Context, n DuplicateNotice) bool
}

// ConfirmFunc adapts a function to Confirmer
type ConfirmFunc func(ctx context.Context, n DuplicateNotice) bool

func (f ConfirmFunc) ConfirmDuplicate(ctx context.Context, n DuplicateNotice) bool {
	return f(ctx, n)
}
