package process

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the executable could not be located
	ErrNotFound = errors.New("executable not found")
	// ErrSpawnFailed covers every other failure to start a process
	ErrSpawnFailed = errors.New("failed to start process")
	// ErrCancelled is returned when a run was stopped by its cancel flag
	ErrCancelled = errors.New("cancelled")
)

// ErrorKind classifies launch failures
type ErrorKind int

const (
	KindNotFound ErrorKind = iota
	KindSpawnFailed
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindSpawnFailed:
		return "spawn failed"
	default:
		return "unknown"
	}
}

// Error is a failure to launch an external process
type Error struct {
	Kind   ErrorKind
	Binary string
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Binary, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Binary, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches ErrNotFound and ErrSpawnFailed by kind
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrSpawnFailed:
		return e.Kind == KindSpawnFailed
	}
	return false
}
