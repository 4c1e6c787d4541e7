package process

import (
	"sync"
	"sync/atomic"
)

// CancelFlag is a one-way flag that can be set from any goroutine and
// both polled and waited on. The zero value is not usable; a nil
// *CancelFlag is never set.
type CancelFlag struct {
	set  atomic.Bool
	once sync.Once
	done chan struct{}
}

// NewCancelFlag returns an unset flag
func NewCancelFlag() *CancelFlag {
	return &CancelFlag{done: make(chan struct{})}
}

// Set raises the flag. It reports whether this call changed it.
func (f *CancelFlag) Set() bool {
	changed := false
	f.once.Do(func() {
		f.set.Store(true)
		close(f.done)
		changed = true
	})
	return changed
}

// IsSet reports whether the flag has been raised
func (f *CancelFlag) IsSet() bool {
	return f != nil && f.set.Load()
}

// Done returns a channel closed once the flag is raised
func (f *CancelFlag) Done() <-chan struct{} {
	if f == nil {
		return nil
	}
	return f.done
}
