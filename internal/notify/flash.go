// Package notify carries transient, dismissible user notifications from the
// managers to whatever front end is attached.
package notify

import (
	"sync"
	"time"
)

// Level is the severity of a notice.
type Level int

const (
	Info Level = iota
	Warn
	Err
)

func (l Level) String() string {
	switch l {
	case Warn:
		return "warn"
	case Err:
		return "error"
	default:
		return "info"
	}
}

// Notice is a user-visible notification with an expiry.
type Notice struct {
	Text    string
	Level   Level
	Expires time.Time
}

// Notifier receives user-visible notices. Implementations must not block.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// Nop discards every notice.
type Nop struct{}

func (Nop) Success(string) {}
func (Nop) Error(string)   {}

// Flash holds the most recent notice and fans notices out to a watch channel.
type Flash struct {
	mu      sync.RWMutex
	current Notice
	watchCh chan Notice
}

// NewFlash creates a new flash model.
func NewFlash() *Flash {
	return &Flash{
		watchCh: make(chan Notice, 8),
	}
}

// Success sets an info-level notice.
func (f *Flash) Success(msg string) {
	f.set(msg, Info, 5*time.Second)
}

// Warn sets a warn-level notice.
func (f *Flash) Warn(msg string) {
	f.set(msg, Warn, 8*time.Second)
}

// Error sets an error-level notice.
func (f *Flash) Error(msg string) {
	f.set(msg, Err, 10*time.Second)
}

func (f *Flash) set(msg string, level Level, d time.Duration) {
	n := Notice{
		Text:    msg,
		Level:   level,
		Expires: time.Now().Add(d),
	}
	f.mu.Lock()
	f.current = n
	f.mu.Unlock()
	select {
	case f.watchCh <- n:
	default:
	}
}

// Current returns the current notice, or nil if it expired or was dismissed.
func (f *Flash) Current() *Notice {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.current.Text == "" || time.Now().After(f.current.Expires) {
		return nil
	}
	n := f.current
	return &n
}

// Dismiss clears the current notice.
func (f *Flash) Dismiss() {
	f.mu.Lock()
	f.current = Notice{}
	f.mu.Unlock()
}

// Watch returns a channel that receives every notice as it is set.
func (f *Flash) Watch() <-chan Notice {
	return f.watchCh
}
