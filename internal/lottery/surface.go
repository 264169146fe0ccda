package lottery

import "sync"

// DisplayLock is a global display side effect held while a surface is open.
// The returned release func must be safe to call more than once.
type DisplayLock interface {
	Acquire() (release func())
}

// ScrollLock counts open surfaces; the page scroll is locked while any hold it.
type ScrollLock struct {
	mu      sync.Mutex
	holders int
}

func (l *ScrollLock) Acquire() func() {
	l.mu.Lock()
	l.holders++
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			l.holders--
			l.mu.Unlock()
		})
	}
}

func (l *ScrollLock) Locked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.holders > 0
}

// listenerState tracks the outside-click listener. Registration is delayed by
// a grace period so the click that opened the surface cannot close it.
type listenerState int

const (
	listenerIdle listenerState = iota
	listenerArmed
	listenerActive
	listenerClosed
)

func (s listenerState) String() string {
	switch s {
	case listenerIdle:
		return "idle"
	case listenerArmed:
		return "armed"
	case listenerActive:
		return "listening"
	case listenerClosed:
		return "closed"
	default:
		return "unknown"
	}
}
