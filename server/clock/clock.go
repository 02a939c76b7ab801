package clock

import (
	"sync"
	"time"
)

// Provider is the time source for the frame loop, the publish cadence and
// the room service stamps
type Provider interface {
	Now() time.Time
}

// Real reads the system monotonic clock
type Real struct{}

func (Real) Now() time.Time {
	return time.Now()
}

// Mock is a controllable time source for tests
type Mock struct {
	mu  sync.RWMutex
	now time.Time
}

func NewMock(start time.Time) *Mock {
	return &Mock{now: start}
}

func (m *Mock) Now() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.now
}

func (m *Mock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// Advance moves the mock forward by d
func (m *Mock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}
