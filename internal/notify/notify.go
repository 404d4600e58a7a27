// Package notify carries the payload-free change broadcast fired on every
// successful profile mutation. Listeners re-read the persisted profile
// instead of trusting in-memory copies, keeping concurrent clients (other
// tabs, other instances) consistent with the durable record.
package notify

import (
	"context"
	"sync"
)

// Notifier publishes and subscribes to the profile-changed signal. The signal
// intentionally carries no payload.
type Notifier interface {
	Publish(ctx context.Context) error
	Subscribe(fn func())
}

// Memory fans out in-process. Suitable for tests and single-instance runs.
type Memory struct {
	mu        sync.RWMutex
	listeners []func()
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Publish(_ context.Context) error {
	m.mu.RLock()
	listeners := append([]func(){}, m.listeners...)
	m.mu.RUnlock()
	for _, fn := range listeners {
		fn()
	}
	return nil
}

func (m *Memory) Subscribe(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}
