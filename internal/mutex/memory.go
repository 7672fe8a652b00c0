package mutex

import (
	"context"
	"sync"
	"time"
)

// Memory is a process-local mutex. Use it when a single long-running process
// owns the schedule, or in tests.
type Memory struct {
	mu          sync.Mutex
	held        map[string]time.Time
	expireAfter time.Duration
	now         func() time.Time
}

func NewMemory(expireAfter time.Duration) *Memory {
	return &Memory{held: map[string]time.Time{}, expireAfter: expireAfter, now: time.Now}
}

func (m *Memory) Acquire(_ context.Context, key string) (bool, error) {
	if err := checkKey(key); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if at, ok := m.held[key]; ok {
		if m.expireAfter <= 0 || now.Sub(at) < m.expireAfter {
			return false, nil
		}
	}
	m.held[key] = now
	return true, nil
}

func (m *Memory) Release(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.held, key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Distributed() bool { return false }

// Held reports whether key is currently locked.
func (m *Memory) Held(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.held[key]
	return ok
}
