package archive

import (
	"context"
	"sync"
)

// Memory is a process-local Archive used in tests and single-node dev runs.
type Memory struct {
	mu     sync.Mutex
	booked map[string]map[int64]bool
}

func NewMemory() *Memory {
	return &Memory{booked: make(map[string]map[int64]bool)}
}

func (m *Memory) MarkBooked(_ context.Context, roomID string, statusIDs []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.booked[roomID]
	if set == nil {
		set = make(map[int64]bool)
		m.booked[roomID] = set
	}
	for _, id := range statusIDs {
		set[id] = true
	}
	return nil
}

func (m *Memory) Booked(_ context.Context, roomID string) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int64, 0, len(m.booked[roomID]))
	for id := range m.booked[roomID] {
		ids = append(ids, id)
	}
	return ids, nil
}
