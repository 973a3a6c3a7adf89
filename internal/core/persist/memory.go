package persist

import (
	"context"
	"sync"

	"golang.org/x/exp/maps"
)

// MemoryBackend keeps records in process memory. Nothing survives a restart;
// it exists for tests and for running without a data directory.
type MemoryBackend struct {
	mu      sync.RWMutex
	records map[int][]byte
	closed  bool
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: make(map[int][]byte)}
}

func (m *MemoryBackend) Save(ctx context.Context, id int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}

	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)
	m.records[id] = dataCopy
	return nil
}

func (m *MemoryBackend) Load(ctx context.Context, id int) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed
	}

	data, ok := m.records[id]
	if !ok {
		return nil, nil
	}
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)
	return dataCopy, nil
}

func (m *MemoryBackend) Delete(ctx context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	delete(m.records, id)
	return nil
}

func (m *MemoryBackend) List(ctx context.Context) ([]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed
	}
	return maps.Keys(m.records), nil
}

func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
