package store

import (
	"context"
	"sync"
)

// Memory keeps the database in a map. Its contents vanish on Close.
type Memory struct {
	mu     sync.RWMutex
	data   map[string][]byte
	writer gate
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		data:   make(map[string][]byte),
		writer: newGate(),
	}
}

func (m *Memory) Begin(ctx context.Context, readOnly bool, stores ...ObjectStore) (Transaction, error) {
	set, err := storeSet(stores)
	if err != nil {
		return nil, err
	}
	if readOnly {
		return newBufferedTx(m, true, set, nil), nil
	}
	if err := m.writer.acquire(ctx); err != nil {
		return nil, err
	}
	return newBufferedTx(m, false, set, m.writer.release), nil
}

func (m *Memory) read(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *Memory) commit(_ context.Context, ops []op, _ map[string]observed) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range ops {
		if o.delete {
			delete(m.data, o.key)
			continue
		}
		m.data[o.key] = o.value
	}
	return nil
}

// Snapshot copies every committed key and value.
func (m *Memory) Snapshot() map[string][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]byte, len(m.data))
	for k, v := range m.data {
		out[k] = append([]byte(nil), v...)
	}
	return out
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string][]byte)
	return nil
}
