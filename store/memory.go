package store

import "sync"

// MemoryBackend keeps the collection in memory. Data is lost on restart.
type MemoryBackend struct {
	mu    sync.Mutex
	items []Item
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

// Load returns the last saved collection, or nothing before the first Save.
func (m *MemoryBackend) Load() ([]Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneAll(m.items), nil
}

func (m *MemoryBackend) Save(items []Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = cloneAll(items)
	return nil
}

func (m *MemoryBackend) Close() error {
	return nil
}
