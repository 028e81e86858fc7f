package cache

import (
	"context"
	"sync"
)

// PersistenceStore is the key/value surface a Store snapshots itself to.
// Implementations may back it with any durable or ephemeral storage; read,
// parse and write failures are all treated the same by the Store (logged,
// cache continues empty or partial).
type PersistenceStore interface {
	// GetItem returns the value stored under key, or found=false when the
	// key has never been written.
	GetItem(ctx context.Context, key string) (value []byte, found bool, err error)
	// SetItem stores value under key, overwriting any previous value.
	SetItem(ctx context.Context, key string, value []byte) error
}

// MemoryPersistence is a map-backed PersistenceStore for tests and
// ephemeral use.
type MemoryPersistence struct {
	mutex sync.Mutex
	items map[string][]byte
}

var _ PersistenceStore = (*MemoryPersistence)(nil)

// NewMemoryPersistence returns an empty in-memory PersistenceStore.
func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{items: make(map[string][]byte)}
}

func (m *MemoryPersistence) GetItem(_ context.Context, key string) ([]byte, bool, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	val, ok := m.items[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, true, nil
}

func (m *MemoryPersistence) SetItem(_ context.Context, key string, value []byte) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	stored := make([]byte, len(value))
	copy(stored, value)
	m.items[key] = stored
	return nil
}
