package storage

import (
	"context"
	"sync"
	"time"

	"github.com/menta2k/bbox-labeler/pkg/types"
)

// MemoryStorage implements LabelStorage in memory
type MemoryStorage struct {
	labels map[string]memoryEntry
	mutex  sync.RWMutex
}

type memoryEntry struct {
	boxes   []types.Box
	savedAt time.Time
}

// NewMemoryStorage creates a new in-memory storage instance
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{labels: make(map[string]memoryEntry)}
}

// Load implements LabelStorage
func (m *MemoryStorage) Load(ctx context.Context, image string) ([]types.Box, error) {
	if err := ValidateName(image); err != nil {
		return nil, err
	}
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	e, ok := m.labels[image]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]types.Box, len(e.boxes))
	copy(out, e.boxes)
	return out, nil
}

// Save implements LabelStorage
func (m *MemoryStorage) Save(ctx context.Context, image string, boxes []types.Box) error {
	if err := ValidateName(image); err != nil {
		return err
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()

	cp := make([]types.Box, len(boxes))
	copy(cp, boxes)
	m.labels[image] = memoryEntry{boxes: cp, savedAt: time.Now().UTC()}
	return nil
}

// Delete implements LabelStorage
func (m *MemoryStorage) Delete(ctx context.Context, image string) (bool, error) {
	if err := ValidateName(image); err != nil {
		return false, err
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()

	_, ok := m.labels[image]
	delete(m.labels, image)
	return ok, nil
}

// Summaries implements LabelStorage
func (m *MemoryStorage) Summaries(ctx context.Context) (map[string]Summary, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	out := make(map[string]Summary, len(m.labels))
	for name, e := range m.labels {
		out[name] = Summary{Count: len(e.boxes), Labeled: true, SavedAt: e.savedAt}
	}
	return out, nil
}

// Health implements LabelStorage
func (m *MemoryStorage) Health(ctx context.Context) error { return nil }

// Close implements LabelStorage
func (m *MemoryStorage) Close() error { return nil }
