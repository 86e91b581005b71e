package archive

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/metrics"
)

// Memory archives uploads in process memory. Useful for development.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

var _ Archive = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{objects: map[string][]byte{}}
}

func (m *Memory) Put(_ context.Context, upload Upload) (Object, error) {
	key := Key(upload, uuid.New())

	m.mu.Lock()
	m.objects[key] = slices.Clone(upload.Data)
	m.mu.Unlock()

	metrics.ArchiveUploadsTotal.WithLabelValues(string(DriverMemory), "success").Inc()
	return Object{Key: key, Size: int64(len(upload.Data))}, nil
}

// Get returns the archived bytes for key.
func (m *Memory) Get(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	return data, ok
}
