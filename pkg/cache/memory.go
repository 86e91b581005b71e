package cache

import (
	"context"
	"slices"
	"sync"

	"github.com/Ramsey-B/fern/pkg/models"
)

// Memory keeps snapshots for the life of the process.
type Memory struct {
	mu        sync.RWMutex
	snapshots map[models.Kind][]models.Record
	pending   map[models.Kind]bool
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		snapshots: map[models.Kind][]models.Record{},
		pending:   map[models.Kind]bool{},
	}
}

func (m *Memory) Read(_ context.Context, kind models.Kind) (models.RecordSet, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records, ok := m.snapshots[kind]
	observe(DriverMemory, "read", nil)
	if !ok {
		return models.RecordSet{}, false, nil
	}
	return models.RecordSet{Kind: kind, Records: slices.Clone(records)}, true, nil
}

func (m *Memory) Write(_ context.Context, set models.RecordSet) error {
	if err := validate(set); err != nil {
		observe(DriverMemory, "write", err)
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	records := slices.Clone(set.Records)
	if records == nil {
		records = []models.Record{}
	}
	m.snapshots[set.Kind] = records
	observe(DriverMemory, "write", nil)
	return nil
}

func (m *Memory) SetPending(_ context.Context, kind models.Kind, pending bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pending {
		m.pending[kind] = true
	} else {
		delete(m.pending, kind)
	}
	observe(DriverMemory, "set_pending", nil)
	return nil
}

func (m *Memory) Pending(_ context.Context, kind models.Kind) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pending[kind], nil
}
