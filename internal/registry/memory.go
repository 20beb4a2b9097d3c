package registry

import (
	"context"
	"sync"

	"github.com/podushkina/schedmon/internal/task"
)

type Memory struct {
	mu      sync.RWMutex
	records map[string]task.Record
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]task.Record)}
}

func (m *Memory) Insert(ctx context.Context, rec task.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = rec
	return nil
}

func (m *Memory) Update(ctx context.Context, rec task.Record) (task.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.records[rec.ID]; ok {
		rec = prev.Merge(rec)
	}
	m.records[rec.ID] = rec
	return rec, nil
}

func (m *Memory) Get(ctx context.Context, id string) (task.Record, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	return rec, ok, nil
}

func (m *Memory) List(ctx context.Context, opts task.SortOptions) ([]task.Record, error) {
	m.mu.RLock()
	records := make([]task.Record, 0, len(m.records))
	for _, rec := range m.records {
		records = append(records, rec)
	}
	m.mu.RUnlock()

	return sorted(records, opts), nil
}

func (m *Memory) ReplaceAll(ctx context.Context, records []task.Record) error {
	next := make(map[string]task.Record, len(records))
	for _, rec := range records {
		next[rec.ID] = rec
	}

	m.mu.Lock()
	m.records = next
	m.mu.Unlock()
	return nil
}

func (m *Memory) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.records = make(map[string]task.Record)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Len(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

func (m *Memory) Close() error { return nil }
