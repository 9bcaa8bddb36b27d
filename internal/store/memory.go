package store

import (
	"context"
	"sort"
	"sync"

	"github.com/lox/metasino/internal/table"
)

// Memory keeps everything in process. It is used in tests and for
// throwaway servers.
type Memory struct {
	mu      sync.RWMutex
	records map[string]table.Record
	events  map[string][]Event
}

// NewMemory constructs an empty memory store.
func NewMemory() *Memory {
	return &Memory{
		records: make(map[string]table.Record),
		events:  make(map[string][]Event),
	}
}

func (m *Memory) Load(_ context.Context, id string) (table.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return table.Record{}, ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (m *Memory) Commit(_ context.Context, id string, rec table.Record, events ...Event) error {
	if err := checkID(id); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	log := m.events[id]
	var last int64
	if len(log) > 0 {
		last = log[len(log)-1].Seq
	}
	if err := checkSequence(last, events); err != nil {
		return err
	}

	m.records[id] = cloneRecord(rec)
	for _, ev := range events {
		log = append(log, cloneEvent(ev))
	}
	m.events[id] = log
	return nil
}

func (m *Memory) List(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *Memory) Events(_ context.Context, id string) ([]Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.records[id]; !ok {
		return nil, ErrNotFound
	}
	out := make([]Event, len(m.events[id]))
	for i, ev := range m.events[id] {
		out[i] = cloneEvent(ev)
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
