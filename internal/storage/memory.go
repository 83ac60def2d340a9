package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"das-service/internal/domain"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is a process-local Store for development and tests. Records
// are copied through JSON so callers never share the stored value.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	record    string
	createdAt time.Time
	expiresAt time.Time
}

// NewMemoryStore creates an empty store. A nil clock means time.Now.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{records: make(map[string]memoryEntry), now: now}
}

func (m *MemoryStore) Save(_ context.Context, rec domain.StoredRecord) error {
	raw, err := encodeRecord(rec.Record)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = memoryEntry{record: raw, createdAt: rec.CreatedAt, expiresAt: rec.ExpiresAt}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*domain.StoredRecord, error) {
	m.mu.RLock()
	entry, ok := m.records[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return m.live(id, entry)
}

func (m *MemoryStore) Replace(_ context.Context, id string, rec *domain.FiscalRecord) (*domain.StoredRecord, error) {
	raw, err := encodeRecord(rec)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	entry, ok := m.records[id]
	if !ok || !m.now().Before(entry.expiresAt) {
		m.mu.Unlock()
		return nil, ErrNotFound
	}
	entry.record = raw
	m.records[id] = entry
	m.mu.Unlock()

	return m.live(id, entry)
}

func (m *MemoryStore) List(_ context.Context, limit int) ([]domain.StoredRecord, error) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.records))
	entries := make([]memoryEntry, 0, len(m.records))
	for id, e := range m.records {
		ids = append(ids, id)
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	var out []domain.StoredRecord
	for i, e := range entries {
		rec, err := m.live(ids[i], e)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Purge drops expired entries and returns how many were removed.
func (m *MemoryStore) Purge() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, e := range m.records {
		if !now.Before(e.expiresAt) {
			delete(m.records, id)
			removed++
		}
	}
	return removed
}

func (m *MemoryStore) live(id string, e memoryEntry) (*domain.StoredRecord, error) {
	stored := domain.StoredRecord{ID: id, CreatedAt: e.createdAt, ExpiresAt: e.expiresAt}
	if expired(stored, m.now()) {
		return nil, ErrNotFound
	}
	rec, err := decodeRecord(e.record)
	if err != nil {
		return nil, err
	}
	stored.Record = rec
	return &stored, nil
}
