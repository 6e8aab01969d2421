package audit

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStorage keeps records in memory. All data is lost on exit.
type MemoryStorage struct {
	mu      sync.RWMutex
	records []*Record
}

// NewMemoryStorage creates an empty in-memory backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// Store implements Storage. The record is copied.
func (m *MemoryStorage) Store(ctx context.Context, record *Record) error {
	if record == nil {
		return ErrNilRecord
	}
	cp := *record
	cp.Candidates = append([]string(nil), record.Candidates...)

	m.mu.Lock()
	m.records = append(m.records, &cp)
	m.mu.Unlock()
	return nil
}

// Query implements Storage.
func (m *MemoryStorage) Query(ctx context.Context, query *Query) ([]*Record, error) {
	matched := m.filter(query)
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	offset := 0
	if query != nil && query.Offset > 0 {
		offset = query.Offset
	}
	if offset >= len(matched) {
		return []*Record{}, nil
	}
	matched = matched[offset:]
	if n := query.limit(); len(matched) > n {
		matched = matched[:n]
	}
	return matched, nil
}

// Count implements Storage.
func (m *MemoryStorage) Count(ctx context.Context, query *Query) (int64, error) {
	return int64(len(m.filter(query))), nil
}

// DeleteBefore implements Storage.
func (m *MemoryStorage) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.records[:0]
	var deleted int64
	for _, r := range m.records {
		if r.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	m.records = kept
	return deleted, nil
}

// Close implements Storage.
func (m *MemoryStorage) Close() error {
	return nil
}

func (m *MemoryStorage) filter(query *Query) []*Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Record, 0)
	for _, r := range m.records {
		if query.matches(r) {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out
}
