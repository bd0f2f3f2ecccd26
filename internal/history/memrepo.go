package history

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// memrepo backs history when no database is configured. Records live for
// the lifetime of the process.
type memrepo struct {
	mu     sync.RWMutex
	nextID int64
	byKey  map[string]*Record
}

func NewMemoryRepository() Repository {
	return &memrepo{byKey: make(map[string]*Record)}
}

func (m *memrepo) SaveGame(_ context.Context, rec *Record) (int64, error) {
	if err := validate(rec); err != nil {
		return 0, err
	}
	key := strings.TrimSpace(rec.SessionID) + "|" + strings.TrimSpace(rec.GameCode)

	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	if prev, ok := m.byKey[key]; ok {
		cp.ID = prev.ID
	} else {
		m.nextID++
		cp.ID = m.nextID
	}
	m.byKey[key] = &cp
	return cp.ID, nil
}

func (m *memrepo) RecentGames(_ context.Context, limit int) ([]*Record, error) {
	m.mu.RLock()
	items := make([]*Record, 0, len(m.byKey))
	for _, r := range m.byKey {
		cp := *r
		items = append(items, &cp)
	}
	m.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		if !items[i].EndedAt.Equal(items[j].EndedAt) {
			return items[i].EndedAt.After(items[j].EndedAt)
		}
		return items[i].ID > items[j].ID
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (m *memrepo) Close() error { return nil }
