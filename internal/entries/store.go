package entries

import (
	"context"
	"sort"
	"sync"
)

// Store persists config entries. Implementations must be safe for
// concurrent use.
type Store interface {
	List(ctx context.Context) ([]Entry, error)
	Put(ctx context.Context, entry Entry) error
	Delete(ctx context.Context, entryID string) error
}

// MemoryStore keeps entries in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (s *MemoryStore) List(_ context.Context) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.Clone())
	}
	sortEntries(out)
	return out, nil
}

func (s *MemoryStore) Put(_ context.Context, entry Entry) error {
	s.mu.Lock()
	s.entries[entry.EntryID] = entry.Clone()
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, entryID string) error {
	s.mu.Lock()
	delete(s.entries, entryID)
	s.mu.Unlock()
	return nil
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		}
		return entries[i].EntryID < entries[j].EntryID
	})
}
