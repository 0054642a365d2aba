package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/zatekoja/crmdataplatform/internal/domain/providers"
)

const (
	defaultMemoryCursors   = 10000
	defaultMemoryCursorTTL = 30 * time.Minute
)

type memoryEntry struct {
	state     []byte
	expiresAt time.Time
}

// MemoryCursorStore implements providers.CursorStore in process memory.
// Cursors are only visible to the replica that created them.
type MemoryCursorStore struct {
	entries *expirable.LRU[string, memoryEntry]
	now     func() time.Time
}

// NewMemoryCursorStore creates a new in-memory cursor store. The LRU bounds
// the number of open cursors; each entry still honours its own ttl.
func NewMemoryCursorStore() *MemoryCursorStore {
	return &MemoryCursorStore{
		entries: expirable.NewLRU[string, memoryEntry](defaultMemoryCursors, nil, defaultMemoryCursorTTL),
		now:     time.Now,
	}
}

// Save stores state under cursor for ttl
func (s *MemoryCursorStore) Save(_ context.Context, cursor string, state []byte, ttl time.Duration) error {
	s.entries.Add(cursor, memoryEntry{
		state:     append([]byte(nil), state...),
		expiresAt: s.now().Add(ttl),
	})
	return nil
}

// Load returns the state and renews its ttl
func (s *MemoryCursorStore) Load(_ context.Context, cursor string, ttl time.Duration) ([]byte, error) {
	entry, ok := s.entries.Get(cursor)
	if !ok || !s.now().Before(entry.expiresAt) {
		s.entries.Remove(cursor)
		return nil, providers.ErrCursorNotFound
	}
	entry.expiresAt = s.now().Add(ttl)
	s.entries.Add(cursor, entry)
	return append([]byte(nil), entry.state...), nil
}

// Delete removes the cursor
func (s *MemoryCursorStore) Delete(_ context.Context, cursor string) error {
	s.entries.Remove(cursor)
	return nil
}
