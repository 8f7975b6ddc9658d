package store

import (
	"sync"
	"time"
)

// DocumentStore owns the single shared document. The zero value is an empty
// document at revision 0 and is ready to use.
type DocumentStore struct {
	mu        sync.RWMutex
	text      string
	revision  uint64
	updatedAt time.Time
}

func New() *DocumentStore {
	return &DocumentStore{}
}

// Get returns the current text.
func (s *DocumentStore) Get() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.text
}

// Set replaces the whole document with text. Last write wins.
func (s *DocumentStore) Set(text string) {
	s.Update(text)
}

// Update is Set, returning the snapshot that the write produced.
func (s *DocumentStore) Update(text string) Snapshot {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.text = text
	s.revision++
	s.updatedAt = now
	return Snapshot{Text: s.text, Revision: s.revision, UpdatedAt: s.updatedAt}
}

func (s *DocumentStore) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Text: s.text, Revision: s.revision, UpdatedAt: s.updatedAt}
}
