package storage

import (
	"bytes"
	"sync"
)

// Storage keeps the most recently published rendering of the configuration.
type Storage interface {
	Snapshot() ([]byte, bool)
	Update(data []byte) bool
}

// MemoryStorage keeps the snapshot in-memory and guards access with a RWMutex.
type MemoryStorage struct {
	mu   sync.RWMutex
	data []byte
	set  bool
}

// NewMemoryStorage returns an empty snapshot store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// Snapshot returns a copy of the stored output and whether anything has been stored.
func (s *MemoryStorage) Snapshot() ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return clone(s.data), s.set
}

// Update stores data and reports whether it differs from the previous snapshot.
// The first update always counts as a change.
func (s *MemoryStorage) Update(data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.set && bytes.Equal(s.data, data) {
		return false
	}
	s.data = clone(data)
	s.set = true
	return true
}

func clone(src []byte) []byte {
	if len(src) == 0 {
		return []byte{}
	}

	out := make([]byte, len(src))
	copy(out, src)
	return out
}
