package overlay

import (
	"sort"
	"sync"
)

// Store holds the handles attached to one composite, keyed by overlay key.
type Store interface {
	Get(key string) (Handle, bool)
	Put(key string, handle Handle)
	Delete(key string) bool
	// Range visits entries in key order until fn returns false.
	Range(fn func(key string, handle Handle) bool)
	Len() int
}

// MapStore is a bare map. It is not safe for concurrent use; composites start
// with it because most players only ever carry a single overlay.
type MapStore struct {
	entries map[string]Handle
}

func NewMapStore() *MapStore {
	return &MapStore{entries: make(map[string]Handle)}
}

func (s *MapStore) Get(key string) (Handle, bool) {
	h, ok := s.entries[key]
	return h, ok
}

func (s *MapStore) Put(key string, handle Handle) {
	s.entries[key] = handle
}

func (s *MapStore) Delete(key string) bool {
	if _, ok := s.entries[key]; !ok {
		return false
	}
	delete(s.entries, key)
	return true
}

func (s *MapStore) Range(fn func(key string, handle Handle) bool) {
	keys := make([]string, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if !fn(key, s.entries[key]) {
			return
		}
	}
}

func (s *MapStore) Len() int {
	return len(s.entries)
}

// SyncStore is a mutex guarded Store safe for concurrent use.
type SyncStore struct {
	mu      sync.RWMutex
	entries map[string]Handle
}

func NewSyncStore() *SyncStore {
	return &SyncStore{entries: make(map[string]Handle)}
}

func (s *SyncStore) Get(key string) (Handle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.entries[key]
	return h, ok
}

func (s *SyncStore) Put(key string, handle Handle) {
	s.mu.Lock()
	s.entries[key] = handle
	s.mu.Unlock()
}

func (s *SyncStore) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; !ok {
		return false
	}
	delete(s.entries, key)
	return true
}

// Range iterates over a snapshot so fn may call back into the store.
func (s *SyncStore) Range(fn func(key string, handle Handle) bool) {
	s.mu.RLock()
	keys := make([]string, 0, len(s.entries))
	handles := make(map[string]Handle, len(s.entries))
	for key, handle := range s.entries {
		keys = append(keys, key)
		handles[key] = handle
	}
	s.mu.RUnlock()
	sort.Strings(keys)
	for _, key := range keys {
		if !fn(key, handles[key]) {
			return
		}
	}
}

func (s *SyncStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
