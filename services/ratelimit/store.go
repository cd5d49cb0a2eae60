package ratelimit

import (
	"sync"
	"time"
)

type Store interface {
	Get(key string) (count int, windowStart time.Time, exists bool)
	Increment(key string, windowStart time.Time) (count int)
	Reset(key string)
}

// MemoryStore is a process-local, best-effort counter cache. Durability
// across restarts comes from the audit-log cross-check, not from here.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]*entry
	window time.Duration
}

type entry struct {
	count       int
	windowStart time.Time
}

func NewMemoryStore(window time.Duration) *MemoryStore {
	store := &MemoryStore{
		data:   make(map[string]*entry),
		window: window,
	}

	go store.cleanup()

	return store
}

func (s *MemoryStore) Get(key string) (int, time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if e, exists := s.data[key]; exists && time.Since(e.windowStart) < s.window {
		return e.count, e.windowStart, true
	}

	return 0, time.Time{}, false
}

func (s *MemoryStore) Increment(key string, windowStart time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, exists := s.data[key]; exists && time.Since(e.windowStart) < s.window {
		e.count++
		return e.count
	}

	s.data[key] = &entry{
		count:       1,
		windowStart: windowStart,
	}

	return 1
}

func (s *MemoryStore) Reset(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
}

func (s *MemoryStore) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		s.mu.Lock()
		for key, e := range s.data {
			if time.Since(e.windowStart) >= s.window {
				delete(s.data, key)
			}
		}
		s.mu.Unlock()
	}
}
