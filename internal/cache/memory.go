package cache

import (
	"context"
	"sync"
	"time"

	"github.com/sawpanic/tokenrisk/internal/domain/token"
)

type item struct {
	value      []byte
	expiration int64
}

// Memory is an in-process fast tier with per-key TTL. A janitor goroutine
// evicts expired keys until Close is called.
type Memory struct {
	mu    sync.RWMutex
	items map[string]item
	now   func() time.Time
	stop  chan struct{}
	once  sync.Once
}

// NewMemory creates a memory cache. A cleanup interval of zero disables the
// janitor; expired keys are then only hidden, not evicted.
func NewMemory(cleanupInterval time.Duration) *Memory {
	m := &Memory{
		items: make(map[string]item),
		now:   time.Now,
		stop:  make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go m.janitor(cleanupInterval)
	}
	return m
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	it, ok := m.items[key]
	if !ok || m.expired(it) {
		return nil, false, nil
	}
	out := make([]byte, len(it.value))
	copy(out, it.value)
	return out, true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	var exp int64
	if ttl > 0 {
		exp = m.now().Add(ttl).UnixNano()
	}
	m.items[key] = item{value: stored, expiration: exp}
	return nil
}

// Flush removes expired keys and reports how many were removed.
func (m *Memory) Flush() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for k, it := range m.items {
		if m.expired(it) {
			delete(m.items, k)
			removed++
		}
	}
	return removed
}

// Close stops the janitor.
func (m *Memory) Close() {
	m.once.Do(func() { close(m.stop) })
}

func (m *Memory) expired(it item) bool {
	return it.expiration > 0 && m.now().UnixNano() > it.expiration
}

func (m *Memory) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.Flush()
		case <-m.stop:
			return
		}
	}
}

// MemoryStore is an in-process durable tier. Entries never expire; the
// engine decides freshness from AnalyzedAt.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[token.Address]token.CacheEntry
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[token.Address]token.CacheEntry)}
}

func (s *MemoryStore) Get(_ context.Context, addr token.Address) (*token.CacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[addr]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

// Put keeps the newer of the stored and incoming entries.
func (s *MemoryStore) Put(_ context.Context, entry token.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.entries[entry.TokenAddress]; ok && cur.AnalyzedAt.After(entry.AnalyzedAt) {
		return nil
	}
	s.entries[entry.TokenAddress] = entry
	return nil
}
