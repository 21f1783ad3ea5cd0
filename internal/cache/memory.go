package cache

import (
	"context"
	"sync"

	"github.com/a3tai/mcp-legal-extractor/internal/models"
)

// Memory is a thread-safe least recently used response cache. A capacity of
// zero or less keeps every entry.
type Memory struct {
	mutex    sync.RWMutex
	capacity int
	items    map[string]*entry
	head     *entry // Most recently used
	tail     *entry // Least recently used
	hits     int64
	misses   int64
}

// entry is a node in the doubly-linked recency list
type entry struct {
	key   string
	value *models.AnalysisResponse
	prev  *entry
	next  *entry
}

// NewMemory creates a memory cache holding at most capacity responses
func NewMemory(capacity int) *Memory {
	if capacity < 0 {
		capacity = 0
	}

	m := &Memory{
		capacity: capacity,
		items:    make(map[string]*entry),
	}

	// Sentinel head and tail
	m.head = &entry{}
	m.tail = &entry{}
	m.head.next = m.tail
	m.tail.prev = m.head

	return m
}

// Get returns a copy of the cached response and marks it recently used
func (m *Memory) Get(_ context.Context, key string) (*models.AnalysisResponse, bool, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if e, ok := m.items[key]; ok {
		m.moveToFront(e)
		m.hits++
		return e.value.Clone(), true, nil
	}

	m.misses++
	return nil, false, nil
}

// Put stores a copy of resp under key, evicting the least recently used
// entry when the cache is full
func (m *Memory) Put(_ context.Context, key string, resp *models.AnalysisResponse) error {
	if resp == nil {
		return nil
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if e, ok := m.items[key]; ok {
		e.value = resp.Clone()
		m.moveToFront(e)
		return nil
	}

	e := &entry{key: key, value: resp.Clone()}
	m.addToFront(e)
	m.items[key] = e

	if m.capacity > 0 && len(m.items) > m.capacity {
		m.evictLRU()
	}
	return nil
}

// Clear removes all entries and resets statistics
func (m *Memory) Clear(_ context.Context) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.items = make(map[string]*entry)
	m.head.next = m.tail
	m.tail.prev = m.head
	m.hits = 0
	m.misses = 0
	return nil
}

// Len returns the number of cached responses
func (m *Memory) Len(_ context.Context) (int, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.items), nil
}

// FindByDocument scans from most to least recently used without touching recency
func (m *Memory) FindByDocument(_ context.Context, documentID string) (*models.AnalysisResponse, bool, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	for e := m.head.next; e != m.tail; e = e.next {
		if e.value.DocumentID == documentID {
			return e.value.Clone(), true, nil
		}
	}
	return nil, false, nil
}

// Stats returns cache statistics
func (m *Memory) Stats(_ context.Context) Stats {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return Stats{
		Hits:     m.hits,
		Misses:   m.misses,
		HitRate:  hitRate(m.hits, m.misses),
		Size:     len(m.items),
		Capacity: m.capacity,
	}
}

func (m *Memory) moveToFront(e *entry) {
	m.removeNode(e)
	m.addToFront(e)
}

func (m *Memory) addToFront(e *entry) {
	e.prev = m.head
	e.next = m.head.next
	m.head.next.prev = e
	m.head.next = e
}

func (m *Memory) removeNode(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
}

func (m *Memory) evictLRU() {
	lru := m.tail.prev
	if lru != m.head {
		m.removeNode(lru)
		delete(m.items, lru.key)
	}
}

var _ Store = (*Memory)(nil)
