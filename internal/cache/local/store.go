// Package local implements the in-process L1 cache tier: a bounded store
// with TTL expiry and least-recently-used eviction.
//
// Entries are held in a map indexed doubly-linked list kept in access order,
// so eviction picks the entry with the smallest last-access time in O(1).
// Expiry is checked lazily on read; Sweep reclaims entries that expired
// without being re-read. All operations are safe for concurrent use and
// never block on I/O while holding the lock.
package local

import (
	"container/list"
	"strings"
	"sync"
	"time"

	"tiercache/internal/common/errors"
)

// approximate fixed cost of one entry beyond its key and value bytes
const entryOverheadBytes = 120

type entry struct {
	key          string
	value        []byte
	insertedAt   time.Time
	ttl          time.Duration
	lastAccessAt time.Time
	accessCount  uint64
}

// Stats is a point-in-time snapshot of the store's counters.
type Stats struct {
	Size              int     `json:"size"`
	Capacity          int     `json:"capacity"`
	Hits              uint64  `json:"hits"`
	Misses            uint64  `json:"misses"`
	Sets              uint64  `json:"sets"`
	Deletes           uint64  `json:"deletes"`
	Evictions         uint64  `json:"evictions"`
	Expirations       uint64  `json:"expirations"`
	HitRate           float64 `json:"hit_rate"`
	ApproxMemoryBytes int64   `json:"approx_memory_bytes"`
}

// Store is the bounded in-process cache. The entry count never exceeds the
// configured capacity; eviction happens before any insert that would.
type Store struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List // front = most recently used
	memBytes int64

	hits        uint64
	misses      uint64
	sets        uint64
	deletes     uint64
	evictions   uint64
	expirations uint64

	now func() time.Time // overridable in tests
}

// New creates a store holding at most capacity entries.
func New(capacity int) (*Store, error) {
	if capacity < 1 {
		return nil, errors.ConfigError("local store capacity must be positive")
	}
	return &Store{
		capacity: capacity,
		entries:  make(map[string]*list.Element, capacity),
		order:    list.New(),
		now:      time.Now,
	}, nil
}

// Get returns the value for key if present and unexpired, updating the
// entry's access metadata. An expired entry is removed on the spot and
// reported as a miss.
func (s *Store) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.entries[key]
	if !ok {
		s.misses++
		return nil, false
	}

	e := elem.Value.(*entry)
	now := s.now()
	if now.Sub(e.insertedAt) > e.ttl {
		s.removeElement(elem)
		s.expirations++
		s.misses++
		return nil, false
	}

	e.lastAccessAt = now
	e.accessCount++
	s.order.MoveToFront(elem)
	s.hits++
	return e.value, true
}

// Set inserts or overwrites the entry for key. A non-positive ttl is a
// caller error and is rejected. When key is new and the store is full, the
// least recently used entry is evicted first.
func (s *Store) Set(key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.InvalidTTLError(ttl.Seconds())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if elem, ok := s.entries[key]; ok {
		e := elem.Value.(*entry)
		s.memBytes += int64(len(value)) - int64(len(e.value))
		e.value = value
		e.insertedAt = now
		e.ttl = ttl
		e.lastAccessAt = now
		e.accessCount = 0
		s.order.MoveToFront(elem)
		s.sets++
		return nil
	}

	if len(s.entries) >= s.capacity {
		if tail := s.order.Back(); tail != nil {
			s.removeElement(tail)
			s.evictions++
		}
	}

	e := &entry{
		key:          key,
		value:        value,
		insertedAt:   now,
		ttl:          ttl,
		lastAccessAt: now,
	}
	s.entries[key] = s.order.PushFront(e)
	s.memBytes += int64(len(key)) + int64(len(value)) + entryOverheadBytes
	s.sets++
	return nil
}

// Delete removes the entry for key, reporting whether it was present.
func (s *Store) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.entries[key]
	if !ok {
		return false
	}
	s.removeElement(elem)
	s.deletes++
	return true
}

// DeleteContaining removes every entry whose key contains pattern as a
// substring and returns the number removed.
func (s *Store) DeleteContaining(pattern string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, elem := range s.entries {
		if strings.Contains(key, pattern) {
			s.removeElement(elem)
			s.deletes++
			removed++
		}
	}
	return removed
}

// Clear removes all entries.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*list.Element, s.capacity)
	s.order.Init()
	s.memBytes = 0
}

// Sweep removes every expired entry and returns the number reclaimed.
// The maintenance loop calls this to free memory held by keys that were
// never re-read after their TTL elapsed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	reclaimed := 0
	for _, elem := range s.entries {
		e := elem.Value.(*entry)
		if now.Sub(e.insertedAt) > e.ttl {
			s.removeElement(elem)
			s.expirations++
			reclaimed++
		}
	}
	return reclaimed
}

// Len returns the current number of entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Stats returns a snapshot of the store's counters. The hit rate is
// hits/(hits+misses), zero when no reads have happened.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		Size:              len(s.entries),
		Capacity:          s.capacity,
		Hits:              s.hits,
		Misses:            s.misses,
		Sets:              s.sets,
		Deletes:           s.deletes,
		Evictions:         s.evictions,
		Expirations:       s.expirations,
		ApproxMemoryBytes: s.memBytes,
	}
	if total := s.hits + s.misses; total > 0 {
		st.HitRate = float64(s.hits) / float64(total)
	}
	return st
}

// removeElement unlinks an entry; callers must hold the lock.
func (s *Store) removeElement(elem *list.Element) {
	e := elem.Value.(*entry)
	s.order.Remove(elem)
	delete(s.entries, e.key)
	s.memBytes -= int64(len(e.key)) + int64(len(e.value)) + entryOverheadBytes
}
