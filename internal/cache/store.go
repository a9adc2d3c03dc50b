package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// entry is one in-memory cache record. Entries are owned exclusively by the
// store: created on set, mutated on get, removed by expiry sweep, delete, or
// eviction. There is no way back for a removed entry short of a fresh set.
type entry struct {
	key          string
	payload      []byte
	createdAt    time.Time
	expiresAt    time.Time
	accessCount  uint64
	lastAccessed time.Time
	sizeBytes    int64
	element      *list.Element
}

// store is the authoritative in-memory table. A single mutex serializes all
// mutations of the table and its LRU list; the only durable-tier touch made
// while a caller waits is the bounded fallback read on a memory miss, and
// that runs outside the lock.
//
// Bridge enqueues happen while the table lock is held so the durable image
// observes mutations in the same order memory applied them. Lock ordering is
// strictly store.mu then bridge.mu; the bridge never calls back into the
// store while holding its own mutex.
type store struct {
	mu        sync.Mutex
	entries   map[string]*entry
	evictList *list.List // front = most recently accessed
	totalSize int64

	maxEntries int
	defaultTTL time.Duration

	stats  *statsRecorder
	bridge *persistenceBridge
	logger *zap.Logger
}

func newStore(maxEntries int, defaultTTL time.Duration, stats *statsRecorder, bridge *persistenceBridge, logger *zap.Logger) *store {
	return &store{
		entries:    make(map[string]*entry),
		evictList:  list.New(),
		maxEntries: maxEntries,
		defaultTTL: defaultTTL,
		stats:      stats,
		bridge:     bridge,
		logger:     logger,
	}
}

// Get returns the payload for key, or absent. A memory hit bumps the access
// bookkeeping; a memory miss falls through to the durable tier and, when the
// entry is found unexpired there, repopulates memory and still counts as a
// hit. An expired entry found in either tier is removed from both.
func (s *store) Get(ctx context.Context, key string) ([]byte, bool) {
	start := time.Now()
	s.stats.RecordOperation(opGet)

	s.mu.Lock()
	if e, ok := s.entries[key]; ok {
		if time.Now().Before(e.expiresAt) {
			e.accessCount++
			e.lastAccessed = time.Now()
			s.evictList.MoveToFront(e.element)
			payload := append([]byte(nil), e.payload...)
			s.mu.Unlock()

			s.stats.RecordRequest(true, time.Since(start))
			return payload, true
		}

		// Lazy expiry: purge from both tiers before reporting absent.
		s.removeLocked(e)
		s.updateMemoryMetricsLocked()
		s.bridge.EnqueueRemove(key)
		s.mu.Unlock()

		s.stats.RecordRequest(false, time.Since(start))
		return nil, false
	}
	s.mu.Unlock()

	// Memory miss: one bounded durable read, outside the table lock.
	if pe, ok := s.bridge.Load(ctx, key); ok {
		if time.Now().Before(pe.ExpiresAt) {
			payload := s.repopulate(key, pe)
			s.stats.RecordRequest(true, time.Since(start))
			return payload, true
		}
		// A set may have raced the durable read; only purge the stale
		// durable entry while the key is still absent in memory.
		s.mu.Lock()
		if _, ok := s.entries[key]; !ok {
			s.bridge.EnqueueRemove(key)
		}
		s.mu.Unlock()
	}

	s.stats.RecordRequest(false, time.Since(start))
	return nil, false
}

// repopulate inserts an entry recovered from the durable tier. If a
// concurrent set won the race for the key, the in-memory entry wins
// (last writer) and its payload is returned instead.
func (s *store) repopulate(key string, pe persistedEntry) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries[key]; ok {
		existing.accessCount++
		existing.lastAccessed = time.Now()
		s.evictList.MoveToFront(existing.element)
		return append([]byte(nil), existing.payload...)
	}

	now := time.Now()
	e := &entry{
		key:          key,
		payload:      append([]byte(nil), pe.Payload...),
		createdAt:    now,
		expiresAt:    pe.ExpiresAt,
		accessCount:  pe.AccessCount + 1,
		lastAccessed: now,
		sizeBytes:    int64(len(pe.Payload)),
	}
	if pe.CreatedAt != nil {
		e.createdAt = *pe.CreatedAt
	}
	if pe.SizeBytes > 0 {
		e.sizeBytes = pe.SizeBytes
	}

	if s.maxEntries > 0 && len(s.entries) >= s.maxEntries {
		s.evictOneLocked()
	}
	e.element = s.evictList.PushFront(e)
	s.entries[key] = e
	s.totalSize += e.sizeBytes
	s.updateMemoryMetricsLocked()

	return append([]byte(nil), e.payload...)
}

// Set stores payload under key with the given TTL (the default TTL when ttl
// is zero). Inserting a new key at capacity evicts exactly one entry, the
// least recently accessed. The durable write is enqueued, never awaited.
func (s *store) Set(key string, payload []byte, ttl time.Duration) {
	s.stats.RecordOperation(opSet)
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	now := time.Now()
	e := &entry{
		key:          key,
		payload:      append([]byte(nil), payload...),
		createdAt:    now,
		expiresAt:    now.Add(ttl),
		lastAccessed: now,
		sizeBytes:    int64(len(payload)),
	}

	s.mu.Lock()
	if old, ok := s.entries[key]; ok {
		s.totalSize -= old.sizeBytes
		s.evictList.Remove(old.element)
		delete(s.entries, key)
	} else if s.maxEntries > 0 && len(s.entries) >= s.maxEntries {
		s.evictOneLocked()
	}
	e.element = s.evictList.PushFront(e)
	s.entries[key] = e
	s.totalSize += e.sizeBytes
	s.updateMemoryMetricsLocked()
	s.bridge.Enqueue(key, persistedEntryFrom(e))
	s.mu.Unlock()
}

// Delete removes key from memory and enqueues its removal from the durable
// tier. Deleting an absent key is a no-op.
func (s *store) Delete(key string) {
	s.stats.RecordOperation(opDelete)

	s.mu.Lock()
	if e, ok := s.entries[key]; ok {
		s.removeLocked(e)
		s.updateMemoryMetricsLocked()
	}
	s.bridge.EnqueueRemove(key)
	s.mu.Unlock()
}

// Clear empties both tiers. Cumulative statistics counters are deliberately
// left intact; only the live memory gauges reset.
func (s *store) Clear(ctx context.Context) {
	s.mu.Lock()
	s.entries = make(map[string]*entry)
	s.evictList.Init()
	s.totalSize = 0
	s.updateMemoryMetricsLocked()
	s.mu.Unlock()

	s.bridge.Clear(ctx)
}

// Cleanup sweeps every expired entry out of memory, enqueues the matching
// durable removals, and returns how many entries were removed. Unexpired
// entries keep their access bookkeeping untouched.
func (s *store) Cleanup(ctx context.Context) int {
	start := time.Now()
	s.stats.RecordOperation(opCleanup)

	now := time.Now()
	removed := 0

	s.mu.Lock()
	for key, e := range s.entries {
		if !now.Before(e.expiresAt) {
			removed++
			s.removeLocked(e)
			s.bridge.EnqueueRemove(key)
		}
	}
	if removed > 0 {
		s.updateMemoryMetricsLocked()
	}
	s.mu.Unlock()

	s.stats.SetLastCleanup(time.Now())
	s.stats.ObserveLatency(time.Since(start))
	if removed > 0 {
		s.logger.Debug("expiry sweep removed entries", zap.Int("count", removed))
	}
	return removed
}

// Contains reports whether key is present and unexpired in memory, without
// touching access bookkeeping or statistics. Used by the prefetch path.
func (s *store) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	return ok && time.Now().Before(e.expiresAt)
}

// Len returns the live entry count.
func (s *store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// evictOneLocked removes exactly one entry: the back of the LRU list, which
// has the smallest lastAccessed (insertion order breaks ties, so equal
// timestamps fall to the smallest createdAt).
func (s *store) evictOneLocked() {
	back := s.evictList.Back()
	if back == nil {
		return
	}
	victim := back.Value.(*entry)
	s.removeLocked(victim)
	s.stats.RecordEviction()
	s.bridge.EnqueueRemove(victim.key)
}

func (s *store) removeLocked(e *entry) {
	s.evictList.Remove(e.element)
	delete(s.entries, e.key)
	s.totalSize -= e.sizeBytes
}

func (s *store) updateMemoryMetricsLocked() {
	s.stats.SetMemoryUsage(len(s.entries), s.totalSize)
}

func persistedEntryFrom(e *entry) persistedEntry {
	created := e.createdAt
	accessed := e.lastAccessed
	return persistedEntry{
		Payload:      append([]byte(nil), e.payload...),
		ExpiresAt:    e.expiresAt,
		AccessCount:  e.accessCount,
		CreatedAt:    &created,
		LastAccessed: &accessed,
		SizeBytes:    e.sizeBytes,
	}
}
