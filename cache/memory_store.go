package cache

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps entries in process memory, evicting in insertion order
// when MaxEntries is exceeded. It is safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*list.Element
	order   *list.List
	opts    Options

	stop     chan struct{}
	stopOnce sync.Once
}

type memoryEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

func (e *memoryEntry) expired(now time.Time) bool { return !now.Before(e.expiresAt) }

// NewMemoryStore creates an in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		opts:    applyOptions(opts...),
		stop:    make(chan struct{}),
	}
	if s.opts.CleanupInterval > 0 {
		go s.purgeLoop()
	}
	return s
}

func (s *MemoryStore) Read(_ context.Context, key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	el, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*memoryEntry)
	if e.expired(time.Now()) {
		return nil, false
	}
	return e.value, true
}

func (s *MemoryStore) Write(ctx context.Context, key string, value []byte) error {
	return s.WriteWithTTL(ctx, key, value, 0)
}

// WriteWithTTL stores a copy of value. Rewriting a key keeps its place in
// the eviction order.
func (s *MemoryStore) WriteWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	stored := append([]byte(nil), value...)
	expiresAt := time.Now().Add(s.opts.ttl(ttl))

	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.entries[key]; ok {
		e := el.Value.(*memoryEntry)
		e.value, e.expiresAt = stored, expiresAt
		return nil
	}

	s.entries[key] = s.order.PushBack(&memoryEntry{key: key, value: stored, expiresAt: expiresAt})
	for s.opts.MaxEntries > 0 && int64(s.order.Len()) > s.opts.MaxEntries {
		s.removeLocked(s.order.Front())
	}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.entries[key]; ok {
		s.removeLocked(el)
	}
	return nil
}

func (s *MemoryStore) DeleteByPrefix(_ context.Context, prefix string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for key, el := range s.entries {
		if strings.HasPrefix(key, prefix) {
			s.removeLocked(el)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*list.Element)
	s.order.Init()
	return nil
}

func (s *MemoryStore) Exist(ctx context.Context, key string) bool {
	_, ok := s.Read(ctx, key)
	return ok
}

func (s *MemoryStore) Stats(context.Context) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	var expired int64
	for el := s.order.Front(); el != nil; el = el.Next() {
		if el.Value.(*memoryEntry).expired(now) {
			expired++
		}
	}
	return Stats{
		Entries:        int64(s.order.Len()),
		ExpiredEntries: expired,
		MaxEntries:     s.opts.MaxEntries,
		TTL:            s.opts.TTL,
		Backend:        "memory",
	}
}

// Close stops the background purge. It is safe to call more than once.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

func (s *MemoryStore) removeLocked(el *list.Element) {
	e := s.order.Remove(el).(*memoryEntry)
	delete(s.entries, e.key)
}

func (s *MemoryStore) purgeLoop() {
	ticker := time.NewTicker(s.opts.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.purge()
		case <-s.stop:
			return
		}
	}
}

// purge removes up to CleanupBatchSize expired entries, oldest first.
func (s *MemoryStore) purge() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for el := s.order.Front(); el != nil && removed < s.opts.CleanupBatchSize; {
		next := el.Next()
		if el.Value.(*memoryEntry).expired(now) {
			s.removeLocked(el)
			removed++
		}
		el = next
	}
}
