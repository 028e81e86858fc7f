package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/notesync/feedkit/logger"
)

// DefaultMaxSize is the default maximum number of entries held by a Store.
const DefaultMaxSize = 1000

// DefaultTTL is the default maximum age of an entry before it expires.
const DefaultTTL = 5 * time.Minute

// DefaultSweepInterval is how often the background sweep removes expired
// entries that are never read again.
const DefaultSweepInterval = time.Minute

// DefaultStorageKey is the persistence key snapshots are saved under.
const DefaultStorageKey = "feedkit:cache:v1"

type entry struct {
	data           any
	createdAt      time.Time
	lastAccessedAt time.Time
	accessCount    int
}

// Stats describes the current effectiveness of a Store. HitRate is zero when
// no requests have been made.
type Stats struct {
	Size     int
	Requests int64
	Hits     int64
	HitRate  float64
}

type config struct {
	maxSize       int
	ttl           time.Duration
	sweepInterval time.Duration
	persistence   PersistenceStore
	storageKey    string
	log           logger.Logger
}

// Option configures a Store.
type Option func(*config)

func defaultConfig() config {
	return config{
		maxSize:       DefaultMaxSize,
		ttl:           DefaultTTL,
		sweepInterval: DefaultSweepInterval,
		storageKey:    DefaultStorageKey,
		log:           logger.NewNoop(),
	}
}

// WithMaxSize sets the maximum number of entries before LRU eviction kicks
// in. Defaults to DefaultMaxSize.
func WithMaxSize(n int) Option {
	return func(c *config) { c.maxSize = n }
}

// WithTTL sets the maximum entry age. Defaults to DefaultTTL.
func WithTTL(d time.Duration) Option {
	return func(c *config) { c.ttl = d }
}

// WithSweepInterval sets the interval for background expired entry cleanup.
// Defaults to DefaultSweepInterval.
func WithSweepInterval(d time.Duration) Option {
	return func(c *config) { c.sweepInterval = d }
}

// WithPersistence backs the store with a PersistenceStore for snapshot
// save/load. Without this option SaveToStorage and LoadFromStorage are
// no-ops.
func WithPersistence(p PersistenceStore) Option {
	return func(c *config) { c.persistence = p }
}

// WithStorageKey sets the persistence key snapshots are saved under.
// Defaults to DefaultStorageKey.
func WithStorageKey(key string) Option {
	return func(c *config) { c.storageKey = key }
}

// WithLogger sets the logger used for persistence and sweep diagnostics.
func WithLogger(log logger.Logger) Option {
	return func(c *config) { c.log = log.WithPrefix("cache") }
}

// Store is a bounded, expiring, optionally persisted key/value cache.
// All methods are safe for concurrent use.
type Store struct {
	ctx       context.Context
	cancel    context.CancelFunc
	mutex     sync.Mutex
	entries   map[string]*entry
	requests  int64
	hits      int64
	cfg       config
	flight    singleflight.Group
	waitGroup sync.WaitGroup
	once      sync.Once
}

// New returns a new Store. The parent context bounds the lifetime of the
// background expiry sweep; cancelling it (or calling Close) stops the sweep.
func New(parent context.Context, opts ...Option) *Store {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	ctx, cancel := context.WithCancel(parent)
	s := &Store{
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]*entry),
		cfg:     cfg,
	}
	s.waitGroup.Add(1)
	go s.run()
	return s
}

// Get returns the data stored under key, or found=false when the key is
// absent or its TTL has elapsed. Expired entries are removed on read.
// A successful read refreshes the entry's LRU position.
func (s *Store) Get(key string) (any, bool) {
	now := time.Now()
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.requests++
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if now.Sub(e.createdAt) > s.cfg.ttl {
		delete(s.entries, key)
		return nil, false
	}
	s.hits++
	e.lastAccessedAt = now
	e.accessCount++
	return e.data, true
}

// Set stores data under key. If the store is over capacity afterwards, the
// least recently used entry is evicted before Set returns.
func (s *Store) Set(key string, data any) {
	now := time.Now()
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.entries[key] = &entry{
		data:           data,
		createdAt:      now,
		lastAccessedAt: now,
		accessCount:    1,
	}
	if len(s.entries) > s.cfg.maxSize {
		s.evictLRU()
	}
}

// evictLRU removes the entry with the oldest last access time. Caller must
// hold the mutex. One scan per call; Set only ever overflows by one.
func (s *Store) evictLRU() {
	var oldestKey string
	var oldest time.Time
	first := true
	for key, e := range s.entries {
		if first || e.lastAccessedAt.Before(oldest) {
			oldestKey = key
			oldest = e.lastAccessedAt
			first = false
		}
	}
	if !first {
		delete(s.entries, oldestKey)
	}
}

// Remove deletes the entry under key and reports whether one was present.
func (s *Store) Remove(key string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	_, ok := s.entries[key]
	if ok {
		delete(s.entries, key)
	}
	return ok
}

// Clear empties the store and resets all statistics.
func (s *Store) Clear() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.entries = make(map[string]*entry)
	s.requests = 0
	s.hits = 0
}

// Has reports whether key is present and unexpired. Unlike Get it does not
// refresh the entry's LRU position or count as a request.
func (s *Store) Has(key string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return false
	}
	return time.Since(e.createdAt) <= s.cfg.ttl
}

// Keys returns the keys currently present, in no particular order. Expired
// but not yet swept keys may be included.
func (s *Store) Keys() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	keys := make([]string, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	return keys
}

// Size returns the number of entries currently held.
func (s *Store) Size() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.entries)
}

// Stats returns a snapshot of the store's statistics.
func (s *Store) Stats() Stats {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	st := Stats{
		Size:     len(s.entries),
		Requests: s.requests,
		Hits:     s.hits,
	}
	if st.Requests > 0 {
		st.HitRate = float64(st.Hits) / float64(st.Requests)
	}
	return st
}

// AccessCount returns how many times key has been read since it was set.
func (s *Store) AccessCount(key string) (int, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return 0, false
	}
	return e.accessCount, true
}

// Close stops the background sweep and, when persistence is configured,
// performs a final best-effort save.
func (s *Store) Close() {
	s.once.Do(func() {
		if s.cfg.persistence != nil {
			if err := s.SaveToStorage(context.Background()); err != nil {
				s.cfg.log.Warn("final save failed: %v", err)
			}
		}
		s.cancel()
		s.waitGroup.Wait()
	})
}

func (s *Store) run() {
	defer s.waitGroup.Done()
	ticker := time.NewTicker(s.cfg.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep removes every expired entry regardless of access pattern, so keys
// written once and never re-read cannot accumulate.
func (s *Store) sweep() {
	now := time.Now()
	s.mutex.Lock()
	removed := 0
	for key, e := range s.entries {
		if now.Sub(e.createdAt) > s.cfg.ttl {
			delete(s.entries, key)
			removed++
		}
	}
	s.mutex.Unlock()
	if removed > 0 {
		s.cfg.log.Trace("sweep removed %d expired entries", removed)
	}
}
