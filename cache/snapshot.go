package cache

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// persistedEntry is the wire form of one cache entry. Data is the entry's
// value serialized to msgpack on its own, so a restored entry round-trips
// through the same []byte decoding path Get[T] already handles.
type persistedEntry struct {
	Data           []byte    `msgpack:"d"`
	CreatedAt      time.Time `msgpack:"c"`
	LastAccessedAt time.Time `msgpack:"a"`
	AccessCount    int       `msgpack:"n"`
}

type snapshot struct {
	SavedAt time.Time                 `msgpack:"t"`
	Entries map[string]persistedEntry `msgpack:"e"`
}

// SaveToStorage serializes the live entries to the configured storage key.
// Entries whose values cannot be serialized (functions, channels) are
// skipped with a log line. Returns an error only for diagnostics; callers
// saving opportunistically (visibility loss, teardown) are expected to
// ignore it.
func (s *Store) SaveToStorage(ctx context.Context) error {
	if s.cfg.persistence == nil {
		return nil
	}

	snap := snapshot{
		SavedAt: time.Now(),
		Entries: make(map[string]persistedEntry),
	}
	s.mutex.Lock()
	for key, e := range s.entries {
		data, err := msgpack.Marshal(e.data)
		if err != nil {
			s.cfg.log.Warn("skipping unserializable entry %q: %v", key, err)
			continue
		}
		snap.Entries[key] = persistedEntry{
			Data:           data,
			CreatedAt:      e.createdAt,
			LastAccessedAt: e.lastAccessedAt,
			AccessCount:    e.accessCount,
		}
	}
	s.mutex.Unlock()

	buf, err := msgpack.Marshal(snap)
	if err != nil {
		err = errors.Wrap(err, "encoding cache snapshot")
		s.cfg.log.Warn("save failed: %v", err)
		return err
	}
	if err := s.cfg.persistence.SetItem(ctx, s.cfg.storageKey, buf); err != nil {
		err = errors.Wrap(err, "writing cache snapshot")
		s.cfg.log.Warn("save failed: %v", err)
		return err
	}
	s.cfg.log.Debug("saved %d entries to storage", len(snap.Entries))
	return nil
}

// LoadFromStorage restores entries previously written by SaveToStorage.
// Entries whose TTL elapsed between save and load are dropped, not
// resurrected. A missing or corrupt snapshot leaves the store untouched.
func (s *Store) LoadFromStorage(ctx context.Context) error {
	if s.cfg.persistence == nil {
		return nil
	}

	buf, found, err := s.cfg.persistence.GetItem(ctx, s.cfg.storageKey)
	if err != nil {
		err = errors.Wrap(err, "reading cache snapshot")
		s.cfg.log.Warn("load failed: %v", err)
		return err
	}
	if !found {
		return nil
	}

	var snap snapshot
	if err := msgpack.Unmarshal(buf, &snap); err != nil {
		err = errors.Wrap(err, "decoding cache snapshot")
		s.cfg.log.Warn("load failed, starting with empty cache: %v", err)
		return err
	}

	now := time.Now()
	restored := 0
	s.mutex.Lock()
	for key, pe := range snap.Entries {
		if now.Sub(pe.CreatedAt) > s.cfg.ttl {
			continue
		}
		s.entries[key] = &entry{
			data:           pe.Data,
			createdAt:      pe.CreatedAt,
			lastAccessedAt: pe.LastAccessedAt,
			accessCount:    pe.AccessCount,
		}
		restored++
	}
	for len(s.entries) > s.cfg.maxSize {
		s.evictLRU()
	}
	s.mutex.Unlock()
	s.cfg.log.Debug("restored %d entries from storage", restored)
	return nil
}
