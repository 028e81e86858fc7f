package cache

import (
	"context"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Get retrieves a typed value from the store. Values read back from a
// persistence snapshot are stored as msgpack []byte and deserialized here,
// so Get works the same for live and restored entries.
func Get[T any](s *Store, key string) (T, bool, error) {
	val, found := s.Get(key)
	if !found {
		var zero T
		return zero, false, nil
	}
	// Direct type assertion (live entries).
	if typed, ok := val.(T); ok {
		return typed, true, nil
	}
	// Deserialize from []byte (entries restored from a snapshot).
	if data, ok := val.([]byte); ok {
		var result T
		if err := msgpack.Unmarshal(data, &result); err != nil {
			var zero T
			return zero, false, fmt.Errorf("cache: failed to unmarshal value: %w", err)
		}
		return result, true, nil
	}
	var zero T
	return zero, false, fmt.Errorf("cache: cannot convert value of type %T to %T", val, zero)
}

// LoaderFunc produces a value of type T on a cache miss. The bool return
// indicates whether a value was found; return false to signal "not found"
// without caching a zero value.
type LoaderFunc[T any] func(ctx context.Context) (T, bool, error)

// Fetch is a read-through helper. It checks the store for key first; on a
// miss it calls load, stores the result when found=true, and returns it.
// Concurrent Fetch calls for the same key are collapsed into a single load
// via singleflight, so a burst of identical page requests costs one fetch.
//
// If the store write fails semantics are unaffected: Set never fails, and
// persistence only happens on explicit SaveToStorage.
func Fetch[T any](ctx context.Context, s *Store, key string, load LoaderFunc[T]) (T, bool, error) {
	type result struct {
		val   T
		found bool
	}
	v, err, _ := s.flight.Do(key, func() (any, error) {
		if val, found, err := Get[T](s, key); err == nil && found {
			return result{val, true}, nil
		} else if err != nil {
			return nil, err
		}
		val, ok, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return result{found: false}, nil
		}
		s.Set(key, val)
		return result{val, true}, nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	r := v.(result)
	return r.val, r.found, nil
}
