// Package cache provides a bounded, time-expiring key/value store used to
// hold pages of remote records between loads.
//
// # Store
//
// [Store] is an in-process map guarded by a mutex. Every entry carries its
// insertion time and last access time: entries older than the configured TTL
// are unreadable (lazily removed on read and periodically removed by a
// background sweep goroutine), and when the store grows past its maximum
// size the least recently used entry is evicted synchronously inside
// [Store.Set].
//
// Values are stored as [any] with no copying, so mutations to stored
// pointers are visible through the cache. Type safety is provided by the
// package-level generic functions [Get] and [Fetch].
//
// # Persistence
//
// A Store is optionally backed by a [PersistenceStore], a two-method
// key/value surface (get/set of opaque bytes). [Store.SaveToStorage]
// serializes the live entries to msgpack under a single storage key;
// [Store.LoadFromStorage] restores them, silently dropping entries whose TTL
// elapsed between save and load. Three implementations are provided:
// [MemoryPersistence] (tests, ephemeral), [SQLitePersistence]
// (modernc.org/sqlite, survives restarts without external infrastructure)
// and [RedisPersistence] (shared across processes; the caller owns the
// redis.Client lifecycle).
//
// Persistence is strictly best-effort: corrupt snapshots, quota failures and
// unavailable storage are logged and swallowed. Get and Set never fail for
// persistence reasons.
//
// # Read-through loading
//
// [Fetch] combines lookup and population in one call and collapses
// concurrent loads of the same key into a single invocation using
// singleflight:
//
//	page, found, err := cache.Fetch(ctx, store, key,
//	    func(ctx context.Context) (Page, bool, error) {
//	        p, err := source.LoadPage(ctx, 20, cursor)
//	        return p, err == nil, err
//	    })
//
// [Fingerprint] builds stable cache keys from the query parameters that
// identify a page (collection id, filter, cursor).
package cache
