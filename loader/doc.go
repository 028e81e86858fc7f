// Package loader fetches successive pages from a cursor-paginated source,
// adapting its batch size to observed throughput.
//
// [Controller] owns the pagination cursor and guarantees at most one fetch
// in flight: concurrent LoadMore calls return false without issuing a
// request. Transient fetch failures are retried automatically with linearly
// increasing backoff (1s, 2s, 3s) before the controller parks in a terminal
// error state that a manual LoadMore resumes from.
//
// The controller never inspects cursors; they are opaque tokens threaded
// from one page response into the next request. Because only one cursor is
// ever in flight, pages are applied strictly in request order.
//
// Consumers observe progress through [Controller.State] snapshots or by
// registering a callback with [Controller.Subscribe]; there is no rendering
// framework underneath, so state changes are pushed explicitly.
package loader
