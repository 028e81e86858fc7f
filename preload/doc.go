// Package preload decides when to fetch the next page of a scrollable
// collection, before the user reaches the end of what is already loaded.
//
// [Trigger] watches a scrollable region through the [ScrollSource]
// abstraction. When the region is scrolled to within a threshold of its
// bottom edge, the trigger schedules a debounced preload; the preload
// callback runs only when no other preload is executing and the number of
// speculative batches since the last [Trigger.ResetPreloadState] is under a
// cap. Gate violations are silent no-ops — the whole point is to never
// translate a burst of scroll events into a burst of requests.
//
// Sources that also implement [VisibilitySource] get visibility
// integration: when the region becomes visible the proximity check re-runs
// after a short settle delay, covering content that became scrollable while
// hidden.
//
// [SimScrollRegion] implements both interfaces in memory and backs the
// package's tests; production callers adapt whatever scroll surface their
// platform provides.
package preload
