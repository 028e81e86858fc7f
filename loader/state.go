package loader

import "context"

// Speed is the controller's coarse classification of the data source's
// observed per-item latency.
type Speed string

const (
	SpeedFast   Speed = "fast"
	SpeedMedium Speed = "medium"
	SpeedSlow   Speed = "slow"
)

// TotalUnknown is the TotalEstimate value when the source has never
// supplied a total count.
const TotalUnknown = -1

// Page is one page of results from the data source. Items may number fewer
// than the requested batch size. An empty NextCursor means there are no
// further pages regardless of HasMore. TotalCount below zero means unknown.
type Page[T any] struct {
	Items      []T
	NextCursor string
	HasMore    bool
	TotalCount int
}

// PageFunc is the paginated data source collaborator. cursor is empty on
// the first call.
type PageFunc[T any] func(ctx context.Context, batchSize int, cursor string) (Page[T], error)

// State is a snapshot of the controller's public loading state. It is a
// value; mutating a snapshot has no effect on the controller.
type State struct {
	IsLoading bool
	HasMore   bool
	// Error is empty, a transient "retrying" message while automatic
	// retries are pending, or a terminal message once retries are
	// exhausted.
	Error       string
	LoadedCount int
	// TotalEstimate is display-only and best-effort: it may be stale or
	// regress if the underlying collection changes between pages. Never
	// use it as a termination condition; HasMore is authoritative.
	TotalEstimate    int
	CurrentBatchSize int
	NetworkSpeed     Speed
}
