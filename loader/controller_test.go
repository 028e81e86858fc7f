package loader

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pagedSource serves n items total in cursor order, simulating latency.
func pagedSource(total int, delay time.Duration, calls *atomic.Int64) PageFunc[int] {
	return func(ctx context.Context, batchSize int, cursor string) (Page[int], error) {
		if calls != nil {
			calls.Add(1)
		}
		time.Sleep(delay)
		offset := 0
		if cursor != "" {
			fmt.Sscanf(cursor, "off-%d", &offset)
		}
		end := offset + batchSize
		if end > total {
			end = total
		}
		items := make([]int, 0, end-offset)
		for i := offset; i < end; i++ {
			items = append(items, i)
		}
		page := Page[int]{Items: items, HasMore: end < total, TotalCount: total}
		if page.HasMore {
			page.NextCursor = fmt.Sprintf("off-%d", end)
		}
		return page, nil
	}
}

func TestLoadMoreFirstPage(t *testing.T) {
	ctx := context.Background()
	c := New(pagedSource(50, 0, nil))

	assert.True(t, c.LoadMore(ctx))
	st := c.State()
	assert.Equal(t, 20, st.LoadedCount)
	assert.True(t, st.HasMore)
	assert.Equal(t, 50, st.TotalEstimate)
	assert.Empty(t, st.Error)
	assert.False(t, st.IsLoading)
	assert.Equal(t, "off-20", c.Cursor())
}

func TestLoadMoreWalksToExhaustion(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int64
	c := New(pagedSource(45, 0, &calls), WithAdaptiveBatchSize(false))

	for c.State().HasMore {
		c.LoadMore(ctx)
	}
	st := c.State()
	assert.Equal(t, 45, st.LoadedCount)
	assert.False(t, st.HasMore)
	assert.Equal(t, int64(3), calls.Load())

	// Terminal state: no further requests are issued.
	assert.False(t, c.LoadMore(ctx))
	assert.Equal(t, int64(3), calls.Load())
}

func TestLoadMoreSingleFlight(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int64
	release := make(chan struct{})
	started := make(chan struct{})
	c := New(func(ctx context.Context, batchSize int, cursor string) (Page[int], error) {
		calls.Add(1)
		close(started)
		<-release
		return Page[int]{Items: []int{1}, NextCursor: "next", HasMore: true}, nil
	})

	results := make(chan bool, 1)
	go func() { results <- c.LoadMore(ctx) }()
	<-started

	// Second call while the first is in flight: no request, false result,
	// no state mutation.
	assert.False(t, c.LoadMore(ctx))
	assert.Equal(t, 0, c.State().LoadedCount)

	close(release)
	assert.True(t, <-results)
	assert.Equal(t, int64(1), calls.Load())
	assert.Equal(t, 1, c.State().LoadedCount)
}

func TestEmptyCursorStopsEvenWhenHasMore(t *testing.T) {
	ctx := context.Background()
	c := New(func(ctx context.Context, batchSize int, cursor string) (Page[int], error) {
		return Page[int]{Items: []int{1, 2}, NextCursor: "", HasMore: true, TotalCount: TotalUnknown}, nil
	})

	assert.True(t, c.LoadMore(ctx))
	st := c.State()
	assert.False(t, st.HasMore)
	assert.Equal(t, TotalUnknown, st.TotalEstimate)
}

func TestAdaptiveGrowth(t *testing.T) {
	ctx := context.Background()
	// Instant responses classify as fast and grow the batch by 1.5x.
	c := New(pagedSource(10000, 0, nil))

	sizes := []int{c.State().CurrentBatchSize}
	for i := 0; i < 8; i++ {
		require.True(t, c.LoadMore(ctx))
		st := c.State()
		assert.Equal(t, SpeedFast, st.NetworkSpeed)
		assert.GreaterOrEqual(t, st.CurrentBatchSize, DefaultInitialBatchSize)
		assert.LessOrEqual(t, st.CurrentBatchSize, DefaultMaxBatchSize)
		sizes = append(sizes, st.CurrentBatchSize)
	}
	// 20 -> 30 -> 45 -> 67 -> 100 (capped).
	assert.Equal(t, 30, sizes[1])
	assert.Equal(t, 45, sizes[2])
	assert.Equal(t, 67, sizes[3])
	assert.Equal(t, 100, sizes[4])
	assert.Equal(t, 100, sizes[5])
}

func TestAdaptiveShrink(t *testing.T) {
	ctx := context.Background()
	// Thresholds of zero make every response classify as slow.
	c := New(pagedSource(10000, time.Millisecond, nil),
		WithSpeedThresholds(0, 0))

	// Grow the batch artificially, then watch it shrink back to the floor.
	c.mu.Lock()
	c.state.CurrentBatchSize = 100
	c.mu.Unlock()

	require.True(t, c.LoadMore(ctx))
	st := c.State()
	assert.Equal(t, SpeedSlow, st.NetworkSpeed)
	assert.Equal(t, 70, st.CurrentBatchSize)

	for i := 0; i < 10; i++ {
		require.True(t, c.LoadMore(ctx))
		st = c.State()
		assert.GreaterOrEqual(t, st.CurrentBatchSize, DefaultInitialBatchSize)
	}
	assert.Equal(t, DefaultInitialBatchSize, st.CurrentBatchSize)
}

func TestAdaptiveDisabled(t *testing.T) {
	ctx := context.Background()
	c := New(pagedSource(10000, 0, nil), WithAdaptiveBatchSize(false))

	for i := 0; i < 5; i++ {
		require.True(t, c.LoadMore(ctx))
		assert.Equal(t, DefaultInitialBatchSize, c.State().CurrentBatchSize)
	}
}

func TestRetryCapAndTerminalError(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int64
	c := New(func(ctx context.Context, batchSize int, cursor string) (Page[int], error) {
		calls.Add(1)
		return Page[int]{}, errors.New("network down")
	}, WithRetryDelay(5*time.Millisecond))

	assert.False(t, c.LoadMore(ctx))
	assert.Equal(t, "loading failed, retrying 1/3", c.State().Error)

	// Wait out the automatic retries: 5ms + 10ms + 15ms plus slack.
	time.Sleep(150 * time.Millisecond)

	assert.Equal(t, int64(4), calls.Load())
	st := c.State()
	assert.Contains(t, st.Error, "failed after 3 retries")
	assert.True(t, st.HasMore, "hasMore must survive a terminal error so a manual retry can resume")
	assert.False(t, st.IsLoading)

	// No further automatic calls.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(4), calls.Load())

	// A manual retry issues exactly one more attempt.
	assert.False(t, c.LoadMore(ctx))
	assert.Equal(t, int64(5), calls.Load())
}

func TestRetryRecovery(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int64
	c := New(func(ctx context.Context, batchSize int, cursor string) (Page[int], error) {
		if calls.Add(1) <= 2 {
			return Page[int]{}, errors.New("flaky")
		}
		return Page[int]{Items: []int{1, 2, 3}, NextCursor: "next", HasMore: true}, nil
	}, WithRetryDelay(5*time.Millisecond))

	assert.False(t, c.LoadMore(ctx))
	time.Sleep(100 * time.Millisecond)

	st := c.State()
	assert.Empty(t, st.Error)
	assert.Equal(t, 3, st.LoadedCount)
	assert.Equal(t, int64(3), calls.Load())

	// The retry counter was reset by the success.
	c.mu.Lock()
	assert.Zero(t, c.retryCount)
	c.mu.Unlock()
}

func TestManualRetrySuccessCancelsPendingRetry(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int64
	c := New(func(ctx context.Context, batchSize int, cursor string) (Page[int], error) {
		if calls.Add(1) == 1 {
			return Page[int]{}, errors.New("blip")
		}
		return Page[int]{Items: []int{1}, NextCursor: "next", HasMore: true}, nil
	}, WithRetryDelay(50*time.Millisecond))

	// First attempt fails and schedules an automatic retry at +50ms.
	assert.False(t, c.LoadMore(ctx))
	assert.Equal(t, int64(1), calls.Load())

	// A manual retry succeeds before the timer fires; the pending retry
	// must be cancelled, not left to issue an unsolicited extra load.
	assert.True(t, c.LoadMore(ctx))
	assert.Equal(t, int64(2), calls.Load())

	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, int64(2), calls.Load())
	assert.Empty(t, c.State().Error)
	assert.Equal(t, 1, c.State().LoadedCount)
}

func TestResetCancelsPendingRetry(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int64
	c := New(func(ctx context.Context, batchSize int, cursor string) (Page[int], error) {
		calls.Add(1)
		return Page[int]{}, errors.New("down")
	}, WithRetryDelay(20*time.Millisecond))

	assert.False(t, c.LoadMore(ctx))
	assert.Equal(t, int64(1), calls.Load())

	c.Reset()
	time.Sleep(80 * time.Millisecond)
	// The scheduled retry was cancelled; no stale retry fired after reset.
	assert.Equal(t, int64(1), calls.Load())
	assert.Empty(t, c.State().Error)
}

func TestResetDiscardsInFlightResult(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	started := make(chan struct{})
	c := New(func(ctx context.Context, batchSize int, cursor string) (Page[int], error) {
		close(started)
		<-release
		return Page[int]{Items: []int{1, 2, 3}, NextCursor: "stale", HasMore: true}, nil
	})

	results := make(chan bool, 1)
	go func() { results <- c.LoadMore(ctx) }()
	<-started
	c.Reset()
	close(release)

	// The stale page is dropped: nothing counted, cursor untouched.
	assert.False(t, <-results)
	st := c.State()
	assert.Equal(t, 0, st.LoadedCount)
	assert.Empty(t, c.Cursor())
	assert.True(t, st.HasMore)
}

func TestResetRestoresInitialState(t *testing.T) {
	ctx := context.Background()
	c := New(pagedSource(30, 0, nil))

	c.LoadMore(ctx)
	c.LoadMore(ctx)
	require.NotEqual(t, State{}, c.State())

	c.Reset()
	st := c.State()
	assert.Equal(t, 0, st.LoadedCount)
	assert.True(t, st.HasMore)
	assert.Equal(t, DefaultInitialBatchSize, st.CurrentBatchSize)
	assert.Equal(t, TotalUnknown, st.TotalEstimate)
	assert.Empty(t, c.Cursor())

	// Loading starts over from the first page.
	assert.True(t, c.LoadMore(ctx))
	assert.Equal(t, 20, c.State().LoadedCount)
}

func TestSubscribe(t *testing.T) {
	ctx := context.Background()
	c := New(pagedSource(100, 0, nil))

	var mu sync.Mutex
	var seen []State
	unsub := c.Subscribe(func(s State) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	c.LoadMore(ctx)
	mu.Lock()
	require.NotEmpty(t, seen)
	// First notification is the in-flight transition, last the settled one.
	assert.True(t, seen[0].IsLoading)
	assert.False(t, seen[len(seen)-1].IsLoading)
	assert.Equal(t, 20, seen[len(seen)-1].LoadedCount)
	count := len(seen)
	mu.Unlock()

	unsub()
	c.LoadMore(ctx)
	mu.Lock()
	assert.Equal(t, count, len(seen))
	mu.Unlock()
}

func TestSetHasMoreAndSpeedOverrides(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int64
	c := New(pagedSource(100, 0, &calls))

	c.SetHasMore(false)
	assert.False(t, c.LoadMore(ctx))
	assert.Zero(t, calls.Load())

	c.SetHasMore(true)
	assert.True(t, c.LoadMore(ctx))

	c.UpdateNetworkSpeed(SpeedSlow)
	assert.Equal(t, SpeedSlow, c.State().NetworkSpeed)
}

func TestBatchSizeBoundsInvariant(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int64
	// Alternate failures, fast pages and slow pages.
	c := New(func(ctx context.Context, batchSize int, cursor string) (Page[int], error) {
		n := calls.Add(1)
		switch n % 3 {
		case 0:
			return Page[int]{}, errors.New("blip")
		case 1:
			return Page[int]{Items: make([]int, batchSize), NextCursor: "n", HasMore: true}, nil
		default:
			time.Sleep(2 * time.Millisecond)
			return Page[int]{Items: []int{1}, NextCursor: "n", HasMore: true}, nil
		}
	}, WithRetryDelay(time.Millisecond), WithSpeedThresholds(time.Millisecond, 2*time.Millisecond))

	for i := 0; i < 30; i++ {
		c.LoadMore(ctx)
		st := c.State()
		assert.GreaterOrEqual(t, st.CurrentBatchSize, DefaultInitialBatchSize)
		assert.LessOrEqual(t, st.CurrentBatchSize, DefaultMaxBatchSize)
	}
	c.Reset()
}
