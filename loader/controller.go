package loader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/notesync/feedkit/logger"
)

// Controller pages through a cursor-paginated data source. At most one
// fetch is in flight at any time; LoadMore calls made while one is running
// return false without side effects. Safe for concurrent use.
type Controller[T any] struct {
	mu         sync.Mutex
	cfg        config
	loadPage   PageFunc[T]
	state      State
	cursor     string
	retryCount int
	retryTimer *time.Timer
	// generation is bumped by Reset. Fetches and scheduled retries carry
	// the generation they started under and are discarded when it no
	// longer matches, so a stale response cannot touch post-reset state.
	generation uint64
	inFlight   bool
	subs       map[int]func(State)
	nextSubID  int
	log        logger.Logger
}

// New returns a Controller that fetches pages with loadPage.
func New[T any](loadPage PageFunc[T], opts ...Option) *Controller[T] {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	c := &Controller[T]{
		cfg:      cfg,
		loadPage: loadPage,
		subs:     make(map[int]func(State)),
		log:      cfg.log.With(map[string]interface{}{"session": uuid.NewString()}),
	}
	c.state = c.initialState()
	return c
}

func (c *Controller[T]) initialState() State {
	return State{
		HasMore:          true,
		TotalEstimate:    TotalUnknown,
		CurrentBatchSize: c.cfg.initialBatchSize,
		NetworkSpeed:     SpeedMedium,
	}
}

// State returns a snapshot of the current loading state.
func (c *Controller[T]) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Cursor returns the cursor the next LoadMore will send, empty before the
// first page and after Reset.
func (c *Controller[T]) Cursor() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor
}

// Subscribe registers fn to be called with a state snapshot after every
// state change. The returned function unsubscribes. Callbacks run on the
// goroutine that caused the change and must not block.
func (c *Controller[T]) Subscribe(fn func(State)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subs[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *Controller[T]) notify() {
	c.mu.Lock()
	state := c.state
	fns := make([]func(State), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(state)
	}
}

// LoadMore fetches the next page and reports whether at least one item was
// fetched. It returns false immediately when a fetch is already in flight
// or the source is exhausted. Failures are retried automatically up to the
// configured cap; after that LoadMore must be called again explicitly
// (a manual retry) to resume from the same cursor.
func (c *Controller[T]) LoadMore(ctx context.Context) bool {
	c.mu.Lock()
	if c.inFlight || !c.state.HasMore {
		c.mu.Unlock()
		return false
	}
	c.inFlight = true
	c.state.IsLoading = true
	c.state.Error = ""
	gen := c.generation
	cursor := c.cursor
	batchSize := c.state.CurrentBatchSize
	c.mu.Unlock()
	c.notify()

	c.log.Debug("loading batch=%d cursor=%q", batchSize, cursor)
	start := time.Now()
	page, err := c.loadPage(ctx, batchSize, cursor)
	elapsed := time.Since(start)

	c.mu.Lock()
	if gen != c.generation {
		// Reset happened while the fetch was in flight; the result
		// belongs to a dead query. Reset already cleared the flags.
		c.mu.Unlock()
		c.log.Trace("discarding stale page (generation changed)")
		return false
	}

	if err != nil {
		c.failLocked(ctx, gen, err)
		c.mu.Unlock()
		c.notify()
		return false
	}

	c.retryCount = 0
	if c.retryTimer != nil {
		// A manual LoadMore succeeded while an automatic retry was still
		// pending; without this the timer would fire and issue an
		// unsolicited extra page load.
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	fetched := len(page.Items)
	if fetched > 0 {
		c.state.NetworkSpeed = c.classify(elapsed, fetched)
		if c.cfg.adaptive {
			c.state.CurrentBatchSize = c.adapt(elapsed)
		}
	}
	c.state.LoadedCount += fetched
	// An absent cursor terminates pagination even when the source still
	// claims more pages.
	c.state.HasMore = page.HasMore && page.NextCursor != ""
	if page.TotalCount >= 0 {
		c.state.TotalEstimate = page.TotalCount
	}
	c.cursor = page.NextCursor
	c.state.IsLoading = false
	c.inFlight = false
	c.mu.Unlock()
	c.notify()

	c.log.Debug("loaded %d items in %s, next batch=%d speed=%s",
		fetched, elapsed, c.State().CurrentBatchSize, c.State().NetworkSpeed)
	return fetched > 0
}

// failLocked records a fetch failure and schedules the next automatic
// retry, if any remain. Caller holds the mutex.
func (c *Controller[T]) failLocked(ctx context.Context, gen uint64, err error) {
	c.retryCount++
	c.state.IsLoading = false
	c.inFlight = false
	if c.retryCount <= c.cfg.maxRetries {
		c.state.Error = fmt.Sprintf("loading failed, retrying %d/%d", c.retryCount, c.cfg.maxRetries)
		c.log.Warn("load failed (attempt %d/%d): %v", c.retryCount, c.cfg.maxRetries, err)
		delay := c.cfg.retryDelay * time.Duration(c.retryCount)
		c.retryTimer = time.AfterFunc(delay, func() {
			c.mu.Lock()
			stale := gen != c.generation
			c.retryTimer = nil
			c.mu.Unlock()
			if !stale {
				c.LoadMore(ctx)
			}
		})
		return
	}
	// Retries exhausted. HasMore is left untouched so a manual LoadMore
	// can resume from the same cursor.
	c.state.Error = fmt.Sprintf("loading failed after %d retries: %v", c.cfg.maxRetries, err)
	c.log.Error("load failed after %d retries: %v", c.cfg.maxRetries, err)
}

func (c *Controller[T]) classify(elapsed time.Duration, items int) Speed {
	perItem := elapsed / time.Duration(items)
	switch {
	case perItem < c.cfg.fastPerItem:
		return SpeedFast
	case perItem < c.cfg.mediumPerItem:
		return SpeedMedium
	default:
		return SpeedSlow
	}
}

// adapt returns the next batch size, clamped to
// [initialBatchSize, maxBatchSize]. Caller holds the mutex.
func (c *Controller[T]) adapt(elapsed time.Duration) int {
	size := c.state.CurrentBatchSize
	switch {
	case c.state.NetworkSpeed == SpeedFast && elapsed < c.cfg.growElapsed:
		size = int(float64(size) * growFactor)
		if size > c.cfg.maxBatchSize {
			size = c.cfg.maxBatchSize
		}
	case c.state.NetworkSpeed == SpeedSlow || elapsed > c.cfg.shrinkElapsed:
		size = int(float64(size) * shrinkFactor)
		if size < c.cfg.initialBatchSize {
			size = c.cfg.initialBatchSize
		}
	}
	return size
}

// Reset returns the controller to its construction state: cursor cleared,
// retry counter zeroed, any pending automatic retry cancelled, and the
// generation bumped so an in-flight fetch resolves into the void.
func (c *Controller[T]) Reset() {
	c.mu.Lock()
	c.generation++
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	c.retryCount = 0
	c.cursor = ""
	c.inFlight = false
	c.state = c.initialState()
	c.mu.Unlock()
	c.notify()
	c.log.Debug("reset")
}

// SetHasMore overrides the exhaustion flag, for callers with out-of-band
// knowledge of the source (or to re-arm loading after exhaustion).
func (c *Controller[T]) SetHasMore(hasMore bool) {
	c.mu.Lock()
	c.state.HasMore = hasMore
	c.mu.Unlock()
	c.notify()
}

// UpdateNetworkSpeed overrides the speed classification.
func (c *Controller[T]) UpdateNetworkSpeed(speed Speed) {
	c.mu.Lock()
	c.state.NetworkSpeed = speed
	c.mu.Unlock()
	c.notify()
}
