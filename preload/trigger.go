package preload

import (
	"context"
	"sync"
	"time"

	"github.com/notesync/feedkit/logger"
)

// DefaultThreshold is how close to the bottom, in pixels, the viewport must
// be before a preload is armed.
const DefaultThreshold = 200

// DefaultDebounce is how long scroll activity must be quiet below the
// threshold before the preload fires.
const DefaultDebounce = 100 * time.Millisecond

// DefaultMaxPreloadBatches caps speculative loads between resets,
// independent of the loading controller's own retry budget.
const DefaultMaxPreloadBatches = 3

// DefaultSettleDelay is the pause between a region becoming visible and the
// follow-up proximity check.
const DefaultSettleDelay = 100 * time.Millisecond

// PreloadFunc performs one speculative load, typically wrapping
// Controller.LoadMore. Returning an error refunds the speculative batch
// budget consumed by the attempt.
type PreloadFunc func(ctx context.Context) error

type config struct {
	threshold          int
	debounce           time.Duration
	maxPreloadBatches  int
	visibilityObserver bool
	settleDelay        time.Duration
	onVisibility       func(visible bool)
	log                logger.Logger
}

// Option configures a Trigger.
type Option func(*config)

func defaultConfig() config {
	return config{
		threshold:          DefaultThreshold,
		debounce:           DefaultDebounce,
		maxPreloadBatches:  DefaultMaxPreloadBatches,
		visibilityObserver: true,
		settleDelay:        DefaultSettleDelay,
		log:                logger.NewNoop(),
	}
}

// WithThreshold sets the arming distance from the bottom, in pixels.
func WithThreshold(px int) Option {
	return func(c *config) { c.threshold = px }
}

// WithDebounce sets the scroll quiet period before a preload fires.
func WithDebounce(d time.Duration) Option {
	return func(c *config) { c.debounce = d }
}

// WithMaxPreloadBatches caps speculative loads between resets.
func WithMaxPreloadBatches(n int) Option {
	return func(c *config) { c.maxPreloadBatches = n }
}

// WithVisibilityObserver enables or disables visibility integration even
// when the scroll source supports it. Defaults to enabled.
func WithVisibilityObserver(enabled bool) Option {
	return func(c *config) { c.visibilityObserver = enabled }
}

// WithSettleDelay sets the pause between a visibility gain and the
// follow-up proximity check.
func WithSettleDelay(d time.Duration) Option {
	return func(c *config) { c.settleDelay = d }
}

// WithVisibilityCallback registers fn to be called on every visibility
// transition, for the caller's own bookkeeping (e.g. flushing a cache
// snapshot when the view hides).
func WithVisibilityCallback(fn func(visible bool)) Option {
	return func(c *config) { c.onVisibility = fn }
}

// WithLogger sets the logger used for gate diagnostics.
func WithLogger(log logger.Logger) Option {
	return func(c *config) { c.log = log.WithPrefix("preload") }
}

// Trigger schedules speculative loads from scroll proximity and visibility
// signals. Safe for concurrent use.
type Trigger struct {
	ctx       context.Context
	cfg       config
	scroll    ScrollSource
	onPreload PreloadFunc

	mu            sync.Mutex
	preloading    bool
	inFlight      int
	debounceTimer *time.Timer
	settleTimer   *time.Timer
	unsubScroll   func()
	unsubVis      func()
}

// New returns a Trigger watching scroll. The parent context is threaded
// into every onPreload invocation. Call Attach to start observing.
func New(parent context.Context, scroll ScrollSource, onPreload PreloadFunc, opts ...Option) *Trigger {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Trigger{
		ctx:       parent,
		cfg:       cfg,
		scroll:    scroll,
		onPreload: onPreload,
	}
}

// Attach subscribes to the scroll source (and its visibility transitions
// when supported and enabled) and runs an initial proximity check, since no
// scroll event has occurred yet to prime the pump.
func (t *Trigger) Attach() {
	t.mu.Lock()
	if t.unsubScroll == nil {
		t.unsubScroll = t.scroll.OnScroll(t.handleScroll)
		if vis, ok := t.scroll.(VisibilitySource); ok && t.cfg.visibilityObserver {
			t.unsubVis = vis.OnVisibility(t.handleVisibility)
		}
	}
	t.mu.Unlock()
	t.TriggerPreloadCheck()
}

// Detach unsubscribes from the source and cancels any pending timers.
// In-flight preloads are not interrupted.
func (t *Trigger) Detach() {
	t.mu.Lock()
	if t.unsubScroll != nil {
		t.unsubScroll()
		t.unsubScroll = nil
	}
	if t.unsubVis != nil {
		t.unsubVis()
		t.unsubVis = nil
	}
	t.cancelTimersLocked()
	t.mu.Unlock()
}

// TriggerPreloadCheck runs the proximity check outside of any scroll event.
func (t *Trigger) TriggerPreloadCheck() {
	t.handleScroll()
}

// ResetPreloadState zeroes the speculative batch counter, clears the
// mutual-exclusion flag and cancels any pending debounce. Call it whenever
// the underlying collection is reset (filter change, teardown).
func (t *Trigger) ResetPreloadState() {
	t.mu.Lock()
	t.inFlight = 0
	t.preloading = false
	t.cancelTimersLocked()
	t.mu.Unlock()
	t.cfg.log.Trace("preload state reset")
}

// InFlightBatches returns the speculative batches consumed since the last
// reset.
func (t *Trigger) InFlightBatches() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inFlight
}

func (t *Trigger) cancelTimersLocked() {
	if t.debounceTimer != nil {
		t.debounceTimer.Stop()
		t.debounceTimer = nil
	}
	if t.settleTimer != nil {
		t.settleTimer.Stop()
		t.settleTimer = nil
	}
}

// handleScroll arms a debounced preload when the viewport is within the
// threshold of the bottom. Each qualifying event restarts the debounce, so
// the preload fires only after scroll inactivity.
func (t *Trigger) handleScroll() {
	m := t.scroll.Metrics()
	if m.DistanceFromBottom() > t.cfg.threshold {
		return
	}
	t.mu.Lock()
	if t.debounceTimer != nil {
		t.debounceTimer.Stop()
	}
	t.debounceTimer = time.AfterFunc(t.cfg.debounce, t.firePreload)
	t.mu.Unlock()
}

// firePreload is the debounce callback: it passes the preload gate or drops
// the attempt silently.
func (t *Trigger) firePreload() {
	t.mu.Lock()
	t.debounceTimer = nil
	if t.preloading {
		t.mu.Unlock()
		t.cfg.log.Trace("preload suppressed: one already executing")
		return
	}
	if t.inFlight >= t.cfg.maxPreloadBatches {
		t.mu.Unlock()
		t.cfg.log.Trace("preload suppressed: batch budget exhausted (%d)", t.cfg.maxPreloadBatches)
		return
	}
	t.preloading = true
	t.inFlight++
	t.mu.Unlock()

	err := t.onPreload(t.ctx)

	t.mu.Lock()
	t.preloading = false
	if err != nil && t.inFlight > 0 {
		// A failed attempt does not consume speculative budget.
		t.inFlight--
	}
	t.mu.Unlock()
	if err != nil {
		t.cfg.log.Warn("preload failed: %v", err)
	}
}

// handleVisibility re-runs the proximity check shortly after the region
// becomes visible: content may have become scrollable while it was hidden.
// Becoming hidden cancels nothing; in-flight preloads run to completion.
func (t *Trigger) handleVisibility(visible bool) {
	if visible {
		t.mu.Lock()
		if t.settleTimer != nil {
			t.settleTimer.Stop()
		}
		t.settleTimer = time.AfterFunc(t.cfg.settleDelay, func() {
			t.mu.Lock()
			t.settleTimer = nil
			t.mu.Unlock()
			t.TriggerPreloadCheck()
		})
		t.mu.Unlock()
	}
	if t.cfg.onVisibility != nil {
		t.cfg.onVisibility(visible)
	}
}
