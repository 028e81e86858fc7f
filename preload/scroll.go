package preload

import "sync"

// ScrollMetrics is the geometry of a scrollable region, in pixels.
type ScrollMetrics struct {
	ScrollTop    int
	ScrollHeight int
	ClientHeight int
}

// DistanceFromBottom returns how far the viewport's bottom edge is from the
// end of the content.
func (m ScrollMetrics) DistanceFromBottom() int {
	return m.ScrollHeight - m.ScrollTop - m.ClientHeight
}

// ScrollSource is a scrollable region the trigger can observe.
type ScrollSource interface {
	// Metrics returns the current geometry.
	Metrics() ScrollMetrics
	// OnScroll registers fn to be called on every scroll event. The
	// returned function unsubscribes.
	OnScroll(fn func()) (unsubscribe func())
}

// VisibilitySource reports transitions of a region between visible and
// hidden. Scroll sources may optionally implement it.
type VisibilitySource interface {
	// OnVisibility registers fn to be called with the new visibility on
	// every transition. The returned function unsubscribes.
	OnVisibility(fn func(visible bool)) (unsubscribe func())
}

// SimScrollRegion is an in-memory ScrollSource and VisibilitySource for
// tests and simulations.
type SimScrollRegion struct {
	mu            sync.Mutex
	scrollTop     int
	contentHeight int
	viewHeight    int
	visible       bool
	scrollSubs    map[int]func()
	visSubs       map[int]func(bool)
	nextID        int
}

var (
	_ ScrollSource     = (*SimScrollRegion)(nil)
	_ VisibilitySource = (*SimScrollRegion)(nil)
)

// NewSimScrollRegion returns a visible region with the given content and
// viewport heights, scrolled to the top.
func NewSimScrollRegion(contentHeight, viewHeight int) *SimScrollRegion {
	return &SimScrollRegion{
		contentHeight: contentHeight,
		viewHeight:    viewHeight,
		visible:       true,
		scrollSubs:    make(map[int]func()),
		visSubs:       make(map[int]func(bool)),
	}
}

func (r *SimScrollRegion) Metrics() ScrollMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ScrollMetrics{
		ScrollTop:    r.scrollTop,
		ScrollHeight: r.contentHeight,
		ClientHeight: r.viewHeight,
	}
}

func (r *SimScrollRegion) OnScroll(fn func()) (unsubscribe func()) {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.scrollSubs[id] = fn
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		delete(r.scrollSubs, id)
		r.mu.Unlock()
	}
}

func (r *SimScrollRegion) OnVisibility(fn func(visible bool)) (unsubscribe func()) {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.visSubs[id] = fn
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		delete(r.visSubs, id)
		r.mu.Unlock()
	}
}

// ScrollTo moves the viewport and fires a scroll event. The position is
// clamped to the scrollable range.
func (r *SimScrollRegion) ScrollTo(top int) {
	r.mu.Lock()
	maxTop := r.contentHeight - r.viewHeight
	if maxTop < 0 {
		maxTop = 0
	}
	if top < 0 {
		top = 0
	}
	if top > maxTop {
		top = maxTop
	}
	r.scrollTop = top
	subs := make([]func(), 0, len(r.scrollSubs))
	for _, fn := range r.scrollSubs {
		subs = append(subs, fn)
	}
	r.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}

// SetContentHeight grows or shrinks the content without firing a scroll
// event, like appending records to a collection view.
func (r *SimScrollRegion) SetContentHeight(h int) {
	r.mu.Lock()
	r.contentHeight = h
	r.mu.Unlock()
}

// SetVisible fires a visibility transition when the value changes.
func (r *SimScrollRegion) SetVisible(visible bool) {
	r.mu.Lock()
	if r.visible == visible {
		r.mu.Unlock()
		return
	}
	r.visible = visible
	subs := make([]func(bool), 0, len(r.visSubs))
	for _, fn := range r.visSubs {
		subs = append(subs, fn)
	}
	r.mu.Unlock()
	for _, fn := range subs {
		fn(visible)
	}
}
