package loader

import (
	"time"

	"github.com/notesync/feedkit/logger"
)

// DefaultInitialBatchSize is the batch size the controller starts with and
// the floor it never shrinks below.
const DefaultInitialBatchSize = 20

// DefaultMaxBatchSize is the ceiling adaptive growth never exceeds.
const DefaultMaxBatchSize = 100

// DefaultRetryDelay is the base delay of the linear retry backoff: the n-th
// automatic retry fires after n times this delay.
const DefaultRetryDelay = time.Second

// DefaultMaxRetries is the number of automatic retries before the
// controller parks in a terminal error state.
const DefaultMaxRetries = 3

// Speed classification and adaptation thresholds. These are tuning
// parameters, not correctness requirements; all are overridable.
const (
	DefaultFastPerItem   = 10 * time.Millisecond
	DefaultMediumPerItem = 50 * time.Millisecond
	DefaultGrowElapsed   = 500 * time.Millisecond
	DefaultShrinkElapsed = 2 * time.Second
)

const (
	growFactor   = 1.5
	shrinkFactor = 0.7
)

type config struct {
	initialBatchSize int
	maxBatchSize     int
	adaptive         bool
	retryDelay       time.Duration
	maxRetries       int
	fastPerItem      time.Duration
	mediumPerItem    time.Duration
	growElapsed      time.Duration
	shrinkElapsed    time.Duration
	log              logger.Logger
}

// Option configures a Controller.
type Option func(*config)

func defaultConfig() config {
	return config{
		initialBatchSize: DefaultInitialBatchSize,
		maxBatchSize:     DefaultMaxBatchSize,
		adaptive:         true,
		retryDelay:       DefaultRetryDelay,
		maxRetries:       DefaultMaxRetries,
		fastPerItem:      DefaultFastPerItem,
		mediumPerItem:    DefaultMediumPerItem,
		growElapsed:      DefaultGrowElapsed,
		shrinkElapsed:    DefaultShrinkElapsed,
		log:              logger.NewNoop(),
	}
}

// WithInitialBatchSize sets the starting batch size (and the adaptive
// floor). Defaults to DefaultInitialBatchSize.
func WithInitialBatchSize(n int) Option {
	return func(c *config) { c.initialBatchSize = n }
}

// WithMaxBatchSize sets the adaptive ceiling. Defaults to
// DefaultMaxBatchSize.
func WithMaxBatchSize(n int) Option {
	return func(c *config) { c.maxBatchSize = n }
}

// WithAdaptiveBatchSize enables or disables batch-size adaptation. When
// disabled the batch size never changes after construction. Defaults to
// enabled.
func WithAdaptiveBatchSize(enabled bool) Option {
	return func(c *config) { c.adaptive = enabled }
}

// WithRetryDelay sets the base delay of the linear retry backoff. Defaults
// to DefaultRetryDelay.
func WithRetryDelay(d time.Duration) Option {
	return func(c *config) { c.retryDelay = d }
}

// WithMaxRetries sets how many automatic retries are attempted before the
// terminal error state. Defaults to DefaultMaxRetries.
func WithMaxRetries(n int) Option {
	return func(c *config) { c.maxRetries = n }
}

// WithSpeedThresholds overrides the per-item latency boundaries between
// fast/medium and medium/slow classification.
func WithSpeedThresholds(fastPerItem, mediumPerItem time.Duration) Option {
	return func(c *config) {
		c.fastPerItem = fastPerItem
		c.mediumPerItem = mediumPerItem
	}
}

// WithElapsedThresholds overrides the whole-request elapsed-time boundaries
// that gate batch growth and force batch shrink.
func WithElapsedThresholds(grow, shrink time.Duration) Option {
	return func(c *config) {
		c.growElapsed = grow
		c.shrinkElapsed = shrink
	}
}

// WithLogger sets the logger used for load-cycle diagnostics.
func WithLogger(log logger.Logger) Option {
	return func(c *config) { c.log = log.WithPrefix("loader") }
}
