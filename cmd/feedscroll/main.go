package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/spf13/cobra"
	str2duration "github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"

	"github.com/notesync/feedkit/cache"
	"github.com/notesync/feedkit/loader"
	"github.com/notesync/feedkit/logger"
	"github.com/notesync/feedkit/preload"
)

// tuning is the optional YAML config file. Durations are human friendly
// strings ("5m", "150ms").
type tuning struct {
	TTL               string `yaml:"ttl"`
	SweepInterval     string `yaml:"sweep_interval"`
	InitialBatchSize  int    `yaml:"initial_batch_size"`
	MaxBatchSize      int    `yaml:"max_batch_size"`
	Threshold         int    `yaml:"threshold"`
	Debounce          string `yaml:"debounce"`
	MaxPreloadBatches int    `yaml:"max_preload_batches"`
}

func defaultTuning() tuning {
	return tuning{
		TTL:               "5m",
		SweepInterval:     "1m",
		InitialBatchSize:  loader.DefaultInitialBatchSize,
		MaxBatchSize:      loader.DefaultMaxBatchSize,
		Threshold:         preload.DefaultThreshold,
		Debounce:          "100ms",
		MaxPreloadBatches: preload.DefaultMaxPreloadBatches,
	}
}

func loadTuning(path string) (tuning, error) {
	cfg := defaultTuning()
	if path == "" {
		return cfg, nil
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func mustDuration(s string) time.Duration {
	d, err := str2duration.ParseDuration(s)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid duration %q: %v\n", s, err)
		os.Exit(1)
	}
	return d
}

type record struct {
	ID    int    `msgpack:"id"`
	Title string `msgpack:"title"`
}

const rowHeight = 48

func main() {
	var (
		configPath string
		totalItems int
		latency    time.Duration
		jitter     time.Duration
		dbPath     string
		jsonLogs   bool
		scrollMs   time.Duration
	)

	root := &cobra.Command{
		Use:   "feedscroll",
		Short: "Simulate a scrolling session against a synthetic paginated feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadTuning(configPath)
			if err != nil {
				return err
			}

			var log logger.Logger
			if jsonLogs {
				log = logger.NewJSON(logger.GetLevelFromEnv())
			} else {
				log = logger.NewConsole(logger.GetLevelFromEnv())
			}

			ctx := cmd.Context()
			return run(ctx, cfg, log, totalItems, latency, jitter, dbPath, scrollMs)
		},
	}

	root.Flags().StringVarP(&configPath, "config", "c", "", "optional YAML tuning file")
	root.Flags().IntVarP(&totalItems, "items", "n", 500, "total records in the synthetic feed")
	root.Flags().DurationVar(&latency, "latency", 30*time.Millisecond, "base latency of the synthetic source")
	root.Flags().DurationVar(&jitter, "jitter", 20*time.Millisecond, "random extra latency per request")
	root.Flags().StringVar(&dbPath, "db", "", "SQLite file to persist the cache snapshot (empty = no persistence)")
	root.Flags().BoolVar(&jsonLogs, "json", false, "emit JSON logs instead of console logs")
	root.Flags().DurationVar(&scrollMs, "scroll-interval", 50*time.Millisecond, "simulated time between scroll steps")

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg tuning, log logger.Logger, totalItems int, latency, jitter time.Duration, dbPath string, scrollInterval time.Duration) error {
	cacheOpts := []cache.Option{
		cache.WithTTL(mustDuration(cfg.TTL)),
		cache.WithSweepInterval(mustDuration(cfg.SweepInterval)),
		cache.WithLogger(log),
	}
	if dbPath != "" {
		persist, err := cache.NewSQLitePersistence(dbPath)
		if err != nil {
			return err
		}
		defer persist.Close()
		cacheOpts = append(cacheOpts, cache.WithPersistence(persist))
	}
	store := cache.New(ctx, cacheOpts...)
	defer store.Close()
	if dbPath != "" {
		if err := store.LoadFromStorage(ctx); err == nil {
			log.Info("restored %d cached pages", store.Size())
		}
	}

	source := syntheticSource(totalItems, latency, jitter)
	ctrl := loader.New(func(ctx context.Context, batchSize int, cursor string) (loader.Page[record], error) {
		key := cache.Fingerprint("feed", cursor, fmt.Sprintf("%d", batchSize))
		page, _, err := cache.Fetch(ctx, store, key, func(ctx context.Context) (loader.Page[record], bool, error) {
			p, err := source(ctx, batchSize, cursor)
			return p, err == nil, err
		})
		return page, err
	}, loader.WithInitialBatchSize(cfg.InitialBatchSize),
		loader.WithMaxBatchSize(cfg.MaxBatchSize),
		loader.WithLogger(log))

	region := preload.NewSimScrollRegion(rowHeight, 600)
	ctrl.Subscribe(func(s loader.State) {
		// Content grows as records land, like a collection view re-render.
		region.SetContentHeight(s.LoadedCount * rowHeight)
	})

	trigger := preload.New(ctx, region, func(ctx context.Context) error {
		if !ctrl.LoadMore(ctx) {
			if msg := ctrl.State().Error; msg != "" {
				return fmt.Errorf("%s", msg)
			}
		}
		return nil
	}, preload.WithThreshold(cfg.Threshold),
		preload.WithDebounce(mustDuration(cfg.Debounce)),
		preload.WithMaxPreloadBatches(cfg.MaxPreloadBatches),
		preload.WithLogger(log),
		preload.WithVisibilityCallback(func(visible bool) {
			if !visible && dbPath != "" {
				// Fire and forget, like a page-hide handler.
				go store.SaveToStorage(ctx)
			}
		}))
	trigger.Attach()
	defer trigger.Detach()

	// Scroll until the feed is exhausted: step toward the bottom, let the
	// preload budget refill as batches complete.
	for ctrl.State().HasMore {
		m := region.Metrics()
		region.ScrollTo(m.ScrollTop + 200)
		time.Sleep(scrollInterval)
		if trigger.InFlightBatches() >= cfg.MaxPreloadBatches {
			trigger.ResetPreloadState()
			trigger.TriggerPreloadCheck()
		}
	}

	st := ctrl.State()
	cs := store.Stats()
	log.Info("feed exhausted: %d/%d records, final batch size %d, network %s",
		st.LoadedCount, st.TotalEstimate, st.CurrentBatchSize, st.NetworkSpeed)
	log.Info("cache: %d pages, %.0f%% hit rate (%d/%d)",
		cs.Size, cs.HitRate*100, cs.Hits, cs.Requests)

	if dbPath != "" {
		return store.SaveToStorage(ctx)
	}
	return nil
}

// syntheticSource pages through totalItems fake records with simulated
// latency. Cursors are plain offsets; the engine treats them as opaque.
func syntheticSource(totalItems int, latency, jitter time.Duration) loader.PageFunc[record] {
	return func(ctx context.Context, batchSize int, cursor string) (loader.Page[record], error) {
		delay := latency
		if jitter > 0 {
			delay += time.Duration(rand.Int63n(int64(jitter)))
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return loader.Page[record]{}, ctx.Err()
		}

		offset := 0
		if cursor != "" {
			fmt.Sscanf(cursor, "%d", &offset)
		}
		end := offset + batchSize
		if end > totalItems {
			end = totalItems
		}
		items := make([]record, 0, end-offset)
		for i := offset; i < end; i++ {
			items = append(items, record{ID: i, Title: fmt.Sprintf("note %d", i)})
		}
		page := loader.Page[record]{
			Items:      items,
			HasMore:    end < totalItems,
			TotalCount: totalItems,
		}
		if page.HasMore {
			page.NextCursor = fmt.Sprintf("%d", end)
		}
		return page, nil
	}
}
