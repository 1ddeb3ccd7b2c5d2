// Package warmup pre-populates the cache from named fetch functions at
// startup. Keys are fetched sequentially so the origin sees bounded load,
// and per-key failures are logged and skipped: partial warm-up is an
// accepted outcome.
package warmup

import (
	"context"
	"sort"
	"time"

	"tiercache/internal/cache/coordinator"
	"tiercache/internal/common/logging"
)

// FetchFunc loads one value from the origin data source.
type FetchFunc func(ctx context.Context) (interface{}, error)

// Runner warms the coordinator with a longer-than-default TTL so warmed
// entries outlive the first maintenance cycles.
type Runner struct {
	coord  *coordinator.Coordinator
	ttl    time.Duration
	logger logging.Logger
}

// New creates a warmup runner writing entries with the given TTL.
func New(coord *coordinator.Coordinator, ttl time.Duration, logger logging.Logger) *Runner {
	if ttl <= 0 {
		ttl = 600 * time.Second
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Runner{coord: coord, ttl: ttl, logger: logger}
}

// Run fetches and caches every entry, in sorted key order so origin load is
// reproducible across restarts. It returns the number of entries warmed and
// stops early only if ctx is canceled.
func (r *Runner) Run(ctx context.Context, fetchers map[string]FetchFunc) int {
	keys := make([]string, 0, len(fetchers))
	for key := range fetchers {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	warmed := 0
	for _, key := range keys {
		if ctx.Err() != nil {
			r.logger.Warn("cache warmup canceled",
				logging.Int("warmed", warmed),
				logging.Int("remaining", len(keys)-warmed),
			)
			return warmed
		}

		value, err := fetchers[key](ctx)
		if err != nil {
			r.logger.Warn("cache warmup fetch failed, skipping key",
				logging.String("key", key),
				logging.Err(err),
			)
			continue
		}

		if err := r.coord.SetJSON(ctx, key, value, r.ttl); err != nil {
			r.logger.Warn("cache warmup write failed, skipping key",
				logging.String("key", key),
				logging.Err(err),
			)
			continue
		}
		warmed++
	}

	r.logger.Info("cache warmup finished",
		logging.Int("warmed", warmed),
		logging.Int("total", len(keys)),
		logging.Duration("ttl", r.ttl),
	)
	return warmed
}
