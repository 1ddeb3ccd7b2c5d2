// Package coordinator orchestrates reads and writes across the two cache
// tiers: read-through with L1 backfill, write-through with logged partial
// failure, pattern invalidation, and get-or-compute.
//
// Values cross the coordinator as raw bytes so both tiers hold identical
// payloads; the JSON helpers encode once on write and decode on read. Only
// caller-attributable errors (invalid TTL, failed compute functions) escape:
// store failures degrade per the fail-open contract of the remote tier.
package coordinator

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"tiercache/internal/cache/local"
	"tiercache/internal/cache/remote"
	"tiercache/internal/common/errors"
	"tiercache/internal/common/logging"
)

// ComputeFunc produces the value for a cold key inside GetOrCompute.
type ComputeFunc func(ctx context.Context) ([]byte, error)

// Config controls coordinator behavior.
type Config struct {
	// L1DefaultTTL is applied when backfilling L1 from an L2 hit.
	L1DefaultTTL time.Duration
	// L2DefaultTTL is the TTL used by callers that delegate the choice
	// (see DefaultTTL).
	L2DefaultTTL time.Duration
	// SingleFlight de-duplicates concurrent computes for the same cold key.
	SingleFlight bool
}

// Stats merges per-tier counters with the coordinator's own hit accounting.
type Stats struct {
	L1      local.Stats  `json:"l1"`
	L2      remote.Stats `json:"l2"`
	L1Hits  uint64       `json:"l1_hits"`
	L2Hits  uint64       `json:"l2_hits"`
	Misses  uint64       `json:"misses"`
	HitRate float64      `json:"hit_rate"`
}

// Coordinator is the single entry point business logic talks to. One
// instance per process, passed explicitly to every consumer.
type Coordinator struct {
	local  *local.Store
	remote *remote.Store
	config Config
	logger logging.Logger
	sf     singleflight.Group

	l1Hits uint64
	l2Hits uint64
	misses uint64
}

// New wires a coordinator over the given tiers.
func New(localStore *local.Store, remoteStore *remote.Store, config Config, logger logging.Logger) *Coordinator {
	if config.L1DefaultTTL <= 0 {
		config.L1DefaultTTL = 300 * time.Second
	}
	if config.L2DefaultTTL <= 0 {
		config.L2DefaultTTL = 300 * time.Second
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &Coordinator{
		local:  localStore,
		remote: remoteStore,
		config: config,
		logger: logger,
	}
}

// DefaultTTL returns the TTL for callers that delegate the choice.
func (c *Coordinator) DefaultTTL() time.Duration {
	return c.config.L2DefaultTTL
}

// Get checks L1 first, then L2. An L2 hit is backfilled into L1 with the
// default L1 TTL so the next read for this key stays in-process.
func (c *Coordinator) Get(ctx context.Context, key string) ([]byte, bool) {
	if value, ok := c.local.Get(key); ok {
		atomic.AddUint64(&c.l1Hits, 1)
		return value, true
	}

	if value, ok := c.remote.Get(ctx, key); ok {
		atomic.AddUint64(&c.l2Hits, 1)
		if err := c.local.Set(key, value, c.config.L1DefaultTTL); err != nil {
			c.logger.Warn("L1 backfill failed", logging.String("key", key), logging.Err(err))
		}
		return value, true
	}

	atomic.AddUint64(&c.misses, 1)
	return nil, false
}

// Set writes through to both tiers. The L1 write completes synchronously
// before Set returns, so a Get in the same process immediately sees the
// value. An L2 failure is logged and the L1 write stands, trading
// cross-process freshness for local availability.
func (c *Coordinator) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.InvalidTTLError(ttl.Seconds())
	}

	if ok := c.remote.Set(ctx, key, value, ttl); !ok {
		c.logger.Warn("L2 write failed, keeping L1 copy only", logging.String("key", key))
	}

	return c.local.Set(key, value, ttl)
}

// Delete removes key from both tiers independently; a failure on one tier
// does not block the other. It reports whether either tier held the key.
func (c *Coordinator) Delete(ctx context.Context, key string) bool {
	l1 := c.local.Delete(key)
	l2 := c.remote.Delete(ctx, key)
	return l1 || l2
}

// InvalidatePattern removes every L1 key containing pattern as a substring
// and every L2 key matched by a scan, returning the total number removed.
func (c *Coordinator) InvalidatePattern(ctx context.Context, pattern string) int {
	removed := c.local.DeleteContaining(pattern)

	keys := c.remote.Scan(ctx, pattern)
	removed += c.remote.DeleteMany(ctx, keys)

	return removed
}

// GetOrCompute returns the cached value for key, or invokes compute on a
// miss. A compute error is propagated unchanged and nothing is cached for
// that attempt. An empty or JSON-null result is returned but never stored:
// absence is modeled as deletion, not as a cached sentinel.
//
// With SingleFlight enabled, concurrent calls for the same cold key share
// one compute. Without it, they may each invoke compute and race their
// writes (last-write-wins) — duplicated upstream work, not corruption.
func (c *Coordinator) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute ComputeFunc) ([]byte, error) {
	if ttl <= 0 {
		return nil, errors.InvalidTTLError(ttl.Seconds())
	}

	if value, ok := c.Get(ctx, key); ok {
		return value, nil
	}

	if !c.config.SingleFlight {
		return c.computeAndStore(ctx, key, ttl, compute)
	}

	value, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// A flight that finished while we were queued may have filled the key
		if value, ok := c.Get(ctx, key); ok {
			return value, nil
		}
		return c.computeAndStore(ctx, key, ttl, compute)
	})
	if err != nil {
		return nil, err
	}
	return value.([]byte), nil
}

func (c *Coordinator) computeAndStore(ctx context.Context, key string, ttl time.Duration, compute ComputeFunc) ([]byte, error) {
	value, err := compute(ctx)
	if err != nil {
		return nil, err
	}

	if isAbsent(value) {
		return value, nil
	}

	if err := c.Set(ctx, key, value, ttl); err != nil {
		return nil, err
	}
	return value, nil
}

// SetJSON encodes value and writes it through both tiers. An unencodable
// payload is logged and skipped; the cache stays consistent and the caller
// is unaffected.
func (c *Coordinator) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.InvalidTTLError(ttl.Seconds())
	}

	data, err := json.Marshal(value)
	if err != nil {
		serr := errors.SerializationError("payload cannot be encoded", err).WithContext("key", key)
		c.logger.Warn("skipping cache write", logging.String("key", key), logging.Err(serr))
		return nil
	}

	return c.Set(ctx, key, data, ttl)
}

// GetJSON reads key and decodes it into dest. An undecodable payload is
// treated as absent and purged from both tiers.
func (c *Coordinator) GetJSON(ctx context.Context, key string, dest interface{}) bool {
	value, ok := c.Get(ctx, key)
	if !ok {
		return false
	}

	if err := json.Unmarshal(value, dest); err != nil {
		serr := errors.SerializationError("cached payload cannot be decoded", err).WithContext("key", key)
		c.logger.Warn("treating undecodable entry as absent", logging.String("key", key), logging.Err(serr))
		c.Delete(ctx, key)
		return false
	}
	return true
}

// SweepLocal reclaims expired L1 entries; the maintenance loop calls this.
func (c *Coordinator) SweepLocal() int {
	return c.local.Sweep()
}

// Stats returns the merged per-tier and overall hit-rate report.
func (c *Coordinator) Stats() Stats {
	st := Stats{
		L1:     c.local.Stats(),
		L2:     c.remote.Stats(),
		L1Hits: atomic.LoadUint64(&c.l1Hits),
		L2Hits: atomic.LoadUint64(&c.l2Hits),
		Misses: atomic.LoadUint64(&c.misses),
	}
	hits := st.L1Hits + st.L2Hits
	if total := hits + st.Misses; total > 0 {
		st.HitRate = float64(hits) / float64(total)
	}
	return st
}

// isAbsent reports whether a computed payload encodes absence.
func isAbsent(value []byte) bool {
	return len(value) == 0 || string(value) == "null"
}
