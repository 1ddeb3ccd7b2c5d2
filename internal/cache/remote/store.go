// Package remote implements the shared L2 cache tier on Redis.
//
// Every operation is fail-open: transport failures and timeouts degrade to
// a miss (Get) or a no-op (Set/Delete), never an error the caller has to
// handle, because caching is strictly an optimization. A circuit breaker
// guards the connection so a dead Redis is skipped immediately instead of
// burning the operation timeout on every call.
package remote

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"

	"tiercache/internal/circuitbreaker"
	"tiercache/internal/common/errors"
	"tiercache/internal/common/logging"
)

// Config holds the connection settings for the remote store.
type Config struct {
	Address   string        `json:"address"`
	Password  string        `json:"password"`
	DB        int           `json:"db"`
	PoolSize  int           `json:"pool_size"`
	OpTimeout time.Duration `json:"op_timeout"`
	// KeyPrefix is prepended to every key so unrelated applications can
	// share one Redis without collisions.
	KeyPrefix string `json:"key_prefix"`
}

// Stats is a point-in-time snapshot of the store's counters.
type Stats struct {
	Hits         uint64 `json:"hits"`
	Misses       uint64 `json:"misses"`
	Sets         uint64 `json:"sets"`
	Deletes      uint64 `json:"deletes"`
	Failures     uint64 `json:"failures"`
	BreakerState string `json:"breaker_state"`
}

// Store is the Redis-backed L2 tier. Connections are pooled and reused,
// never opened per call.
type Store struct {
	rdb     *redis.Client
	config  *Config
	breaker *circuitbreaker.Breaker
	logger  logging.Logger

	hits     uint64
	misses   uint64
	sets     uint64
	deletes  uint64
	failures uint64
}

// New connects to Redis and returns the store. Connection failure is the
// one error surfaced here: a process that cannot reach its shared cache at
// startup should say so loudly rather than run silently degraded.
func New(config *Config, logger logging.Logger) (*Store, error) {
	if config == nil {
		return nil, errors.ConfigError("remote store config is required")
	}

	if config.Address == "" {
		config.Address = "localhost:6379"
	}
	if config.PoolSize == 0 {
		config.PoolSize = 10
	}
	if config.OpTimeout == 0 {
		config.OpTimeout = 250 * time.Millisecond
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.DB,
		PoolSize: config.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, errors.ConnectionError("failed to connect to Redis", err)
	}

	return &Store{
		rdb:     rdb,
		config:  config,
		breaker: circuitbreaker.New("remote-cache", circuitbreaker.DefaultConfig(), logger),
		logger:  logger,
	}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// Health pings the server.
func (s *Store) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.rdb.Ping(ctx).Err()
}

// Get returns the stored bytes for key, or absent on miss and on any
// transport failure.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool) {
	var value []byte
	found := false

	err := s.breaker.Execute(func() error {
		opCtx, cancel := s.opContext(ctx)
		defer cancel()

		b, err := s.rdb.Get(opCtx, s.fullKey(key)).Bytes()
		if err == redis.Nil {
			return nil
		}
		if err != nil {
			return err
		}
		value = b
		found = true
		return nil
	})
	if err != nil {
		s.fail("get", key, err)
		atomic.AddUint64(&s.misses, 1)
		return nil, false
	}

	if !found {
		atomic.AddUint64(&s.misses, 1)
		return nil, false
	}
	atomic.AddUint64(&s.hits, 1)
	return value, true
}

// Set stores value under key with the given TTL, reporting whether the
// write reached the server.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool {
	err := s.breaker.Execute(func() error {
		opCtx, cancel := s.opContext(ctx)
		defer cancel()
		return s.rdb.Set(opCtx, s.fullKey(key), value, ttl).Err()
	})
	if err != nil {
		s.fail("set", key, err)
		return false
	}
	atomic.AddUint64(&s.sets, 1)
	return true
}

// Delete removes key, reporting whether it was present.
func (s *Store) Delete(ctx context.Context, key string) bool {
	var removed int64
	err := s.breaker.Execute(func() error {
		opCtx, cancel := s.opContext(ctx)
		defer cancel()

		n, err := s.rdb.Del(opCtx, s.fullKey(key)).Result()
		removed = n
		return err
	})
	if err != nil {
		s.fail("delete", key, err)
		return false
	}
	atomic.AddUint64(&s.deletes, uint64(removed))
	return removed > 0
}

// Exists reports whether key is present.
func (s *Store) Exists(ctx context.Context, key string) bool {
	var count int64
	err := s.breaker.Execute(func() error {
		opCtx, cancel := s.opContext(ctx)
		defer cancel()

		n, err := s.rdb.Exists(opCtx, s.fullKey(key)).Result()
		count = n
		return err
	})
	if err != nil {
		s.fail("exists", key, err)
		return false
	}
	return count > 0
}

// Expire refreshes the TTL of key in place, reporting whether the key exists.
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) bool {
	var ok bool
	err := s.breaker.Execute(func() error {
		opCtx, cancel := s.opContext(ctx)
		defer cancel()

		set, err := s.rdb.Expire(opCtx, s.fullKey(key), ttl).Result()
		ok = set
		return err
	})
	if err != nil {
		s.fail("expire", key, err)
		return false
	}
	return ok
}

// Scan returns every key containing pattern as a substring, with the store's
// key prefix stripped. A transport failure yields an empty result.
func (s *Store) Scan(ctx context.Context, pattern string) []string {
	match := s.config.KeyPrefix + "*" + pattern + "*"
	prefixLen := len(s.config.KeyPrefix)

	var keys []string
	err := s.breaker.Execute(func() error {
		var cursor uint64
		for {
			opCtx, cancel := s.opContext(ctx)
			batch, next, err := s.rdb.Scan(opCtx, cursor, match, 100).Result()
			cancel()
			if err != nil {
				return err
			}
			for _, k := range batch {
				keys = append(keys, k[prefixLen:])
			}
			if next == 0 {
				return nil
			}
			cursor = next
		}
	})
	if err != nil {
		s.fail("scan", pattern, err)
		return nil
	}
	return keys
}

// DeleteMany removes the given keys in batches and returns how many were
// actually deleted.
func (s *Store) DeleteMany(ctx context.Context, keys []string) int {
	if len(keys) == 0 {
		return 0
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.fullKey(k)
	}

	const batchSize = 512
	var removed int64
	err := s.breaker.Execute(func() error {
		for start := 0; start < len(full); start += batchSize {
			end := start + batchSize
			if end > len(full) {
				end = len(full)
			}

			opCtx, cancel := s.opContext(ctx)
			n, err := s.rdb.Del(opCtx, full[start:end]...).Result()
			cancel()
			if err != nil {
				return err
			}
			removed += n
		}
		return nil
	})
	if err != nil {
		s.fail("delete_many", "", err)
	}

	atomic.AddUint64(&s.deletes, uint64(removed))
	return int(removed)
}

// Stats returns a snapshot of the store's counters.
func (s *Store) Stats() Stats {
	return Stats{
		Hits:         atomic.LoadUint64(&s.hits),
		Misses:       atomic.LoadUint64(&s.misses),
		Sets:         atomic.LoadUint64(&s.sets),
		Deletes:      atomic.LoadUint64(&s.deletes),
		Failures:     atomic.LoadUint64(&s.failures),
		BreakerState: s.breaker.Stats().State,
	}
}

func (s *Store) fullKey(key string) string {
	return s.config.KeyPrefix + key
}

// opContext bounds a single operation so a slow Redis never stalls a caller
// beyond the configured timeout.
func (s *Store) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, s.config.OpTimeout)
}

// fail records a degraded operation. Open-circuit short-circuits are logged
// at debug to avoid flooding the log while Redis is known to be down; the
// failure counter feeds the aggregated stats emitted by maintenance.
func (s *Store) fail(op, key string, err error) {
	atomic.AddUint64(&s.failures, 1)

	fields := []logging.Field{
		logging.String("op", op),
		logging.String("key", key),
	}
	if errors.IsType(err, errors.ErrTypeRemote) {
		s.logger.Debug("remote store skipped, circuit open", fields...)
		return
	}
	s.logger.Warn("remote store operation failed", append(fields, logging.Err(err))...)
}
