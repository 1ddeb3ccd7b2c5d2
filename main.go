package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"tiercache/internal/cache/coordinator"
	"tiercache/internal/cache/keys"
	"tiercache/internal/cache/local"
	"tiercache/internal/cache/maintenance"
	"tiercache/internal/cache/remote"
	"tiercache/internal/cache/warmup"
	"tiercache/internal/common/logging"
	"tiercache/internal/config"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logging.InitGlobalLogger()
	defer logging.MustSync()
	logger := logging.GetGlobalLogger()

	l1, err := local.New(cfg.L1Capacity)
	if err != nil {
		logger.Error("failed to create local store", err)
		os.Exit(1)
	}

	l2, err := remote.New(&remote.Config{
		Address:   cfg.RedisAddress,
		Password:  cfg.RedisPassword,
		DB:        cfg.RedisDB,
		PoolSize:  cfg.RedisPoolSize,
		OpTimeout: cfg.RedisOpTimeout,
		KeyPrefix: cfg.KeyPrefix,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to remote store", err)
		os.Exit(1)
	}
	defer l2.Close()

	// One coordinator per process, handed explicitly to every consumer
	coord := coordinator.New(l1, l2, coordinator.Config{
		L1DefaultTTL: cfg.L1DefaultTTL,
		L2DefaultTTL: cfg.L2DefaultTTL,
		SingleFlight: cfg.SingleFlight,
	}, logger)

	// Best-effort pre-population; embedding applications register their
	// hot fetchers here alongside the runtime config snapshot
	runner := warmup.New(coord, cfg.WarmupTTL, logger)
	runner.Run(context.Background(), map[string]warmup.FetchFunc{
		keys.Build("config", "cache"): func(context.Context) (interface{}, error) {
			return map[string]interface{}{
				"l1_capacity":    cfg.L1Capacity,
				"l1_default_ttl": cfg.L1DefaultTTL.String(),
				"l2_default_ttl": cfg.L2DefaultTTL.String(),
				"key_prefix":     cfg.KeyPrefix,
				"single_flight":  cfg.SingleFlight,
			}, nil
		},
	})

	scheduler := maintenance.New(coord, cfg.MaintenanceInterval, cfg.MaintenanceRetry, logger)
	scheduler.Start()

	logger.Info("cache subsystem ready",
		logging.Int("l1_capacity", cfg.L1Capacity),
		logging.String("redis_address", cfg.RedisAddress),
		logging.Duration("maintenance_interval", cfg.MaintenanceInterval),
		logging.Bool("single_flight", cfg.SingleFlight),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	scheduler.Stop()

	stats := coord.Stats()
	logger.Info("cache subsystem stopped",
		logging.Uint64("l1_hits", stats.L1Hits),
		logging.Uint64("l2_hits", stats.L2Hits),
		logging.Uint64("misses", stats.Misses),
		logging.Float64("hit_rate", stats.HitRate),
	)
}
