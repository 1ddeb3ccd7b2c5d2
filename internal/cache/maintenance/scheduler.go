// Package maintenance runs the background sweep loop: each tick reclaims
// expired L1 entries and emits the coordinator's aggregated stats.
package maintenance

import (
	"fmt"
	"sync"
	"time"

	"tiercache/internal/cache/coordinator"
	"tiercache/internal/common/logging"
)

// Scheduler owns exactly one background goroutine per process. Ticks never
// overlap: the next tick is armed only after the current one fully returns.
// A failed tick is retried after the shorter retry interval instead of
// terminating the loop.
type Scheduler struct {
	coord    *coordinator.Coordinator
	interval time.Duration
	retry    time.Duration
	logger   logging.Logger

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a scheduler sweeping every interval, backing off to retry
// after a failed tick.
func New(coord *coordinator.Coordinator, interval, retry time.Duration, logger logging.Logger) *Scheduler {
	if interval <= 0 {
		interval = 300 * time.Second
	}
	if retry <= 0 {
		retry = 60 * time.Second
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &Scheduler{
		coord:    coord,
		interval: interval,
		retry:    retry,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the background loop. Calling Start on a scheduler that is
// already running is a caller error: it leaks a second loop.
func (s *Scheduler) Start() {
	s.logger.Info("maintenance scheduler started",
		logging.Duration("interval", s.interval),
		logging.Duration("retry", s.retry),
	)
	go s.run()
}

// Stop terminates the loop and waits for any in-flight tick to finish.
// It is safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	<-s.done
	s.logger.Info("maintenance scheduler stopped")
}

func (s *Scheduler) run() {
	defer close(s.done)

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-timer.C:
			next := s.interval
			if err := s.tick(); err != nil {
				s.logger.Warn("maintenance tick failed, retrying sooner",
					logging.Err(err),
					logging.Duration("retry", s.retry),
				)
				next = s.retry
			}
			timer.Reset(next)
		}
	}
}

// tick sweeps expired L1 entries and emits stats. A panic inside the tick is
// converted to an error so one bad iteration never kills the loop.
func (s *Scheduler) tick() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("maintenance tick panicked: %v", r)
		}
	}()

	reclaimed := s.coord.SweepLocal()
	stats := s.coord.Stats()

	s.logger.Info("cache maintenance sweep",
		logging.Int("reclaimed", reclaimed),
		logging.Int("l1_size", stats.L1.Size),
		logging.Uint64("l1_hits", stats.L1Hits),
		logging.Uint64("l2_hits", stats.L2Hits),
		logging.Uint64("misses", stats.Misses),
		logging.Float64("hit_rate", stats.HitRate),
		logging.Uint64("l2_failures", stats.L2.Failures),
		logging.String("l2_breaker", stats.L2.BreakerState),
		logging.Int64("l1_memory_bytes", stats.L1.ApproxMemoryBytes),
	)
	return nil
}
