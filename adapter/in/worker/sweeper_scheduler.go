// Package worker contains the inbound drivers that fire sweep work.
package worker

import (
	"context"
	"errors"
	"time"

	"sweeper_server/core/service/sweep"
	"sweeper_server/pkg/logger"
	"sweeper_server/pkg/metrics"
)

// =============================================================================
// SweepScheduler
// =============================================================================

const (
	SweepTickInterval = 1 * time.Minute
	SweepStartupDelay = 30 * time.Second // server stabilization
	SweepTickTimeout  = 10 * time.Minute

	// statsReportEvery is in ticks; roughly hourly at the 1m interval.
	statsReportEvery = 60
)

// SweepScheduler drives the sweep service off a fixed ticker. Due-rule
// selection happens inside the service, so a tick is cheap when nothing
// is due.
type SweepScheduler struct {
	sweeper      *sweep.Service
	tickInterval time.Duration
	startupDelay time.Duration
	tickCount    int
	ctx          context.Context
	cancel       context.CancelFunc
}

// NewSweepScheduler creates a new sweep scheduler.
func NewSweepScheduler(sweeper *sweep.Service) *SweepScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &SweepScheduler{
		sweeper:      sweeper,
		tickInterval: SweepTickInterval,
		startupDelay: SweepStartupDelay,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start starts the sweep scheduler.
func (s *SweepScheduler) Start() {
	logger.Info("[SweepScheduler] Starting...")
	go s.run()
}

// Stop stops the sweep scheduler.
func (s *SweepScheduler) Stop() {
	logger.Info("[SweepScheduler] Stopping...")
	s.cancel()
}

// run is the main loop.
func (s *SweepScheduler) run() {
	select {
	case <-s.ctx.Done():
		return
	case <-time.After(s.startupDelay):
	}

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			logger.Info("[SweepScheduler] Stopped")
			return
		case <-ticker.C:
			s.tick()
			s.tickCount++
			if s.tickCount%statsReportEvery == 0 {
				s.reportStats()
			}
		}
	}
}

func (s *SweepScheduler) tick() {
	ctx, cancel := context.WithTimeout(s.ctx, SweepTickTimeout)
	defer cancel()

	started := time.Now()
	defer func() { metrics.RecordLatency("sweep.tick", time.Since(started)) }()

	if err := s.sweeper.RunTick(ctx); err != nil {
		if errors.Is(err, sweep.ErrSweepInProgress) {
			// previous sweep still running, this tick is dropped
			return
		}
		logger.Error("[SweepScheduler] Tick failed: %v", err)
	}
}

// reportStats logs tick latency percentiles and flags strained DB pools.
func (s *SweepScheduler) reportStats() {
	for op, stats := range metrics.GetAllLatencyStats() {
		logger.Info("[SweepScheduler] %s latency: avg=%v p50=%v p95=%v p99=%v (%d samples)",
			op, stats.Avg, stats.P50, stats.P95, stats.P99, stats.Samples)
	}
	for name, health := range metrics.GetAllPoolHealth() {
		if health.Status == metrics.PoolHealthy {
			continue
		}
		logger.Warn("[SweepScheduler] Pool %s is %s: %s (utilization %.0f%%)",
			name, health.Status, health.Message, health.Utilization*100)
	}
}
