package bootstrap

import (
	"context"

	"sweeper_server/adapter/in/worker"
	"sweeper_server/config"
	"sweeper_server/pkg/logger"
)

// Sweeper is the assembled runtime: the dependency container plus the
// scheduler that drives it.
type Sweeper struct {
	deps      *Dependencies
	scheduler *worker.SweepScheduler
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewSweeper(cfg *config.Config) (*Sweeper, func(), error) {
	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Sweeper{
		deps:   deps,
		ctx:    ctx,
		cancel: cancel,
	}

	if cfg.SweepEnabled && deps.Sweeper != nil {
		s.scheduler = worker.NewSweepScheduler(deps.Sweeper)
	} else {
		logger.Warn("Sweep scheduler disabled")
	}

	return s, cleanup, nil
}

// Start runs the scheduler and blocks until Stop is called.
func (s *Sweeper) Start() {
	if s.scheduler != nil {
		s.scheduler.Start()
	}
	<-s.ctx.Done()
}

func (s *Sweeper) Stop() {
	s.cancel()
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

func (s *Sweeper) Dependencies() *Dependencies {
	return s.deps
}
