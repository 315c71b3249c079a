// Package scheduler runs background jobs on fixed intervals.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type entry struct {
	job      Job
	interval time.Duration
}

type Scheduler struct {
	logger  *zap.Logger
	entries []entry

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(logger *zap.Logger) *Scheduler {
	return &Scheduler{logger: logger}
}

// Every registers job to run once at start and then on every tick.
// Intervals <= 0 disable the job.
func (s *Scheduler) Every(interval time.Duration, job Job) {
	if interval <= 0 {
		s.logger.Info("scheduled job disabled", zap.String("job", job.Name()))
		return
	}
	s.entries = append(s.entries, entry{job: job, interval: interval})
}

func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	for _, e := range s.entries {
		s.wg.Add(1)
		go s.loop(ctx, e)
	}
}

// Stop cancels running jobs and waits for their loops to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, e entry) {
	defer s.wg.Done()
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	s.runOnce(ctx, e.job)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, e.job)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, job Job) {
	start := time.Now()
	if err := job.Run(ctx); err != nil {
		if ctx.Err() == nil {
			s.logger.Error("scheduled job failed", zap.String("job", job.Name()), zap.Error(err))
		}
		return
	}
	s.logger.Debug("scheduled job finished", zap.String("job", job.Name()), zap.Duration("took", time.Since(start)))
}
