package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"journey-risk-api-server/internal/metrics"
	"journey-risk-api-server/internal/models"
	"journey-risk-api-server/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Processor runs the pipeline for one route.
type Processor interface {
	Process(ctx context.Context, routeID string) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, routeID string) error

func (f ProcessorFunc) Process(ctx context.Context, routeID string) error { return f(ctx, routeID) }

type QueueOptions struct {
	Workers    int
	JobTimeout time.Duration
}

// Queue runs at most one active job per route on a fixed worker pool.
// Submitting a route again cancels its previous job.
type Queue struct {
	dispatcher Dispatcher
	processor  Processor
	opts       QueueOptions
	metrics    *metrics.Registry
	logger     *zap.Logger

	mu   sync.Mutex
	jobs map[string]*jobEntry

	ctx    context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

func NewQueue(d Dispatcher, p Processor, opts QueueOptions, m *metrics.Registry, logger *zap.Logger) *Queue {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Queue{
		dispatcher: d,
		processor:  p,
		opts:       opts,
		metrics:    m,
		logger:     logger,
		jobs:       make(map[string]*jobEntry),
		ctx:        ctx,
		stop:       stop,
	}
}

// Start launches the workers.
func (q *Queue) Start() {
	for i := 0; i < q.opts.Workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	q.logger.Info("pipeline queue started", zap.Int("workers", q.opts.Workers))
}

// Submit enqueues routeID, cancelling any queued or running job for it.
func (q *Queue) Submit(ctx context.Context, routeID string) (JobInfo, error) {
	job := Job{ID: uuid.NewString(), RouteID: routeID, SubmittedAt: time.Now().UTC()}
	entry := newJobEntry(job)

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return JobInfo{}, ErrQueueClosed
	}
	if prev, ok := q.jobs[routeID]; ok && prev.trigger(jobEventCancel) {
		q.logger.Info("superseded pipeline job", zap.String("route_id", routeID), zap.String("job_id", prev.job.ID))
		q.metrics.JobFinished(JobCancelled)
	}
	q.jobs[routeID] = entry
	q.mu.Unlock()

	if err := q.dispatcher.Enqueue(ctx, job); err != nil {
		entry.mu.Lock()
		entry.err = err.Error()
		entry.mu.Unlock()
		entry.trigger(jobEventCancel)
		return entry.info(), fmt.Errorf("enqueue route %s: %w", routeID, err)
	}
	q.metrics.SetQueueDepth(q.dispatcher.Len(ctx))
	return entry.info(), nil
}

// Cancel stops the active job for routeID and, when it was already running,
// waits for its processor to return or ctx to end. It reports whether a job was active.
func (q *Queue) Cancel(ctx context.Context, routeID string) bool {
	entry := q.cancel(routeID)
	if entry == nil {
		return false
	}
	if entry.wasStarted() {
		select {
		case <-entry.done:
		case <-ctx.Done():
			q.logger.Warn("cancelled job still running", zap.String("route_id", routeID), zap.Error(ctx.Err()))
		}
	}
	return true
}

func (q *Queue) cancel(routeID string) *jobEntry {
	q.mu.Lock()
	entry, ok := q.jobs[routeID]
	q.mu.Unlock()
	if !ok || !entry.trigger(jobEventCancel) {
		return nil
	}
	q.metrics.JobFinished(JobCancelled)
	return entry
}

// Status returns the latest job for routeID known to this instance.
func (q *Queue) Status(routeID string) (JobInfo, bool) {
	q.mu.Lock()
	entry, ok := q.jobs[routeID]
	q.mu.Unlock()
	if !ok {
		return JobInfo{}, false
	}
	return entry.info(), true
}

// Forget drops the job record for routeID, cancelling it first without waiting.
func (q *Queue) Forget(routeID string) {
	q.cancel(routeID)
	q.mu.Lock()
	delete(q.jobs, routeID)
	q.mu.Unlock()
}

// Stop cancels running jobs and waits for the workers to exit.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	q.stop()
	_ = q.dispatcher.Close()
	q.wg.Wait()
	q.logger.Info("pipeline queue stopped")
}

func (q *Queue) worker(n int) {
	defer q.wg.Done()
	for {
		job, ack, err := q.dispatcher.Dequeue(q.ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, ErrQueueClosed) {
				return
			}
			q.logger.Error("dequeue failed", zap.Int("worker", n), zap.Error(err))
			select {
			case <-q.ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		q.run(job)
		if q.ctx.Err() != nil {
			// shutting down: leave the message pending so it is claimed again
			return
		}
		ack()
		q.metrics.SetQueueDepth(q.dispatcher.Len(q.ctx))
	}
}

// claim returns the entry job should run under, or nil when the job was
// superseded or cancelled. Jobs submitted by another instance get a fresh entry.
func (q *Queue) claim(job Job) *jobEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	entry, ok := q.jobs[job.RouteID]
	if !ok {
		entry = newJobEntry(job)
		q.jobs[job.RouteID] = entry
	}
	if entry.job.ID != job.ID {
		if job.SubmittedAt.Before(entry.job.SubmittedAt) {
			return nil
		}
		// newer job from another instance
		if entry.active() {
			entry.trigger(jobEventCancel)
		}
		entry = newJobEntry(job)
		q.jobs[job.RouteID] = entry
	}
	if entry.state() != JobQueued {
		return nil
	}
	return entry
}

func (q *Queue) run(job Job) {
	entry := q.claim(job)
	if entry == nil {
		q.logger.Debug("skipping stale pipeline job", zap.String("route_id", job.RouteID), zap.String("job_id", job.ID))
		return
	}

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if q.opts.JobTimeout > 0 {
		ctx, cancel = context.WithTimeout(q.ctx, q.opts.JobTimeout)
	} else {
		ctx, cancel = context.WithCancel(q.ctx)
	}
	defer cancel()
	entry.setCancel(cancel)
	if !entry.trigger(jobEventStart) {
		return
	}
	defer close(entry.done)

	logger := q.logger.With(zap.String("route_id", job.RouteID), zap.String("job_id", job.ID))
	logger.Info("pipeline job started")
	err := q.processor.Process(ctx, job.RouteID)

	switch {
	case err == nil:
		if entry.trigger(jobEventFinish) {
			q.metrics.JobFinished(JobDone)
			logger.Info("pipeline job done")
		}
	case entry.state() == JobCancelled:
		logger.Info("pipeline job cancelled")
	default:
		entry.mu.Lock()
		entry.err = err.Error()
		entry.mu.Unlock()
		if entry.trigger(jobEventFail) {
			q.metrics.JobFinished(JobFailed)
			logger.Warn("pipeline job failed", zap.Error(err))
		}
	}
}

// Recover resubmits routes left in processing by a previous process, such as
// after a crash or a shutdown with jobs still queued. Only routes not updated
// for at least idle are picked up.
func (q *Queue) Recover(ctx context.Context, routes repository.RouteStore, idle time.Duration) (int, error) {
	stuck, _, err := routes.List(ctx, repository.RouteFilter{Status: models.RouteStatusProcessing}, 0, 0)
	if err != nil {
		return 0, fmt.Errorf("list processing routes: %w", err)
	}
	cutoff := time.Now().Add(-idle)
	n := 0
	for _, r := range stuck {
		if idle > 0 && r.LastUpdated.After(cutoff) {
			continue
		}
		if _, ok := q.Status(r.RouteID); ok {
			continue
		}
		if _, err := q.Submit(ctx, r.RouteID); err != nil {
			return n, err
		}
		n++
	}
	if n > 0 {
		q.logger.Info("resubmitted routes left processing", zap.Int("count", n))
	}
	return n, nil
}
