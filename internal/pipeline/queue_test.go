package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"journey-risk-api-server/internal/models"
	"journey-risk-api-server/internal/repository"

	"go.uber.org/zap"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	waitWithin(t, 2*time.Second, cond)
}

func waitWithin(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func stateOf(q *Queue, routeID string) string {
	info, ok := q.Status(routeID)
	if !ok {
		return ""
	}
	return info.State
}

func TestQueueRunsJobToDone(t *testing.T) {
	var ran int32
	q := NewQueue(NewChannelDispatcher(8), ProcessorFunc(func(ctx context.Context, routeID string) error {
		atomic.AddInt32(&ran, 1)
		return nil
	}), QueueOptions{Workers: 2}, nil, zap.NewNop())
	q.Start()
	defer q.Stop()

	info, err := q.Submit(context.Background(), "r1")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if info.State != JobQueued || info.ID == "" {
		t.Errorf("submitted info = %+v", info)
	}
	waitFor(t, func() bool { return stateOf(q, "r1") == JobDone })
	if got := atomic.LoadInt32(&ran); got != 1 {
		t.Errorf("processor ran %d times", got)
	}
	info, _ = q.Status("r1")
	if info.StartedAt == nil || info.FinishedAt == nil {
		t.Errorf("timestamps missing: %+v", info)
	}
}

func TestQueueRecordsFailure(t *testing.T) {
	q := NewQueue(NewChannelDispatcher(8), ProcessorFunc(func(context.Context, string) error {
		return errors.New("directions unavailable")
	}), QueueOptions{Workers: 1}, nil, zap.NewNop())
	q.Start()
	defer q.Stop()

	_, _ = q.Submit(context.Background(), "r1")
	waitFor(t, func() bool { return stateOf(q, "r1") == JobFailed })
	if info, _ := q.Status("r1"); info.Error != "directions unavailable" {
		t.Errorf("error = %q", info.Error)
	}
}

func TestQueueResubmitCancelsRunningJob(t *testing.T) {
	started := make(chan string, 4)
	var mu sync.Mutex
	cancelled := map[string]bool{}

	q := NewQueue(NewChannelDispatcher(8), ProcessorFunc(func(ctx context.Context, routeID string) error {
		started <- routeID
		select {
		case <-ctx.Done():
			mu.Lock()
			cancelled[routeID] = true
			mu.Unlock()
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
			return nil
		}
	}), QueueOptions{Workers: 2}, nil, zap.NewNop())
	q.Start()
	defer q.Stop()

	first, _ := q.Submit(context.Background(), "r1")
	<-started
	second, err := q.Submit(context.Background(), "r1")
	if err != nil {
		t.Fatal(err)
	}
	if first.ID == second.ID {
		t.Fatal("resubmit reused the job id")
	}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return cancelled["r1"]
	})
	waitFor(t, func() bool { return stateOf(q, "r1") == JobDone })
	if info, _ := q.Status("r1"); info.ID != second.ID {
		t.Errorf("status tracks job %s, want %s", info.ID, second.ID)
	}
}

func TestQueueCancel(t *testing.T) {
	block := make(chan struct{})
	q := NewQueue(NewChannelDispatcher(8), ProcessorFunc(func(ctx context.Context, _ string) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-block:
			return nil
		}
	}), QueueOptions{Workers: 1}, nil, zap.NewNop())
	q.Start()
	defer q.Stop()
	defer close(block)

	_, _ = q.Submit(context.Background(), "r1")
	waitFor(t, func() bool { return stateOf(q, "r1") == JobRunning })
	if !q.Cancel(context.Background(), "r1") {
		t.Fatal("Cancel reported no active job")
	}
	if stateOf(q, "r1") != JobCancelled {
		t.Errorf("state = %s", stateOf(q, "r1"))
	}
	if q.Cancel(context.Background(), "r1") {
		t.Error("second Cancel should report false")
	}
	if q.Cancel(context.Background(), "unknown") {
		t.Error("Cancel of unknown route should report false")
	}
}

func TestQueueCancelledBeforeStartIsSkipped(t *testing.T) {
	var ran int32
	d := NewChannelDispatcher(8)
	q := NewQueue(d, ProcessorFunc(func(context.Context, string) error {
		atomic.AddInt32(&ran, 1)
		return nil
	}), QueueOptions{Workers: 1}, nil, zap.NewNop())

	_, _ = q.Submit(context.Background(), "r1")
	q.Cancel(context.Background(), "r1")
	q.Start()
	defer q.Stop()

	_, _ = q.Submit(context.Background(), "r2")
	waitFor(t, func() bool { return stateOf(q, "r2") == JobDone })
	if got := atomic.LoadInt32(&ran); got != 1 {
		t.Errorf("processor ran %d times, want 1", got)
	}
}

func TestQueueFullAndStopped(t *testing.T) {
	q := NewQueue(NewChannelDispatcher(1), ProcessorFunc(func(context.Context, string) error { return nil }),
		QueueOptions{Workers: 1}, nil, zap.NewNop())

	if _, err := q.Submit(context.Background(), "r1"); err != nil {
		t.Fatal(err)
	}
	if _, err := q.Submit(context.Background(), "r2"); !errors.Is(err, ErrQueueFull) {
		t.Errorf("err = %v, want ErrQueueFull", err)
	}
	if stateOf(q, "r2") != JobCancelled {
		t.Errorf("rejected job state = %s", stateOf(q, "r2"))
	}

	q.Start()
	q.Stop()
	if _, err := q.Submit(context.Background(), "r3"); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("err = %v, want ErrQueueClosed", err)
	}
}

func TestQueueJobTimeoutFailsRoute(t *testing.T) {
	store := repository.NewMemoryStore()
	seedRoute(t, store, "r-timeout")
	o := newOrchestrator(store, &recordingPublisher{})
	o.Directions = stalledDirections{}

	q := NewQueue(NewChannelDispatcher(8), o, QueueOptions{Workers: 1, JobTimeout: 50 * time.Millisecond}, nil, zap.NewNop())
	q.Start()
	defer q.Stop()

	if _, err := q.Submit(context.Background(), "r-timeout"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return stateOf(q, "r-timeout") == JobFailed })
	route, _ := store.Routes.Get(context.Background(), "r-timeout")
	if route.Status != models.RouteStatusFailed {
		t.Errorf("route status = %s, want failed", route.Status)
	}
}

func TestQueueRecoverResubmitsRoutesLeftProcessing(t *testing.T) {
	store := repository.NewMemoryStore()
	seedRoute(t, store, "r-left")
	ctx := context.Background()

	stalled := newOrchestrator(store, &recordingPublisher{})
	stalled.Directions = stalledDirections{}
	first := NewQueue(NewChannelDispatcher(8), stalled, QueueOptions{Workers: 1}, nil, zap.NewNop())
	first.Start()
	if _, err := first.Submit(ctx, "r-left"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return stateOf(first, "r-left") == JobRunning })
	first.Stop()

	route, _ := store.Routes.Get(ctx, "r-left")
	if route.Status != models.RouteStatusProcessing {
		t.Fatalf("status after shutdown = %s", route.Status)
	}

	second := NewQueue(NewChannelDispatcher(8), newOrchestrator(store, &recordingPublisher{}), QueueOptions{Workers: 1}, nil, zap.NewNop())
	second.Start()
	defer second.Stop()
	n, err := second.Recover(ctx, store.Routes, 0)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if n != 1 {
		t.Fatalf("recovered %d routes, want 1", n)
	}
	waitWithin(t, 15*time.Second, func() bool {
		r, _ := store.Routes.Get(ctx, "r-left")
		return r.Status == models.RouteStatusCompleted
	})
}

func TestQueueRecoverSkipsRecentlyUpdatedRoutes(t *testing.T) {
	store := repository.NewMemoryStore()
	seedRoute(t, store, "r-fresh")
	q := NewQueue(NewChannelDispatcher(8), ProcessorFunc(func(context.Context, string) error { return nil }),
		QueueOptions{Workers: 1}, nil, zap.NewNop())

	n, err := q.Recover(context.Background(), store.Routes, time.Hour)
	if err != nil || n != 0 {
		t.Errorf("Recover = %d, %v; want 0", n, err)
	}
}

func TestQueueCancelWaitsForRunningJob(t *testing.T) {
	var exited int32
	q := NewQueue(NewChannelDispatcher(8), ProcessorFunc(func(ctx context.Context, _ string) error {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		atomic.StoreInt32(&exited, 1)
		return ctx.Err()
	}), QueueOptions{Workers: 1}, nil, zap.NewNop())
	q.Start()
	defer q.Stop()

	_, _ = q.Submit(context.Background(), "r1")
	waitFor(t, func() bool { return stateOf(q, "r1") == JobRunning })
	if !q.Cancel(context.Background(), "r1") {
		t.Fatal("Cancel reported no active job")
	}
	if atomic.LoadInt32(&exited) != 1 {
		t.Error("Cancel returned before the processor exited")
	}
}
