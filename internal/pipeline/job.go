package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/looplab/fsm"
)

// Job states.
const (
	JobQueued    = "queued"
	JobRunning   = "running"
	JobDone      = "done"
	JobFailed    = "failed"
	JobCancelled = "cancelled"
)

const (
	jobEventStart  = "start"
	jobEventFinish = "finish"
	jobEventFail   = "fail"
	jobEventCancel = "cancel"
)

// Job is the unit handed to a dispatcher.
type Job struct {
	ID          string    `json:"id"`
	RouteID     string    `json:"route_id"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// JobInfo is a snapshot of a job's lifecycle.
type JobInfo struct {
	ID          string     `json:"job_id"`
	RouteID     string     `json:"route_id"`
	State       string     `json:"state"`
	Error       string     `json:"error,omitempty"`
	SubmittedAt time.Time  `json:"submitted_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

type jobEntry struct {
	mu     sync.Mutex
	job    Job
	fsm    *fsm.FSM
	cancel context.CancelFunc
	err    string

	started  *time.Time
	finished *time.Time
	// done is closed when a started job's processor returns.
	done chan struct{}
}

func newJobEntry(job Job) *jobEntry {
	return &jobEntry{
		job:  job,
		done: make(chan struct{}),
		fsm: fsm.NewFSM(
			JobQueued,
			fsm.Events{
				{Name: jobEventStart, Src: []string{JobQueued}, Dst: JobRunning},
				{Name: jobEventFinish, Src: []string{JobRunning}, Dst: JobDone},
				{Name: jobEventFail, Src: []string{JobRunning}, Dst: JobFailed},
				{Name: jobEventCancel, Src: []string{JobQueued, JobRunning}, Dst: JobCancelled},
			},
			fsm.Callbacks{},
		),
	}
}

// trigger fires event and reports whether the job moved.
func (e *jobEntry) trigger(event string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.fsm.Event(context.Background(), event); err != nil {
		return false
	}
	now := time.Now().UTC()
	switch e.fsm.Current() {
	case JobRunning:
		e.started = &now
	case JobDone, JobFailed, JobCancelled:
		e.finished = &now
		if e.cancel != nil {
			e.cancel()
		}
	}
	return true
}

func (e *jobEntry) state() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fsm.Current()
}

func (e *jobEntry) active() bool {
	s := e.state()
	return s == JobQueued || s == JobRunning
}

func (e *jobEntry) wasStarted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.started != nil
}

func (e *jobEntry) setCancel(cancel context.CancelFunc) {
	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()
}

func (e *jobEntry) info() JobInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	return JobInfo{
		ID:          e.job.ID,
		RouteID:     e.job.RouteID,
		State:       e.fsm.Current(),
		Error:       e.err,
		SubmittedAt: e.job.SubmittedAt,
		StartedAt:   e.started,
		FinishedAt:  e.finished,
	}
}
