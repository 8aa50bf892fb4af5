package search

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"patterndraw/internal/capture"
	"patterndraw/internal/criteria"
)

// Status of a dispatched search
type Status string

const (
	StatusRunning    Status = "running"
	StatusDone       Status = "done"
	StatusFailed     Status = "error"
	StatusSuperseded Status = "superseded"
)

// ErrNoSearch is returned by Wait when nothing was ever triggered
var ErrNoSearch = errors.New("no search triggered")

// Searcher runs one search synchronously
type Searcher interface {
	Search(ctx context.Context, q Query) (*Outcome, error)
}

// Job is a snapshot of a dispatched search
type Job struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Points     int       `json:"points"`
	Status     Status    `json:"status"`
	Outcome    *Outcome  `json:"outcome,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`

	err  error
	done chan struct{}
}

// Err returns the job's error, if it failed
func (j *Job) Err() error {
	return j.err
}

// Dispatcher runs searches in the background. Triggering a new search supersedes
// the one in flight; nothing else cancels it.
type Dispatcher struct {
	searcher Searcher
	timeout  time.Duration

	mu      sync.Mutex
	current *Job
	cancel  context.CancelFunc
}

// NewDispatcher creates a dispatcher; timeout bounds each search (0 means none)
func NewDispatcher(s Searcher, timeout time.Duration) *Dispatcher {
	return &Dispatcher{searcher: s, timeout: timeout}
}

// Trigger starts a search for q and returns its job id. Fewer than two waypoints
// are rejected here, before anything runs.
func (d *Dispatcher) Trigger(q Query) (string, error) {
	if len(q.Waypoints) < 2 {
		return "", criteria.ErrInsufficientPoints
	}
	q.Waypoints = append([]capture.Waypoint(nil), q.Waypoints...)

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if d.timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), d.timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}

	job := &Job{
		ID:        uuid.NewString(),
		Symbol:    q.Symbol,
		Points:    len(q.Waypoints),
		Status:    StatusRunning,
		StartedAt: time.Now(),
		done:      make(chan struct{}),
	}

	d.mu.Lock()
	if d.current != nil && d.current.Status == StatusRunning {
		d.current.Status = StatusSuperseded
		d.cancel()
	}
	d.current = job
	d.cancel = cancel
	d.mu.Unlock()

	go d.run(ctx, cancel, job, q)
	return job.ID, nil
}

func (d *Dispatcher) run(ctx context.Context, cancel context.CancelFunc, job *Job, q Query) {
	defer cancel()
	defer close(job.done)

	outcome, err := d.searcher.Search(ctx, q)

	d.mu.Lock()
	defer d.mu.Unlock()
	job.FinishedAt = time.Now()
	if job.Status == StatusSuperseded {
		// a newer search owns the result slot
		return
	}
	if err != nil {
		job.Status = StatusFailed
		job.err = err
		job.Error = err.Error()
		return
	}
	job.Status = StatusDone
	job.Outcome = outcome
}

// Current returns a snapshot of the latest job
func (d *Dispatcher) Current() (Job, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == nil {
		return Job{}, false
	}
	return *d.current, true
}

// Wait blocks until the latest job finishes or ctx is done
func (d *Dispatcher) Wait(ctx context.Context) (Job, error) {
	d.mu.Lock()
	job := d.current
	d.mu.Unlock()
	if job == nil {
		return Job{}, ErrNoSearch
	}

	select {
	case <-job.done:
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return *job, nil
}

// Stop cancels the search in flight, if any
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current != nil && d.current.Status == StatusRunning {
		d.current.Status = StatusSuperseded
		d.cancel()
	}
}
