package api

import (
	"context"
	"sync"
	"time"

	"spo-preflight/internal/models"
	"spo-preflight/internal/runner"
	"spo-preflight/internal/scanner"
)

// JobState is the lifecycle state of a scan job
type JobState string

const (
	StateRunning   JobState = "running"
	StateCompleted JobState = "completed"
	StateCancelled JobState = "cancelled"
	StateFailed    JobState = "failed"
)

// Job is one scan started through the API
type Job struct {
	ID         string
	Root       string
	ReportPath string
	StartedAt  time.Time

	mu         sync.Mutex
	state      JobState
	scanner    *scanner.Scanner
	outcome    *runner.Outcome
	err        error
	finishedAt time.Time
	cancel     context.CancelFunc
	done       chan struct{}
}

// Status is the JSON view of a job
type Status struct {
	ID         string               `json:"id"`
	State      JobState             `json:"state"`
	Root       string               `json:"root"`
	ReportPath string               `json:"reportPath"`
	StartedAt  time.Time            `json:"startedAt"`
	FinishedAt *time.Time           `json:"finishedAt,omitempty"`
	Progress   *models.ScanProgress `json:"progress,omitempty"`
	Outcome    *runner.Outcome      `json:"outcome,omitempty"`
	Error      string               `json:"error,omitempty"`
}

func newJob(id, root, reportPath string, cancel context.CancelFunc) *Job {
	return &Job{
		ID:         id,
		Root:       root,
		ReportPath: reportPath,
		StartedAt:  time.Now(),
		state:      StateRunning,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

func (j *Job) setScanner(s *scanner.Scanner) {
	j.mu.Lock()
	j.scanner = s
	j.mu.Unlock()
}

func (j *Job) finish(out *runner.Outcome, err error) {
	j.mu.Lock()
	j.outcome = out
	j.err = err
	j.finishedAt = time.Now()
	switch {
	case err != nil:
		j.state = StateFailed
	case out != nil && out.Result != nil && out.Result.Cancelled:
		j.state = StateCancelled
	default:
		j.state = StateCompleted
	}
	j.mu.Unlock()
	close(j.done)
}

// Cancel asks a running job to stop. It reports false when the job had
// already finished.
func (j *Job) Cancel() bool {
	select {
	case <-j.done:
		return false
	default:
	}
	j.cancel()
	return true
}

// Done is closed once the job has finished
func (j *Job) Done() <-chan struct{} { return j.done }

// Status returns a snapshot of the job
func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()

	st := Status{
		ID:         j.ID,
		State:      j.state,
		Root:       j.Root,
		ReportPath: j.ReportPath,
		StartedAt:  j.StartedAt,
		Outcome:    j.outcome,
	}
	if !j.finishedAt.IsZero() {
		finished := j.finishedAt
		st.FinishedAt = &finished
	}
	if j.outcome != nil && j.outcome.Result != nil {
		progress := j.outcome.Result.Progress
		st.Progress = &progress
	} else if j.scanner != nil {
		progress := j.scanner.GetProgress()
		st.Progress = &progress
	}
	if j.err != nil {
		st.Error = j.err.Error()
	}
	return st
}

// registry holds jobs in start order
type registry struct {
	mu    sync.RWMutex
	jobs  map[string]*Job
	order []string
}

func newRegistry() *registry {
	return &registry{jobs: make(map[string]*Job)}
}

func (r *registry) add(job *Job) {
	r.mu.Lock()
	r.jobs[job.ID] = job
	r.order = append(r.order, job.ID)
	r.mu.Unlock()
}

func (r *registry) get(id string) (*Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	return job, ok
}

func (r *registry) list() []*Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	jobs := make([]*Job, 0, len(r.order))
	for _, id := range r.order {
		jobs = append(jobs, r.jobs[id])
	}
	return jobs
}
