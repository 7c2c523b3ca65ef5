package web

import (
	"sync"
	"time"

	"github.com/desertthunder/crossfade/internal/shared"
	"github.com/desertthunder/crossfade/internal/tasks"
)

// finished jobs are dropped from the registry after this long
const jobRetention = time.Hour

// Job is one asynchronous conversion started through the API.
type Job struct {
	ID        string
	Flow      *tasks.Flow
	CreatedAt time.Time

	mu      sync.Mutex
	message string
	changed chan struct{}
}

func newJob() *Job {
	return &Job{
		ID:        shared.GenerateID(),
		Flow:      tasks.NewFlow(),
		CreatedAt: time.Now(),
		changed:   make(chan struct{}),
	}
}

// Changed returns a channel that is closed on the next update.
func (j *Job) Changed() <-chan struct{} {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.changed
}

// Message is the latest progress message.
func (j *Job) Message() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.message
}

// notify wakes every waiter on Changed.
func (j *Job) notify(message string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if message != "" {
		j.message = message
	}
	close(j.changed)
	j.changed = make(chan struct{})
}

// follow forwards progress updates to waiters until progress is closed.
func (j *Job) follow(progress <-chan tasks.ProgressUpdate) {
	for u := range progress {
		j.notify(u.Message)
	}
}

// Registry holds running and recently finished jobs in memory.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	now  func() time.Time
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*Job), now: time.Now}
}

// New registers a fresh job and prunes expired finished ones.
func (r *Registry) New() *Job {
	job := newJob()

	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-jobRetention)
	for id, j := range r.jobs {
		if j.CreatedAt.Before(cutoff) && j.Flow.State().Terminal() {
			delete(r.jobs, id)
		}
	}
	r.jobs[job.ID] = job
	return job
}

// Get looks up a job by id.
func (r *Registry) Get(id string) (*Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	return j, ok
}

// Len is the number of tracked jobs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}
