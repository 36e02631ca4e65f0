package server

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nightlifeflyers/flyerstudio/internal/cutout"
	"github.com/nightlifeflyers/flyerstudio/internal/store"
)

// JobState represents the current state of a job
type JobState string

const (
	StatePending   JobState = "pending"
	StateRunning   JobState = "running"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateCancelled JobState = "cancelled"
)

// Finished reports whether the state is terminal.
func (s JobState) Finished() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Job is an asynchronous cleanup run. Config keeps the full source reference
// for the worker; Source is the display form sent to clients.
type Job struct {
	ID           string          `json:"id"`
	State        JobState        `json:"state"`
	Config       store.JobConfig `json:"-"`
	Source       string          `json:"source"`
	Params       cutout.Params   `json:"params"`
	Stages       []string        `json:"stages"`
	Completed    int             `json:"completedStages"`
	Width        int             `json:"width,omitempty"`
	Height       int             `json:"height,omitempty"`
	OpaquePixels int             `json:"opaquePixels"`
	StartTime    time.Time       `json:"startTime"`
	EndTime      *time.Time      `json:"endTime,omitempty"`
	Error        string          `json:"error,omitempty"`
}

// JobManager tracks jobs in memory. Accessors hand out copies so callers never
// race with the worker.
type JobManager struct {
	mu          sync.RWMutex
	jobs        map[string]*Job
	cancels     map[string]context.CancelFunc
	broadcaster *EventBroadcaster
}

// NewJobManager creates a new JobManager
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:        make(map[string]*Job),
		cancels:     make(map[string]context.CancelFunc),
		broadcaster: NewEventBroadcaster(),
	}
}

// CreateJob registers a pending job.
func (jm *JobManager) CreateJob(config store.JobConfig) Job {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	plan := config.Params.Plan()
	job := &Job{
		ID:        uuid.New().String(),
		State:     StatePending,
		Config:    config,
		Source:    store.DisplaySource(config.Source),
		Params:    config.Params,
		Stages:    plan.Stages(),
		StartTime: time.Now(),
	}
	jm.jobs[job.ID] = job
	return job.snapshot()
}

// Restore registers a finished job loaded from the store.
func (jm *JobManager) Restore(r *store.Result) {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	end := r.Timestamp
	jm.jobs[r.JobID] = &Job{
		ID:           r.JobID,
		State:        StateCompleted,
		Config:       r.Config,
		Source:       r.Config.Source,
		Params:       r.Config.Params,
		Stages:       r.Stages,
		Completed:    len(r.Stages),
		Width:        r.Width,
		Height:       r.Height,
		OpaquePixels: r.OpaquePixels,
		StartTime:    r.Timestamp.Add(-r.Duration),
		EndTime:      &end,
	}
}

// GetJob returns a copy of the job.
func (jm *JobManager) GetJob(id string) (Job, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	job, exists := jm.jobs[id]
	if !exists {
		return Job{}, false
	}
	return job.snapshot(), true
}

// ListJobs returns copies of all jobs, newest first.
func (jm *JobManager) ListJobs() []Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	jobs := make([]Job, 0, len(jm.jobs))
	for _, job := range jm.jobs {
		jobs = append(jobs, job.snapshot())
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].StartTime.After(jobs[j].StartTime) })
	return jobs
}

// UpdateJob atomically updates a job using the provided function
func (jm *JobManager) UpdateJob(id string, updateFn func(*Job)) error {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job, exists := jm.jobs[id]
	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}

	updateFn(job)
	return nil
}

// GetRunningJobs returns copies of all jobs in the running state.
func (jm *JobManager) GetRunningJobs() []Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	running := make([]Job, 0)
	for _, job := range jm.jobs {
		if job.State == StateRunning {
			running = append(running, job.snapshot())
		}
	}
	return running
}

// setCancel records how to stop a job's worker.
func (jm *JobManager) setCancel(id string, cancel context.CancelFunc) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	jm.cancels[id] = cancel
}

// Cancel stops a job's worker if it is still running.
func (jm *JobManager) Cancel(id string) bool {
	jm.mu.Lock()
	cancel, ok := jm.cancels[id]
	delete(jm.cancels, id)
	jm.mu.Unlock()

	if ok {
		cancel()
	}
	return ok
}

// CancelAll stops every running worker.
func (jm *JobManager) CancelAll() {
	jm.mu.Lock()
	cancels := jm.cancels
	jm.cancels = make(map[string]context.CancelFunc)
	jm.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// RemoveJob forgets a job and drops its stream subscribers.
func (jm *JobManager) RemoveJob(id string) bool {
	jm.Cancel(id)

	jm.mu.Lock()
	_, exists := jm.jobs[id]
	delete(jm.jobs, id)
	jm.mu.Unlock()

	jm.broadcaster.CleanupJob(id)
	return exists
}

func (j *Job) snapshot() Job {
	c := *j
	c.Stages = append([]string(nil), j.Stages...)
	if j.EndTime != nil {
		end := *j.EndTime
		c.EndTime = &end
	}
	return c
}
