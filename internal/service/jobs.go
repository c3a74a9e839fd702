package service

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the state of a background job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Job tracks one upload run. Progress counts journal days.
type Job struct {
	ID          string
	Status      JobStatus
	From        string
	To          string
	Progress    int
	Total       int
	CurrentDay  string
	Result      *UploadResult
	Error       string
	StartedAt   time.Time
	CompletedAt *time.Time

	mu sync.RWMutex
}

// JobManager tracks upload jobs in memory.
type JobManager struct {
	jobs   map[string]*Job
	mu     sync.RWMutex
	logger *slog.Logger
}

// NewJobManager creates an empty job manager. A nil logger uses slog.Default().
func NewJobManager(logger *slog.Logger) *JobManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobManager{
		jobs:   make(map[string]*Job),
		logger: logger,
	}
}

// CreateJob registers a pending upload job for the date range.
func (m *JobManager) CreateJob(from, to string) *Job {
	job := &Job{
		ID:        uuid.New().String()[:8],
		Status:    JobStatusPending,
		From:      from,
		To:        to,
		StartedAt: time.Now(),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	m.logger.Debug("job created", "job_id", job.ID, "from", from, "to", to)
	return job
}

// GetJob retrieves a job by ID.
func (m *JobManager) GetJob(id string) *Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}

// ListJobs returns all jobs, most recent first.
func (m *JobManager) ListJobs() []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job)
	}
	slices.SortFunc(jobs, func(a, b *Job) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	return jobs
}

// UpdateProgress records that current of total days are done.
func (m *JobManager) UpdateProgress(job *Job, current, total int, day string) {
	job.mu.Lock()
	defer job.mu.Unlock()
	job.Progress = current
	job.Total = total
	job.CurrentDay = day
	if job.Status == JobStatusPending {
		job.Status = JobStatusRunning
	}
}

// Complete marks job as completed with result.
func (m *JobManager) Complete(job *Job, result *UploadResult) {
	job.mu.Lock()
	job.Status = JobStatusCompleted
	job.Result = result
	now := time.Now()
	job.CompletedAt = &now
	job.mu.Unlock()

	m.logger.Info("job completed", "job_id", job.ID, "days", result.Days, "chunks", result.Chunks, "errors", len(result.Errors))
}

// Fail marks job as failed with error. A partial result is kept when non-nil.
func (m *JobManager) Fail(job *Job, result *UploadResult, err error) {
	job.mu.Lock()
	job.Status = JobStatusFailed
	job.Result = result
	job.Error = err.Error()
	now := time.Now()
	job.CompletedAt = &now
	job.mu.Unlock()

	m.logger.Error("job failed", "job_id", job.ID, "error", err)
}

// Run executes an upload as a tracked job in the background. The returned
// job can be polled with Snapshot until it is completed or failed.
func (m *JobManager) Run(job *Job, run func(progress ProgressFunc) (*UploadResult, error)) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				m.logger.Error("upload goroutine panicked", "job_id", job.ID, "panic", r)
				m.Fail(job, nil, fmt.Errorf("internal panic: %v", r))
			}
		}()

		result, err := run(func(current, total int, day string) {
			m.UpdateProgress(job, current, total, day)
		})
		if err != nil {
			m.Fail(job, result, err)
			return
		}
		m.Complete(job, result)
	}()
}

// Done reports whether the job has finished.
func (j *Job) Done() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// Snapshot returns a thread-safe copy of job state.
func (j *Job) Snapshot() Job {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return Job{
		ID:          j.ID,
		Status:      j.Status,
		From:        j.From,
		To:          j.To,
		Progress:    j.Progress,
		Total:       j.Total,
		CurrentDay:  j.CurrentDay,
		Result:      j.Result,
		Error:       j.Error,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
}
