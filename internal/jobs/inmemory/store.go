package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dvloznov/bookkeeper/internal/jobs"
)

// ErrJobNotFound is returned for ids the store has never seen.
var ErrJobNotFound = errors.New("job not found")

// Store keeps book job states in memory for the life of the process.
// Jobs are held by value, so callers never share state with the store.
// It is safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]jobs.BookJob
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		jobs: make(map[string]jobs.BookJob),
	}
}

// SaveJob records the current state of job, replacing any earlier state
// under the same id.
func (s *Store) SaveJob(ctx context.Context, job *jobs.BookJob) error {
	if job.JobID == "" {
		return fmt.Errorf("SaveJob: job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.JobID] = *job
	return nil
}

// GetJob returns a copy of the job with the given id.
func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.BookJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("GetJob %s: %w", jobID, ErrJobNotFound)
	}
	return &job, nil
}

// ListJobs returns the jobs matching filter, oldest first. Jobs created at
// the same instant are ordered by id.
func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.BookJob, error) {
	s.mu.RLock()
	result := make([]*jobs.BookJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		if matches(filter, job) {
			job := job
			result = append(result, &job)
		}
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.JobID < b.JobID
	})
	return page(result, filter.Offset, filter.Limit), nil
}

// UpdateJobStatus moves a job to status. A non-empty errorMsg replaces the
// recorded error, and a job that ends without having run gets its
// completion time set here.
func (s *Store) UpdateJobStatus(ctx context.Context, jobID string, status jobs.JobStatus, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("UpdateJobStatus %s: %w", jobID, ErrJobNotFound)
	}

	job.Status = status
	if errorMsg != "" {
		job.Error = errorMsg
	}
	if done := status == jobs.JobStatusCompleted || status == jobs.JobStatusFailed; done && job.CompletedAt == nil {
		now := time.Now()
		job.CompletedAt = &now
	}
	s.jobs[jobID] = job
	return nil
}

func matches(filter jobs.JobFilter, job jobs.BookJob) bool {
	if filter.Type != "" && job.Type != filter.Type {
		return false
	}
	return filter.Status == "" || job.Status == filter.Status
}

func page(list []*jobs.BookJob, offset, limit int) []*jobs.BookJob {
	if offset >= len(list) {
		return []*jobs.BookJob{}
	}
	if offset > 0 {
		list = list[offset:]
	}
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list
}

var _ jobs.JobStore = (*Store)(nil)
