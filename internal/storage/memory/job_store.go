// Package memory provides in-memory store implementations for development
// and testing.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bookscrape/catalog-crawler/internal/catalog"
)

// JobStore keeps job records in a map guarded by a RWMutex.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]catalog.Job
}

// NewJobStore constructs a JobStore.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]catalog.Job)}
}

// CreateJob stores a new job record.
func (s *JobStore) CreateJob(_ context.Context, job catalog.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	s.jobs[job.ID] = job
	return nil
}

// UpdateJobStatus updates status and message, refreshing UpdatedAt. Terminal
// jobs are never transitioned again.
func (s *JobStore) UpdateJobStatus(_ context.Context, jobID string, status catalog.JobStatus, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return catalog.ErrJobNotFound
	}
	if job.Status.Terminal() {
		return errors.New("job is already in a terminal state")
	}
	job.Status = status
	job.Message = message
	job.UpdatedAt = time.Now().UTC()
	s.jobs[jobID] = job
	return nil
}

// GetJob fetches a point-in-time snapshot of a job by ID.
func (s *JobStore) GetJob(_ context.Context, jobID string) (catalog.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return catalog.Job{}, catalog.ErrJobNotFound
	}
	return job, nil
}
