// Package memory provides an in-memory job store for development and tests.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/quizforge/quizd/internal/quiz"
)

// JobStore provides an in-memory implementation for development/testing.
type JobStore struct {
	mu       sync.RWMutex
	jobs     map[string]quiz.Job
	attempts map[string][]quiz.AttemptRecord
}

// NewJobStore constructs a JobStore.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs:     make(map[string]quiz.Job),
		attempts: make(map[string][]quiz.AttemptRecord),
	}
}

// CreateJob stores a new job in queued status.
func (s *JobStore) CreateJob(_ context.Context, job quiz.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return errors.New("job already exists")
	}
	s.jobs[job.ID] = job
	return nil
}

// UpdateJobStatus updates the status and counters for a job.
func (s *JobStore) UpdateJobStatus(
	_ context.Context,
	jobID string,
	status quiz.JobStatus,
	errText string,
	counters quiz.ChainCounters,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return errors.New("job not found")
	}
	job.Status = status
	job.ErrorText = errText
	job.Counters = counters
	now := time.Now().UTC()
	if status == quiz.JobStatusRunning && job.Started == nil {
		job.Started = pointerTime(now)
	}
	if isTerminal(status) {
		job.Finished = pointerTime(now)
	}
	s.jobs[jobID] = job
	return nil
}

// RecordAttempt appends an attempt row for a job.
func (s *JobStore) RecordAttempt(_ context.Context, attempt quiz.AttemptRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[attempt.JobID] = append(s.attempts[attempt.JobID], attempt)
	return nil
}

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(_ context.Context, jobID string) (quiz.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return quiz.Job{}, errors.New("job not found")
	}
	return job, nil
}

// ListAttempts returns all recorded attempts for a job.
func (s *JobStore) ListAttempts(_ context.Context, jobID string) ([]quiz.AttemptRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attempts := s.attempts[jobID]
	out := make([]quiz.AttemptRecord, len(attempts))
	copy(out, attempts)
	return out, nil
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}

func isTerminal(status quiz.JobStatus) bool {
	switch status {
	case quiz.JobStatusSucceeded, quiz.JobStatusFailed, quiz.JobStatusCanceled:
		return true
	default:
		return false
	}
}
