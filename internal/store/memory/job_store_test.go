package memory

import (
	"context"
	"testing"

	"github.com/quizforge/quizd/internal/quiz"
)

func TestJobLifecycle(t *testing.T) {
	t.Parallel()

	s := NewJobStore()
	ctx := context.Background()

	job := quiz.Job{ID: "job-1", Status: quiz.JobStatusQueued}
	if err := s.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}
	if err := s.CreateJob(ctx, job); err == nil {
		t.Fatal("expected duplicate create to fail")
	}

	if err := s.UpdateJobStatus(ctx, "job-1", quiz.JobStatusRunning, "", quiz.ChainCounters{}); err != nil {
		t.Fatalf("UpdateJobStatus(running) error = %v", err)
	}
	got, err := s.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if got.Started == nil {
		t.Fatal("expected started timestamp after running")
	}
	if got.Finished != nil {
		t.Fatal("running job should not be finished")
	}

	counters := quiz.ChainCounters{QuizzesSolved: 3, Attempts: 4, WrongAnswers: 1}
	if err := s.UpdateJobStatus(ctx, "job-1", quiz.JobStatusSucceeded, "", counters); err != nil {
		t.Fatalf("UpdateJobStatus(succeeded) error = %v", err)
	}
	got, err = s.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if got.Finished == nil {
		t.Fatal("expected finished timestamp after terminal status")
	}
	if got.Counters != counters {
		t.Fatalf("counters = %+v, want %+v", got.Counters, counters)
	}
}

func TestUpdateUnknownJob(t *testing.T) {
	t.Parallel()

	s := NewJobStore()
	err := s.UpdateJobStatus(context.Background(), "missing", quiz.JobStatusRunning, "", quiz.ChainCounters{})
	if err == nil {
		t.Fatal("expected error for unknown job")
	}
}

func TestRecordAndListAttempts(t *testing.T) {
	t.Parallel()

	s := NewJobStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rec := quiz.AttemptRecord{JobID: "job-1", Sequence: i + 1, Answer: "42"}
		if err := s.RecordAttempt(ctx, rec); err != nil {
			t.Fatalf("RecordAttempt() error = %v", err)
		}
	}

	attempts, err := s.ListAttempts(ctx, "job-1")
	if err != nil {
		t.Fatalf("ListAttempts() error = %v", err)
	}
	if len(attempts) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(attempts))
	}
	if attempts[2].Sequence != 3 {
		t.Fatalf("attempts out of order: %+v", attempts)
	}

	// The returned slice is a copy.
	attempts[0].Answer = "mutated"
	fresh, err := s.ListAttempts(ctx, "job-1")
	if err != nil {
		t.Fatalf("ListAttempts() error = %v", err)
	}
	if fresh[0].Answer != "42" {
		t.Fatal("ListAttempts must return a defensive copy")
	}
}
