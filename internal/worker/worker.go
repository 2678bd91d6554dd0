// Package worker implements the quiz chain execution loop.
package worker

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/quizforge/quizd/internal/quiz"
	"github.com/quizforge/quizd/internal/solver"
)

// Worker consumes queue items and runs one quiz chain per item.
type Worker struct {
	queue    quiz.Queue
	store    quiz.JobStore
	engine   *solver.Engine
	registry *Registry
	logger   *zap.Logger
}

// New constructs a Worker. The registry may be nil when cancellation of
// running chains is not needed.
func New(queue quiz.Queue, store quiz.JobStore, engine *solver.Engine, registry *Registry, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:    queue,
		store:    store,
		engine:   engine,
		registry: registry,
		logger:   logger,
	}
}

// Run blocks, consuming queue items until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued job", zap.String("job_id", item.JobID))
		w.processJob(ctx, item)
	}
}

func (w *Worker) processJob(ctx context.Context, item quiz.QueueItem) {
	// A job canceled while still queued must not start.
	if job, err := w.store.GetJob(ctx, item.JobID); err == nil && job.Status == quiz.JobStatusCanceled {
		w.logger.Info("skipping canceled job", zap.String("job_id", item.JobID))
		return
	}

	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if w.registry != nil {
		w.registry.register(item.JobID, cancel)
		defer w.registry.release(item.JobID)
	}

	if err := w.store.UpdateJobStatus(jobCtx, item.JobID, quiz.JobStatusRunning, "", quiz.ChainCounters{}); err != nil {
		w.logger.Error("update job status failed", zap.String("job_id", item.JobID), zap.Error(err))
		return
	}

	counters, runErr := w.engine.Run(jobCtx, item)
	status, errText := deriveFinalStatus(jobCtx, runErr)

	// Status writes outlive a canceled run context.
	if err := w.store.UpdateJobStatus(context.WithoutCancel(jobCtx), item.JobID, status, errText, counters); err != nil {
		w.logger.Error("final job status update failed", zap.String("job_id", item.JobID), zap.Error(err))
	}
	w.logger.Info("job finished",
		zap.String("job_id", item.JobID),
		zap.String("status", string(status)),
		zap.Int("quizzes_solved", counters.QuizzesSolved))
}

func deriveFinalStatus(ctx context.Context, runErr error) (quiz.JobStatus, string) {
	switch {
	case runErr == nil:
		return quiz.JobStatusSucceeded, ""
	case ctx.Err() != nil && errors.Is(runErr, context.Canceled):
		return quiz.JobStatusCanceled, runErr.Error()
	default:
		return quiz.JobStatusFailed, runErr.Error()
	}
}
