// Package dispatcher manages worker fan-out over the job queue.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/quizforge/quizd/internal/quiz"
	"github.com/quizforge/quizd/internal/worker"
)

// Dispatcher fans out queue work to a pool of workers.
type Dispatcher struct {
	queue    quiz.Queue
	workers  []*worker.Worker
	registry *worker.Registry
}

// New creates a Dispatcher. The registry may be nil when cancellation of
// running jobs is not needed.
func New(queue quiz.Queue, workers []*worker.Worker, registry *worker.Registry) *Dispatcher {
	return &Dispatcher{
		queue:    queue,
		workers:  workers,
		registry: registry,
	}
}

// Run starts all workers and blocks until the context finishes.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *worker.Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	<-ctx.Done()
	wg.Wait()
}

// Enqueue proxies to the underlying queue.
func (d *Dispatcher) Enqueue(ctx context.Context, item quiz.QueueItem) error {
	if err := d.queue.Enqueue(ctx, item); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}

// CancelJob stops the chain for jobID if a worker is currently running it.
// It reports whether a running chain was interrupted.
func (d *Dispatcher) CancelJob(jobID string) bool {
	if d.registry == nil {
		return false
	}
	return d.registry.Cancel(jobID)
}
