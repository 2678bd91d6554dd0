package worker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	queuemem "github.com/quizforge/quizd/internal/queue/memory"
	"github.com/quizforge/quizd/internal/quiz"
	"github.com/quizforge/quizd/internal/solver"
	storemem "github.com/quizforge/quizd/internal/store/memory"
)

type emptyFetcher struct{}

func (emptyFetcher) Fetch(_ context.Context, rawURL string) (quiz.Page, error) {
	return quiz.Page{}, fmt.Errorf("no route to %s", rawURL)
}

type silentModel struct{}

func (silentModel) GenerateText(_ context.Context, _ string) (string, error) {
	return "", fmt.Errorf("model unavailable")
}

func (silentModel) TranscribeAudio(_ context.Context, _ []byte, _ string) (string, error) {
	return "", fmt.Errorf("model unavailable")
}

func newEngine(t *testing.T, store quiz.JobStore, cfg solver.Config) *solver.Engine {
	t.Helper()
	engine, err := solver.New(cfg, solver.Deps{
		Fetcher:  emptyFetcher{},
		Model:    silentModel{},
		JobStore: store,
	})
	require.NoError(t, err)
	return engine
}

func TestProcessJobFailure(t *testing.T) {
	t.Parallel()

	store := storemem.NewJobStore()
	require.NoError(t, store.CreateJob(context.Background(), quiz.Job{
		ID:     "job-1",
		Status: quiz.JobStatusQueued,
	}))

	w := New(queuemem.NewQueue(1), store, newEngine(t, store, solver.Config{}), nil, nil)
	w.processJob(context.Background(), quiz.QueueItem{
		JobID:  "job-1",
		Params: quiz.JobParameters{URL: "http://unreachable.test/quiz"},
	})

	job, err := store.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, quiz.JobStatusFailed, job.Status)
	assert.Contains(t, job.ErrorText, "load quiz page")
}

func TestProcessJobBudgetExpiryIsSuccess(t *testing.T) {
	t.Parallel()

	store := storemem.NewJobStore()
	require.NoError(t, store.CreateJob(context.Background(), quiz.Job{
		ID:     "job-2",
		Status: quiz.JobStatusQueued,
	}))

	engine := newEngine(t, store, solver.Config{ChainBudget: time.Nanosecond})
	w := New(queuemem.NewQueue(1), store, engine, nil, nil)

	time.Sleep(time.Millisecond)
	w.processJob(context.Background(), quiz.QueueItem{
		JobID:  "job-2",
		Params: quiz.JobParameters{URL: "http://quiz.test/1"},
	})

	job, err := store.GetJob(context.Background(), "job-2")
	require.NoError(t, err)
	assert.Equal(t, quiz.JobStatusSucceeded, job.Status)
}

// waitingFetcher blocks until the request context finishes.
type waitingFetcher struct{}

func (waitingFetcher) Fetch(ctx context.Context, _ string) (quiz.Page, error) {
	<-ctx.Done()
	return quiz.Page{}, ctx.Err()
}

func TestProcessJobCanceledContext(t *testing.T) {
	t.Parallel()

	store := storemem.NewJobStore()
	require.NoError(t, store.CreateJob(context.Background(), quiz.Job{
		ID:     "job-3",
		Status: quiz.JobStatusRunning,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := New(queuemem.NewQueue(1), store, newEngine(t, store, solver.Config{}), nil, nil)
	w.processJob(ctx, quiz.QueueItem{
		JobID:  "job-3",
		Params: quiz.JobParameters{URL: "http://quiz.test/1"},
	})

	job, err := store.GetJob(context.Background(), "job-3")
	require.NoError(t, err)
	assert.Equal(t, quiz.JobStatusCanceled, job.Status)
}

func TestRegistryCancelStopsRunningJob(t *testing.T) {
	t.Parallel()

	store := storemem.NewJobStore()
	require.NoError(t, store.CreateJob(context.Background(), quiz.Job{
		ID:     "job-4",
		Status: quiz.JobStatusQueued,
	}))

	engine, err := solver.New(solver.Config{}, solver.Deps{
		Fetcher:  waitingFetcher{},
		Model:    silentModel{},
		JobStore: store,
	})
	require.NoError(t, err)

	registry := NewRegistry()
	w := New(queuemem.NewQueue(1), store, engine, registry, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.processJob(context.Background(), quiz.QueueItem{
			JobID:  "job-4",
			Params: quiz.JobParameters{URL: "http://quiz.test/slow"},
		})
	}()

	require.Eventually(t, func() bool {
		return registry.Cancel("job-4")
	}, 2*time.Second, 10*time.Millisecond, "job never registered")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not stop after cancel")
	}

	job, err := store.GetJob(context.Background(), "job-4")
	require.NoError(t, err)
	assert.Equal(t, quiz.JobStatusCanceled, job.Status)
	assert.False(t, registry.Cancel("job-4"), "finished job should be released")
}

func TestProcessJobSkipsCanceledJob(t *testing.T) {
	t.Parallel()

	store := storemem.NewJobStore()
	require.NoError(t, store.CreateJob(context.Background(), quiz.Job{
		ID:        "job-5",
		Status:    quiz.JobStatusCanceled,
		ErrorText: "canceled via API",
	}))

	w := New(queuemem.NewQueue(1), store, newEngine(t, store, solver.Config{}), nil, nil)
	w.processJob(context.Background(), quiz.QueueItem{
		JobID:  "job-5",
		Params: quiz.JobParameters{URL: "http://quiz.test/1"},
	})

	job, err := store.GetJob(context.Background(), "job-5")
	require.NoError(t, err)
	assert.Equal(t, quiz.JobStatusCanceled, job.Status)
	assert.Equal(t, "canceled via API", job.ErrorText)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	store := storemem.NewJobStore()
	w := New(queuemem.NewQueue(1), store, newEngine(t, store, solver.Config{}), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}

func TestDeriveFinalStatus(t *testing.T) {
	t.Parallel()

	status, errText := deriveFinalStatus(context.Background(), nil)
	assert.Equal(t, quiz.JobStatusSucceeded, status)
	assert.Empty(t, errText)

	status, errText = deriveFinalStatus(context.Background(), fmt.Errorf("boom"))
	assert.Equal(t, quiz.JobStatusFailed, status)
	assert.Equal(t, "boom", errText)

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	status, _ = deriveFinalStatus(canceled, fmt.Errorf("run interrupted: %w", context.Canceled))
	assert.Equal(t, quiz.JobStatusCanceled, status)
}
