// Package quiz defines core types shared across subsystems.
package quiz

import (
	"context"
	"io"
	"net/http"
	"time"
)

// JobStatus represents the lifecycle state of a quiz-chain job.
type JobStatus string

// Job status values persisted in the job store.
const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCanceled  JobStatus = "canceled"
)

// JobParameters captures per-job configuration knobs requested by the client.
// The shared secret travels on the QueueItem, never on the persisted job.
type JobParameters struct {
	URL             string            `json:"url"`
	Email           string            `json:"email"`
	BudgetSeconds   int               `json:"budget_seconds"`
	MaxQuizzes      int               `json:"max_quizzes"`
	MaxWrongRetries int               `json:"max_wrong_retries"`
	Tags            map[string]string `json:"tags,omitempty"`
}

// Job represents the metadata persisted for each submitted quiz-chain request.
type Job struct {
	ID         string        `json:"id"`
	Status     JobStatus     `json:"status"`
	Submitted  time.Time     `json:"submitted_at"`
	Started    *time.Time    `json:"started_at,omitempty"`
	Finished   *time.Time    `json:"finished_at,omitempty"`
	ErrorText  string        `json:"error_text,omitempty"`
	Parameters JobParameters `json:"parameters"`
	Counters   ChainCounters `json:"counters"`
}

// ChainCounters tracks progress stats per chain.
type ChainCounters struct {
	QuizzesSolved  int `json:"quizzes_solved"`
	Attempts       int `json:"attempts"`
	WrongAnswers   int `json:"wrong_answers"`
	SourcesFailed  int `json:"sources_failed"`
	RenderFallback int `json:"render_fallbacks"`
}

// QueueItem is the unit of work handed to the worker pool.
type QueueItem struct {
	JobID     string
	Params    JobParameters
	Secret    string
	Attempt   int
	Submitted int64
}

// Page is the result of fetching or rendering a single URL.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Headers    http.Header
	Body       []byte
	UsedJS     bool
	Duration   time.Duration
}

// ParsedQuiz is the structured view of a quiz page extracted by the model.
type ParsedQuiz struct {
	Question     string   `json:"question"`
	SubmitURL    string   `json:"submit_url"`
	DataSources  []string `json:"data_sources"`
	AnswerURL    string   `json:"answer_url_json"`
	QuestionType string   `json:"question_type,omitempty"`
}

// SubmitOutcome is the grader's response to one answer submission.
type SubmitOutcome struct {
	Correct bool   `json:"correct"`
	NextURL string `json:"url"`
	Message string `json:"message,omitempty"`
}

// AttemptRecord is persisted for each answer submission in a chain.
type AttemptRecord struct {
	JobID       string    `json:"job_id"`
	QuizURL     string    `json:"quiz_url"`
	Sequence    int       `json:"sequence"`
	Question    string    `json:"question"`
	Answer      string    `json:"answer"`
	Correct     bool      `json:"correct"`
	SubmittedAt time.Time `json:"submitted_at"`
	DurationMs  int64     `json:"duration_ms"`
	ContentHash string    `json:"content_hash"`
	BlobURI     string    `json:"blob_uri"`
	ErrorText   string    `json:"error_text,omitempty"`
}

// Queue moves queue items between the API and the worker pool.
type Queue interface {
	Enqueue(ctx context.Context, item QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
}

// JobStore persists jobs and their attempt logs.
type JobStore interface {
	CreateJob(ctx context.Context, job Job) error
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errText string, counters ChainCounters) error
	RecordAttempt(ctx context.Context, attempt AttemptRecord) error
	GetJob(ctx context.Context, jobID string) (Job, error)
	ListAttempts(ctx context.Context, jobID string) ([]AttemptRecord, error)
}

// BlobStore persists raw page snapshots.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher emits chain events to an external topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Renderer produces a DOM snapshot of a URL with JavaScript executed.
type Renderer interface {
	Render(ctx context.Context, rawURL string) (Page, error)
	Close(ctx context.Context) error
}

// Fetcher retrieves a URL over plain HTTP.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Page, error)
}

// RetryPolicy decides whether and when a failed operation is retried.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// Clock abstracts time.Now for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator mints job identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// Hasher produces content digests for blob paths.
type Hasher interface {
	Hash(data []byte) (string, error)
}
