// Package solver runs quiz chains end to end: render, parse, gather
// sources, answer, submit, follow.
package solver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/quizforge/quizd/internal/extract"
	"github.com/quizforge/quizd/internal/llm"
	"github.com/quizforge/quizd/internal/quiz"
)

// EventsTopic is the publisher topic for chain lifecycle events.
const EventsTopic = "quiz-events"

// Config holds the solver's tunables. Budget, quiz cap, and wrong-answer
// bound are defaults; a queue item carrying its own values wins.
type Config struct {
	ChainBudget         time.Duration
	MaxQuizzes          int
	MaxWrongRetries     int
	SubmitTimeout       time.Duration
	SourceTimeout       time.Duration
	PDFPreviewBytes     int
	SnapshotContentType string
}

// Engine executes one quiz chain per queue item.
type Engine struct {
	renderer quiz.Renderer
	fetcher  quiz.Fetcher
	model    llm.Model
	blobs    quiz.BlobStore
	store    quiz.JobStore
	events   quiz.Publisher
	submit   *SubmitClient
	clock    quiz.Clock
	hasher   quiz.Hasher
	retry    quiz.RetryPolicy
	logger   *zap.Logger

	budget              time.Duration
	maxQuizzes          int
	maxWrongRetries     int
	sourceTimeout       time.Duration
	pdfPreviewBytes     int
	snapshotContentType string
}

// Deps bundles the engine's collaborators.
type Deps struct {
	Renderer  quiz.Renderer
	Fetcher   quiz.Fetcher
	Model     llm.Model
	BlobStore quiz.BlobStore
	JobStore  quiz.JobStore
	Publisher quiz.Publisher
	Clock     quiz.Clock
	Hasher    quiz.Hasher
	Retry     quiz.RetryPolicy
	Logger    *zap.Logger
}

// New builds an Engine.
func New(cfg Config, deps Deps) (*Engine, error) {
	if deps.Fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if deps.Model == nil {
		return nil, fmt.Errorf("model is required")
	}
	if deps.JobStore == nil {
		return nil, fmt.Errorf("job store is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.ChainBudget <= 0 {
		cfg.ChainBudget = 170 * time.Second
	}
	if cfg.MaxQuizzes <= 0 {
		cfg.MaxQuizzes = 100
	}
	if cfg.MaxWrongRetries <= 0 {
		cfg.MaxWrongRetries = 3
	}
	if cfg.SourceTimeout <= 0 {
		cfg.SourceTimeout = 15 * time.Second
	}
	if cfg.PDFPreviewBytes <= 0 {
		cfg.PDFPreviewBytes = 500
	}
	if cfg.SnapshotContentType == "" {
		cfg.SnapshotContentType = "text/html; charset=utf-8"
	}
	if deps.Retry == nil {
		deps.Retry = quiz.NewExponentialRetryPolicy()
	}
	return &Engine{
		renderer:            deps.Renderer,
		fetcher:             deps.Fetcher,
		model:               deps.Model,
		blobs:               deps.BlobStore,
		store:               deps.JobStore,
		events:              deps.Publisher,
		submit:              NewSubmitClient(cfg.SubmitTimeout),
		clock:               deps.Clock,
		hasher:              deps.Hasher,
		retry:               deps.Retry,
		logger:              deps.Logger,
		budget:              cfg.ChainBudget,
		maxQuizzes:          cfg.MaxQuizzes,
		maxWrongRetries:     cfg.MaxWrongRetries,
		sourceTimeout:       cfg.SourceTimeout,
		pdfPreviewBytes:     cfg.PDFPreviewBytes,
		snapshotContentType: cfg.SnapshotContentType,
	}, nil
}

// Run solves the chain described by the queue item. Per-job parameters on
// the item override the engine defaults. It returns the final counters
// together with a nil error when the chain stopped gracefully (finished,
// deadline elapsed, or quiz cap reached); cancellation of the caller's
// context and every other hard failure return a non-nil error.
func (e *Engine) Run(ctx context.Context, item quiz.QueueItem) (quiz.ChainCounters, error) {
	budget := e.budget
	if item.Params.BudgetSeconds > 0 {
		budget = time.Duration(item.Params.BudgetSeconds) * time.Second
	}
	maxQuizzes := e.maxQuizzes
	if item.Params.MaxQuizzes > 0 {
		maxQuizzes = item.Params.MaxQuizzes
	}
	maxWrongRetries := e.maxWrongRetries
	if item.Params.MaxWrongRetries > 0 {
		maxWrongRetries = item.Params.MaxWrongRetries
	}

	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	counters := quiz.ChainCounters{}
	quiz.ChainsStarted.Inc()
	e.publish(ctx, quiz.EventChainStarted, item.JobID, item.Params.URL, counters)

	currentURL := item.Params.URL
	wrongStreak := 0

	for counters.Attempts < maxQuizzes {
		if ctx.Err() != nil {
			e.publish(context.WithoutCancel(ctx), quiz.EventChainFinished, item.JobID, currentURL, counters)
			if errors.Is(ctx.Err(), context.Canceled) {
				return counters, fmt.Errorf("chain interrupted: %w", ctx.Err())
			}
			e.logger.Info("chain stopped",
				zap.String("job_id", item.JobID),
				zap.NamedError("reason", quiz.ErrChainDeadline),
				zap.Int("quizzes_solved", counters.QuizzesSolved))
			return counters, nil
		}

		counters.Attempts++
		nextURL, correct, err := e.solveOne(ctx, item, currentURL, &counters)
		if err != nil {
			e.publish(context.WithoutCancel(ctx), quiz.EventChainFinished, item.JobID, currentURL, counters)
			if errors.Is(ctx.Err(), context.Canceled) {
				return counters, fmt.Errorf("chain interrupted: %w", context.Canceled)
			}
			// Budget expiry mid-quiz is still a graceful stop.
			if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				return counters, nil
			}
			return counters, err
		}

		if !correct {
			counters.WrongAnswers++
			wrongStreak++
			e.publish(ctx, quiz.EventAnswerWrong, item.JobID, currentURL, counters)
			if wrongStreak >= maxWrongRetries {
				e.publish(context.WithoutCancel(ctx), quiz.EventChainFinished, item.JobID, currentURL, counters)
				return counters, fmt.Errorf("%w: %s", quiz.ErrWrongAnswerExhausted, currentURL)
			}
			continue
		}

		wrongStreak = 0
		counters.QuizzesSolved++
		quiz.QuizzesSolved.Inc()
		e.publish(ctx, quiz.EventQuizSolved, item.JobID, currentURL, counters)

		if nextURL == "" {
			e.logger.Info("quiz chain finished",
				zap.String("job_id", item.JobID),
				zap.Int("quizzes_solved", counters.QuizzesSolved))
			e.publish(context.WithoutCancel(ctx), quiz.EventChainFinished, item.JobID, currentURL, counters)
			return counters, nil
		}
		currentURL = nextURL
	}

	e.logger.Info("chain stopped",
		zap.String("job_id", item.JobID),
		zap.NamedError("reason", quiz.ErrQuizCapReached),
		zap.Int("quizzes_solved", counters.QuizzesSolved))
	e.publish(context.WithoutCancel(ctx), quiz.EventChainFinished, item.JobID, currentURL, counters)
	return counters, nil
}

// solveOne handles a single quiz page: render it, parse it, gather its data
// sources, compute an answer, and submit. It returns the next URL to follow
// when the answer was correct.
func (e *Engine) solveOne(ctx context.Context, item quiz.QueueItem, currentURL string, counters *quiz.ChainCounters) (string, bool, error) {
	started := e.now()

	page, err := e.loadPage(ctx, currentURL, counters)
	if err != nil {
		return "", false, fmt.Errorf("load quiz page: %w", err)
	}

	origin, err := quiz.Origin(page.FinalURL)
	if err != nil {
		origin, err = quiz.Origin(currentURL)
		if err != nil {
			return "", false, fmt.Errorf("derive origin: %w", err)
		}
	}

	blobURI, contentHash := e.persistPage(ctx, item.JobID, counters.Attempts, page)

	parsed, err := e.parsePage(ctx, page, origin, currentURL, item.Params.Email)
	if err != nil {
		return "", false, err
	}

	fetched := e.collectSources(ctx, parsed.DataSources, counters)

	quiz.ModelCalls.WithLabelValues("solve").Inc()
	rawAnswer, err := e.model.GenerateText(ctx, llm.BuildSolvePrompt(llm.SolvePromptInput{
		Question:    parsed.Question,
		PageContext: string(page.Body),
		FetchedData: fetched,
	}))
	if err != nil {
		return "", false, fmt.Errorf("solve quiz: %w", err)
	}
	answer := llm.CleanAnswer(rawAnswer)

	answerURL := parsed.AnswerURL
	if !quiz.IsHTTPURL(answerURL) {
		answerURL = currentURL
	}
	outcome, err := e.submit.Submit(ctx, parsed.SubmitURL, item.Params.Email, item.Secret, answerURL, answer)
	if err != nil {
		return "", false, fmt.Errorf("submit answer: %w", err)
	}

	outcomeLabel := "wrong"
	if outcome.Correct {
		outcomeLabel = "correct"
	}
	quiz.AnswersSubmitted.WithLabelValues(outcomeLabel).Inc()

	e.recordAttempt(ctx, quiz.AttemptRecord{
		JobID:       item.JobID,
		QuizURL:     currentURL,
		Sequence:    counters.Attempts,
		Question:    parsed.Question,
		Answer:      answer,
		Correct:     outcome.Correct,
		SubmittedAt: e.now(),
		DurationMs:  e.now().Sub(started).Milliseconds(),
		ContentHash: contentHash,
		BlobURI:     blobURI,
		ErrorText:   outcomeMessage(outcome),
	})

	nextURL := ""
	if outcome.Correct && quiz.IsHTTPURL(outcome.NextURL) {
		nextURL = quiz.ExpandPlaceholders(outcome.NextURL, origin, item.Params.Email)
	}
	return nextURL, outcome.Correct, nil
}

// loadPage renders the quiz page headless and falls back to plain HTTP when
// rendering is unavailable or fails.
func (e *Engine) loadPage(ctx context.Context, rawURL string, counters *quiz.ChainCounters) (quiz.Page, error) {
	if e.renderer != nil {
		page, err := e.renderer.Render(ctx, rawURL)
		if err == nil {
			return page, nil
		}
		if ctx.Err() != nil {
			return quiz.Page{}, ctx.Err()
		}
		// A disabled renderer is the configured state, not a fallback.
		if errors.Is(err, quiz.ErrRendererDisabled) {
			e.logger.Debug("headless rendering disabled, using plain fetch",
				zap.String("url", rawURL))
		} else {
			counters.RenderFallback++
			quiz.RenderFallbacks.Inc()
			e.logger.Warn("headless render failed, falling back to plain fetch",
				zap.String("url", rawURL), zap.Error(err))
		}
	}
	page, err := e.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return quiz.Page{}, err
	}
	if page.FinalURL == "" {
		page.FinalURL = rawURL
	}
	return page, nil
}

func (e *Engine) parsePage(ctx context.Context, page quiz.Page, origin, currentURL, email string) (quiz.ParsedQuiz, error) {
	text, err := extract.Text(page.Body)
	if err != nil {
		text = string(page.Body)
	}
	text = quiz.ExpandPlaceholders(text, origin, email)

	media, _ := extract.MediaSources(page.Body, page.FinalURL)
	links, _ := extract.DataLinks(page.Body, page.FinalURL, DataLinkExtensions)

	quiz.ModelCalls.WithLabelValues("parse").Inc()
	raw, err := e.model.GenerateText(ctx, llm.BuildParsePrompt(llm.ParsePromptInput{
		PageText:   text,
		RawHTML:    string(page.Body),
		AudioURLs:  media,
		DataLinks:  links,
		PageOrigin: origin,
		PageURL:    currentURL,
		Email:      email,
	}))
	if err != nil {
		return quiz.ParsedQuiz{}, fmt.Errorf("parse quiz page: %w", err)
	}
	parsed, err := llm.DecodeParsedQuiz(raw)
	if err != nil {
		return quiz.ParsedQuiz{}, fmt.Errorf("decode parsed quiz: %w", err)
	}

	parsed.SubmitURL = quiz.ExpandPlaceholders(parsed.SubmitURL, origin, email)
	parsed.AnswerURL = quiz.ExpandPlaceholders(parsed.AnswerURL, origin, email)
	for i, src := range parsed.DataSources {
		parsed.DataSources[i] = quiz.ExpandPlaceholders(src, origin, email)
	}

	if parsed.Question == "" || !quiz.IsHTTPURL(parsed.SubmitURL) {
		return quiz.ParsedQuiz{}, quiz.ErrMissingQuizFields
	}
	return parsed, nil
}

// persistPage stores the rendered page body for audit. Blob failures are
// logged and ignored; losing a snapshot must not fail the quiz.
func (e *Engine) persistPage(ctx context.Context, jobID string, sequence int, page quiz.Page) (string, string) {
	if e.blobs == nil {
		return "", ""
	}
	hash := ""
	if e.hasher != nil {
		if h, err := e.hasher.Hash(page.Body); err == nil {
			hash = h
		}
	}
	name := fmt.Sprintf("%s/%04d.html", jobID, sequence)
	if hash != "" {
		name = fmt.Sprintf("%s/%04d-%s.html", jobID, sequence, hash[:12])
	}
	uri, err := e.blobs.PutObject(ctx, name, e.snapshotContentType, bytes.NewReader(page.Body))
	if err != nil {
		e.logger.Warn("persist page snapshot failed", zap.String("job_id", jobID), zap.Error(err))
		return "", hash
	}
	return uri, hash
}

func (e *Engine) recordAttempt(ctx context.Context, attempt quiz.AttemptRecord) {
	if err := e.store.RecordAttempt(ctx, attempt); err != nil {
		e.logger.Warn("record attempt failed",
			zap.String("job_id", attempt.JobID), zap.Error(err))
	}
}

func (e *Engine) publish(ctx context.Context, event, jobID, quizURL string, counters quiz.ChainCounters) {
	if e.events == nil {
		return
	}
	ev := quiz.NewChainEvent(event, jobID, quizURL, counters, e.now())
	if _, err := e.events.Publish(ctx, EventsTopic, ev); err != nil {
		e.logger.Warn("publish chain event failed", zap.String("event", event), zap.Error(err))
	}
}

func (e *Engine) now() time.Time {
	if e.clock != nil {
		return e.clock.Now()
	}
	return time.Now().UTC()
}

func outcomeMessage(outcome quiz.SubmitOutcome) string {
	if outcome.Correct {
		return ""
	}
	return outcome.Message
}
