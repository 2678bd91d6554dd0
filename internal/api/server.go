// Package api exposes the HTTP interface for the quiz-solving service.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/quizforge/quizd/internal/config"
	"github.com/quizforge/quizd/internal/dispatcher"
	"github.com/quizforge/quizd/internal/quiz"
)

// Server wires HTTP handlers to the dispatcher and stores.
type Server struct {
	router     chi.Router
	jobStore   quiz.JobStore
	dispatcher *dispatcher.Dispatcher
	idGen      quiz.IDGenerator
	clock      quiz.Clock
	cfg        config.Config
	logger     *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	jobStore quiz.JobStore,
	dispatch *dispatcher.Dispatcher,
	idGen quiz.IDGenerator,
	clock quiz.Clock,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		jobStore:   jobStore,
		dispatcher: dispatch,
		idGen:      idGen,
		clock:      clock,
		cfg:        cfg,
		logger:     logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// The grader platform speaks to the root path.
	r.Get("/", s.home)
	r.Post("/", s.submitQuizLegacy)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/quizzes", func(r chi.Router) {
			r.Post("/", s.submitQuiz)
			r.Route("/{job_id}", func(r chi.Router) {
				r.Get("/", s.getJob)
				r.Get("/attempts", s.getAttempts)
				r.Post("/cancel", s.cancelJob)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) home(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "Server is running"})
}

type quizRequest struct {
	URL             string            `json:"url"`
	Secret          string            `json:"secret"`
	Email           string            `json:"email"`
	BudgetSeconds   *int              `json:"budget_seconds"`
	MaxQuizzes      *int              `json:"max_quizzes"`
	MaxWrongRetries *int              `json:"max_wrong_retries"`
	Tags            map[string]string `json:"tags"`
}

// submitQuizLegacy accepts the flat {url, secret} body the grader platform
// posts to the root path and answers immediately with 202.
func (s *Server) submitQuizLegacy(w http.ResponseWriter, r *http.Request) {
	var req quizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	jobID, status, err := s.acceptQuiz(r.Context(), req)
	if err != nil {
		s.writeError(w, status, err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{
		"status":  "accepted",
		"message": "Quiz solving started",
		"job_id":  jobID,
	})
}

func (s *Server) submitQuiz(w http.ResponseWriter, r *http.Request) {
	var req quizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	jobID, status, err := s.acceptQuiz(r.Context(), req)
	if err != nil {
		s.writeError(w, status, err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

// acceptQuiz validates the request, persists a queued job, and hands it to
// the worker pool. The shared secret is checked before any work happens and
// never stored with the job.
func (s *Server) acceptQuiz(ctx context.Context, req quizRequest) (string, int, error) {
	if req.Secret != s.cfg.Identity.Secret {
		return "", http.StatusForbidden, errors.New("invalid secret")
	}
	if norm, err := quiz.NormalizeURL(req.URL); err == nil {
		req.URL = norm
	}
	if !quiz.IsHTTPURL(req.URL) {
		return "", http.StatusBadRequest, errors.New("url must be an absolute http(s) URL")
	}

	params := s.toJobParameters(req)
	jobID, err := s.idGen.NewID()
	if err != nil {
		return "", http.StatusInternalServerError, fmt.Errorf("generate job id: %w", err)
	}
	now := s.clock.Now()
	job := quiz.Job{
		ID:         jobID,
		Status:     quiz.JobStatusQueued,
		Submitted:  now,
		Parameters: params,
		Counters:   quiz.ChainCounters{},
	}
	if err := s.jobStore.CreateJob(ctx, job); err != nil {
		return "", http.StatusInternalServerError, fmt.Errorf("create job: %w", err)
	}

	queueCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	item := quiz.QueueItem{
		JobID:     jobID,
		Params:    params,
		Secret:    req.Secret,
		Attempt:   1,
		Submitted: now.Unix(),
	}
	if err := s.dispatcher.Enqueue(queueCtx, item); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusServiceUnavailable
		}
		return "", status, fmt.Errorf("enqueue job: %w", err)
	}
	return jobID, 0, nil
}

func (s *Server) toJobParameters(req quizRequest) quiz.JobParameters {
	email := req.Email
	if email == "" {
		email = s.cfg.Identity.Email
	}
	params := quiz.JobParameters{
		URL:             req.URL,
		Email:           email,
		BudgetSeconds:   valueOrDefault(req.BudgetSeconds, s.cfg.Solver.BudgetSeconds),
		MaxQuizzes:      valueOrDefault(req.MaxQuizzes, s.cfg.Solver.MaxQuizzes),
		MaxWrongRetries: valueOrDefault(req.MaxWrongRetries, s.cfg.Solver.MaxWrongRetries),
		Tags:            req.Tags,
	}
	if params.Tags == nil {
		params.Tags = map[string]string{}
	}
	return params
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.jobStore.GetJob(r.Context(), jobID)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

func (s *Server) getAttempts(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if _, err := s.jobStore.GetJob(r.Context(), jobID); err != nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	attempts, err := s.jobStore.ListAttempts(r.Context(), jobID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to fetch attempts")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"job_id": jobID, "attempts": attempts})
}

func (s *Server) cancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.jobStore.GetJob(r.Context(), jobID)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	switch job.Status {
	case quiz.JobStatusSucceeded, quiz.JobStatusFailed, quiz.JobStatusCanceled:
		s.writeError(w, http.StatusConflict, "job already finished")
		return
	}

	// A running chain is stopped through its cancel func; the worker then
	// records the canceled status with the counters it accumulated. Only a
	// still-queued job gets its status rewritten here.
	if !s.dispatcher.CancelJob(jobID) {
		if err := s.jobStore.UpdateJobStatus(
			r.Context(),
			jobID,
			quiz.JobStatusCanceled,
			"canceled via API",
			job.Counters,
		); err != nil {
			s.writeError(w, http.StatusInternalServerError, "failed to cancel job")
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"job_id": jobID, "status": string(quiz.JobStatusCanceled)})
}

func valueOrDefault(ptr *int, def int) int {
	if ptr == nil || *ptr <= 0 {
		return def
	}
	return *ptr
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
