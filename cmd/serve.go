package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quizforge/quizd/internal/api"
	sysclock "github.com/quizforge/quizd/internal/clock/system"
	"github.com/quizforge/quizd/internal/dispatcher"
	collyfetcher "github.com/quizforge/quizd/internal/fetcher/colly"
	hashsha "github.com/quizforge/quizd/internal/hash/sha256"
	"github.com/quizforge/quizd/internal/id"
	queuemem "github.com/quizforge/quizd/internal/queue/memory"
	"github.com/quizforge/quizd/internal/solver"
	"github.com/quizforge/quizd/internal/worker"
)

// newServeCmd creates the 'serve' subcommand: the long-running HTTP
// service that accepts quiz URLs and solves chains in the background.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Starts the quiz-solving HTTP service",
		Long: `Starts the HTTP API, the worker pool, and the headless renderer.
Quiz URLs posted to the API are queued and solved concurrently.`,

		RunE: runServeCommand,
	}
	attachApp(cmd)
	return cmd
}

func runServeCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := appInstance.Config()
	logger := appInstance.Logger()

	if err := cfg.ValidateIdentity(); err != nil {
		return err
	}

	engine, err := buildEngine(appInstance)
	if err != nil {
		return err
	}

	queue := queuemem.NewQueue(cfg.Worker.QueueDepth)
	registry := worker.NewRegistry()
	workers := make([]*worker.Worker, cfg.Worker.Concurrency)
	for i := range workers {
		workers[i] = worker.New(queue, appInstance.JobStore(), engine, registry,
			logger.With(zap.Int("worker", i)))
	}
	disp := dispatcher.New(queue, workers, registry)

	server := api.NewServer(appInstance.JobStore(), disp, id.New(), sysclock.New(), cfg, logger)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		disp.Run(ctx)
	}()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.Int("port", cfg.Server.Port))
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		stop()
		<-dispatchDone
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownSeconds)*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", zap.Error(err))
	}
	<-dispatchDone

	if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// buildEngine assembles the chain-solving engine from the application's
// long-lived services plus the per-process fetcher.
func buildEngine(appInstance App) (*solver.Engine, error) {
	cfg := appInstance.Config()

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.HTTP.UserAgent,
		Timeout:   time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second,
	})

	engine, err := solver.New(solver.Config{
		ChainBudget:         cfg.ChainBudget(),
		MaxQuizzes:          cfg.Solver.MaxQuizzes,
		MaxWrongRetries:     cfg.Solver.MaxWrongRetries,
		SubmitTimeout:       cfg.SubmitTimeout(),
		SourceTimeout:       cfg.SourceTimeout(),
		PDFPreviewBytes:     cfg.Solver.PDFPreviewBytes,
		SnapshotContentType: cfg.Storage.ContentType,
	}, solver.Deps{
		Renderer:  appInstance.Renderer(),
		Fetcher:   fetcher,
		Model:     appInstance.Model(),
		BlobStore: appInstance.BlobStore(),
		JobStore:  appInstance.JobStore(),
		Publisher: appInstance.Publisher(),
		Clock:     sysclock.New(),
		Hasher:    hashsha.New(),
		Logger:    appInstance.Logger(),
	})
	if err != nil {
		return nil, fmt.Errorf("init solver engine: %w", err)
	}
	return engine, nil
}
