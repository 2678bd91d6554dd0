package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quizforge/quizd/internal/app"
	"github.com/quizforge/quizd/internal/config"
	"github.com/quizforge/quizd/internal/llm"
	"github.com/quizforge/quizd/internal/quiz"
)

var cfgFile string

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application interface that commands use. This allows
// injecting a mock app during tests.
type App interface {
	Close(ctx context.Context)
	Logger() *zap.Logger
	Config() config.Config
	JobStore() quiz.JobStore
	BlobStore() quiz.BlobStore
	Publisher() quiz.Publisher
	Renderer() quiz.Renderer
	Model() llm.Model
}

// newApp is the application factory. It's a variable so tests can replace
// it with a mock factory.
var newApp = func(ctx context.Context) (App, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("configs/quizd.yaml"); err == nil {
			path = "configs/quizd.yaml"
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg)
}

// attachApp wires application construction into a command's lifecycle.
// Commands that only render files (provision) skip this so they can run
// without credentials.
func attachApp(cmd *cobra.Command) {
	cmd.PreRunE = func(cmd *cobra.Command, _ []string) error {
		appInstance, err := newApp(cmd.Context())
		if err != nil {
			return fmt.Errorf("initialize application services: %w", err)
		}
		cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
		return nil
	}
	cmd.PostRun = func(cmd *cobra.Command, _ []string) {
		if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
			appInstance.Close(cmd.Context())
		}
	}
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quizd",
		Short: "An automated quiz-chain solving service.",
		Long: `quizd accepts quiz URLs over HTTP, renders each quiz page,
asks a language model to extract and answer the question, submits the
answer, and follows the chain of follow-up quizzes until it ends.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is configs/quizd.yaml if present)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newSolveCmd())
	cmd.AddCommand(newProvisionCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
