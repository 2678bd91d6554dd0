package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	sysclock "github.com/quizforge/quizd/internal/clock/system"
	"github.com/quizforge/quizd/internal/id"
	"github.com/quizforge/quizd/internal/quiz"
)

// newSolveCmd creates the 'solve' subcommand: a one-shot chain run from
// the command line, without starting the HTTP service.
func newSolveCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "solve <quiz-url>",
		Short: "Solves a quiz chain once and exits",
		Long: `Runs the full quiz chain starting at the given URL using the
configured identity and model, then prints the outcome.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSolveCommand(cmd, args[0], email)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "override the submission email")
	attachApp(cmd)
	return cmd
}

func runSolveCommand(cmd *cobra.Command, quizURL, email string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := appInstance.Config()
	logger := appInstance.Logger()

	if err := cfg.ValidateIdentity(); err != nil {
		return err
	}
	if !quiz.IsHTTPURL(quizURL) {
		return fmt.Errorf("quiz url must be an absolute http(s) URL: %s", quizURL)
	}
	if email == "" {
		email = cfg.Identity.Email
	}

	engine, err := buildEngine(appInstance)
	if err != nil {
		return err
	}

	jobID, err := id.New().NewID()
	if err != nil {
		return fmt.Errorf("generate job id: %w", err)
	}
	now := sysclock.New().Now()
	params := quiz.JobParameters{
		URL:             quizURL,
		Email:           email,
		BudgetSeconds:   cfg.Solver.BudgetSeconds,
		MaxQuizzes:      cfg.Solver.MaxQuizzes,
		MaxWrongRetries: cfg.Solver.MaxWrongRetries,
		Tags:            map[string]string{"origin": "cli"},
	}

	ctx := cmd.Context()
	store := appInstance.JobStore()
	if err := store.CreateJob(ctx, quiz.Job{
		ID:         jobID,
		Status:     quiz.JobStatusQueued,
		Submitted:  now,
		Parameters: params,
	}); err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	if err := store.UpdateJobStatus(ctx, jobID, quiz.JobStatusRunning, "", quiz.ChainCounters{}); err != nil {
		return fmt.Errorf("update job status: %w", err)
	}

	logger.Info("starting quiz chain",
		zap.String("job_id", jobID),
		zap.String("url", quizURL))

	counters, runErr := engine.Run(ctx, quiz.QueueItem{
		JobID:     jobID,
		Params:    params,
		Secret:    cfg.Identity.Secret,
		Attempt:   1,
		Submitted: now.Unix(),
	})

	status := quiz.JobStatusSucceeded
	errText := ""
	if runErr != nil {
		status = quiz.JobStatusFailed
		errText = runErr.Error()
	}
	if err := store.UpdateJobStatus(context.WithoutCancel(ctx), jobID, status, errText, counters); err != nil {
		logger.Warn("final job status update failed", zap.Error(err))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "job %s: %s (%d solved, %d wrong, %d attempts)\n",
		jobID, status, counters.QuizzesSolved, counters.WrongAnswers, counters.Attempts)
	if runErr != nil {
		return fmt.Errorf("quiz chain: %w", runErr)
	}
	return nil
}
