package quiz

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ChainsStarted tracks the number of quiz chains accepted for solving.
	ChainsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quizd_chains_started_total",
		Help: "The total number of quiz chains started.",
	})
	// QuizzesSolved tracks the number of quizzes answered correctly.
	QuizzesSolved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quizd_quizzes_solved_total",
		Help: "The total number of quizzes answered correctly.",
	})
	// AnswersSubmitted tracks answer submissions labeled by outcome.
	AnswersSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quizd_answers_submitted_total",
		Help: "The total number of answers submitted, labeled by outcome.",
	}, []string{"outcome"})
	// ModelCalls tracks LLM invocations labeled by operation.
	ModelCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quizd_model_calls_total",
		Help: "The total number of model invocations, labeled by operation.",
	}, []string{"operation"})
	// SourceFetches tracks data-source fetches labeled by kind and result.
	SourceFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quizd_source_fetches_total",
		Help: "The total number of data-source fetches, labeled by kind and result.",
	}, []string{"kind", "result"})
	// RenderFallbacks tracks renders that fell back to the plain fetcher.
	RenderFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quizd_render_fallbacks_total",
		Help: "The total number of page renders that fell back to plain HTTP.",
	})
)
