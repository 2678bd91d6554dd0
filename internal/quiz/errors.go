package quiz

import "errors"

// Sentinel errors surfaced by the solver chain.
var (
	// ErrChainDeadline indicates the per-chain budget elapsed.
	ErrChainDeadline = errors.New("chain deadline exceeded")
	// ErrQuizCapReached indicates the chain hit its quiz count limit.
	ErrQuizCapReached = errors.New("quiz cap reached")
	// ErrMissingQuizFields indicates the parsed page lacked a question or submit URL.
	ErrMissingQuizFields = errors.New("quiz page missing question or submit url")
	// ErrWrongAnswerExhausted indicates all retries for one quiz produced wrong answers.
	ErrWrongAnswerExhausted = errors.New("wrong answer retries exhausted")
	// ErrRendererDisabled indicates headless rendering is switched off by
	// configuration; callers fall through to the plain HTTP fetch path.
	ErrRendererDisabled = errors.New("renderer disabled")
)
