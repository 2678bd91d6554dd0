// Package llm wraps the language model used to parse and solve quizzes.
package llm

import "context"

// Model is the interface the solver uses for all model interactions.
type Model interface {
	// GenerateText sends a text prompt and returns the raw completion.
	GenerateText(ctx context.Context, prompt string) (string, error)
	// TranscribeAudio sends raw audio bytes and returns the transcript.
	TranscribeAudio(ctx context.Context, data []byte, mimeType string) (string, error)
}
