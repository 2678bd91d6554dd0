package headless

import (
	"context"

	"github.com/quizforge/quizd/internal/quiz"
)

// Noop implements Renderer but always reports that headless rendering is
// unavailable, which forces callers onto the plain HTTP fallback.
type Noop struct{}

// NewNoop creates a new Noop renderer.
func NewNoop() *Noop {
	return &Noop{}
}

// Render returns ErrRendererDisabled.
func (Noop) Render(_ context.Context, _ string) (quiz.Page, error) {
	return quiz.Page{}, ErrRendererDisabled
}

// Close is a no-op.
func (Noop) Close(_ context.Context) error {
	return nil
}
