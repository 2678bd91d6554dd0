package provision

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"go.uber.org/zap"
)

// Options controls image construction.
type Options struct {
	// Builder is the image build tool, e.g. "docker" or "podman".
	Builder string
	// Tag applied to the built image.
	Tag string
	// ContextDir is the build context containing the copy sources.
	ContextDir string
}

// Result is returned after a successful build.
type Result struct {
	// Containerfile is the path of the rendered recipe inside the context.
	Containerfile string
	// Tag of the built image.
	Tag string
}

// commandRunner abstracts exec for testing.
type commandRunner interface {
	Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// Builder renders the containerfile and drives the external image build.
// Steps execute strictly in order and every failure is fatal: there is no
// partial-success state and no retry.
type Builder struct {
	runner commandRunner
	logger *zap.Logger
}

// NewBuilder creates a Builder that shells out to the configured build tool.
func NewBuilder(logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{runner: execRunner{}, logger: logger}
}

// Apply renders the spec into the context directory and builds the image.
func (b *Builder) Apply(ctx context.Context, spec ImageSpec, opts Options) (*Result, error) {
	if opts.Builder == "" {
		opts.Builder = "docker"
	}
	if opts.Tag == "" {
		opts.Tag = "quizd:latest"
	}
	if opts.ContextDir == "" {
		opts.ContextDir = "."
	}

	rendered, err := Render(spec)
	if err != nil {
		return nil, err
	}

	containerfile := filepath.Join(opts.ContextDir, "Containerfile")
	if err := os.WriteFile(containerfile, []byte(rendered), 0o644); err != nil {
		return nil, fmt.Errorf("write containerfile: %w", err)
	}

	b.logger.Info("building runtime image",
		zap.String("builder", opts.Builder),
		zap.String("tag", opts.Tag),
		zap.String("context", opts.ContextDir))

	out, err := b.runner.Run(ctx, opts.ContextDir, opts.Builder,
		"build", "-f", containerfile, "-t", opts.Tag, ".")
	if err != nil {
		return nil, fmt.Errorf("image build failed: %w: %s", err, string(out))
	}

	b.logger.Info("runtime image built", zap.String("tag", opts.Tag))
	return &Result{Containerfile: containerfile, Tag: opts.Tag}, nil
}
