package provision

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSpecValid(t *testing.T) {
	t.Parallel()

	spec := DefaultSpec()
	require.NoError(t, spec.Validate())
	assert.Equal(t, DefaultPort, spec.Port)
	assert.Equal(t, "/app", spec.Workdir)
	assert.Contains(t, spec.Packages, "libnss3")
	assert.Contains(t, spec.Packages, "libgbm1")
}

func TestValidateRejectsBadSpecs(t *testing.T) {
	t.Parallel()

	base := DefaultSpec()

	spec := base
	spec.BaseImage = " "
	assert.Error(t, spec.Validate())

	spec = base
	spec.Packages = nil
	assert.Error(t, spec.Validate())

	spec = base
	spec.Packages = []string{"libnss3 libgbm1"}
	assert.Error(t, spec.Validate(), "whitespace would split into two packages")

	spec = base
	spec.Workdir = "app"
	assert.Error(t, spec.Validate())

	spec = base
	spec.Copies = []CopyStep{{Source: "quizd", Dest: "/srv/quizd"}}
	assert.Error(t, spec.Validate(), "copy dest outside workdir breaks relative paths")

	spec = base
	spec.Port = 0
	assert.Error(t, spec.Validate())

	spec = base
	spec.Entrypoint = nil
	assert.Error(t, spec.Validate())
}

func TestRenderDeterministic(t *testing.T) {
	t.Parallel()

	spec := DefaultSpec()
	spec.Env = map[string]string{"B": "2", "A": "1", "C": "3"}

	first, err := Render(spec)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Render(spec)
		require.NoError(t, err)
		assert.Equal(t, first, again, "render must be byte-identical across calls")
	}

	idxA := strings.Index(first, "ENV A=1")
	idxB := strings.Index(first, "ENV B=2")
	idxC := strings.Index(first, "ENV C=3")
	assert.True(t, idxA >= 0 && idxA < idxB && idxB < idxC, "env keys emitted sorted")
}

func TestRenderLayout(t *testing.T) {
	t.Parallel()

	out, err := Render(DefaultSpec())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "FROM debian:bookworm-slim\n"))
	assert.Contains(t, out, "apt-get install -y --no-install-recommends")
	assert.Contains(t, out, "rm -rf /var/lib/apt/lists/*")
	assert.Contains(t, out, "WORKDIR /app")
	assert.Contains(t, out, "COPY quizd .")
	assert.Contains(t, out, "EXPOSE 7860")
	assert.Contains(t, out, `ENTRYPOINT ["./quizd", "serve"]`)

	// The install layer lands before the workdir, which lands before copies.
	install := strings.Index(out, "RUN apt-get")
	workdir := strings.Index(out, "WORKDIR")
	copyIdx := strings.Index(out, "COPY")
	assert.True(t, install < workdir && workdir < copyIdx)

	// Browser engine rides in the same install layer as its libraries.
	assert.Contains(t, out, "chromium")
}

type fakeRunner struct {
	calls   [][]string
	outputs map[string][]byte
	errs    map[string]error
}

func (f *fakeRunner) Run(_ context.Context, _ string, name string, args ...string) ([]byte, error) {
	call := append([]string{name}, args...)
	f.calls = append(f.calls, call)
	key := strings.Join(call, " ")
	for prefix, err := range f.errs {
		if strings.Contains(key, prefix) {
			return f.outputs[prefix], err
		}
	}
	for prefix, out := range f.outputs {
		if strings.Contains(key, prefix) {
			return out, nil
		}
	}
	return nil, nil
}

func TestApplyWritesContainerfileAndBuilds(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	runner := &fakeRunner{}
	b := NewBuilder(nil)
	b.runner = runner

	res, err := b.Apply(context.Background(), DefaultSpec(), Options{
		Builder:    "docker",
		Tag:        "quizd:test",
		ContextDir: dir,
	})
	require.NoError(t, err)
	assert.Equal(t, "quizd:test", res.Tag)

	data, err := os.ReadFile(filepath.Join(dir, "Containerfile"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "EXPOSE 7860")

	require.Len(t, runner.calls, 1)
	assert.Equal(t, "docker", runner.calls[0][0])
	assert.Contains(t, runner.calls[0], "build")
	assert.Contains(t, runner.calls[0], "quizd:test")
}

func TestApplyBuildFailureIsFatal(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{
		errs:    map[string]error{"build": fmt.Errorf("exit status 1")},
		outputs: map[string][]byte{"build": []byte("no space left on device")},
	}
	b := NewBuilder(nil)
	b.runner = runner

	_, err := b.Apply(context.Background(), DefaultSpec(), Options{ContextDir: t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "image build failed")
	assert.Contains(t, err.Error(), "no space left on device")
}

func ldconfigFor(packages []string) string {
	var b strings.Builder
	for _, pkg := range packages {
		if lib, ok := libraryProbe[pkg]; ok {
			fmt.Fprintf(&b, "\t%s.2 (libc6,x86-64) => /usr/lib/x86_64-linux-gnu/%s.2\n", lib, lib)
		}
	}
	return b.String()
}

func TestVerifyPasses(t *testing.T) {
	t.Parallel()

	spec := DefaultSpec()
	runner := &fakeRunner{outputs: map[string][]byte{
		"ldconfig": []byte(ldconfigFor(spec.Packages)),
		"pwd":      []byte("/app\n"),
	}}
	b := NewBuilder(nil)
	b.runner = runner

	require.NoError(t, b.Verify(context.Background(), spec, Options{Tag: "quizd:test"}))
}

func TestVerifyDetectsMissingLibrary(t *testing.T) {
	t.Parallel()

	spec := DefaultSpec()
	listing := ldconfigFor(spec.Packages)
	listing = strings.ReplaceAll(listing, "libnss3.so", "libsomethingelse.so")

	runner := &fakeRunner{outputs: map[string][]byte{
		"ldconfig": []byte(listing),
		"pwd":      []byte("/app\n"),
	}}
	b := NewBuilder(nil)
	b.runner = runner

	err := b.Verify(context.Background(), spec, Options{Tag: "quizd:test"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "libnss3")
}

func TestVerifyDetectsWorkdirMismatch(t *testing.T) {
	t.Parallel()

	spec := DefaultSpec()
	runner := &fakeRunner{outputs: map[string][]byte{
		"ldconfig": []byte(ldconfigFor(spec.Packages)),
		"pwd":      []byte("/srv\n"),
	}}
	b := NewBuilder(nil)
	b.runner = runner

	err := b.Verify(context.Background(), spec, Options{Tag: "quizd:test"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workdir")
}

func TestMissingLibrariesSkipsUtilities(t *testing.T) {
	t.Parallel()

	// wget has no shared object to probe; it must never be reported missing.
	missing := missingLibraries([]string{"wget", "libnss3"}, "libnss3.so.2")
	assert.Empty(t, missing)
}
