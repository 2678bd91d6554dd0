package app

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizforge/quizd/internal/config"
	"github.com/quizforge/quizd/internal/quiz"
	storagemem "github.com/quizforge/quizd/internal/storage/memory"
)

func testConfig() config.Config {
	return config.Config{
		Identity: config.IdentityConfig{Email: "s@example.com", Secret: "secret"},
		LLM:      config.LLMConfig{APIKey: "test-key", Model: "gemini-2.5-flash"},
		Store:    config.StoreConfig{Provider: "memory"},
		Storage:  config.StorageConfig{Provider: "memory"},
		Publisher: config.PublisherConfig{
			Provider: "memory",
		},
		Headless: config.HeadlessConfig{Enabled: false},
		Logging:  config.LoggingConfig{Development: true},
	}
}

func TestNewWithMemoryProviders(t *testing.T) {
	t.Parallel()

	a, err := New(context.Background(), testConfig())
	require.NoError(t, err)
	defer a.Close(context.Background())

	assert.NotNil(t, a.Logger())
	assert.NotNil(t, a.JobStore())
	assert.NotNil(t, a.BlobStore())
	assert.NotNil(t, a.Publisher())
	assert.NotNil(t, a.Model())

	require.NotNil(t, a.Renderer(), "disabled rendering still yields a renderer")
	_, err = a.Renderer().Render(context.Background(), "http://quiz.example/start")
	assert.ErrorIs(t, err, quiz.ErrRendererDisabled)
}

func TestNewUnknownStoreProvider(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Store.Provider = "bogus"
	_, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store provider")
}

func TestNewRequiresModelKey(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.LLM.APIKey = ""
	_, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "init model")
}

func TestPrefixedBlobStore(t *testing.T) {
	t.Parallel()

	inner := storagemem.New()
	store := prefixedBlobStore{inner: inner, prefix: "pages"}

	uri, err := store.PutObject(context.Background(), "job-1/a.html", "text/html", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "mem://pages/job-1/a.html", uri)

	_, ok := inner.Object("pages/job-1/a.html")
	assert.True(t, ok)
}
