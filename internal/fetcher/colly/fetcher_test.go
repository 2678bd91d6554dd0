package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/quizforge/quizd/internal/quiz"
)

func TestFetchReturnsPage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>quiz</body></html>"))
	}))
	defer srv.Close()

	f := New(Config{Timeout: 5 * time.Second})
	page, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if page.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", page.StatusCode)
	}
	if string(page.Body) != "<html><body>quiz</body></html>" {
		t.Fatalf("unexpected body %q", page.Body)
	}
	if page.UsedJS {
		t.Fatal("plain HTTP fetch must not report JS rendering")
	}
	if page.URL != srv.URL {
		t.Fatalf("expected request URL preserved, got %q", page.URL)
	}
}

func TestFetchPropagatesHTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	f := New(Config{})
	if _, err := f.Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}

func TestBuildCollectorOverrides(t *testing.T) {
	t.Parallel()

	f := New(Config{UserAgent: "quizd-agent", Timeout: time.Second})
	collector := f.buildCollector(time.Unix(0, 0), &quiz.Page{}, new(error))
	if collector.UserAgent != "quizd-agent" {
		t.Fatalf("expected user agent override, got %q", collector.UserAgent)
	}
	if !collector.IgnoreRobotsTxt {
		t.Fatal("expected robots txt to be ignored")
	}
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{})
	start := time.Unix(0, 0)
	var result quiz.Page
	var fetchErr error

	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, start, &result, &fetchErr)
	if hooks.onRequest == nil || hooks.onResponse == nil || hooks.onError == nil {
		t.Fatal("expected hooks to be registered")
	}

	collyReq := &colly.Request{Headers: &http.Header{}}
	hooks.onRequest(collyReq)
	if collyReq.Headers.Get("Accept") == "" {
		t.Fatal("expected Accept header to be set")
	}

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusCreated,
		Body:       []byte("body"),
		Headers:    &http.Header{"X-Resp": {"ok"}},
		Request: &colly.Request{
			URL: mustParseURL(t, "https://example.com"),
		},
	})
	if result.StatusCode != http.StatusCreated || string(result.Body) != "body" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Headers.Get("X-Resp") != "ok" {
		t.Fatalf("expected headers copied, got %+v", result.Headers)
	}

	hooks.onError(nil, errors.New("boom"))
	if fetchErr == nil || fetchErr.Error() != "boom" {
		t.Fatalf("expected fetchErr set, got %v", fetchErr)
	}
}

type stubHooks struct {
	onRequest  colly.RequestCallback
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnRequest(cb colly.RequestCallback)   { s.onRequest = cb }
func (s *stubHooks) OnResponse(cb colly.ResponseCallback) { s.onResponse = cb }
func (s *stubHooks) OnError(cb colly.ErrorCallback)       { s.onError = cb }

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse url %q: %v", raw, err)
	}
	return u
}
