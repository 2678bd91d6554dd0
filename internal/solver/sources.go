package solver

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/quizforge/quizd/internal/extract"
	"github.com/quizforge/quizd/internal/quiz"
)

// Source kinds distinguish how a data source URL is handled.
const (
	sourceKindAudio = "audio"
	sourceKindRaw   = "raw"
	sourceKindPDF   = "pdf"
	sourceKindPage  = "page"
)

var audioExtensions = []string{".mp3", ".opus", ".wav", ".flac", ".ogg", ".m4a"}

var rawExtensions = []string{".csv", ".json", ".txt"}

// DataLinkExtensions lists the file extensions worth surfacing to the parse
// prompt as candidate data sources.
var DataLinkExtensions = append(append([]string{".pdf"}, rawExtensions...), audioExtensions...)

// classifySource decides the handling strategy for a data source URL.
func classifySource(rawURL string) string {
	path := rawURL
	if parsed, err := url.Parse(rawURL); err == nil && parsed.Path != "" {
		path = parsed.Path
	}
	lower := strings.ToLower(path)
	for _, ext := range audioExtensions {
		if strings.HasSuffix(lower, ext) {
			return sourceKindAudio
		}
	}
	for _, ext := range rawExtensions {
		if strings.HasSuffix(lower, ext) {
			return sourceKindRaw
		}
	}
	if strings.HasSuffix(lower, ".pdf") {
		return sourceKindPDF
	}
	return sourceKindPage
}

func audioMIMEType(rawURL string) string {
	lower := strings.ToLower(rawURL)
	switch {
	case strings.HasSuffix(lower, ".mp3"):
		return "audio/mpeg"
	case strings.HasSuffix(lower, ".opus"):
		return "audio/opus"
	case strings.HasSuffix(lower, ".wav"):
		return "audio/wav"
	case strings.HasSuffix(lower, ".flac"):
		return "audio/flac"
	case strings.HasSuffix(lower, ".ogg"):
		return "audio/ogg"
	case strings.HasSuffix(lower, ".m4a"):
		return "audio/mp4"
	default:
		return "audio/mpeg"
	}
}

// fetchWithRetry fetches a data source, retrying transient failures per the
// engine's retry policy with backoff between attempts.
func (e *Engine) fetchWithRetry(ctx context.Context, rawURL string) (quiz.Page, error) {
	for attempt := 1; ; attempt++ {
		page, err := e.fetcher.Fetch(ctx, rawURL)
		if err == nil || e.retry == nil || !e.retry.ShouldRetry(err, attempt) {
			return page, err
		}
		e.logger.Debug("retrying source fetch",
			zap.String("url", rawURL), zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-ctx.Done():
			return quiz.Page{}, ctx.Err()
		case <-time.After(e.retry.Backoff(attempt)):
		}
	}
}

// fetchSource retrieves one data source and renders it as a labeled text
// block for the solve prompt. Audio is transcribed, raw data files are
// inlined, PDFs contribute a bounded preview, and anything else is fetched
// as a page and reduced to its visible text.
func (e *Engine) fetchSource(ctx context.Context, source string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.sourceTimeout)
	defer cancel()

	kind := classifySource(source)
	switch kind {
	case sourceKindAudio:
		page, err := e.fetchWithRetry(ctx, source)
		if err != nil {
			quiz.SourceFetches.WithLabelValues(kind, "error").Inc()
			return "", fmt.Errorf("download audio %s: %w", source, err)
		}
		quiz.ModelCalls.WithLabelValues("transcribe").Inc()
		transcript, err := e.model.TranscribeAudio(ctx, page.Body, audioMIMEType(source))
		if err != nil {
			quiz.SourceFetches.WithLabelValues(kind, "error").Inc()
			return "", fmt.Errorf("transcribe %s: %w", source, err)
		}
		quiz.SourceFetches.WithLabelValues(kind, "ok").Inc()
		return fmt.Sprintf("--- AUDIO TRANSCRIPT (%s) ---\n%s", source, transcript), nil

	case sourceKindRaw:
		page, err := e.fetchWithRetry(ctx, source)
		if err != nil {
			quiz.SourceFetches.WithLabelValues(kind, "error").Inc()
			return "", fmt.Errorf("fetch data file %s: %w", source, err)
		}
		quiz.SourceFetches.WithLabelValues(kind, "ok").Inc()
		return fmt.Sprintf("--- DATA FILE (%s) ---\n%s", source, string(page.Body)), nil

	case sourceKindPDF:
		page, err := e.fetchWithRetry(ctx, source)
		if err != nil {
			quiz.SourceFetches.WithLabelValues(kind, "error").Inc()
			return "", fmt.Errorf("fetch pdf %s: %w", source, err)
		}
		preview := page.Body
		if len(preview) > e.pdfPreviewBytes {
			preview = preview[:e.pdfPreviewBytes]
		}
		quiz.SourceFetches.WithLabelValues(kind, "ok").Inc()
		return fmt.Sprintf("--- PDF PREVIEW (%s, first %d bytes) ---\n%q", source, len(preview), preview), nil

	default:
		page, err := e.fetchWithRetry(ctx, source)
		if err != nil {
			quiz.SourceFetches.WithLabelValues(kind, "error").Inc()
			return "", fmt.Errorf("fetch source page %s: %w", source, err)
		}
		text, err := extract.Text(page.Body)
		if err != nil || text == "" {
			text = string(page.Body)
		}
		quiz.SourceFetches.WithLabelValues(kind, "ok").Inc()
		return fmt.Sprintf("--- PAGE CONTENT (%s) ---\n%s", source, text), nil
	}
}

// collectSources fetches every data source and concatenates the resulting
// blocks. Individual source failures do not abort the quiz; they surface as
// error markers in the prompt and bump the failure counter.
func (e *Engine) collectSources(ctx context.Context, sources []string, counters *quiz.ChainCounters) string {
	var blocks []string
	for _, source := range sources {
		if !quiz.IsHTTPURL(source) {
			continue
		}
		block, err := e.fetchSource(ctx, source)
		if err != nil {
			counters.SourcesFailed++
			e.logger.Warn("data source fetch failed", zap.String("source", source), zap.Error(err))
			blocks = append(blocks, fmt.Sprintf("--- ERROR fetching %s: %v ---", source, err))
			continue
		}
		blocks = append(blocks, block)
	}
	return strings.Join(blocks, "\n\n")
}
