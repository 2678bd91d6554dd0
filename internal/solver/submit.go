package solver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/quizforge/quizd/internal/quiz"
)

// answerPayload is the body posted to a quiz grader.
type answerPayload struct {
	Email  string `json:"email"`
	Secret string `json:"secret"`
	URL    string `json:"url"`
	Answer any    `json:"answer"`
}

// SubmitClient posts answers to grader endpoints.
type SubmitClient struct {
	httpClient *http.Client
}

// NewSubmitClient builds a SubmitClient with the given per-request timeout.
func NewSubmitClient(timeout time.Duration) *SubmitClient {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &SubmitClient{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Submit posts the answer and decodes the grader's verdict. Answers that
// parse as JSON scalars or arrays are submitted typed so numeric answers
// arrive as numbers, not strings.
func (c *SubmitClient) Submit(ctx context.Context, submitURL, email, secret, answerURL, answer string) (quiz.SubmitOutcome, error) {
	payload := answerPayload{
		Email:  email,
		Secret: secret,
		URL:    answerURL,
		Answer: coerceAnswer(answer),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return quiz.SubmitOutcome{}, fmt.Errorf("marshal answer payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, submitURL, bytes.NewReader(body))
	if err != nil {
		return quiz.SubmitOutcome{}, fmt.Errorf("build submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return quiz.SubmitOutcome{}, fmt.Errorf("post answer: %w", err)
	}
	defer resp.Body.Close()

	var outcome quiz.SubmitOutcome
	if err := json.NewDecoder(resp.Body).Decode(&outcome); err != nil {
		return quiz.SubmitOutcome{}, fmt.Errorf("decode grader response (status %d): %w", resp.StatusCode, err)
	}
	return outcome, nil
}

// coerceAnswer keeps JSON-typed answers typed. A bare string stays a string.
func coerceAnswer(answer string) any {
	var typed any
	if err := json.Unmarshal([]byte(answer), &typed); err == nil {
		return typed
	}
	return answer
}
