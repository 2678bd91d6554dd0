package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/quizforge/quizd/internal/quiz"
)

// DecodeParsedQuiz decodes the parse-prompt response into a ParsedQuiz.
// Models occasionally wrap the JSON in markdown fences or prose, so after a
// direct decode fails the outermost brace pair is tried as a salvage.
func DecodeParsedQuiz(raw string) (quiz.ParsedQuiz, error) {
	cleaned := stripFences(raw)

	var parsed quiz.ParsedQuiz
	if err := json.Unmarshal([]byte(cleaned), &parsed); err == nil {
		return parsed, nil
	}

	salvaged, ok := salvageJSON(cleaned)
	if !ok {
		return quiz.ParsedQuiz{}, fmt.Errorf("no JSON object in model response: %s", truncate(raw, 200))
	}
	if err := json.Unmarshal([]byte(salvaged), &parsed); err != nil {
		return quiz.ParsedQuiz{}, fmt.Errorf("decode model response: %w: %s", err, truncate(raw, 200))
	}
	return parsed, nil
}

// CleanAnswer normalizes a solve-prompt response into the bare answer value.
func CleanAnswer(raw string) string {
	return strings.TrimSpace(stripFences(raw))
}

func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func salvageJSON(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end <= start {
		return "", false
	}
	return raw[start : end+1], true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
