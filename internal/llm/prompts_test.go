package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildParsePromptContents(t *testing.T) {
	t.Parallel()

	prompt := BuildParsePrompt(ParsePromptInput{
		PageText:   "What is 2+2? POST to {origin}/answer",
		RawHTML:    "<html><body>What is 2+2?</body></html>",
		AudioURLs:  []string{"http://q.example/clip.opus"},
		DataLinks:  []string{"http://q.example/data.csv"},
		PageOrigin: "http://q.example",
		PageURL:    "http://q.example/quiz/1",
		Email:      "student@example.com",
	})

	assert.Contains(t, prompt, "What is 2+2?")
	assert.Contains(t, prompt, "http://q.example/clip.opus")
	assert.Contains(t, prompt, "http://q.example/data.csv")
	assert.Contains(t, prompt, "Replace {origin} with: http://q.example")
	assert.Contains(t, prompt, "Replace $EMAIL with: student@example.com")
	assert.Contains(t, prompt, "answer_url_json")
	assert.Contains(t, prompt, "data_sources MUST NOT include submit_url")
	assert.Contains(t, prompt, "Return ONLY valid JSON")
}

func TestBuildParsePromptEmptyLists(t *testing.T) {
	t.Parallel()

	prompt := BuildParsePrompt(ParsePromptInput{PageText: "q"})
	assert.Contains(t, prompt, "AUDIO FILES DETECTED:\nNone")
	assert.Contains(t, prompt, "DATA FILES DETECTED:\nNone")
}

func TestBuildSolvePromptTruncatesContext(t *testing.T) {
	t.Parallel()

	prompt := BuildSolvePrompt(SolvePromptInput{
		Question:    "Sum the column",
		PageContext: strings.Repeat("x", 5000),
		FetchedData: "a,b\n1,2",
	})

	assert.Contains(t, prompt, "Sum the column")
	assert.Contains(t, prompt, "a,b\n1,2")
	assert.NotContains(t, prompt, strings.Repeat("x", solvePageContextLimit+1))
	assert.Contains(t, prompt, "FINAL ANSWER:")
}

func TestBuildSolvePromptNoData(t *testing.T) {
	t.Parallel()

	prompt := BuildSolvePrompt(SolvePromptInput{Question: "q"})
	assert.Contains(t, prompt, "No external data")
}
