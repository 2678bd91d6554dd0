package quiz

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewChainEvent(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	counters := ChainCounters{QuizzesSolved: 3, Attempts: 4, WrongAnswers: 1}

	ev := NewChainEvent(EventQuizSolved, "job-1", "http://quiz.example/3", counters, now)
	assert.Equal(t, EventQuizSolved, ev.Event)
	assert.Equal(t, "job-1", ev.JobID)
	assert.Equal(t, "http://quiz.example/3", ev.QuizURL)
	assert.Equal(t, counters, ev.Counters)
	assert.Equal(t, now, ev.Timestamp)
	assert.Empty(t, ev.Status, "status is only set when the chain finishes")
}
