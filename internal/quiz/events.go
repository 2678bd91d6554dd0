package quiz

import "time"

// Event names emitted over the publisher topic.
const (
	EventChainStarted  = "chain.started"
	EventQuizSolved    = "quiz.solved"
	EventAnswerWrong   = "answer.wrong"
	EventChainFinished = "chain.finished"
)

// ChainEvent is the payload published for chain lifecycle events.
type ChainEvent struct {
	Event     string        `json:"event"`
	JobID     string        `json:"job_id"`
	QuizURL   string        `json:"quiz_url,omitempty"`
	Status    JobStatus     `json:"status,omitempty"`
	Counters  ChainCounters `json:"counters"`
	Timestamp time.Time     `json:"timestamp"`
}

// NewChainEvent builds an event stamped with the given clock time.
func NewChainEvent(event, jobID, quizURL string, counters ChainCounters, now time.Time) ChainEvent {
	return ChainEvent{
		Event:     event,
		JobID:     jobID,
		QuizURL:   quizURL,
		Counters:  counters,
		Timestamp: now,
	}
}
