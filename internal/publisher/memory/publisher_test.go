package memory

import (
	"context"
	"testing"
	"time"

	"github.com/quizforge/quizd/internal/quiz"
)

func TestPublisherStoresMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), "topic-a", map[string]string{"k": "v"})
	if err != nil || id1 != "memory-1" {
		t.Fatalf("unexpected publish result id=%s err=%v", id1, err)
	}
	id2, err := pub.Publish(context.Background(), "topic-b", "payload")
	if err != nil || id2 != "memory-2" {
		t.Fatalf("unexpected publish result id=%s err=%v", id2, err)
	}

	msgs := pub.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Topic != "topic-a" || msgs[1].Topic != "topic-b" {
		t.Fatalf("topics not recorded correctly: %+v", msgs)
	}

	msgs[0].Topic = "modified"
	if pub.Messages()[0].Topic == "modified" {
		t.Fatal("expected Messages() to return a copy")
	}
}

func TestEventsByName(t *testing.T) {
	t.Parallel()

	pub := New()
	now := time.Now().UTC()
	_, _ = pub.Publish(context.Background(), "events", quiz.NewChainEvent(quiz.EventChainStarted, "job-1", "http://q/1", quiz.ChainCounters{}, now))
	_, _ = pub.Publish(context.Background(), "events", quiz.NewChainEvent(quiz.EventQuizSolved, "job-1", "http://q/1", quiz.ChainCounters{QuizzesSolved: 1}, now))
	_, _ = pub.Publish(context.Background(), "events", quiz.NewChainEvent(quiz.EventQuizSolved, "job-1", "http://q/2", quiz.ChainCounters{QuizzesSolved: 2}, now))

	solved := pub.EventsByName(quiz.EventQuizSolved)
	if len(solved) != 2 {
		t.Fatalf("expected 2 solved events, got %d", len(solved))
	}
	if solved[1].Counters.QuizzesSolved != 2 {
		t.Fatalf("unexpected counters: %+v", solved[1].Counters)
	}
}
