// Package memory contains in-memory publisher implementations for tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/quizforge/quizd/internal/quiz"
)

// Publisher stores published payloads for inspection.
type Publisher struct {
	mu       sync.RWMutex
	messages []PublishedMessage
}

// PublishedMessage captures one publish call.
type PublishedMessage struct {
	Topic   string
	Payload any
}

// New returns a memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records the message and returns a pseudo ID.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, PublishedMessage{Topic: topic, Payload: payload})
	return fmt.Sprintf("memory-%d", len(p.messages)), nil
}

// Messages returns the recorded publishes.
func (p *Publisher) Messages() []PublishedMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]PublishedMessage, len(p.messages))
	copy(out, p.messages)
	return out
}

// EventsByName filters recorded chain events by event name.
func (p *Publisher) EventsByName(name string) []quiz.ChainEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []quiz.ChainEvent
	for _, m := range p.messages {
		ev, ok := m.Payload.(quiz.ChainEvent)
		if ok && ev.Event == name {
			out = append(out, ev)
		}
	}
	return out
}
