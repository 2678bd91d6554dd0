package worker

import (
	"context"
	"sync"
)

// Registry tracks the cancel function of every running chain so an API
// cancel request can stop the job mid-flight, not just rewrite its status.
type Registry struct {
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{cancels: make(map[string]context.CancelFunc)}
}

func (r *Registry) register(jobID string, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancels[jobID] = cancel
}

func (r *Registry) release(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cancels, jobID)
}

// Cancel stops the chain for jobID. It reports whether a running chain was
// found; a false return means the job is not currently executing.
func (r *Registry) Cancel(jobID string) bool {
	r.mu.Lock()
	cancel, ok := r.cancels[jobID]
	r.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}
