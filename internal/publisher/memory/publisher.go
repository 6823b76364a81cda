// Package memory contains an in-memory deploy recorder for tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/permafrost/internal/publisher"
)

// Publisher records deploy requests instead of publishing anything.
type Publisher struct {
	mu       sync.RWMutex
	requests []publisher.Request
	fail     error
}

// New returns a memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// FailWith makes every subsequent Deploy return err.
func (p *Publisher) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail = err
}

// Deploy records the request and returns a synthetic receipt.
func (p *Publisher) Deploy(_ context.Context, req publisher.Request) (*publisher.Receipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return nil, p.fail
	}
	p.requests = append(p.requests, req)
	return &publisher.Receipt{
		Commit: fmt.Sprintf("memory-%d", len(p.requests)),
		Branch: req.Branch,
		Pushed: req.Push,
	}, nil
}

// Requests returns the recorded deployments.
func (p *Publisher) Requests() []publisher.Request {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]publisher.Request, len(p.requests))
	copy(out, p.requests)
	return out
}
