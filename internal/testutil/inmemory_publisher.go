package testutil

import (
	"context"
	"sync"

	"github.com/flexprice/retainer/internal/publisher"
	"github.com/flexprice/retainer/internal/types"
)

// InMemoryPublisherService records published billing events for assertions
type InMemoryPublisherService struct {
	mu     sync.RWMutex
	events []*types.BillingEvent
	err    error
}

var _ publisher.EventPublisher = (*InMemoryPublisherService)(nil)

// NewInMemoryEventPublisher creates a new instance of InMemoryPublisherService
func NewInMemoryEventPublisher() *InMemoryPublisherService {
	return &InMemoryPublisherService{
		events: make([]*types.BillingEvent, 0),
	}
}

// Publish implements publisher.EventPublisher
func (p *InMemoryPublisherService) Publish(ctx context.Context, event *types.BillingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

// FailWith makes every following Publish return err
func (p *InMemoryPublisherService) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// GetEvents returns all published events
func (p *InMemoryPublisherService) GetEvents() []*types.BillingEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	events := make([]*types.BillingEvent, len(p.events))
	copy(events, p.events)
	return events
}

// EventsNamed returns the published events with the given name
func (p *InMemoryPublisherService) EventsNamed(name string) []*types.BillingEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []*types.BillingEvent
	for _, e := range p.events {
		if e.EventName == name {
			out = append(out, e)
		}
	}
	return out
}

// Clear removes all published events
func (p *InMemoryPublisherService) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = make([]*types.BillingEvent, 0)
	p.err = nil
}
