// Package publisher fans audit events out to a store and optional sinks.
//
// The default mode is synchronous: Emit blocks until the store write
// completes. WithAsyncBuffer switches to a bounded channel drained by a
// background goroutine; when the buffer is full events are dropped rather
// than blocking domain logic, and Close drains whatever is queued.
package publisher

import (
	"context"
	"log/slog"
	"sync"

	id "deedbook/pkg/domain"
	audit "deedbook/pkg/platform/audit"
)

// Publisher routes audit events to a store and optional sinks.
type Publisher struct {
	store  audit.Store
	sinks  []audit.Sink
	logger *slog.Logger

	inbox chan audit.Event
	wg    sync.WaitGroup

	closeOnce sync.Once
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithAsyncBuffer enables asynchronous delivery with the given buffer size.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.inbox = make(chan audit.Event, size)
		}
	}
}

// WithSink adds an external fan-out target.
func WithSink(sink audit.Sink) Option {
	return func(p *Publisher) {
		if sink != nil {
			p.sinks = append(p.sinks, sink)
		}
	}
}

// WithLogger sets a logger for delivery failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// NewPublisher creates a publisher persisting events to store.
func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit delivers an event. In sync mode the store write error is returned;
// in async mode Emit never blocks and a full buffer drops the event.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if p.inbox == nil {
		return p.deliver(ctx, event)
	}
	select {
	case p.inbox <- event:
	default:
		if p.logger != nil {
			p.logger.Warn("audit buffer full, dropping event",
				"action", event.Action,
				"property_id", event.PropertyID,
			)
		}
	}
	return nil
}

// List returns the stored trail for a property.
func (p *Publisher) List(ctx context.Context, propertyID id.PropertyID) ([]audit.Event, error) {
	return p.store.ListByProperty(ctx, propertyID)
}

// Close drains the async buffer and closes all sinks.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		if p.inbox != nil {
			close(p.inbox)
			p.wg.Wait()
		}
		for _, sink := range p.sinks {
			if err := sink.Close(); err != nil && p.logger != nil {
				p.logger.Warn("audit sink close failed", "error", err)
			}
		}
	})
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.inbox {
		if err := p.deliver(context.Background(), event); err != nil && p.logger != nil {
			p.logger.Warn("audit delivery failed",
				"action", event.Action,
				"property_id", event.PropertyID,
				"error", err,
			)
		}
	}
}

func (p *Publisher) deliver(ctx context.Context, event audit.Event) error {
	err := p.store.Append(ctx, event)
	for _, sink := range p.sinks {
		if sinkErr := sink.Emit(ctx, event); sinkErr != nil && p.logger != nil {
			p.logger.Warn("audit sink emit failed",
				"action", event.Action,
				"property_id", event.PropertyID,
				"error", sinkErr,
			)
		}
	}
	return err
}
