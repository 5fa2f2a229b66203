package audit

import (
	"context"
	"time"

	id "peershield/pkg/domain"
)

// Store is an append-only sink for audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByDispute(ctx context.Context, disputeID id.DisputeID) ([]Event, error)
}

// Publisher captures structured audit events. By default events are appended
// synchronously; with an inbox installed they are queued for a Worker to
// drain, falling back to a synchronous append when the queue is full so no
// event is dropped.
type Publisher struct {
	store Store
	inbox chan<- Event
}

type PublisherOption func(*Publisher)

// WithInbox routes emitted events through the channel. A Worker draining the
// same channel must be running.
func WithInbox(inbox chan<- Event) PublisherOption {
	return func(p *Publisher) {
		p.inbox = inbox
	}
}

func NewPublisher(store Store, opts ...PublisherOption) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Publisher) Emit(ctx context.Context, base Event) error {
	if base.Timestamp.IsZero() {
		base.Timestamp = time.Now()
	}
	if p.inbox != nil {
		select {
		case p.inbox <- base:
			return nil
		default:
		}
	}
	return p.store.Append(ctx, base)
}

func (p *Publisher) List(ctx context.Context, disputeID id.DisputeID) ([]Event, error) {
	return p.store.ListByDispute(ctx, disputeID)
}
