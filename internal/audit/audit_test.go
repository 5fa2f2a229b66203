package audit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	id "peershield/pkg/domain"
)

func TestPublisherStampsTimestamp(t *testing.T) {
	store := NewInMemoryStore()
	publisher := NewPublisher(store)
	disputeID := id.DisputeID(uuid.New())

	err := publisher.Emit(context.Background(), Event{
		DisputeID: disputeID,
		Action:    EventDisputeCreated,
	})
	require.NoError(t, err)

	events, err := publisher.List(context.Background(), disputeID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.False(t, events[0].Timestamp.IsZero())
}

func TestWorkerDrainsInbox(t *testing.T) {
	store := NewInMemoryStore()
	inbox := make(chan Event, 2)
	worker := NewWorker(store, inbox)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	disputeID := id.DisputeID(uuid.New())
	inbox <- Event{DisputeID: disputeID, Action: EventEvidenceSubmitted, Timestamp: time.Now()}
	inbox <- Event{DisputeID: disputeID, Action: EventDisputeResolved, Timestamp: time.Now()}

	require.Eventually(t, func() bool {
		events, err := store.ListByDispute(context.Background(), disputeID)
		return err == nil && len(events) == 2
	}, time.Second, 10*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestPublisherQueuesToInbox(t *testing.T) {
	store := NewInMemoryStore()
	inbox := make(chan Event, 1)
	publisher := NewPublisher(store, WithInbox(inbox))
	disputeID := id.DisputeID(uuid.New())

	require.NoError(t, publisher.Emit(context.Background(), Event{DisputeID: disputeID, Action: EventDisputeCreated}))

	// queued, not yet persisted
	events, err := store.ListByDispute(context.Background(), disputeID)
	require.NoError(t, err)
	require.Empty(t, events)
	require.Len(t, inbox, 1)

	// a full queue falls back to a synchronous append
	require.NoError(t, publisher.Emit(context.Background(), Event{DisputeID: disputeID, Action: EventDisputeResolved}))
	events, err = store.ListByDispute(context.Background(), disputeID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, EventDisputeResolved, events[0].Action)
}
