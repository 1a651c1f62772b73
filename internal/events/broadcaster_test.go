package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskhub/support-service/internal/domain"
)

func TestHubFansOutToTicketSubscribers(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()

	subA, err := hub.Subscribe(ctx, 1)
	require.NoError(t, err)
	subB, err := hub.Subscribe(ctx, 1)
	require.NoError(t, err)
	other, err := hub.Subscribe(ctx, 2)
	require.NoError(t, err)

	event := Event{ID: "e1", Type: EventTicketAssigned, TicketID: 1, Status: domain.TicketStatusAssigned}
	require.NoError(t, hub.Publish(ctx, event))

	got := <-subA.Events()
	assert.Equal(t, "e1", got.ID)
	got = <-subB.Events()
	assert.Equal(t, "e1", got.ID)

	select {
	case leaked := <-other.Events():
		t.Fatalf("subscriber of ticket 2 received event %q for ticket 1", leaked.ID)
	default:
	}
}

func TestHubNoReplayForLateSubscriber(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()

	require.NoError(t, hub.Publish(ctx, Event{ID: "early", TicketID: 7}))

	sub, err := hub.Subscribe(ctx, 7)
	require.NoError(t, err)

	select {
	case event := <-sub.Events():
		t.Fatalf("late subscriber should start empty, got %q", event.ID)
	default:
	}
}

func TestHubClosedSubscriptionStopsReceiving(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()

	sub, err := hub.Subscribe(ctx, 3)
	require.NoError(t, err)
	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close(), "double close is safe")

	require.NoError(t, hub.Publish(ctx, Event{ID: "after-close", TicketID: 3}))

	_, open := <-sub.Events()
	assert.False(t, open)
}

func TestHubPublishDuringCloseDoesNotPanic(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()

	// Full buffers force the publisher onto the drop path while subscribers
	// disconnect underneath it.
	for i := 0; i < 50; i++ {
		sub, err := hub.Subscribe(ctx, 9)
		require.NoError(t, err)
		for j := 0; j < 16; j++ {
			require.NoError(t, hub.Publish(ctx, Event{TicketID: 9}))
		}

		done := make(chan struct{})
		go func() {
			defer close(done)
			for j := 0; j < 20; j++ {
				assert.NoError(t, hub.Publish(ctx, Event{TicketID: 9}))
			}
		}()
		assert.NoError(t, sub.Close())
		<-done
	}
}

func TestHubDropsWhenSubscriberIsFull(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()

	sub, err := hub.Subscribe(ctx, 5)
	require.NoError(t, err)

	// Channel buffer is bounded; publishing past it must not block.
	for i := 0; i < 40; i++ {
		require.NoError(t, hub.Publish(ctx, Event{TicketID: 5}))
	}

	received := 0
	for {
		select {
		case <-sub.Events():
			received++
			continue
		default:
		}
		break
	}
	assert.Less(t, received, 40)
	assert.Positive(t, received)
}
