package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// redisBroadcaster publishes events on a per-ticket Redis pub/sub channel so
// every running instance fans out to its own connected subscribers.
type redisBroadcaster struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisBroadcaster creates a Redis-backed Broadcaster.
func NewRedisBroadcaster(client *redis.Client, logger *zap.Logger) Broadcaster {
	return &redisBroadcaster{client: client, logger: logger}
}

func channelName(ticketID int64) string {
	return fmt.Sprintf("ticket:%d", ticketID)
}

func (b *redisBroadcaster) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, channelName(event.TicketID), payload).Err()
}

func (b *redisBroadcaster) Subscribe(ctx context.Context, ticketID int64) (Subscription, error) {
	pubsub := b.client.Subscribe(ctx, channelName(ticketID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	sub := &redisSubscription{pubsub: pubsub, ch: make(chan Event, 16)}
	go func() {
		defer close(sub.ch)
		for msg := range pubsub.Channel() {
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logger.Warn("discarding malformed event payload", zap.Error(err))
				continue
			}
			select {
			case sub.ch <- event:
			default:
			}
		}
	}()
	return sub, nil
}

type redisSubscription struct {
	pubsub *redis.PubSub
	ch     chan Event
}

func (s *redisSubscription) Events() <-chan Event {
	return s.ch
}

func (s *redisSubscription) Close() error {
	return s.pubsub.Close()
}
