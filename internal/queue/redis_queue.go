package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisQueue is a durable Queue backed by a Redis list. Tasks survive
// process restarts, which keeps the at-least-once notification guarantee.
type redisQueue struct {
	client      *redis.Client
	key         string
	pollTimeout time.Duration
}

// NewRedisQueue creates a Redis-list backed queue on the given key.
func NewRedisQueue(client *redis.Client, key string, pollTimeout time.Duration) Queue {
	if pollTimeout <= 0 {
		pollTimeout = 5 * time.Second
	}
	return &redisQueue{client: client, key: key, pollTimeout: pollTimeout}
}

func (q *redisQueue) Enqueue(ctx context.Context, task Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, payload).Err()
}

func (q *redisQueue) Dequeue(ctx context.Context) (*Task, error) {
	res, err := q.client.BRPop(ctx, q.pollTimeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	// BRPOP returns [key, value]
	if len(res) != 2 {
		return nil, nil
	}
	var task Task
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		return nil, err
	}
	return &task, nil
}
