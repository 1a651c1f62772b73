package queue

import (
	"context"
	"sync"
	"time"
)

// Task is one pending notification dispatch. MessageID and NewStatus are
// optional context for the event type they accompany.
type Task struct {
	ID         string    `json:"id"`
	EventType  string    `json:"event_type"`
	TicketID   int64     `json:"ticket_id"`
	MessageID  *int64    `json:"message_id,omitempty"`
	NewStatus  *string   `json:"new_status,omitempty"`
	Attempt    int       `json:"attempt"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Queue is a durable FIFO task queue. Enqueue must not block on delivery;
// Dequeue blocks up to the implementation's poll timeout and returns a nil
// task when nothing arrived.
type Queue interface {
	Enqueue(ctx context.Context, task Task) error
	Dequeue(ctx context.Context) (*Task, error)
}

// memoryQueue is an in-process Queue for tests and single-node setups.
type memoryQueue struct {
	mu     sync.Mutex
	tasks  []Task
	notify chan struct{}
}

// NewMemoryQueue creates an unbounded in-process queue.
func NewMemoryQueue() Queue {
	return &memoryQueue{notify: make(chan struct{}, 1)}
}

func (q *memoryQueue) Enqueue(_ context.Context, task Task) error {
	q.mu.Lock()
	q.tasks = append(q.tasks, task)
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

func (q *memoryQueue) Dequeue(ctx context.Context) (*Task, error) {
	for {
		q.mu.Lock()
		if len(q.tasks) > 0 {
			task := q.tasks[0]
			q.tasks = q.tasks[1:]
			q.mu.Unlock()
			return &task, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.notify:
		case <-time.After(50 * time.Millisecond):
		}
	}
}
