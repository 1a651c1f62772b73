package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryQueueFIFO(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, Task{ID: "first"}))
	require.NoError(t, q.Enqueue(ctx, Task{ID: "second"}))

	task, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first", task.ID)

	task, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", task.ID)
}

func TestMemoryQueueDequeueWakesOnEnqueue(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	done := make(chan *Task, 1)
	go func() {
		task, err := q.Dequeue(ctx)
		if err == nil {
			done <- task
		}
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, q.Enqueue(ctx, Task{ID: "wakeup"}))

	select {
	case task := <-done:
		assert.Equal(t, "wakeup", task.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("dequeue did not wake up")
	}
}

func TestMemoryQueueDequeueHonorsContext(t *testing.T) {
	q := NewMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(ctx)
		errCh <- err
	}()

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("dequeue did not observe cancellation")
	}
}
