package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/deskhub/support-service/internal/domain"
	"github.com/deskhub/support-service/internal/events"
	"github.com/deskhub/support-service/internal/observability"
)

// Notifier is the asynchronous notification dispatcher the core hands events
// to. Enqueue is fire-and-forget from the caller's perspective: delivery is
// at-least-once and retried by the worker pool, never awaited here.
type Notifier interface {
	EnqueueNotification(ctx context.Context, eventType events.EventType, ticketID int64, messageID *int64, newStatus *domain.TicketStatus)
}

// Assigner is the scheduling entry point consumed by the availability sweep
// and by ticket creation.
type Assigner interface {
	Assign(ctx context.Context, ticketID int64) (AssignResult, error)
}

// Recomputer re-derives an agent's availability from its current load.
type Recomputer interface {
	Recompute(ctx context.Context, agentID int64) (RecomputeResult, error)
}

// publishEvent broadcasts best-effort: failures are logged, never returned,
// since the triggering transaction has already committed.
func publishEvent(ctx context.Context, b events.Broadcaster, m *observability.Metrics, logger *zap.Logger, event events.Event) {
	if b == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = time.Now()
	if err := b.Publish(ctx, event); err != nil {
		logger.Warn("event broadcast failed",
			zap.String("event_type", string(event.Type)),
			zap.Int64("ticket_id", event.TicketID),
			zap.Error(err))
		return
	}
	m.RecordBroadcast(string(event.Type))
}
