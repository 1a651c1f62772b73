package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/deskhub/support-service/internal/config"
	"github.com/deskhub/support-service/internal/domain"
	"github.com/deskhub/support-service/internal/events"
	"github.com/deskhub/support-service/internal/queue"
	"github.com/deskhub/support-service/internal/repository"
)

// Mailer delivers a composed notification email.
type Mailer interface {
	Send(ctx context.Context, from string, to []string, subject, body string) error
}

// NotificationService turns domain events into outbound notifications. The
// enqueue side runs in request paths and never blocks on delivery; the
// Deliver side runs only inside the worker pool.
type NotificationService struct {
	store  repository.Store
	queue  queue.Queue
	mailer Mailer
	logger *zap.Logger
	cfg    config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(store repository.Store, q queue.Queue, mailer Mailer, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if mailer == nil {
		mailer = &logMailer{logger: logger}
	}
	return &NotificationService{
		store:  store,
		queue:  q,
		mailer: mailer,
		logger: logger,
		cfg:    cfg,
	}
}

// EnqueueNotification pushes a task onto the durable queue. Failures are
// logged, never surfaced: notification is best-effort relative to the core
// transaction that already committed.
func (n *NotificationService) EnqueueNotification(ctx context.Context, eventType events.EventType, ticketID int64, messageID *int64, newStatus *domain.TicketStatus) {
	task := queue.Task{
		ID:         uuid.NewString(),
		EventType:  string(eventType),
		TicketID:   ticketID,
		MessageID:  messageID,
		EnqueuedAt: time.Now(),
	}
	if newStatus != nil {
		status := string(*newStatus)
		task.NewStatus = &status
	}
	if err := n.queue.Enqueue(ctx, task); err != nil {
		n.logger.Error("notification enqueue failed",
			zap.String("event_type", task.EventType),
			zap.Int64("ticket_id", ticketID),
			zap.Error(err))
	}
}

// Deliver composes and sends the notification for one task. A nil error
// means done; callers retry on error up to their attempt budget.
func (n *NotificationService) Deliver(ctx context.Context, task queue.Task) error {
	ticket, err := n.store.Tickets().GetByID(ctx, task.TicketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// ticket deleted since enqueue; nothing to notify about
			return nil
		}
		return err
	}

	var message *domain.TicketMessage
	if task.MessageID != nil {
		message, err = n.store.Messages().GetByID(ctx, *task.MessageID)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
	}

	recipients, err := n.recipients(ctx, task.EventType, ticket, message)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		return nil
	}

	subject := fmt.Sprintf("[Ticket #%d] %s", ticket.ID, ticket.Subject)
	body := composeBody(task, ticket, message)
	return n.mailer.Send(ctx, n.cfg.EmailFrom, recipients, subject, body)
}

// recipients routes per event type: internal notes go to the agent only,
// everything else to customer and agent, deduped case-insensitively.
func (n *NotificationService) recipients(ctx context.Context, eventType string, ticket *domain.Ticket, message *domain.TicketMessage) ([]string, error) {
	customerEmail, err := n.emailOf(ctx, ticket.CustomerID)
	if err != nil {
		return nil, err
	}
	agentEmail, err := n.emailOf(ctx, ticket.AssignedAgentID)
	if err != nil {
		return nil, err
	}

	var to []string
	switch eventType {
	case string(events.EventTicketMessageCreated):
		if message == nil {
			return nil, nil
		}
		if message.IsInternal {
			to = []string{agentEmail}
		} else {
			to = []string{customerEmail, agentEmail}
		}
	default:
		to = []string{customerEmail, agentEmail}
	}
	return dedupeEmails(to), nil
}

func (n *NotificationService) emailOf(ctx context.Context, userID *int64) (string, error) {
	if userID == nil {
		return "", nil
	}
	user, err := n.store.Users().GetByID(ctx, *userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return user.Email, nil
}

func composeBody(task queue.Task, ticket *domain.Ticket, message *domain.TicketMessage) string {
	status := string(ticket.Status)
	if task.NewStatus != nil {
		status = *task.NewStatus
	}
	lines := []string{
		"Ticket #" + strconv.FormatInt(ticket.ID, 10),
		"Subject: " + ticket.Subject,
		"Status: " + status,
		"Priority: " + string(ticket.Priority),
		"Event: " + task.EventType,
		"",
	}
	if message != nil {
		author := "unknown"
		if message.AuthorID != nil {
			author = "user " + strconv.FormatInt(*message.AuthorID, 10)
		}
		lines = append(lines,
			"Message from: "+author,
			fmt.Sprintf("Internal: %t", message.IsInternal),
			"",
			message.Body,
			"",
		)
	}
	return strings.Join(lines, "\n")
}

func dedupeEmails(emails []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(emails))
	for _, email := range emails {
		email = strings.TrimSpace(email)
		if email == "" {
			continue
		}
		key := strings.ToLower(email)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, email)
	}
	return out
}

// logMailer is the default delivery stub: it records the send instead of
// talking to a real mail relay.
type logMailer struct {
	logger *zap.Logger
}

func (m *logMailer) Send(_ context.Context, from string, to []string, subject, _ string) error {
	m.logger.Info("email notification",
		zap.String("from", from),
		zap.Strings("to", to),
		zap.String("subject", subject))
	return nil
}
