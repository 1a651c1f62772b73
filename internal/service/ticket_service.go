package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/deskhub/support-service/internal/domain"
	"github.com/deskhub/support-service/internal/events"
	"github.com/deskhub/support-service/internal/observability"
	"github.com/deskhub/support-service/internal/repository"
	apperrors "github.com/deskhub/support-service/pkg/util"
)

// TicketService coordinates ticket workflows around the scheduler: creation,
// status changes, the message thread and search.
type TicketService struct {
	store       repository.Store
	assigner    Assigner
	recomputer  Recomputer
	broadcaster events.Broadcaster
	notifier    Notifier
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// TicketDependencies bundles collaborators.
type TicketDependencies struct {
	Store       repository.Store
	Assigner    Assigner
	Recomputer  Recomputer
	Broadcaster events.Broadcaster
	Notifier    Notifier
	Metrics     *observability.Metrics
	Logger      *zap.Logger
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		store:       deps.Store,
		assigner:    deps.Assigner,
		recomputer:  deps.Recomputer,
		broadcaster: deps.Broadcaster,
		notifier:    deps.Notifier,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
	}
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Subject     string
	Description string
	Priority    domain.TicketPriority
}

// TicketListInput describes listing filters.
type TicketListInput struct {
	Status          *domain.TicketStatus
	Priority        *domain.TicketPriority
	AssignedAgentID *int64
	CreatedFrom     *time.Time
	CreatedTo       *time.Time
	Limit           int
	Offset          int
}

// MessageInput describes a new thread message.
type MessageInput struct {
	Body        string
	IsInternal  bool
	Attachments []AttachmentInput
}

// AttachmentInput defines uploaded file metadata.
type AttachmentInput struct {
	StorageKey  string
	FileName    string
	ContentType string
	SizeBytes   int64
}

// CreateTicket opens a ticket for a customer and immediately offers it to
// the scheduler. A Deferred outcome is not an error: the ticket stays OPEN
// until an agent frees up.
func (s *TicketService) CreateTicket(ctx context.Context, customer *domain.User, input TicketCreateInput) (*domain.Ticket, error) {
	subject := strings.TrimSpace(input.Subject)
	if subject == "" {
		return nil, apperrors.NewValidationError("subject is required", nil)
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !priority.Valid() {
		return nil, apperrors.NewValidationError("invalid priority", nil)
	}

	ticket := &domain.Ticket{
		CustomerID:  &customer.ID,
		Subject:     subject,
		Description: strings.TrimSpace(input.Description),
		Status:      domain.TicketStatusOpen,
		Priority:    priority,
	}
	if err := s.store.Tickets().Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	result, err := s.assigner.Assign(ctx, ticket.ID)
	if err != nil {
		// creation already committed; scheduling will be retried by the
		// next availability sweep
		s.logger.Warn("initial assignment failed",
			zap.Int64("ticket_id", ticket.ID), zap.Error(err))
		return ticket, nil
	}
	if result.NewlyAssigned {
		return result.Ticket, nil
	}
	return ticket, nil
}

// GetTicket fetches a ticket the actor is allowed to see.
func (s *TicketService) GetTicket(ctx context.Context, actor *domain.User, ticketID int64) (*domain.Ticket, error) {
	ticket, err := s.store.Tickets().GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	if !canAccessTicket(actor, ticket) {
		return nil, apperrors.NewForbidden("access denied")
	}
	return ticket, nil
}

// ListTickets returns tickets visible to the actor: customers see their own,
// agents see their assignments, admins see everything.
func (s *TicketService) ListTickets(ctx context.Context, actor *domain.User, input TicketListInput) ([]domain.Ticket, error) {
	filter := repository.TicketFilter{
		CreatedFrom: input.CreatedFrom,
		CreatedTo:   input.CreatedTo,
		Limit:       input.Limit,
		Offset:      input.Offset,
	}
	if input.Status != nil {
		filter.Statuses = []domain.TicketStatus{*input.Status}
	}
	if input.Priority != nil {
		filter.Priorities = []domain.TicketPriority{*input.Priority}
	}
	if input.AssignedAgentID != nil {
		filter.AssignedAgentID = input.AssignedAgentID
	}
	applyActorScope(&filter, actor)

	tickets, err := s.store.Tickets().ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// SearchTickets runs full-text search over subject, description and the
// visible message thread, scoped exactly like ListTickets.
func (s *TicketService) SearchTickets(ctx context.Context, actor *domain.User, query string, input TicketListInput) ([]domain.Ticket, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.NewValidationError("q is required", nil)
	}
	filter := repository.SearchFilter{
		Query:           query,
		IncludeInternal: actor.Role != domain.RoleCustomer,
	}
	if input.Status != nil {
		filter.Statuses = []domain.TicketStatus{*input.Status}
	}
	if input.Priority != nil {
		filter.Priorities = []domain.TicketPriority{*input.Priority}
	}
	if input.AssignedAgentID != nil {
		filter.AssignedAgentID = input.AssignedAgentID
	}
	switch actor.Role {
	case domain.RoleCustomer:
		filter.CustomerID = &actor.ID
	case domain.RoleAgent:
		filter.AssignedAgentID = &actor.ID
	}

	tickets, err := s.store.Tickets().Search(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// SetStatus applies a status change. There is no transition graph: any
// agent/admin may set any valid target status. Entering CLOSED stamps
// closed_at; leaving CLOSED keeps the historical timestamp. Entering
// RESOLVED or CLOSED while an agent is assigned triggers availability
// recomputation, since that agent's load just dropped.
func (s *TicketService) SetStatus(ctx context.Context, actor *domain.User, ticketID int64, newStatus domain.TicketStatus) (*domain.Ticket, error) {
	if !newStatus.Valid() {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{
			"valid": domain.TicketStatusValues(),
		})
	}
	if actor.Role != domain.RoleAgent && actor.Role != domain.RoleAdmin {
		return nil, apperrors.NewForbidden("status changes are restricted to agents")
	}

	ticket, err := s.store.Tickets().GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	if !canAccessTicket(actor, ticket) {
		return nil, apperrors.NewForbidden("access denied")
	}

	ticket.Status = newStatus
	if newStatus == domain.TicketStatusClosed {
		now := time.Now()
		ticket.ClosedAt = &now
	}
	if err := s.store.Tickets().UpdateStatus(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	publishEvent(ctx, s.broadcaster, s.metrics, s.logger, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		Status:   ticket.Status,
	})
	if s.notifier != nil {
		status := ticket.Status
		s.notifier.EnqueueNotification(ctx, events.EventTicketStatusChanged, ticket.ID, nil, &status)
	}

	if ticket.AssignedAgentID != nil &&
		(newStatus == domain.TicketStatusResolved || newStatus == domain.TicketStatusClosed) {
		if _, err := s.recomputer.Recompute(ctx, *ticket.AssignedAgentID); err != nil {
			s.logger.Warn("availability recompute failed",
				zap.Int64("agent_id", *ticket.AssignedAgentID), zap.Error(err))
		}
	}
	return ticket, nil
}

// AddMessage appends a message to the ticket thread, records attachment
// metadata, bumps last_message_at, and fans the event out.
func (s *TicketService) AddMessage(ctx context.Context, actor *domain.User, ticketID int64, input MessageInput) (*domain.TicketMessage, error) {
	if strings.TrimSpace(input.Body) == "" {
		return nil, apperrors.NewValidationError("body is required", nil)
	}
	if input.IsInternal && actor.Role == domain.RoleCustomer {
		return nil, apperrors.NewForbidden("customers cannot create internal messages")
	}

	ticket, err := s.GetTicket(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}

	msg := &domain.TicketMessage{
		TicketID:   ticket.ID,
		AuthorID:   &actor.ID,
		Body:       input.Body,
		IsInternal: input.IsInternal,
	}
	if err := s.store.Messages().Create(ctx, msg); err != nil {
		return nil, apperrors.MapError(err)
	}

	for _, att := range input.Attachments {
		record := &domain.Attachment{
			TicketID:    ticket.ID,
			MessageID:   &msg.ID,
			UploaderID:  &actor.ID,
			StorageKey:  att.StorageKey,
			FileName:    att.FileName,
			ContentType: att.ContentType,
			SizeBytes:   att.SizeBytes,
		}
		if err := s.store.Attachments().Create(ctx, record); err != nil {
			return nil, apperrors.MapError(err)
		}
	}

	if err := s.store.Tickets().TouchLastMessage(ctx, ticket.ID, msg.CreatedAt); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.markMessageCreated(ctx, ticket, msg)
	return msg, nil
}

// markMessageCreated emits the post-commit side effects for a new message:
// one realtime event and one notification task.
func (s *TicketService) markMessageCreated(ctx context.Context, ticket *domain.Ticket, msg *domain.TicketMessage) {
	publishEvent(ctx, s.broadcaster, s.metrics, s.logger, events.Event{
		Type:     events.EventTicketMessageCreated,
		TicketID: ticket.ID,
		Message: &events.MessagePayload{
			MessageID:  msg.ID,
			AuthorID:   msg.AuthorID,
			Body:       msg.Body,
			IsInternal: msg.IsInternal,
			CreatedAt:  msg.CreatedAt,
		},
	})
	if s.notifier != nil {
		s.notifier.EnqueueNotification(ctx, events.EventTicketMessageCreated, ticket.ID, &msg.ID, nil)
	}
}

// ListMessages returns the thread, hiding internal notes from customers.
func (s *TicketService) ListMessages(ctx context.Context, actor *domain.User, ticketID int64) ([]domain.TicketMessage, error) {
	ticket, err := s.GetTicket(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.store.Messages().ListByTicket(ctx, ticket.ID, actor.Role != domain.RoleCustomer)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return msgs, nil
}

// ListAttachments returns attachment metadata for a ticket.
func (s *TicketService) ListAttachments(ctx context.Context, actor *domain.User, ticketID int64) ([]domain.Attachment, error) {
	ticket, err := s.GetTicket(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	atts, err := s.store.Attachments().ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return atts, nil
}

func canAccessTicket(actor *domain.User, ticket *domain.Ticket) bool {
	if actor == nil {
		return false
	}
	switch actor.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleAgent:
		return ticket.AssignedAgentID != nil && *ticket.AssignedAgentID == actor.ID
	default:
		return ticket.CustomerID != nil && *ticket.CustomerID == actor.ID
	}
}

func applyActorScope(filter *repository.TicketFilter, actor *domain.User) {
	switch actor.Role {
	case domain.RoleAdmin:
	case domain.RoleAgent:
		filter.AssignedAgentID = &actor.ID
	default:
		filter.CustomerID = &actor.ID
	}
}
