package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/deskhub/support-service/internal/domain"
	"github.com/deskhub/support-service/internal/events"
	"github.com/deskhub/support-service/internal/observability"
	"github.com/deskhub/support-service/internal/repository"
	apperrors "github.com/deskhub/support-service/pkg/util"
)

// AssignOutcome is the terminal result of one scheduling attempt.
type AssignOutcome string

const (
	// AssignOutcomeAssigned covers both a fresh assignment and the
	// idempotent no-op on an already-assigned ticket.
	AssignOutcomeAssigned AssignOutcome = "assigned"
	// AssignOutcomeDeferred means no eligible agent had spare capacity;
	// the ticket stays unassigned until a future availability change
	// retries it.
	AssignOutcomeDeferred AssignOutcome = "deferred"
	AssignOutcomeNotFound AssignOutcome = "not_found"
)

// AssignResult reports what the scheduler did with a ticket.
type AssignResult struct {
	Outcome AssignOutcome
	AgentID *int64
	Ticket  *domain.Ticket
	// NewlyAssigned is false for the idempotent path; side effects are
	// emitted only when it is true.
	NewlyAssigned bool
}

// AssignmentService atomically picks the least-loaded available agent for an
// unassigned ticket.
type AssignmentService struct {
	store       repository.Store
	broadcaster events.Broadcaster
	notifier    Notifier
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// AssignmentDependencies bundles collaborators.
type AssignmentDependencies struct {
	Store       repository.Store
	Broadcaster events.Broadcaster
	Notifier    Notifier
	Metrics     *observability.Metrics
	Logger      *zap.Logger
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	return &AssignmentService{
		store:       deps.Store,
		broadcaster: deps.Broadcaster,
		notifier:    deps.Notifier,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
	}
}

// Assign selects an agent for the ticket. Safe to call concurrently for the
// same ticket: the row lock serializes racers and the loser observes the
// already-assigned precondition. Events and the notification enqueue happen
// only after the transaction commits.
func (s *AssignmentService) Assign(ctx context.Context, ticketID int64) (AssignResult, error) {
	// Unlocked precheck so the common already-assigned case skips the
	// transaction entirely. The locked double-check below closes the race.
	ticket, err := s.store.Tickets().GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.metrics.RecordAssignment(string(AssignOutcomeNotFound))
			return AssignResult{Outcome: AssignOutcomeNotFound}, nil
		}
		return AssignResult{}, apperrors.MapError(err)
	}
	if ticket.AssignedAgentID != nil {
		return AssignResult{
			Outcome: AssignOutcomeAssigned,
			AgentID: ticket.AssignedAgentID,
			Ticket:  ticket,
		}, nil
	}

	var result AssignResult
	txErr := s.store.InTx(ctx, func(tx repository.TxStore) error {
		locked, err := tx.Tickets().GetByIDForUpdate(ctx, ticketID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				result = AssignResult{Outcome: AssignOutcomeNotFound}
				return nil
			}
			return err
		}
		if locked.AssignedAgentID != nil {
			// lost the race; the winner's assignment stands
			result = AssignResult{
				Outcome: AssignOutcomeAssigned,
				AgentID: locked.AssignedAgentID,
				Ticket:  locked,
			}
			return nil
		}

		candidates, err := tx.Users().ListAvailableAgentsByLoad(ctx)
		if err != nil {
			return err
		}
		selected := pickAgent(candidates)
		if selected == nil {
			result = AssignResult{Outcome: AssignOutcomeDeferred}
			return nil
		}

		locked.AssignedAgentID = &selected.Agent.ID
		if locked.Status == domain.TicketStatusOpen {
			// re-assignment never regresses an in-progress ticket
			locked.Status = domain.TicketStatusAssigned
		}
		if err := tx.Tickets().UpdateAssignment(ctx, locked); err != nil {
			return err
		}

		// Advisory flip-down so the next pass skips a now-saturated agent.
		// Availability recomputation remains the source of truth.
		if selected.ActiveCount+1 >= selected.Agent.Capacity {
			if err := tx.Users().SetAvailability(ctx, selected.Agent.ID, false); err != nil {
				return err
			}
		}

		result = AssignResult{
			Outcome:       AssignOutcomeAssigned,
			AgentID:       &selected.Agent.ID,
			Ticket:        locked,
			NewlyAssigned: true,
		}
		return nil
	})
	if txErr != nil {
		return AssignResult{}, apperrors.MapError(txErr)
	}

	s.metrics.RecordAssignment(outcomeLabel(result))
	if result.NewlyAssigned {
		s.emitAssigned(ctx, result.Ticket)
	}
	return result, nil
}

// AssignTo pins the ticket to an explicit agent, bypassing the least-loaded
// scan. Used by the manual assignment endpoint.
func (s *AssignmentService) AssignTo(ctx context.Context, ticketID, agentID int64) (*domain.Ticket, error) {
	agent, err := s.store.Users().GetByID(ctx, agentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("agent", map[string]any{"agent_id": agentID})
		}
		return nil, apperrors.MapError(err)
	}
	if !agent.IsAgent() && agent.Role != domain.RoleAdmin {
		return nil, apperrors.NewValidationError("assignee is not an agent", map[string]any{"agent_id": agentID})
	}

	var updated *domain.Ticket
	txErr := s.store.InTx(ctx, func(tx repository.TxStore) error {
		locked, err := tx.Tickets().GetByIDForUpdate(ctx, ticketID)
		if err != nil {
			return err
		}
		locked.AssignedAgentID = &agentID
		if locked.Status == domain.TicketStatusOpen {
			locked.Status = domain.TicketStatusAssigned
		}
		if err := tx.Tickets().UpdateAssignment(ctx, locked); err != nil {
			return err
		}
		updated = locked
		return nil
	})
	if txErr != nil {
		if errors.Is(txErr, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(txErr)
	}

	s.emitAssigned(ctx, updated)
	return updated, nil
}

// pickAgent walks candidates ordered by (active count, id) and returns the
// first with spare capacity, or nil when everyone is saturated.
func pickAgent(candidates []domain.AgentLoad) *domain.AgentLoad {
	for i := range candidates {
		if candidates[i].HasSpareCapacity() {
			return &candidates[i]
		}
	}
	return nil
}

func (s *AssignmentService) emitAssigned(ctx context.Context, ticket *domain.Ticket) {
	publishEvent(ctx, s.broadcaster, s.metrics, s.logger, events.Event{
		Type:            events.EventTicketAssigned,
		TicketID:        ticket.ID,
		AssignedAgentID: ticket.AssignedAgentID,
		Status:          ticket.Status,
	})
	if s.notifier != nil {
		status := ticket.Status
		s.notifier.EnqueueNotification(ctx, events.EventTicketAssigned, ticket.ID, nil, &status)
	}
}

func outcomeLabel(result AssignResult) string {
	if result.Outcome == AssignOutcomeAssigned && !result.NewlyAssigned {
		return "noop"
	}
	return string(result.Outcome)
}
