package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/deskhub/support-service/internal/domain"
	"github.com/deskhub/support-service/internal/observability"
	"github.com/deskhub/support-service/internal/repository"
	apperrors "github.com/deskhub/support-service/pkg/util"
)

// RecomputeOutcome reports what availability recomputation did.
type RecomputeOutcome string

const (
	RecomputeOutcomeUpdated  RecomputeOutcome = "updated"
	RecomputeOutcomeNoOp     RecomputeOutcome = "noop"
	RecomputeOutcomeNotFound RecomputeOutcome = "not_found"
)

// RecomputeResult carries the outcome and the derived target state.
type RecomputeResult struct {
	Outcome     RecomputeOutcome
	IsAvailable bool
	ActiveCount int
}

// AgentProfile is the availability view returned to agents and admins.
type AgentProfile struct {
	Agent       domain.User
	ActiveCount int
}

// ProfileUpdate carries the PATCH payload for an agent's own profile. Nil
// fields are left unchanged.
type ProfileUpdate struct {
	IsAvailable *bool
	Capacity    *int
}

// AvailabilityService derives agent availability from current load and
// bridges "agent just came online" with the unassigned backlog.
type AvailabilityService struct {
	store          repository.Store
	assigner       Assigner
	metrics        *observability.Metrics
	logger         *zap.Logger
	sweepBatchSize int
}

// AvailabilityDependencies bundles collaborators.
type AvailabilityDependencies struct {
	Store          repository.Store
	Assigner       Assigner
	Metrics        *observability.Metrics
	Logger         *zap.Logger
	SweepBatchSize int
}

// NewAvailabilityService creates the service.
func NewAvailabilityService(deps AvailabilityDependencies) *AvailabilityService {
	batch := deps.SweepBatchSize
	if batch <= 0 {
		batch = 50
	}
	return &AvailabilityService{
		store:          deps.Store,
		assigner:       deps.Assigner,
		metrics:        deps.Metrics,
		logger:         deps.Logger,
		sweepBatchSize: batch,
	}
}

// Recompute re-derives the agent's availability from its active ticket
// count. It writes only when the stored flag differs from the target, and it
// never triggers scheduling of other tickets: that stays an explicit,
// separate trigger so a recompute cannot cascade into unbounded assignment.
func (s *AvailabilityService) Recompute(ctx context.Context, agentID int64) (RecomputeResult, error) {
	user, err := s.store.Users().GetByID(ctx, agentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RecomputeResult{Outcome: RecomputeOutcomeNotFound}, nil
		}
		return RecomputeResult{}, apperrors.MapError(err)
	}
	if !user.IsAgent() {
		return RecomputeResult{Outcome: RecomputeOutcomeNotFound}, nil
	}

	activeCount, err := s.store.Tickets().CountActiveByAgent(ctx, agentID)
	if err != nil {
		return RecomputeResult{}, apperrors.MapError(err)
	}

	target := user.Capacity > 0 && activeCount < user.Capacity
	if user.IsAvailable == target {
		return RecomputeResult{
			Outcome:     RecomputeOutcomeNoOp,
			IsAvailable: user.IsAvailable,
			ActiveCount: activeCount,
		}, nil
	}

	if err := s.store.Users().SetAvailability(ctx, agentID, target); err != nil {
		return RecomputeResult{}, apperrors.MapError(err)
	}
	s.metrics.RecordAvailabilityFlip(target)
	s.logger.Info("agent availability recomputed",
		zap.Int64("agent_id", agentID),
		zap.Bool("is_available", target),
		zap.Int("active_count", activeCount))

	return RecomputeResult{
		Outcome:     RecomputeOutcomeUpdated,
		IsAvailable: target,
		ActiveCount: activeCount,
	}, nil
}

// GetProfile returns the agent's profile plus its derived active count.
func (s *AvailabilityService) GetProfile(ctx context.Context, agentID int64) (*AgentProfile, error) {
	user, err := s.store.Users().GetByID(ctx, agentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("agent", map[string]any{"agent_id": agentID})
		}
		return nil, apperrors.MapError(err)
	}
	count, err := s.store.Tickets().CountActiveByAgent(ctx, agentID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &AgentProfile{Agent: *user, ActiveCount: count}, nil
}

// UpdateProfile applies an agent's own availability/capacity change. When an
// agent flips from unavailable to available, the oldest unassigned OPEN
// tickets are swept through the scheduler, one call per ticket, bounded by
// the configured batch size.
func (s *AvailabilityService) UpdateProfile(ctx context.Context, agentID int64, update ProfileUpdate) (*AgentProfile, error) {
	user, err := s.store.Users().GetByID(ctx, agentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("agent", map[string]any{"agent_id": agentID})
		}
		return nil, apperrors.MapError(err)
	}
	if user.Role != domain.RoleAgent && user.Role != domain.RoleAdmin {
		return nil, apperrors.NewForbidden("only agents and admins have an availability profile")
	}

	wasAvailable := user.IsAvailable
	if update.IsAvailable != nil {
		user.IsAvailable = *update.IsAvailable
	}
	if update.Capacity != nil {
		if *update.Capacity < 0 {
			return nil, apperrors.NewValidationError("capacity must be non-negative", nil)
		}
		user.Capacity = *update.Capacity
	}

	if err := s.store.Users().UpdateProfile(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}

	if user.Role == domain.RoleAgent && !wasAvailable && user.IsAvailable {
		s.sweepBacklog(ctx)
	}

	count, err := s.store.Tickets().CountActiveByAgent(ctx, agentID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &AgentProfile{Agent: *user, ActiveCount: count}, nil
}

// ListAgents returns all agents with their derived load for the admin
// presence view.
func (s *AvailabilityService) ListAgents(ctx context.Context) ([]domain.AgentLoad, error) {
	agents, err := s.store.Users().ListAgentsWithLoad(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return agents, nil
}

// sweepBacklog offers the oldest unassigned OPEN tickets to the scheduler,
// one Assign call per ticket. Deferred outcomes are fine: other tickets in
// the batch may still land on agents with spare capacity.
func (s *AvailabilityService) sweepBacklog(ctx context.Context) {
	ids, err := s.store.Tickets().ListUnassignedOpenIDs(ctx, s.sweepBatchSize)
	if err != nil {
		s.logger.Warn("backlog sweep query failed", zap.Error(err))
		return
	}
	for _, id := range ids {
		if _, err := s.assigner.Assign(ctx, id); err != nil {
			s.logger.Warn("backlog sweep assignment failed",
				zap.Int64("ticket_id", id), zap.Error(err))
			continue
		}
		s.metrics.SweepTickets.Inc()
	}
}
