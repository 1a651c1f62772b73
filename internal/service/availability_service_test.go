package service

import (
	"context"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/deskhub/support-service/internal/domain"
	"github.com/deskhub/support-service/internal/observability"
)

type recordingAssigner struct {
	mu        sync.Mutex
	ticketIDs []int64
}

func (a *recordingAssigner) Assign(_ context.Context, ticketID int64) (AssignResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ticketIDs = append(a.ticketIDs, ticketID)
	return AssignResult{Outcome: AssignOutcomeDeferred}, nil
}

func (a *recordingAssigner) assigned() []int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]int64, len(a.ticketIDs))
	copy(out, a.ticketIDs)
	return out
}

func newAvailabilityService(store *fakeStore, assigner Assigner, batch int) *AvailabilityService {
	return NewAvailabilityService(AvailabilityDependencies{
		Store:          store,
		Assigner:       assigner,
		Metrics:        observability.NewMetrics(prometheus.NewRegistry()),
		Logger:         zap.NewNop(),
		SweepBatchSize: batch,
	})
}

func TestRecomputeNoOpWhenStateMatches(t *testing.T) {
	store := newFakeStore()
	agent := store.addAgent("agent", true, 5)
	store.addTicket(nil, domain.TicketStatusAssigned, &agent.ID)
	svc := newAvailabilityService(store, &recordingAssigner{}, 0)

	result, err := svc.Recompute(context.Background(), agent.ID)
	require.NoError(t, err)
	assert.Equal(t, RecomputeOutcomeNoOp, result.Outcome)
	assert.True(t, result.IsAvailable)
	assert.Equal(t, 1, result.ActiveCount)
}

func TestRecomputeFlipsDownAtCapacity(t *testing.T) {
	store := newFakeStore()
	agent := store.addAgent("agent", true, 2)
	store.addTicket(nil, domain.TicketStatusAssigned, &agent.ID)
	store.addTicket(nil, domain.TicketStatusInProgress, &agent.ID)
	svc := newAvailabilityService(store, &recordingAssigner{}, 0)

	result, err := svc.Recompute(context.Background(), agent.ID)
	require.NoError(t, err)
	assert.Equal(t, RecomputeOutcomeUpdated, result.Outcome)
	assert.False(t, result.IsAvailable)
	assert.False(t, store.user(agent.ID).IsAvailable)
}

func TestRecomputeFlipsUpWhenLoadDrops(t *testing.T) {
	store := newFakeStore()
	agent := store.addAgent("agent", false, 5)
	store.addTicket(nil, domain.TicketStatusResolved, &agent.ID)
	svc := newAvailabilityService(store, &recordingAssigner{}, 0)

	result, err := svc.Recompute(context.Background(), agent.ID)
	require.NoError(t, err)
	assert.Equal(t, RecomputeOutcomeUpdated, result.Outcome)
	assert.True(t, result.IsAvailable)
	assert.Equal(t, 0, result.ActiveCount)
}

func TestRecomputeZeroCapacityNeverAvailable(t *testing.T) {
	store := newFakeStore()
	agent := store.addAgent("paused", true, 0)
	svc := newAvailabilityService(store, &recordingAssigner{}, 0)

	result, err := svc.Recompute(context.Background(), agent.ID)
	require.NoError(t, err)
	assert.Equal(t, RecomputeOutcomeUpdated, result.Outcome)
	assert.False(t, result.IsAvailable, "capacity 0 means unavailable regardless of load")
}

func TestRecomputeNotFoundForMissingOrNonAgent(t *testing.T) {
	store := newFakeStore()
	customer := store.addUser("customer", domain.RoleCustomer)
	svc := newAvailabilityService(store, &recordingAssigner{}, 0)

	result, err := svc.Recompute(context.Background(), 999)
	require.NoError(t, err)
	assert.Equal(t, RecomputeOutcomeNotFound, result.Outcome)

	result, err = svc.Recompute(context.Background(), customer.ID)
	require.NoError(t, err)
	assert.Equal(t, RecomputeOutcomeNotFound, result.Outcome)
}

func TestRecomputeNeverTriggersScheduling(t *testing.T) {
	store := newFakeStore()
	agent := store.addAgent("agent", false, 5)
	store.addTicket(nil, domain.TicketStatusOpen, nil)
	assigner := &recordingAssigner{}
	svc := newAvailabilityService(store, assigner, 0)

	result, err := svc.Recompute(context.Background(), agent.ID)
	require.NoError(t, err)
	require.Equal(t, RecomputeOutcomeUpdated, result.Outcome)
	require.True(t, result.IsAvailable)

	assert.Empty(t, assigner.assigned(),
		"recompute flipping an agent up must not schedule backlog tickets")
}

func TestUpdateProfileSweepsBacklogOldestFirst(t *testing.T) {
	store := newFakeStore()
	agent := store.addAgent("agent", false, 5)
	t1 := store.addTicket(nil, domain.TicketStatusOpen, nil)
	t2 := store.addTicket(nil, domain.TicketStatusOpen, nil)
	assigned := store.addTicket(nil, domain.TicketStatusAssigned, &agent.ID)
	assigner := &recordingAssigner{}
	svc := newAvailabilityService(store, assigner, 0)

	available := true
	_, err := svc.UpdateProfile(context.Background(), agent.ID, ProfileUpdate{IsAvailable: &available})
	require.NoError(t, err)

	assert.Equal(t, []int64{t1.ID, t2.ID}, assigner.assigned(),
		"only unassigned OPEN tickets, oldest first")
	assert.NotContains(t, assigner.assigned(), assigned.ID)
}

func TestUpdateProfileSweepRespectsBatchSize(t *testing.T) {
	store := newFakeStore()
	agent := store.addAgent("agent", false, 50)
	var ids []int64
	for i := 0; i < 5; i++ {
		ids = append(ids, store.addTicket(nil, domain.TicketStatusOpen, nil).ID)
	}
	assigner := &recordingAssigner{}
	svc := newAvailabilityService(store, assigner, 3)

	available := true
	_, err := svc.UpdateProfile(context.Background(), agent.ID, ProfileUpdate{IsAvailable: &available})
	require.NoError(t, err)

	assert.Equal(t, ids[:3], assigner.assigned())
}

func TestUpdateProfileSweepContinuesPastDeferred(t *testing.T) {
	store := newFakeStore()
	broadcaster := &recordingBroadcaster{}
	scheduler := NewAssignmentService(AssignmentDependencies{
		Store:       store,
		Broadcaster: broadcaster,
		Metrics:     observability.NewMetrics(prometheus.NewRegistry()),
		Logger:      zap.NewNop(),
	})
	svc := newAvailabilityService(store, scheduler, 0)

	// One extra agent with a single slot: the first ticket fills the
	// flipped agent, later ones must still be offered and land on it.
	other := store.addAgent("other", true, 1)
	flipped := store.addAgent("flipped", false, 1)
	t1 := store.addTicket(nil, domain.TicketStatusOpen, nil)
	t2 := store.addTicket(nil, domain.TicketStatusOpen, nil)
	t3 := store.addTicket(nil, domain.TicketStatusOpen, nil)

	available := true
	_, err := svc.UpdateProfile(context.Background(), flipped.ID, ProfileUpdate{IsAvailable: &available})
	require.NoError(t, err)

	first := store.ticket(t1.ID)
	second := store.ticket(t2.ID)
	third := store.ticket(t3.ID)
	require.NotNil(t, first.AssignedAgentID)
	require.NotNil(t, second.AssignedAgentID)
	assert.Equal(t, other.ID, *first.AssignedAgentID)
	assert.Equal(t, flipped.ID, *second.AssignedAgentID)
	assert.Nil(t, third.AssignedAgentID, "both agents saturated, last ticket stays queued")
	assert.Equal(t, domain.TicketStatusOpen, third.Status)
}

func TestUpdateProfileNoSweepWhenFlippingDown(t *testing.T) {
	store := newFakeStore()
	agent := store.addAgent("agent", true, 5)
	store.addTicket(nil, domain.TicketStatusOpen, nil)
	assigner := &recordingAssigner{}
	svc := newAvailabilityService(store, assigner, 0)

	available := false
	profile, err := svc.UpdateProfile(context.Background(), agent.ID, ProfileUpdate{IsAvailable: &available})
	require.NoError(t, err)
	assert.False(t, profile.Agent.IsAvailable)
	assert.Empty(t, assigner.assigned())
}

func TestUpdateProfileRejectsNegativeCapacity(t *testing.T) {
	store := newFakeStore()
	agent := store.addAgent("agent", true, 5)
	svc := newAvailabilityService(store, &recordingAssigner{}, 0)

	capacity := -1
	_, err := svc.UpdateProfile(context.Background(), agent.ID, ProfileUpdate{Capacity: &capacity})
	require.Error(t, err)
}

func TestUpdateProfileForbiddenForCustomer(t *testing.T) {
	store := newFakeStore()
	customer := store.addUser("customer", domain.RoleCustomer)
	svc := newAvailabilityService(store, &recordingAssigner{}, 0)

	available := true
	_, err := svc.UpdateProfile(context.Background(), customer.ID, ProfileUpdate{IsAvailable: &available})
	require.Error(t, err)
}
