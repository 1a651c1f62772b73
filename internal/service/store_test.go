package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/deskhub/support-service/internal/domain"
	"github.com/deskhub/support-service/internal/repository"
)

// fakeStore is an in-memory repository.Store. Transactions are serialized by
// txMu, which models the exclusive row lock closely enough for the scheduler:
// concurrent InTx callbacks never interleave, and an error from the callback
// restores the pre-transaction snapshot.
type fakeStore struct {
	mu   sync.Mutex
	txMu sync.Mutex

	users       map[int64]*domain.User
	tickets     map[int64]*domain.Ticket
	messages    map[int64]*domain.TicketMessage
	attachments map[int64]*domain.Attachment

	nextUserID       int64
	nextTicketID     int64
	nextMessageID    int64
	nextAttachmentID int64

	// error injection
	failUpdateAssignment error
	failSetAvailability  error

	baseTime time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:       make(map[int64]*domain.User),
		tickets:     make(map[int64]*domain.Ticket),
		messages:    make(map[int64]*domain.TicketMessage),
		attachments: make(map[int64]*domain.Attachment),
		baseTime:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (s *fakeStore) Tickets() repository.TicketRepository    { return &fakeTicketRepo{s: s} }
func (s *fakeStore) Users() repository.UserRepository        { return &fakeUserRepo{s: s} }
func (s *fakeStore) Messages() repository.MessageRepository  { return &fakeMessageRepo{s: s} }
func (s *fakeStore) Attachments() repository.AttachmentRepository {
	return &fakeAttachmentRepo{s: s}
}

func (s *fakeStore) InTx(_ context.Context, fn func(tx repository.TxStore) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snapshot := s.snapshot()
	if err := fn(s); err != nil {
		s.restore(snapshot)
		return err
	}
	return nil
}

type storeSnapshot struct {
	users   map[int64]*domain.User
	tickets map[int64]*domain.Ticket
}

func (s *fakeStore) snapshot() storeSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := storeSnapshot{
		users:   make(map[int64]*domain.User, len(s.users)),
		tickets: make(map[int64]*domain.Ticket, len(s.tickets)),
	}
	for id, u := range s.users {
		copied := *u
		snap.users[id] = &copied
	}
	for id, t := range s.tickets {
		copied := *t
		snap.tickets[id] = &copied
	}
	return snap
}

func (s *fakeStore) restore(snap storeSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = snap.users
	s.tickets = snap.tickets
}

// addAgent seeds an agent account.
func (s *fakeStore) addAgent(username string, available bool, capacity int) *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextUserID++
	user := &domain.User{
		ID:          s.nextUserID,
		Username:    username,
		Email:       username + "@example.com",
		Role:        domain.RoleAgent,
		IsAvailable: available,
		Capacity:    capacity,
		CreatedAt:   s.baseTime,
		UpdatedAt:   s.baseTime,
	}
	s.users[user.ID] = user
	copied := *user
	return &copied
}

func (s *fakeStore) addUser(username string, role domain.UserRole) *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextUserID++
	user := &domain.User{
		ID:        s.nextUserID,
		Username:  username,
		Email:     username + "@example.com",
		Role:      role,
		Capacity:  5,
		CreatedAt: s.baseTime,
		UpdatedAt: s.baseTime,
	}
	s.users[user.ID] = user
	copied := *user
	return &copied
}

// addTicket seeds a ticket; created_at increases with the id so ordering by
// age is deterministic.
func (s *fakeStore) addTicket(customerID *int64, status domain.TicketStatus, agentID *int64) *domain.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTicketID++
	created := s.baseTime.Add(time.Duration(s.nextTicketID) * time.Minute)
	ticket := &domain.Ticket{
		ID:              s.nextTicketID,
		CustomerID:      customerID,
		AssignedAgentID: agentID,
		Subject:         "ticket",
		Status:          status,
		Priority:        domain.TicketPriorityMedium,
		CreatedAt:       created,
		UpdatedAt:       created,
	}
	s.tickets[ticket.ID] = ticket
	copied := *ticket
	return &copied
}

// setTicketTimes rewrites a seeded ticket's timestamps for aggregate tests.
func (s *fakeStore) setTicketTimes(id int64, created time.Time, closed *time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tickets[id]
	t.CreatedAt = created
	t.ClosedAt = closed
}

func (s *fakeStore) ticket(id int64) *domain.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *s.tickets[id]
	return &copied
}

func (s *fakeStore) user(id int64) *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *s.users[id]
	return &copied
}

type fakeTicketRepo struct {
	s *fakeStore
}

func (r *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextTicketID++
	ticket.ID = r.s.nextTicketID
	ticket.CreatedAt = r.s.baseTime.Add(time.Duration(ticket.ID) * time.Minute)
	ticket.UpdatedAt = ticket.CreatedAt
	copied := *ticket
	r.s.tickets[ticket.ID] = &copied
	return nil
}

func (r *fakeTicketRepo) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ticket, ok := r.s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *ticket
	return &copied, nil
}

func (r *fakeTicketRepo) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Ticket, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeTicketRepo) UpdateAssignment(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failUpdateAssignment != nil {
		return r.s.failUpdateAssignment
	}
	stored, ok := r.s.tickets[ticket.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	stored.AssignedAgentID = ticket.AssignedAgentID
	stored.Status = ticket.Status
	stored.UpdatedAt = time.Now()
	return nil
}

func (r *fakeTicketRepo) UpdateStatus(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.tickets[ticket.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	stored.Status = ticket.Status
	stored.ClosedAt = ticket.ClosedAt
	stored.UpdatedAt = time.Now()
	return nil
}

func (r *fakeTicketRepo) TouchLastMessage(_ context.Context, id int64, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.tickets[id]
	if !ok {
		return pgx.ErrNoRows
	}
	stored.LastMessageAt = &at
	stored.UpdatedAt = time.Now()
	return nil
}

func (r *fakeTicketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Ticket
	for _, t := range r.s.tickets {
		if !matchesFilter(t, filter) {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func matchesFilter(t *domain.Ticket, filter repository.TicketFilter) bool {
	if filter.CustomerID != nil && (t.CustomerID == nil || *t.CustomerID != *filter.CustomerID) {
		return false
	}
	if filter.AssignedAgentID != nil && (t.AssignedAgentID == nil || *t.AssignedAgentID != *filter.AssignedAgentID) {
		return false
	}
	if len(filter.Statuses) > 0 {
		found := false
		for _, status := range filter.Statuses {
			if t.Status == status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(filter.Priorities) > 0 {
		found := false
		for _, pr := range filter.Priorities {
			if t.Priority == pr {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (r *fakeTicketRepo) ListUnassignedOpenIDs(_ context.Context, limit int) ([]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var matching []*domain.Ticket
	for _, t := range r.s.tickets {
		if t.Status == domain.TicketStatusOpen && t.AssignedAgentID == nil {
			matching = append(matching, t)
		}
	}
	sort.Slice(matching, func(i, j int) bool {
		return matching[i].CreatedAt.Before(matching[j].CreatedAt)
	})
	ids := make([]int64, 0, len(matching))
	for _, t := range matching {
		if limit > 0 && len(ids) >= limit {
			break
		}
		ids = append(ids, t.ID)
	}
	return ids, nil
}

func (r *fakeTicketRepo) CountActiveByAgent(_ context.Context, agentID int64) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	count := 0
	for _, t := range r.s.tickets {
		if t.AssignedAgentID != nil && *t.AssignedAgentID == agentID && t.Status.Active() {
			count++
		}
	}
	return count, nil
}

func (r *fakeTicketRepo) Search(_ context.Context, filter repository.SearchFilter) ([]domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	query := strings.ToLower(filter.Query)
	var out []domain.Ticket
	for _, t := range r.s.tickets {
		if filter.CustomerID != nil && (t.CustomerID == nil || *t.CustomerID != *filter.CustomerID) {
			continue
		}
		if filter.AssignedAgentID != nil && (t.AssignedAgentID == nil || *t.AssignedAgentID != *filter.AssignedAgentID) {
			continue
		}
		if !strings.Contains(strings.ToLower(t.Subject), query) &&
			!strings.Contains(strings.ToLower(t.Description), query) {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeTicketRepo) CountByStatus(_ context.Context) (map[domain.TicketStatus]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	counts := make(map[domain.TicketStatus]int)
	for _, t := range r.s.tickets {
		counts[t.Status]++
	}
	return counts, nil
}

func (r *fakeTicketRepo) DailyCreatedCounts(_ context.Context, since time.Time) ([]domain.TicketVolumePoint, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	byDay := make(map[time.Time]int)
	for _, t := range r.s.tickets {
		if t.CreatedAt.Before(since) {
			continue
		}
		day := t.CreatedAt.Truncate(24 * time.Hour)
		byDay[day]++
	}
	var series []domain.TicketVolumePoint
	for day, count := range byDay {
		series = append(series, domain.TicketVolumePoint{Day: day, Count: count})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Day.Before(series[j].Day) })
	return series, nil
}

func (r *fakeTicketRepo) ResolutionStats(_ context.Context) (domain.ResolutionStats, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var stats domain.ResolutionStats
	var totalSeconds int64
	for _, t := range r.s.tickets {
		if t.ClosedAt == nil {
			continue
		}
		stats.ResolvedCount++
		totalSeconds += int64(t.ClosedAt.Sub(t.CreatedAt).Seconds())
	}
	if stats.ResolvedCount > 0 {
		avg := totalSeconds / int64(stats.ResolvedCount)
		stats.AvgResolutionSeconds = &avg
	}
	return stats, nil
}

type fakeUserRepo struct {
	s *fakeStore
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextUserID++
	user.ID = r.s.nextUserID
	user.CreatedAt = r.s.baseTime
	user.UpdatedAt = r.s.baseTime
	copied := *user
	r.s.users[user.ID] = &copied
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user, ok := r.s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, user := range r.s.users {
		if user.Username == username {
			copied := *user
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, user := range r.s.users {
		if strings.EqualFold(user.Email, email) {
			copied := *user
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeUserRepo) UpdateProfile(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.users[user.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	stored.IsAvailable = user.IsAvailable
	stored.Capacity = user.Capacity
	stored.UpdatedAt = time.Now()
	return nil
}

func (r *fakeUserRepo) SetAvailability(_ context.Context, id int64, available bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failSetAvailability != nil {
		return r.s.failSetAvailability
	}
	stored, ok := r.s.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	stored.IsAvailable = available
	return nil
}

func (r *fakeUserRepo) ListAvailableAgentsByLoad(ctx context.Context) ([]domain.AgentLoad, error) {
	loads, err := r.agentLoads(ctx, true)
	if err != nil {
		return nil, err
	}
	sort.Slice(loads, func(i, j int) bool {
		if loads[i].ActiveCount != loads[j].ActiveCount {
			return loads[i].ActiveCount < loads[j].ActiveCount
		}
		return loads[i].Agent.ID < loads[j].Agent.ID
	})
	return loads, nil
}

func (r *fakeUserRepo) ListAgentsWithLoad(ctx context.Context) ([]domain.AgentLoad, error) {
	loads, err := r.agentLoads(ctx, false)
	if err != nil {
		return nil, err
	}
	sort.Slice(loads, func(i, j int) bool {
		if loads[i].Agent.IsAvailable != loads[j].Agent.IsAvailable {
			return loads[i].Agent.IsAvailable
		}
		return loads[i].Agent.Username < loads[j].Agent.Username
	})
	return loads, nil
}

func (r *fakeUserRepo) agentLoads(ctx context.Context, onlyAvailable bool) ([]domain.AgentLoad, error) {
	r.s.mu.Lock()
	var agents []domain.User
	for _, user := range r.s.users {
		if user.Role != domain.RoleAgent {
			continue
		}
		if onlyAvailable && !user.IsAvailable {
			continue
		}
		agents = append(agents, *user)
	}
	r.s.mu.Unlock()

	tickets := &fakeTicketRepo{s: r.s}
	loads := make([]domain.AgentLoad, 0, len(agents))
	for _, agent := range agents {
		count, err := tickets.CountActiveByAgent(ctx, agent.ID)
		if err != nil {
			return nil, err
		}
		loads = append(loads, domain.AgentLoad{Agent: agent, ActiveCount: count})
	}
	return loads, nil
}

type fakeMessageRepo struct {
	s *fakeStore
}

func (r *fakeMessageRepo) Create(_ context.Context, msg *domain.TicketMessage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextMessageID++
	msg.ID = r.s.nextMessageID
	msg.CreatedAt = r.s.baseTime.Add(time.Duration(msg.ID) * time.Second)
	copied := *msg
	r.s.messages[msg.ID] = &copied
	return nil
}

func (r *fakeMessageRepo) GetByID(_ context.Context, id int64) (*domain.TicketMessage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	msg, ok := r.s.messages[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *msg
	return &copied, nil
}

func (r *fakeMessageRepo) ListByTicket(_ context.Context, ticketID int64, includeInternal bool) ([]domain.TicketMessage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.TicketMessage
	for _, msg := range r.s.messages {
		if msg.TicketID != ticketID {
			continue
		}
		if msg.IsInternal && !includeInternal {
			continue
		}
		out = append(out, *msg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeAttachmentRepo struct {
	s *fakeStore
}

func (r *fakeAttachmentRepo) Create(_ context.Context, att *domain.Attachment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextAttachmentID++
	att.ID = r.s.nextAttachmentID
	att.CreatedAt = r.s.baseTime
	copied := *att
	r.s.attachments[att.ID] = &copied
	return nil
}

func (r *fakeAttachmentRepo) ListByTicket(_ context.Context, ticketID int64) ([]domain.Attachment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Attachment
	for _, att := range r.s.attachments {
		if att.TicketID == ticketID {
			out = append(out, *att)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
