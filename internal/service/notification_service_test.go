package service

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/deskhub/support-service/internal/config"
	"github.com/deskhub/support-service/internal/domain"
	"github.com/deskhub/support-service/internal/events"
	"github.com/deskhub/support-service/internal/queue"
)

type sentMail struct {
	From    string
	To      []string
	Subject string
	Body    string
}

type capturingMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *capturingMailer) Send(_ context.Context, from string, to []string, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{From: from, To: to, Subject: subject, Body: body})
	return nil
}

func (m *capturingMailer) mails() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]sentMail, len(m.sent))
	copy(out, m.sent)
	return out
}

func newNotificationFixture() (*fakeStore, *capturingMailer, *NotificationService) {
	store := newFakeStore()
	mailer := &capturingMailer{}
	svc := NewNotificationService(store, queue.NewMemoryQueue(), mailer, zap.NewNop(), config.NotificationConfig{
		EmailFrom: "support@deskhub.test",
	})
	return store, mailer, svc
}

func TestDeliverAssignedNotifiesCustomerAndAgent(t *testing.T) {
	store, mailer, svc := newNotificationFixture()
	customer := store.addUser("customer", domain.RoleCustomer)
	agent := store.addAgent("agent", true, 5)
	ticket := store.addTicket(&customer.ID, domain.TicketStatusAssigned, &agent.ID)

	err := svc.Deliver(context.Background(), queue.Task{
		ID:        "task-1",
		EventType: string(events.EventTicketAssigned),
		TicketID:  ticket.ID,
	})
	require.NoError(t, err)

	mails := mailer.mails()
	require.Len(t, mails, 1)
	assert.Equal(t, "support@deskhub.test", mails[0].From)
	assert.ElementsMatch(t, []string{customer.Email, agent.Email}, mails[0].To)
	assert.Contains(t, mails[0].Subject, "[Ticket #")
}

func TestDeliverInternalNoteSkipsCustomer(t *testing.T) {
	store, mailer, svc := newNotificationFixture()
	customer := store.addUser("customer", domain.RoleCustomer)
	agent := store.addAgent("agent", true, 5)
	ticket := store.addTicket(&customer.ID, domain.TicketStatusAssigned, &agent.ID)

	msg := &domain.TicketMessage{TicketID: ticket.ID, AuthorID: &agent.ID, Body: "internal context", IsInternal: true}
	require.NoError(t, store.Messages().Create(context.Background(), msg))

	err := svc.Deliver(context.Background(), queue.Task{
		ID:        "task-2",
		EventType: string(events.EventTicketMessageCreated),
		TicketID:  ticket.ID,
		MessageID: &msg.ID,
	})
	require.NoError(t, err)

	mails := mailer.mails()
	require.Len(t, mails, 1)
	assert.Equal(t, []string{agent.Email}, mails[0].To)
	assert.Contains(t, mails[0].Body, "internal context")
}

func TestDeliverPublicMessageNotifiesBothParties(t *testing.T) {
	store, mailer, svc := newNotificationFixture()
	customer := store.addUser("customer", domain.RoleCustomer)
	agent := store.addAgent("agent", true, 5)
	ticket := store.addTicket(&customer.ID, domain.TicketStatusAssigned, &agent.ID)

	msg := &domain.TicketMessage{TicketID: ticket.ID, AuthorID: &customer.ID, Body: "any update?"}
	require.NoError(t, store.Messages().Create(context.Background(), msg))

	err := svc.Deliver(context.Background(), queue.Task{
		ID:        "task-3",
		EventType: string(events.EventTicketMessageCreated),
		TicketID:  ticket.ID,
		MessageID: &msg.ID,
	})
	require.NoError(t, err)

	mails := mailer.mails()
	require.Len(t, mails, 1)
	assert.ElementsMatch(t, []string{customer.Email, agent.Email}, mails[0].To)
}

func TestDeliverMissingTicketIsDone(t *testing.T) {
	_, mailer, svc := newNotificationFixture()

	err := svc.Deliver(context.Background(), queue.Task{ID: "task-4", TicketID: 404})
	require.NoError(t, err, "a deleted ticket must not bounce the task back for retry")
	assert.Empty(t, mailer.mails())
}

func TestDeliverSkipsUnassignedTicketAgent(t *testing.T) {
	store, mailer, svc := newNotificationFixture()
	customer := store.addUser("customer", domain.RoleCustomer)
	ticket := store.addTicket(&customer.ID, domain.TicketStatusOpen, nil)

	err := svc.Deliver(context.Background(), queue.Task{
		ID:        "task-5",
		EventType: string(events.EventTicketStatusChanged),
		TicketID:  ticket.ID,
	})
	require.NoError(t, err)

	mails := mailer.mails()
	require.Len(t, mails, 1)
	assert.Equal(t, []string{customer.Email}, mails[0].To)
}

func TestDedupeEmails(t *testing.T) {
	out := dedupeEmails([]string{"Agent@Example.com", "agent@example.com", "", "  ", "customer@example.com"})
	require.Len(t, out, 2)
	assert.Equal(t, "Agent@Example.com", out[0])
	assert.Equal(t, "customer@example.com", out[1])
}

func TestComposeBodyUsesTaskStatus(t *testing.T) {
	status := string(domain.TicketStatusResolved)
	body := composeBody(queue.Task{EventType: "ticket.status_changed", NewStatus: &status}, &domain.Ticket{
		ID:       7,
		Subject:  "login broken",
		Status:   domain.TicketStatusAssigned,
		Priority: domain.TicketPriorityHigh,
	}, nil)

	assert.True(t, strings.Contains(body, "Status: RESOLVED"))
	assert.True(t, strings.Contains(body, "Ticket #7"))
}

func TestEnqueueNotificationCarriesStatus(t *testing.T) {
	store := newFakeStore()
	q := queue.NewMemoryQueue()
	svc := NewNotificationService(store, q, &capturingMailer{}, zap.NewNop(), config.NotificationConfig{})

	status := domain.TicketStatusClosed
	svc.EnqueueNotification(context.Background(), events.EventTicketStatusChanged, 42, nil, &status)

	task, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, int64(42), task.TicketID)
	assert.Equal(t, string(events.EventTicketStatusChanged), task.EventType)
	require.NotNil(t, task.NewStatus)
	assert.Equal(t, "CLOSED", *task.NewStatus)
	assert.NotEmpty(t, task.ID)
}
