package events

import (
	"context"
	"sync"
)

// Broadcaster fans an event out to all current subscribers of a ticket's
// channel. Delivery is best-effort: subscribers not connected at publish
// time never see the event, and there is no replay or backlog.
type Broadcaster interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(ctx context.Context, ticketID int64) (Subscription, error)
}

// Subscription is a live event feed for one ticket.
type Subscription interface {
	Events() <-chan Event
	Close() error
}

// hub is an in-process Broadcaster used in tests and as a local fallback
// when Redis is not configured.
type hub struct {
	mu   sync.RWMutex
	subs map[int64][]*hubSubscription
}

// NewHub creates an in-process broadcaster.
func NewHub() Broadcaster {
	return &hub{subs: make(map[int64][]*hubSubscription)}
}

type hubSubscription struct {
	hub      *hub
	ticketID int64
	ch       chan Event
	closed   bool // guarded by hub.mu
}

func (s *hubSubscription) Events() <-chan Event {
	return s.ch
}

func (s *hubSubscription) Close() error {
	s.hub.remove(s)
	return nil
}

// Publish sends while holding the read lock so a send can never race the
// channel close in remove; sends are non-blocking, so holding the lock is
// bounded by the number of subscribers.
func (h *hub) Publish(_ context.Context, event Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs[event.TicketID] {
		// drop instead of blocking a slow subscriber
		select {
		case sub.ch <- event:
		default:
		}
	}
	return nil
}

func (h *hub) Subscribe(_ context.Context, ticketID int64) (Subscription, error) {
	sub := &hubSubscription{hub: h, ticketID: ticketID, ch: make(chan Event, 16)}
	h.mu.Lock()
	h.subs[ticketID] = append(h.subs[ticketID], sub)
	h.mu.Unlock()
	return sub, nil
}

func (h *hub) remove(sub *hubSubscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub.closed {
		return
	}
	sub.closed = true
	close(sub.ch)
	list := h.subs[sub.ticketID]
	for i, s := range list {
		if s == sub {
			h.subs[sub.ticketID] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(h.subs[sub.ticketID]) == 0 {
		delete(h.subs, sub.ticketID)
	}
}
