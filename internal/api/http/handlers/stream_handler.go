package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/deskhub/support-service/internal/auth"
	"github.com/deskhub/support-service/internal/events"
	"github.com/deskhub/support-service/internal/service"
	apperrors "github.com/deskhub/support-service/pkg/util"
)

const streamHeartbeat = 15 * time.Second

// StreamHandler serves per-ticket realtime events over SSE. Events are
// delivered from the moment of subscription; there is no replay of earlier
// activity.
type StreamHandler struct {
	tickets     *service.TicketService
	broadcaster events.Broadcaster
	logger      *zap.Logger
}

// NewStreamHandler constructs handler.
func NewStreamHandler(tickets *service.TicketService, broadcaster events.Broadcaster, logger *zap.Logger) *StreamHandler {
	return &StreamHandler{tickets: tickets, broadcaster: broadcaster, logger: logger}
}

// Stream GET /tickets/:id/events.
func (h *StreamHandler) Stream(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	ticketID, err := parseID(c)
	if err != nil {
		return err
	}
	// Access control happens before the stream opens.
	if _, err := h.tickets.GetTicket(c.UserContext(), user, ticketID); err != nil {
		return err
	}

	sub, err := h.broadcaster.Subscribe(context.Background(), ticketID)
	if err != nil {
		return apperrors.MapError(err)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set("Connection", "keep-alive")

	logger := h.logger
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer sub.Close()
		heartbeat := time.NewTicker(streamHeartbeat)
		defer heartbeat.Stop()
		for {
			select {
			case event, open := <-sub.Events():
				if !open {
					return
				}
				if err := writeSSE(w, event); err != nil {
					return
				}
			case <-heartbeat.C:
				// Comment frames keep intermediaries from closing the
				// connection and surface client disconnects as write errors.
				if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					logger.Debug("stream client gone", zap.Int64("ticket_id", ticketID))
					return
				}
			}
		}
	})
	return nil
}

func writeSSE(w *bufio.Writer, event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, payload); err != nil {
		return err
	}
	return w.Flush()
}
