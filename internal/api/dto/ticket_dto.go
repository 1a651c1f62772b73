package dto

import (
	"time"

	"github.com/deskhub/support-service/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Subject     string                `json:"subject"`
	Description string                `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
}

// SetStatusRequest payload.
type SetStatusRequest struct {
	Status domain.TicketStatus `json:"status"`
}

// AssignRequest is the manual assignment payload. A nil AgentID asks the
// scheduler to pick the least-loaded available agent.
type AssignRequest struct {
	AgentID *int64 `json:"agent_id"`
}

// CreateMessageRequest payload.
type CreateMessageRequest struct {
	Body        string              `json:"body"`
	IsInternal  bool                `json:"is_internal"`
	Attachments []AttachmentPayload `json:"attachments"`
}

// AttachmentPayload carries uploaded-file metadata inside a message.
type AttachmentPayload struct {
	StorageKey  string `json:"storage_key"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

// TicketResponse is the API view of a ticket.
type TicketResponse struct {
	ID              int64                 `json:"id"`
	CustomerID      *int64                `json:"customer_id"`
	AssignedAgentID *int64                `json:"assigned_agent_id"`
	Subject         string                `json:"subject"`
	Description     string                `json:"description"`
	Status          domain.TicketStatus   `json:"status"`
	Priority        domain.TicketPriority `json:"priority"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
	LastMessageAt   *time.Time            `json:"last_message_at,omitempty"`
	ClosedAt        *time.Time            `json:"closed_at,omitempty"`
}

// MessageResponse is the API view of a thread message.
type MessageResponse struct {
	ID         int64     `json:"id"`
	TicketID   int64     `json:"ticket_id"`
	AuthorID   *int64    `json:"author_id"`
	Body       string    `json:"body"`
	IsInternal bool      `json:"is_internal"`
	CreatedAt  time.Time `json:"created_at"`
}

// AttachmentResponse is the API view of an attachment.
type AttachmentResponse struct {
	ID          int64     `json:"id"`
	TicketID    int64     `json:"ticket_id"`
	MessageID   *int64    `json:"message_id,omitempty"`
	UploaderID  *int64    `json:"uploader_id"`
	StorageKey  string    `json:"storage_key"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	CreatedAt   time.Time `json:"created_at"`
}

// DraftResponse wraps an AI-suggested reply.
type DraftResponse struct {
	Draft string `json:"draft"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:              t.ID,
		CustomerID:      t.CustomerID,
		AssignedAgentID: t.AssignedAgentID,
		Subject:         t.Subject,
		Description:     t.Description,
		Status:          t.Status,
		Priority:        t.Priority,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
		LastMessageAt:   t.LastMessageAt,
		ClosedAt:        t.ClosedAt,
	}
}

// NewTicketResponses maps a slice.
func NewTicketResponses(tickets []domain.Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		out = append(out, NewTicketResponse(&tickets[i]))
	}
	return out
}

// NewMessageResponse maps a domain message.
func NewMessageResponse(m *domain.TicketMessage) MessageResponse {
	return MessageResponse{
		ID:         m.ID,
		TicketID:   m.TicketID,
		AuthorID:   m.AuthorID,
		Body:       m.Body,
		IsInternal: m.IsInternal,
		CreatedAt:  m.CreatedAt,
	}
}

// NewAttachmentResponse maps a domain attachment.
func NewAttachmentResponse(a *domain.Attachment) AttachmentResponse {
	return AttachmentResponse{
		ID:          a.ID,
		TicketID:    a.TicketID,
		MessageID:   a.MessageID,
		UploaderID:  a.UploaderID,
		StorageKey:  a.StorageKey,
		FileName:    a.FileName,
		ContentType: a.ContentType,
		SizeBytes:   a.SizeBytes,
		CreatedAt:   a.CreatedAt,
	}
}
