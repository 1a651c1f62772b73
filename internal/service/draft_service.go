package service

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/deskhub/support-service/internal/domain"
	"github.com/deskhub/support-service/internal/repository"
	apperrors "github.com/deskhub/support-service/pkg/util"
)

// DraftGenerator is the opaque external model call used for reply drafts.
type DraftGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// DraftService builds PII-scrubbed prompts from a ticket thread and asks the
// generator for a suggested agent reply.
type DraftService struct {
	store     repository.Store
	generator DraftGenerator
}

// NewDraftService constructs the service.
func NewDraftService(store repository.Store, generator DraftGenerator) *DraftService {
	return &DraftService{store: store, generator: generator}
}

const draftHistoryLimit = 10

// DraftReply proposes a reply for the ticket using the last public messages
// as context.
func (s *DraftService) DraftReply(ctx context.Context, actor *domain.User, ticketID int64) (string, error) {
	if s.generator == nil {
		return "", apperrors.NewDomainError("DRAFT_UNAVAILABLE", "draft generation is not configured", 503, nil)
	}

	ticket, err := s.store.Tickets().GetByID(ctx, ticketID)
	if err != nil {
		return "", apperrors.MapError(err)
	}
	if !canAccessTicket(actor, ticket) {
		return "", apperrors.NewForbidden("access denied")
	}

	msgs, err := s.store.Messages().ListByTicket(ctx, ticketID, false)
	if err != nil {
		return "", apperrors.MapError(err)
	}
	if len(msgs) > draftHistoryLimit {
		msgs = msgs[len(msgs)-draftHistoryLimit:]
	}

	lines := []string{
		"You are a helpful customer support agent.",
		"Write a short, friendly, and actionable reply.",
		"Do not include private data. If you need more info, ask concise questions.",
		"",
		"Ticket subject: " + redactPII(ticket.Subject),
		"Ticket description: " + redactPII(ticket.Description),
		"",
		"Conversation:",
	}
	for _, msg := range msgs {
		author := "unknown"
		if msg.AuthorID != nil {
			author = "user " + strconv.FormatInt(*msg.AuthorID, 10)
		}
		lines = append(lines, author+": "+redactPII(msg.Body))
	}
	lines = append(lines, "", "Draft reply:")

	draft, err := s.generator.Generate(ctx, strings.Join(lines, "\n"))
	if err != nil {
		return "", apperrors.NewDomainError("DRAFT_FAILED", "failed to generate draft", 500, nil)
	}
	return strings.TrimSpace(draft), nil
}

var (
	emailPattern = regexp.MustCompile(`(?i)[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\b\+?\d[\d\s\-()]{7,}\b`)
)

// redactPII masks emails and phone numbers before text leaves the system.
func redactPII(text string) string {
	if text == "" {
		return text
	}
	text = emailPattern.ReplaceAllString(text, "[redacted-email]")
	text = phonePattern.ReplaceAllString(text, "[redacted-phone]")
	return text
}
