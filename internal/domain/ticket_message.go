package domain

import "time"

// TicketMessage captures communications in a ticket thread. Internal
// messages are notes visible to agents and admins only.
type TicketMessage struct {
	ID         int64
	TicketID   int64
	AuthorID   *int64
	Body       string
	IsInternal bool
	CreatedAt  time.Time
}

// Attachment stores metadata for an uploaded file. Attachments belong to a
// ticket; the message reference is an optional cross-link.
type Attachment struct {
	ID          int64
	TicketID    int64
	MessageID   *int64
	UploaderID  *int64
	StorageKey  string
	FileName    string
	ContentType string
	SizeBytes   int64
	CreatedAt   time.Time
}
