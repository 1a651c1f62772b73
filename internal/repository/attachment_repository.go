package repository

import (
	"context"

	"github.com/deskhub/support-service/internal/domain"
)

// AttachmentRepository stores uploaded file metadata. The ticket owns the
// attachment; the message link is an optional cross-reference.
type AttachmentRepository interface {
	Create(ctx context.Context, att *domain.Attachment) error
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.Attachment, error)
}

type attachmentRepository struct {
	db Querier
}

// NewAttachmentRepository builds the repository.
func NewAttachmentRepository(db Querier) AttachmentRepository {
	return &attachmentRepository{db: db}
}

func (r *attachmentRepository) Create(ctx context.Context, att *domain.Attachment) error {
	const query = `
        INSERT INTO attachments (ticket_id, message_id, uploader_id, storage_key, file_name, content_type, size_bytes)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query,
		att.TicketID,
		att.MessageID,
		att.UploaderID,
		att.StorageKey,
		att.FileName,
		att.ContentType,
		att.SizeBytes,
	).Scan(&att.ID, &att.CreatedAt)
}

func (r *attachmentRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.Attachment, error) {
	const query = `
        SELECT id, ticket_id, message_id, uploader_id, storage_key, file_name, content_type, size_bytes, created_at
        FROM attachments WHERE ticket_id=$1 ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Attachment
	for rows.Next() {
		var att domain.Attachment
		if err := rows.Scan(
			&att.ID,
			&att.TicketID,
			&att.MessageID,
			&att.UploaderID,
			&att.StorageKey,
			&att.FileName,
			&att.ContentType,
			&att.SizeBytes,
			&att.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, att)
	}
	return result, rows.Err()
}
