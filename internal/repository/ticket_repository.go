package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/deskhub/support-service/internal/domain"
)

// TicketFilter captures listing parameters.
type TicketFilter struct {
	CustomerID      *int64
	AssignedAgentID *int64
	Statuses        []domain.TicketStatus
	Priorities      []domain.TicketPriority
	CreatedFrom     *time.Time
	CreatedTo       *time.Time
	Limit           int
	Offset          int
}

// SearchFilter captures full-text search parameters. When IncludeInternal is
// false, internal note bodies are excluded from the searchable text.
type SearchFilter struct {
	Query           string
	CustomerID      *int64
	AssignedAgentID *int64
	Statuses        []domain.TicketStatus
	Priorities      []domain.TicketPriority
	IncludeInternal bool
	Limit           int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	// GetByIDForUpdate takes an exclusive row lock on the ticket. Only
	// meaningful inside a transaction; the lock is released on commit or
	// rollback.
	GetByIDForUpdate(ctx context.Context, id int64) (*domain.Ticket, error)
	UpdateAssignment(ctx context.Context, ticket *domain.Ticket) error
	UpdateStatus(ctx context.Context, ticket *domain.Ticket) error
	TouchLastMessage(ctx context.Context, id int64, at time.Time) error
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	// ListUnassignedOpenIDs returns the oldest unassigned OPEN tickets,
	// created_at ascending, capped at limit.
	ListUnassignedOpenIDs(ctx context.Context, limit int) ([]int64, error)
	// CountActiveByAgent derives the agent's current load from the ticket
	// table.
	CountActiveByAgent(ctx context.Context, agentID int64) (int, error)
	Search(ctx context.Context, filter SearchFilter) ([]domain.Ticket, error)
	// CountByStatus groups all tickets by status.
	CountByStatus(ctx context.Context) (map[domain.TicketStatus]int, error)
	// DailyCreatedCounts returns per-day created-ticket counts since the
	// given instant, oldest day first.
	DailyCreatedCounts(ctx context.Context, since time.Time) ([]domain.TicketVolumePoint, error)
	// ResolutionStats aggregates closed_at - created_at over closed tickets.
	ResolutionStats(ctx context.Context) (domain.ResolutionStats, error)
}

type ticketRepository struct {
	db Querier
}

// NewTicketRepository instantiates the repository over a pool or transaction.
func NewTicketRepository(db Querier) TicketRepository {
	return &ticketRepository{db: db}
}

const ticketColumns = `id, customer_id, assigned_agent_id, subject, description,
               status, priority, created_at, updated_at, last_message_at, closed_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (customer_id, assigned_agent_id, subject, description, status, priority)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		ticket.CustomerID,
		ticket.AssignedAgentID,
		ticket.Subject,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1 FOR UPDATE`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := scanTicket(r.db.QueryRow(ctx, query, arg), &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) UpdateAssignment(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET assigned_agent_id=$1, status=$2, updated_at=NOW()
        WHERE id=$3`
	cmd, err := r.db.Exec(ctx, query, ticket.AssignedAgentID, ticket.Status, ticket.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) UpdateStatus(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET status=$1, closed_at=$2, updated_at=NOW()
        WHERE id=$3`
	cmd, err := r.db.Exec(ctx, query, ticket.Status, ticket.ClosedAt, ticket.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) TouchLastMessage(ctx context.Context, id int64, at time.Time) error {
	const query = `
        UPDATE tickets SET last_message_at=$1, updated_at=NOW()
        WHERE id=$2`
	cmd, err := r.db.Exec(ctx, query, at, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT ` + ticketColumns + ` FROM tickets`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CustomerID != nil {
		args = append(args, *filter.CustomerID)
		clauses = append(clauses, fmt.Sprintf("customer_id=$%d", len(args)))
	}
	if filter.AssignedAgentID != nil {
		args = append(args, *filter.AssignedAgentID)
		clauses = append(clauses, fmt.Sprintf("assigned_agent_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListUnassignedOpenIDs(ctx context.Context, limit int) ([]int64, error) {
	const query = `
        SELECT id FROM tickets
        WHERE status=$1 AND assigned_agent_id IS NULL
        ORDER BY created_at ASC
        LIMIT $2`
	rows, err := r.db.Query(ctx, query, domain.TicketStatusOpen, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *ticketRepository) CountActiveByAgent(ctx context.Context, agentID int64) (int, error) {
	const query = `
        SELECT COUNT(DISTINCT id) FROM tickets
        WHERE assigned_agent_id=$1 AND status = ANY($2)`
	var count int
	if err := r.db.QueryRow(ctx, query, agentID, activeStatusStrings()).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ticketRepository) Search(ctx context.Context, filter SearchFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{filter.Query, filter.IncludeInternal}

	if filter.CustomerID != nil {
		args = append(args, *filter.CustomerID)
		clauses = append(clauses, fmt.Sprintf("t.customer_id=$%d", len(args)))
	}
	if filter.AssignedAgentID != nil {
		args = append(args, *filter.AssignedAgentID)
		clauses = append(clauses, fmt.Sprintf("t.assigned_agent_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("t.status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("t.priority IN (%s)", strings.Join(placeholders, ",")))
	}

	limit := filter.Limit
	if limit <= 0 || limit > 50 {
		limit = 50
	}

	// Rank subject highest, description next, thread text last. Internal
	// notes only contribute text for agent/admin searches ($2).
	query := fmt.Sprintf(`
        SELECT t.id, t.customer_id, t.assigned_agent_id, t.subject, t.description,
               t.status, t.priority, t.created_at, t.updated_at, t.last_message_at, t.closed_at
        FROM tickets t
        LEFT JOIN LATERAL (
            SELECT COALESCE(string_agg(m.body, ' '), '') AS thread_text
            FROM ticket_messages m
            WHERE m.ticket_id = t.id AND ($2 OR m.is_internal = FALSE)
        ) msgs ON TRUE
        WHERE %s AND (
            setweight(to_tsvector('english', t.subject), 'A') ||
            setweight(to_tsvector('english', t.description), 'B') ||
            setweight(to_tsvector('english', msgs.thread_text), 'C')
        ) @@ websearch_to_tsquery('english', $1)
        ORDER BY ts_rank(
            setweight(to_tsvector('english', t.subject), 'A') ||
            setweight(to_tsvector('english', t.description), 'B') ||
            setweight(to_tsvector('english', msgs.thread_text), 'C'),
            websearch_to_tsquery('english', $1)
        ) DESC, t.created_at DESC
        LIMIT %d`, strings.Join(clauses, " AND "), limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) CountByStatus(ctx context.Context) (map[domain.TicketStatus]int, error) {
	const query = `SELECT status, COUNT(*) FROM tickets GROUP BY status`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.TicketStatus]int)
	for rows.Next() {
		var status domain.TicketStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func (r *ticketRepository) DailyCreatedCounts(ctx context.Context, since time.Time) ([]domain.TicketVolumePoint, error) {
	const query = `
        SELECT created_at::date AS day, COUNT(*) FROM tickets
        WHERE created_at >= $1
        GROUP BY day
        ORDER BY day ASC`
	rows, err := r.db.Query(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var series []domain.TicketVolumePoint
	for rows.Next() {
		var point domain.TicketVolumePoint
		if err := rows.Scan(&point.Day, &point.Count); err != nil {
			return nil, err
		}
		series = append(series, point)
	}
	return series, rows.Err()
}

func (r *ticketRepository) ResolutionStats(ctx context.Context) (domain.ResolutionStats, error) {
	// AVG over zero rows is NULL, so avg stays nil until a ticket closes.
	const query = `
        SELECT COUNT(*), EXTRACT(EPOCH FROM AVG(closed_at - created_at))
        FROM tickets WHERE closed_at IS NOT NULL`
	var stats domain.ResolutionStats
	var avgSeconds *float64
	if err := r.db.QueryRow(ctx, query).Scan(&stats.ResolvedCount, &avgSeconds); err != nil {
		return domain.ResolutionStats{}, err
	}
	if avgSeconds != nil {
		seconds := int64(*avgSeconds)
		stats.AvgResolutionSeconds = &seconds
	}
	return stats, nil
}

func activeStatusStrings() []string {
	out := make([]string, len(domain.ActiveTicketStatuses))
	for i, s := range domain.ActiveTicketStatuses {
		out[i] = string(s)
	}
	return out
}

func scanTicket(row pgx.Row, ticket *domain.Ticket) error {
	return row.Scan(
		&ticket.ID,
		&ticket.CustomerID,
		&ticket.AssignedAgentID,
		&ticket.Subject,
		&ticket.Description,
		&ticket.Status,
		&ticket.Priority,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.LastMessageAt,
		&ticket.ClosedAt,
	)
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := scanTicket(rows, &ticket); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
