package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/deskhub/support-service/internal/domain"
)

// UserRepository defines persistence access for accounts and agent profiles.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// UpdateProfile persists the scheduling-relevant profile fields.
	UpdateProfile(ctx context.Context, user *domain.User) error
	// SetAvailability flips only is_available, for the scheduler's eager
	// flip-down and for availability recomputation.
	SetAvailability(ctx context.Context, id int64, available bool) error
	// ListAvailableAgentsByLoad returns available agents annotated with
	// their derived active ticket count, ordered (active_count ASC, id ASC)
	// so selection under equal load is deterministic.
	ListAvailableAgentsByLoad(ctx context.Context) ([]domain.AgentLoad, error)
	// ListAgentsWithLoad returns every agent with its load, for the admin
	// presence view.
	ListAgentsWithLoad(ctx context.Context) ([]domain.AgentLoad, error)
}

type userRepository struct {
	db Querier
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(db Querier) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, username, email, password_hash, role, is_available, capacity, created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (username, email, password_hash, role, is_available, capacity)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.IsAvailable,
		user.Capacity,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username=$1`
	return r.fetchSingle(ctx, query, username)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email)=LOWER($1)`
	return r.fetchSingle(ctx, query, email)
}

func (r *userRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.User, error) {
	var user domain.User
	if err := r.db.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.IsAvailable,
		&user.Capacity,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) UpdateProfile(ctx context.Context, user *domain.User) error {
	const query = `
        UPDATE users SET is_available=$1, capacity=$2, updated_at=NOW()
        WHERE id=$3`
	cmd, err := r.db.Exec(ctx, query, user.IsAvailable, user.Capacity, user.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) SetAvailability(ctx context.Context, id int64, available bool) error {
	const query = `
        UPDATE users SET is_available=$1, updated_at=NOW()
        WHERE id=$2`
	cmd, err := r.db.Exec(ctx, query, available, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

const agentLoadQuery = `
        SELECT u.id, u.username, u.email, u.password_hash, u.role, u.is_available, u.capacity,
               u.created_at, u.updated_at, COALESCE(l.active_count, 0)
        FROM users u
        LEFT JOIN (
            SELECT assigned_agent_id, COUNT(DISTINCT id) AS active_count
            FROM tickets
            WHERE assigned_agent_id IS NOT NULL AND status = ANY($1)
            GROUP BY assigned_agent_id
        ) l ON l.assigned_agent_id = u.id
        WHERE u.role = 'agent'`

func (r *userRepository) ListAvailableAgentsByLoad(ctx context.Context) ([]domain.AgentLoad, error) {
	query := agentLoadQuery + `
          AND u.is_available = TRUE
        ORDER BY COALESCE(l.active_count, 0) ASC, u.id ASC`
	return r.queryAgentLoads(ctx, query)
}

func (r *userRepository) ListAgentsWithLoad(ctx context.Context) ([]domain.AgentLoad, error) {
	query := agentLoadQuery + `
        ORDER BY u.is_available DESC, LOWER(u.username) ASC`
	return r.queryAgentLoads(ctx, query)
}

func (r *userRepository) queryAgentLoads(ctx context.Context, query string) ([]domain.AgentLoad, error) {
	rows, err := r.db.Query(ctx, query, activeStatusStrings())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AgentLoad
	for rows.Next() {
		var load domain.AgentLoad
		if err := rows.Scan(
			&load.Agent.ID,
			&load.Agent.Username,
			&load.Agent.Email,
			&load.Agent.PasswordHash,
			&load.Agent.Role,
			&load.Agent.IsAvailable,
			&load.Agent.Capacity,
			&load.Agent.CreatedAt,
			&load.Agent.UpdatedAt,
			&load.ActiveCount,
		); err != nil {
			return nil, err
		}
		result = append(result, load)
	}
	return result, rows.Err()
}
