package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TxStore is the repository view handed to transactional callbacks. Row
// locks taken through it (GetByIDForUpdate) are held until the enclosing
// transaction commits or rolls back.
type TxStore interface {
	Tickets() TicketRepository
	Users() UserRepository
}

// Store is the persistence boundary consumed by the services. InTx runs fn
// inside a single transaction: an error return rolls everything back, so
// mutations are all-or-nothing.
type Store interface {
	TxStore
	Messages() MessageRepository
	Attachments() AttachmentRepository
	InTx(ctx context.Context, fn func(tx TxStore) error) error
}

type pgStore struct {
	pool *pgxpool.Pool
}

// NewStore returns a Postgres-backed Store.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

func (s *pgStore) Tickets() TicketRepository {
	return NewTicketRepository(s.pool)
}

func (s *pgStore) Users() UserRepository {
	return NewUserRepository(s.pool)
}

func (s *pgStore) Messages() MessageRepository {
	return NewMessageRepository(s.pool)
}

func (s *pgStore) Attachments() AttachmentRepository {
	return NewAttachmentRepository(s.pool)
}

func (s *pgStore) InTx(ctx context.Context, fn func(tx TxStore) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(&txStore{q: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type txStore struct {
	q Querier
}

func (s *txStore) Tickets() TicketRepository {
	return NewTicketRepository(s.q)
}

func (s *txStore) Users() UserRepository {
	return NewUserRepository(s.q)
}
