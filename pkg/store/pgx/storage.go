package pgx

import (
	"context"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// Storage implements the fragment and edge storage interfaces on PostgreSQL
// with pgvector for similarity search. Retrieval reads need no locking beyond
// the database's own consistency; mining writes are idempotent upserts keyed
// by natural identity, so no application-level locks are held either.
type Storage struct {
	conn pgxIConn
}

// NewStorage creates a Storage over an existing connection or pool.
func NewStorage(conn pgxIConn) *Storage {
	return &Storage{conn: conn}
}
